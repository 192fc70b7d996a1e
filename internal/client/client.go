// Package client is the companion-process side of the sync channel.
package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/emberhq/embersync/internal/protocol/frame"
	"github.com/emberhq/embersync/internal/protocol/locwire"
)

var (
	ErrAddressRequired   = errors.New("client: server address required")
	ErrMessageIDMismatch = errors.New("client: ack message id mismatch")
)

type Config struct {
	Address            string
	ConnectTimeout     time.Duration
	CallTimeout        time.Duration
	MaxConnectAttempts int
	Backoff            BackoffConfig
	Limits             frame.Limits
}

func DefaultConfig() Config {
	return Config{
		Address:            "127.0.0.1:50058",
		ConnectTimeout:     5 * time.Second,
		CallTimeout:        20 * time.Second,
		MaxConnectAttempts: 3,
		Backoff:            DefaultBackoff(),
		Limits:             frame.DefaultLimits(),
	}
}

// Client holds one connection to the sync endpoint and serializes calls on
// it. Calls are one-shot: a failure ack is a final answer, retrying is the
// caller's decision.
type Client struct {
	cfg Config
	rng *rand.Rand

	mu     sync.Mutex
	conn   net.Conn
	nextID uint64
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, ErrAddressRequired
	}
	def := DefaultConfig()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.MaxConnectAttempts <= 0 {
		cfg.MaxConnectAttempts = def.MaxConnectAttempts
	}
	if cfg.Backoff.InitialDelay <= 0 {
		cfg.Backoff = def.Backoff
	}
	if cfg.Limits.MaxPayloadBytes == 0 {
		cfg.Limits = def.Limits
	}
	return &Client{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// SetLocation sends one offset and waits for the ack. The transport call
// succeeds even when the ack reports a failure status.
func (c *Client) SetLocation(ctx context.Context, offset uint64) (locwire.Ack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.ensureConn(ctx)
	if err != nil {
		return locwire.Ack{}, err
	}

	c.nextID++
	messageID := c.nextID
	raw, err := locwire.EncodeRequestFrame(messageID, locwire.Request{Offset: offset})
	if err != nil {
		return locwire.Ack{}, err
	}

	deadline := time.Now().Add(c.cfg.CallTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	if _, err := conn.Write(raw); err != nil {
		c.dropConn()
		return locwire.Ack{}, fmt.Errorf("client: write request: %w", err)
	}

	fr, err := locwire.ReadFrame(conn, c.cfg.Limits)
	if err != nil {
		c.dropConn()
		return locwire.Ack{}, fmt.Errorf("client: read ack: %w", err)
	}
	if fr.Header.MessageID != messageID {
		c.dropConn()
		return locwire.Ack{}, fmt.Errorf("%w: got=%d want=%d", ErrMessageIDMismatch, fr.Header.MessageID, messageID)
	}
	ack, err := locwire.DecodeAckFrame(fr)
	if err != nil {
		c.dropConn()
		return locwire.Ack{}, err
	}
	return ack, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// ensureConn dials with bounded retries; callers hold c.mu.
func (c *Client) ensureConn(ctx context.Context) (net.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}

	var attempt int
	for {
		attempt++
		dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Address)
		if err == nil {
			c.conn = conn
			return conn, nil
		}
		log.Warn().Int("attempt", attempt).Str("addr", c.cfg.Address).Err(err).Msg("dial failed")
		if attempt >= c.cfg.MaxConnectAttempts {
			return nil, fmt.Errorf("client: dial %s: %w", c.cfg.Address, err)
		}
		select {
		case <-time.After(NextBackoffDelay(c.cfg.Backoff, attempt, c.rng)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *Client) dropConn() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

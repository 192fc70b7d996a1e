package client

import (
	"math/rand"
	"testing"
	"time"
)

func TestNextBackoffDelayGrowsAndCaps(t *testing.T) {
	cfg := BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     500 * time.Millisecond,
	}
	if d := NextBackoffDelay(cfg, 1, nil); d != 100*time.Millisecond {
		t.Fatalf("attempt 1: %v", d)
	}
	if d := NextBackoffDelay(cfg, 2, nil); d != 200*time.Millisecond {
		t.Fatalf("attempt 2: %v", d)
	}
	if d := NextBackoffDelay(cfg, 10, nil); d != 500*time.Millisecond {
		t.Fatalf("attempt 10 should cap at max: %v", d)
	}
}

func TestNextBackoffDelayJitterStaysBounded(t *testing.T) {
	cfg := DefaultBackoff()
	rng := rand.New(rand.NewSource(1))
	for attempt := 1; attempt <= 8; attempt++ {
		d := NextBackoffDelay(cfg, attempt, rng)
		if attempt > 1 && d > cfg.MaxDelay+cfg.MaxDelay/2 {
			t.Fatalf("attempt %d delay out of bounds: %v", attempt, d)
		}
	}
}

func TestNewRequiresAddress(t *testing.T) {
	if _, err := New(Config{}); err != ErrAddressRequired {
		t.Fatalf("expected ErrAddressRequired, got %v", err)
	}
}

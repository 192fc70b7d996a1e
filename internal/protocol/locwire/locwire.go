// Package locwire owns the SetLocation request/ack wire shapes.
//
// Ownership boundary:
// - request/ack message structs and status tags
// - frame encode/decode for both message types
package locwire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/emberhq/embersync/internal/protocol"
	"github.com/emberhq/embersync/internal/protocol/frame"
	"github.com/emberhq/embersync/internal/protocol/schema"
	"github.com/emberhq/embersync/internal/protocol/tlv"
)

// Status is the machine-readable ack outcome. The Message string is for
// display only and must not be parsed by callers.
type Status string

const (
	StatusOK               Status = "ok"
	StatusNoActiveProgram  Status = "no_active_program"
	StatusInvalidAddress   Status = "invalid_address"
	StatusNavigationFailed Status = "navigation_failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOK, StatusNoActiveProgram, StatusInvalidAddress, StatusNavigationFailed:
		return true
	}
	return false
}

// Request is the companion->host location-change message.
type Request struct {
	Offset uint64
}

// Ack is the host->companion outcome message.
type Ack struct {
	Offset      uint64
	Status      Status
	Message     string
	TimestampMS uint64
}

func (a Ack) Validate() error {
	if !a.Status.Valid() {
		return fmt.Errorf("locwire: invalid ack status %q", a.Status)
	}
	if a.Message == "" {
		return fmt.Errorf("locwire: ack missing message")
	}
	return nil
}

func EncodeRequestFrame(messageID uint64, req Request) ([]byte, error) {
	fields := []tlv.Field{tlv.U64(schema.FieldOffset, req.Offset)}
	return encodeFrame(messageID, schema.MsgSetLocation, 0, fields)
}

func DecodeRequestFrame(f frame.Frame) (Request, error) {
	fields, err := decodeFrame(f, schema.MsgSetLocation)
	if err != nil {
		return Request{}, err
	}
	offField, _ := tlv.GetField(fields, schema.FieldOffset)
	off, err := tlv.U64Value(offField)
	if err != nil {
		return Request{}, err
	}
	return Request{Offset: off}, nil
}

func EncodeAckFrame(messageID uint64, ack Ack) ([]byte, error) {
	if err := ack.Validate(); err != nil {
		return nil, err
	}
	flags := frame.FlagIsResponse
	if ack.Status != StatusOK {
		flags |= frame.FlagIsError
	}
	fields := []tlv.Field{
		tlv.U64(schema.FieldOffset, ack.Offset),
		tlv.String(schema.FieldStatus, string(ack.Status)),
		tlv.String(schema.FieldMessage, ack.Message),
		tlv.U64(schema.FieldTimestampMS, ack.TimestampMS),
	}
	return encodeFrame(messageID, schema.MsgSetLocationAck, flags, fields)
}

func DecodeAckFrame(f frame.Frame) (Ack, error) {
	fields, err := decodeFrame(f, schema.MsgSetLocationAck)
	if err != nil {
		return Ack{}, err
	}
	ack := Ack{}
	offField, _ := tlv.GetField(fields, schema.FieldOffset)
	if ack.Offset, err = tlv.U64Value(offField); err != nil {
		return Ack{}, err
	}
	statusField, _ := tlv.GetField(fields, schema.FieldStatus)
	status, err := tlv.StringValue(statusField)
	if err != nil {
		return Ack{}, err
	}
	ack.Status = Status(status)
	messageField, _ := tlv.GetField(fields, schema.FieldMessage)
	if ack.Message, err = tlv.StringValue(messageField); err != nil {
		return Ack{}, err
	}
	tsField, _ := tlv.GetField(fields, schema.FieldTimestampMS)
	if ack.TimestampMS, err = tlv.U64Value(tsField); err != nil {
		return Ack{}, err
	}
	if err := ack.Validate(); err != nil {
		return Ack{}, err
	}
	return ack, nil
}

// ReadFrame reads one framed message from the stream.
func ReadFrame(r io.Reader, limits frame.Limits) (frame.Frame, error) {
	return frame.ReadFrame(r, limits)
}

func encodeFrame(messageID uint64, messageType uint16, flags uint16, fields []tlv.Field) ([]byte, error) {
	if err := schema.Validate(messageType, fields); err != nil {
		return nil, err
	}
	payload, err := tlv.EncodeFields(fields)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = frame.WriteFrame(&buf, frame.Frame{
		Header: frame.Header{
			Magic:       protocol.Magic,
			Version:     protocol.Version,
			MessageID:   messageID,
			MessageType: messageType,
			Flags:       flags,
		},
		Payload: payload,
	}, frame.DefaultLimits())
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeFrame(f frame.Frame, wantType uint16) ([]tlv.Field, error) {
	if err := protocol.VerifyIdentity(f.Header.Magic, f.Header.Version); err != nil {
		return nil, err
	}
	if f.Header.MessageType != wantType {
		return nil, fmt.Errorf("locwire: unexpected message_type=%d want=%d", f.Header.MessageType, wantType)
	}
	fields, err := tlv.DecodeFields(f.Payload)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(wantType, fields); err != nil {
		return nil, err
	}
	return fields, nil
}

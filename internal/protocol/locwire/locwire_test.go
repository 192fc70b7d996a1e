package locwire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/emberhq/embersync/internal/protocol"
	"github.com/emberhq/embersync/internal/protocol/frame"
)

func TestRequestFrameRoundTrip(t *testing.T) {
	raw, err := EncodeRequestFrame(7, Request{Offset: 0x0010115e})
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	fr, err := ReadFrame(bytes.NewReader(raw), frame.DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if fr.Header.MessageID != 7 {
		t.Fatalf("unexpected message id: %d", fr.Header.MessageID)
	}
	req, err := DecodeRequestFrame(fr)
	if err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if req.Offset != 0x0010115e {
		t.Fatalf("unexpected offset: %#x", req.Offset)
	}
}

func TestAckFrameRoundTrip(t *testing.T) {
	in := Ack{
		Offset:      0x0010115e,
		Status:      StatusNavigationFailed,
		Message:     "Failed to go to address: 0x0010115e",
		TimestampMS: 1700000000000,
	}
	raw, err := EncodeAckFrame(9, in)
	if err != nil {
		t.Fatalf("encode ack: %v", err)
	}
	fr, err := ReadFrame(bytes.NewReader(raw), frame.DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if fr.Header.Flags&frame.FlagIsResponse == 0 {
		t.Fatalf("expected response flag, got %#x", fr.Header.Flags)
	}
	if fr.Header.Flags&frame.FlagIsError == 0 {
		t.Fatalf("expected error flag on failure ack, got %#x", fr.Header.Flags)
	}
	out, err := DecodeAckFrame(fr)
	if err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if out != in {
		t.Fatalf("ack mismatch: got=%+v want=%+v", out, in)
	}
}

func TestSuccessAckCarriesNoErrorFlag(t *testing.T) {
	raw, err := EncodeAckFrame(1, Ack{
		Offset:      5,
		Status:      StatusOK,
		Message:     "Going to address: 0x00000005",
		TimestampMS: 1,
	})
	if err != nil {
		t.Fatalf("encode ack: %v", err)
	}
	fr, err := ReadFrame(bytes.NewReader(raw), frame.DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if fr.Header.Flags&frame.FlagIsError != 0 {
		t.Fatalf("unexpected error flag on success ack")
	}
}

func TestDecodeRejectsForeignMagic(t *testing.T) {
	raw, err := EncodeRequestFrame(1, Request{Offset: 1})
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	fr, err := ReadFrame(bytes.NewReader(raw), frame.DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	fr.Header.Magic = 0xDEADBEEF
	if _, err := DecodeRequestFrame(fr); !errors.Is(err, protocol.ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
	fr.Header.Magic = protocol.Magic
	fr.Header.Version = 99
	if _, err := DecodeRequestFrame(fr); !errors.Is(err, protocol.ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestDecodeRejectsWrongMessageType(t *testing.T) {
	raw, err := EncodeRequestFrame(1, Request{Offset: 1})
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	fr, err := ReadFrame(bytes.NewReader(raw), frame.DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if _, err := DecodeAckFrame(fr); err == nil {
		t.Fatalf("expected message type mismatch error")
	}
}

func TestEncodeAckRejectsInvalidStatus(t *testing.T) {
	if _, err := EncodeAckFrame(1, Ack{Offset: 1, Status: "bogus", Message: "m", TimestampMS: 1}); err == nil {
		t.Fatalf("expected invalid status error")
	}
}

// Package schema owns required-field validation for sync message types.
package schema

import (
	"fmt"

	"github.com/emberhq/embersync/internal/protocol/tlv"
	"github.com/rs/zerolog/log"
)

// Message type IDs carried in the frame header.
const (
	MsgSetLocation    uint16 = 1
	MsgSetLocationAck uint16 = 2
)

// Field IDs carried in the TLV payload.
const (
	FieldOffset      uint8 = 1
	FieldTimestampMS uint8 = 2

	FieldStatus  uint8 = 10
	FieldMessage uint8 = 11
)

type Requirement struct {
	ID   uint8
	Type uint8
}

type ValidationError struct {
	MessageType uint16
	FieldID     uint8
	Reason      string
}

func (e ValidationError) Error() string {
	if e.FieldID == 0 {
		return fmt.Sprintf("schema: message_type=%d: %s", e.MessageType, e.Reason)
	}
	return fmt.Sprintf("schema: message_type=%d field=%d: %s", e.MessageType, e.FieldID, e.Reason)
}

var requirements = map[uint16][]Requirement{
	MsgSetLocation: {
		{FieldOffset, tlv.TypeU64},
	},
	MsgSetLocationAck: {
		{FieldOffset, tlv.TypeU64},
		{FieldStatus, tlv.TypeString},
		{FieldMessage, tlv.TypeString},
		{FieldTimestampMS, tlv.TypeU64},
	},
}

// Validate checks required field presence and types for one message type.
func Validate(messageType uint16, fields []tlv.Field) error {
	reqs, ok := requirements[messageType]
	if !ok {
		log.Debug().Uint16("message_type", messageType).Msg("schema unknown message_type")
		return ValidationError{MessageType: messageType, Reason: "unknown message_type"}
	}
	for _, req := range reqs {
		f, found := tlv.GetField(fields, req.ID)
		if !found {
			log.Debug().
				Uint16("message_type", messageType).
				Uint8("field_id", req.ID).
				Msg("schema missing required field")
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "missing required field"}
		}
		if f.Type != req.Type {
			log.Debug().
				Uint16("message_type", messageType).
				Uint8("field_id", req.ID).
				Uint8("got", f.Type).
				Uint8("want", req.Type).
				Msg("schema field type mismatch")
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "type mismatch"}
		}
	}
	return nil
}

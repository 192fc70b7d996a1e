// Package tlv owns the payload field codec for sync frames.
package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const HeaderLen = 4

var (
	ErrShortFieldHeader = errors.New("tlv: short field header")
	ErrShortFieldValue  = errors.New("tlv: short field value")
	ErrValueTooLarge    = errors.New("tlv: field value too large")
)

// Type IDs carried on the wire.
const (
	TypeU64    uint8 = 1
	TypeBool   uint8 = 2
	TypeString uint8 = 3
	TypeBytes  uint8 = 4
)

// Field is one decoded TLV field.
type Field struct {
	ID    uint8
	Type  uint8
	Value []byte
}

func U64(id uint8, v uint64) Field {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, v)
	return Field{ID: id, Type: TypeU64, Value: out}
}

func String(id uint8, v string) Field {
	return Field{ID: id, Type: TypeString, Value: []byte(v)}
}

func EncodeField(f Field) ([]byte, error) {
	if len(f.Value) > int(^uint16(0)) {
		return nil, fmt.Errorf("%w: field=%d len=%d", ErrValueTooLarge, f.ID, len(f.Value))
	}
	buf := make([]byte, HeaderLen+len(f.Value))
	buf[0] = f.ID
	buf[1] = f.Type
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(f.Value)))
	copy(buf[4:], f.Value)
	return buf, nil
}

func EncodeFields(fields []Field) ([]byte, error) {
	out := make([]byte, 0)
	for _, f := range fields {
		b, err := EncodeField(f)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func DecodeFields(payload []byte) ([]Field, error) {
	fields := make([]Field, 0)
	i := 0
	for i < len(payload) {
		if len(payload)-i < HeaderLen {
			return nil, ErrShortFieldHeader
		}
		id := payload[i]
		typeID := payload[i+1]
		l := int(binary.BigEndian.Uint16(payload[i+2 : i+4]))
		i += HeaderLen
		if len(payload)-i < l {
			return nil, ErrShortFieldValue
		}
		val := make([]byte, l)
		copy(val, payload[i:i+l])
		i += l
		fields = append(fields, Field{ID: id, Type: typeID, Value: val})
	}
	return fields, nil
}

func GetField(fields []Field, id uint8) (Field, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

func U64Value(f Field) (uint64, error) {
	if f.Type != TypeU64 {
		return 0, fmt.Errorf("tlv: field %d type mismatch: got %d want %d", f.ID, f.Type, TypeU64)
	}
	if len(f.Value) != 8 {
		return 0, fmt.Errorf("tlv: invalid u64 length: %d", len(f.Value))
	}
	return binary.BigEndian.Uint64(f.Value), nil
}

func StringValue(f Field) (string, error) {
	if f.Type != TypeString {
		return "", fmt.Errorf("tlv: field %d type mismatch: got %d want %d", f.ID, f.Type, TypeString)
	}
	return string(f.Value), nil
}

// Package addr owns the offset/address arithmetic for the sync contract.
//
// Ownership boundary:
// - Offset and Address value types
// - image-base translation in a fixed address width
package addr

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidAddress = errors.New("addr: address outside addressable range")

// Offset is a wire-level value relative to a program's image base.
type Offset uint64

// Address is a resolved location in the host's loaded address space.
type Address uint64

// Width is the target address-space width in bits.
type Width int

const (
	Width32 Width = 32
	Width64 Width = 64
)

func (w Width) Valid() bool {
	return w == Width32 || w == Width64
}

// Max returns the highest representable address for the width.
func (w Width) Max() Address {
	if w == Width32 {
		return Address(math.MaxUint32)
	}
	return Address(math.MaxUint64)
}

func (a Address) String() string {
	return fmt.Sprintf("0x%08x", uint64(a))
}

func (o Offset) String() string {
	return fmt.Sprintf("0x%08x", uint64(o))
}

// ToAddress resolves offset against base as base+offset in the given width.
// A sum that leaves the addressable range is an error, never a silent wrap.
func ToAddress(base Address, offset Offset, width Width) (Address, error) {
	if !width.Valid() {
		return 0, fmt.Errorf("%w: unsupported width %d", ErrInvalidAddress, int(width))
	}
	max := width.Max()
	if base > max {
		return 0, fmt.Errorf("%w: base=%s width=%d", ErrInvalidAddress, base, int(width))
	}
	if Address(offset) > max-base {
		return 0, fmt.Errorf("%w: base=%s offset=%s width=%d", ErrInvalidAddress, base, offset, int(width))
	}
	return base + Address(offset), nil
}

// ToOffset is the inverse of ToAddress for addresses at or above base.
func ToOffset(base, address Address, width Width) (Offset, error) {
	if !width.Valid() {
		return 0, fmt.Errorf("%w: unsupported width %d", ErrInvalidAddress, int(width))
	}
	if address > width.Max() {
		return 0, fmt.Errorf("%w: address=%s width=%d", ErrInvalidAddress, address, int(width))
	}
	if address < base {
		return 0, fmt.Errorf("%w: address=%s below base=%s", ErrInvalidAddress, address, base)
	}
	return Offset(address - base), nil
}

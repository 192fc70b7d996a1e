// Package protocol owns the location-sync wire contract identity.
//
// Ownership boundary:
// - magic/version constants shared by both sides of the channel
// - header acceptance checks applied before payload decoding
package protocol

import "errors"

const (
	// Magic is "EMBR" in big-endian.
	Magic   uint32 = 0x454D4252
	Version uint16 = 1
)

var (
	ErrInvalidMagic       = errors.New("protocol: invalid magic")
	ErrUnsupportedVersion = errors.New("protocol: unsupported version")
)

// VerifyIdentity rejects frames from a different protocol or version.
func VerifyIdentity(magic uint32, version uint16) error {
	if magic != Magic {
		return ErrInvalidMagic
	}
	if version != Version {
		return ErrUnsupportedVersion
	}
	return nil
}

package mrt

import "fmt"

// AFI is an Address Family Identifier (RFC 4760). Only IPv4 and IPv6 are
// valid; construct values through ResolveAFI.
type AFI uint16

const (
	AFIIPv4 AFI = 1
	AFIIPv6 AFI = 2
)

// ResolveAFI validates a 16-bit address family code.
func ResolveAFI(code uint16) (AFI, error) {
	switch code {
	case 1:
		return AFIIPv4, nil
	case 2:
		return AFIIPv6, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidAFI, code)
	}
}

// Size returns the address byte width for the family: 4 or 16.
func (a AFI) Size() int {
	if a == AFIIPv6 {
		return 16
	}
	return 4
}

// prefixBytes returns the bytes needed to hold a prefix of the given bit
// length.
func prefixBytes(prefixLength uint8) int {
	return (int(prefixLength) + 7) / 8
}

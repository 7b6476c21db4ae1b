package mrt

import (
	"fmt"
	"io"
	"net/netip"
)

// decoder walks a record body slice. Every accessor checks the remaining
// length and reports truncation as an error wrapping io.ErrUnexpectedEOF,
// so a body shorter than its fields is distinguishable from a clean end
// of stream.
type decoder struct {
	buf []byte
	off int
}

func (d *decoder) remaining() int {
	return len(d.buf) - d.off
}

func (d *decoder) need(n int, field string) error {
	if d.remaining() < n {
		return fmt.Errorf("mrt: truncated %s: need %d bytes, %d remain: %w",
			field, n, d.remaining(), io.ErrUnexpectedEOF)
	}
	return nil
}

func (d *decoder) u8(field string) (uint8, error) {
	if err := d.need(1, field); err != nil {
		return 0, err
	}
	v := d.buf[d.off]
	d.off++
	return v, nil
}

func (d *decoder) u16(field string) (uint16, error) {
	if err := d.need(2, field); err != nil {
		return 0, err
	}
	v := beUint16(d.buf[d.off:])
	d.off += 2
	return v, nil
}

func (d *decoder) u32(field string) (uint32, error) {
	if err := d.need(4, field); err != nil {
		return 0, err
	}
	v := beUint32(d.buf[d.off:])
	d.off += 4
	return v, nil
}

// bytes returns a copy of the next n bytes so records never alias the
// shared body buffer.
func (d *decoder) bytes(n int, field string) ([]byte, error) {
	if err := d.need(n, field); err != nil {
		return nil, err
	}
	v := make([]byte, n)
	copy(v, d.buf[d.off:])
	d.off += n
	return v, nil
}

// rest returns everything left in the body. Used for trailing opaque
// message/attribute blobs.
func (d *decoder) rest() []byte {
	v := make([]byte, d.remaining())
	copy(v, d.buf[d.off:])
	d.off = len(d.buf)
	return v
}

// afi reads and validates a 16-bit address family code.
func (d *decoder) afi(field string) (AFI, error) {
	code, err := d.u16(field)
	if err != nil {
		return 0, err
	}
	return ResolveAFI(code)
}

// addr reads a 4- or 16-byte address as selected by the family.
func (d *decoder) addr(afi AFI, field string) (netip.Addr, error) {
	if afi == AFIIPv6 {
		b, err := d.bytes(16, field)
		if err != nil {
			return netip.Addr{}, err
		}
		return netip.AddrFrom16([16]byte(b)), nil
	}
	b, err := d.bytes(4, field)
	if err != nil {
		return netip.Addr{}, err
	}
	return netip.AddrFrom4([4]byte(b)), nil
}

// prefix reads ceil(prefixLength/8) bytes of prefix data.
func (d *decoder) prefix(prefixLength uint8, field string) ([]byte, error) {
	return d.bytes(prefixBytes(prefixLength), field)
}

// finish verifies the body was consumed exactly.
func (d *decoder) finish() error {
	if n := d.remaining(); n != 0 {
		return fmt.Errorf("mrt: %d undecoded bytes after record body", n)
	}
	return nil
}

// cstring truncates a legacy NUL-terminated field at the first zero byte.
// The wire field always spans to the record boundary; only the value is
// trimmed.
func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Package mrt decodes MRT (Multi-Threaded Routing Toolkit) records as
// specified in RFC 6396 and the RFC 8050 Add-Path extension.
//
// The package is a pure streaming decoder: each call to Read consumes
// exactly one record from the stream and returns its typed representation.
// Protocol payloads nested inside records (BGP messages, path attributes,
// RIP/OSPF/IS-IS PDUs) are returned as opaque byte slices.
package mrt

import (
	"errors"
	"fmt"
	"io"
)

// MRT record type codes (RFC 6396 §4).
const (
	TypeNull        uint16 = 0
	TypeStart       uint16 = 1
	TypeDie         uint16 = 2
	TypeIAmDead     uint16 = 3
	TypePeerDown    uint16 = 4
	TypeBGP         uint16 = 5
	TypeRIP         uint16 = 6
	TypeIDRP        uint16 = 7
	TypeRIPNG       uint16 = 8
	TypeBGP4Plus    uint16 = 9
	TypeBGP4Plus01  uint16 = 10
	TypeOSPFv2      uint16 = 11
	TypeTableDump   uint16 = 12
	TypeTableDumpV2 uint16 = 13
	TypeBGP4MP      uint16 = 16
	TypeBGP4MPET    uint16 = 17
	TypeISIS        uint16 = 32
	TypeISISET      uint16 = 33
	TypeOSPFv3      uint16 = 48
	TypeOSPFv3ET    uint16 = 49
)

// Sentinel errors for decode failure classification. Truncation errors
// additionally wrap io.ErrUnexpectedEOF.
var (
	ErrUnsupportedType = errors.New("mrt: unsupported record type")
	ErrInvalidSubType  = errors.New("mrt: invalid record subtype")
	ErrInvalidAFI      = errors.New("mrt: invalid AFI value")

	// ErrStream marks a failure reading from the underlying stream, as
	// opposed to a decode failure over a fully-read record body. The
	// stream position is unspecified afterwards; callers must not retry.
	ErrStream = errors.New("mrt: stream read failure")
)

// Header is the common header that precedes every MRT record.
//
// For the *_ET record types (BGP4MP_ET, ISIS_ET, OSPFv3_ET) the producers
// observed in the wild place the 4-byte microsecond field at the start of
// the declared body, so Length includes those 4 bytes and the family body
// is Length-4 bytes long.
type Header struct {
	// Timestamp is UNIX seconds since epoch.
	Timestamp uint32
	// Extended is the microsecond part for *_ET types, 0 otherwise.
	Extended uint32
	// Type is the record type code.
	Type uint16
	// SubType selects the in-family variant.
	SubType uint16
	// Length is the declared body byte count, excluding the header.
	Length uint32
}

// Record is one decoded MRT record. The concrete type depends on the
// record type and subtype; see the per-family types in this package.
type Record interface {
	isRecord()
}

// Marker records carry no payload.
type (
	// Null is record type 0.
	Null struct{}
	// Start is record type 1.
	Start struct{}
	// Die is record type 2.
	Die struct{}
	// IAmDead is record type 3.
	IAmDead struct{}
	// PeerDown is record type 4.
	PeerDown struct{}
	// IDRP is the reserved record type 7.
	IDRP struct{}
)

func (Null) isRecord()     {}
func (Start) isRecord()    {}
func (Die) isRecord()      {}
func (IAmDead) isRecord()  {}
func (PeerDown) isRecord() {}
func (IDRP) isRecord()     {}

// isExtendedType reports whether the record type carries a microsecond
// timestamp field.
func isExtendedType(recordType uint16) bool {
	switch recordType {
	case TypeBGP4MPET, TypeISISET, TypeOSPFv3ET:
		return true
	}
	return false
}

// Read decodes the next MRT record from the stream.
//
// It returns (nil, nil, io.EOF) when the stream ends cleanly at a record
// boundary. EOF in the middle of a record is a decode error wrapping
// io.ErrUnexpectedEOF. On any error the stream is left wherever the last
// read stopped; no resynchronization is attempted.
func Read(r io.Reader) (*Header, Record, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, nil, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return nil, nil, fmt.Errorf("mrt: truncated header: %w", io.ErrUnexpectedEOF)
		}
		return nil, nil, fmt.Errorf("%w: reading header: %w", ErrStream, err)
	}

	h := &Header{
		Timestamp: beUint32(hdr[0:4]),
		Type:      beUint16(hdr[4:6]),
		SubType:   beUint16(hdr[6:8]),
		Length:    beUint32(hdr[8:12]),
	}

	bodyLen := h.Length
	if isExtendedType(h.Type) {
		var usec [4]byte
		if _, err := io.ReadFull(r, usec[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, nil, fmt.Errorf("mrt: truncated extended timestamp: %w", io.ErrUnexpectedEOF)
			}
			return nil, nil, fmt.Errorf("%w: reading extended timestamp: %w", ErrStream, err)
		}
		h.Extended = beUint32(usec[:])
		if bodyLen < 4 {
			return nil, nil, fmt.Errorf("mrt: declared length %d too small for extended timestamp", h.Length)
		}
		bodyLen -= 4
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, nil, fmt.Errorf("mrt: truncated body (declared %d bytes): %w", h.Length, io.ErrUnexpectedEOF)
		}
		return nil, nil, fmt.Errorf("%w: reading body: %w", ErrStream, err)
	}

	rec, err := decodeBody(h, body)
	if err != nil {
		return nil, nil, err
	}
	return h, rec, nil
}

// ReadHeader decodes only the next record header, seeking past the body.
// Useful for scanning large dumps without full decode overhead.
func ReadHeader(r io.ReadSeeker) (*Header, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("mrt: truncated header: %w", io.ErrUnexpectedEOF)
		}
		return nil, fmt.Errorf("%w: reading header: %w", ErrStream, err)
	}

	h := &Header{
		Timestamp: beUint32(hdr[0:4]),
		Type:      beUint16(hdr[4:6]),
		SubType:   beUint16(hdr[6:8]),
		Length:    beUint32(hdr[8:12]),
	}

	skip := int64(h.Length)
	if isExtendedType(h.Type) {
		var usec [4]byte
		if _, err := io.ReadFull(r, usec[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("mrt: truncated extended timestamp: %w", io.ErrUnexpectedEOF)
			}
			return nil, fmt.Errorf("%w: reading extended timestamp: %w", ErrStream, err)
		}
		h.Extended = beUint32(usec[:])
		if skip < 4 {
			return nil, fmt.Errorf("mrt: declared length %d too small for extended timestamp", h.Length)
		}
		skip -= 4
	}

	if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
		return nil, fmt.Errorf("%w: skipping %d body bytes: %w", ErrStream, skip, err)
	}
	return h, nil
}

// decodeBody dispatches the record body to the family decoder selected by
// the record type. Every protocol-carrying decoder must consume the body
// exactly; leftover bytes are a decode error.
func decodeBody(h *Header, body []byte) (Record, error) {
	d := &decoder{buf: body}

	var (
		rec Record
		err error
	)
	switch h.Type {
	case TypeNull:
		return Null{}, nil
	case TypeStart:
		return Start{}, nil
	case TypeDie:
		return Die{}, nil
	case TypeIAmDead:
		return IAmDead{}, nil
	case TypePeerDown:
		return PeerDown{}, nil
	case TypeIDRP:
		return IDRP{}, nil
	case TypeBGP:
		rec, err = decodeBGP(h.SubType, AFIIPv4, d)
	case TypeBGP4Plus, TypeBGP4Plus01:
		rec, err = decodeBGP(h.SubType, AFIIPv6, d)
	case TypeRIP:
		rec, err = decodeRIP(d)
	case TypeRIPNG:
		rec, err = decodeRIPNG(d)
	case TypeOSPFv2:
		rec, err = decodeOSPFv2(d)
	case TypeOSPFv3, TypeOSPFv3ET:
		rec, err = decodeOSPFv3(d)
	case TypeTableDump:
		rec, err = decodeTableDump(h.SubType, d)
	case TypeTableDumpV2:
		rec, err = decodeTableDumpV2(h.SubType, d)
	case TypeBGP4MP, TypeBGP4MPET:
		rec, err = decodeBGP4MP(h.SubType, d)
	case TypeISIS, TypeISISET:
		rec, err = decodeISIS(d)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedType, h.Type)
	}
	if err != nil {
		return nil, err
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return rec, nil
}

func beUint16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

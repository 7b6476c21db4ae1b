package mrt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net/netip"
	"testing"
)

// buildRecord frames a record body with a common header.
func buildRecord(timestamp uint32, recordType, subType uint16, body []byte) []byte {
	msg := make([]byte, 12+len(body))
	binary.BigEndian.PutUint32(msg[0:4], timestamp)
	binary.BigEndian.PutUint16(msg[4:6], recordType)
	binary.BigEndian.PutUint16(msg[6:8], subType)
	binary.BigEndian.PutUint32(msg[8:12], uint32(len(body)))
	copy(msg[12:], body)
	return msg
}

// buildExtendedRecord frames an *_ET record: the microsecond field counts
// toward the declared length.
func buildExtendedRecord(timestamp, usec uint32, recordType, subType uint16, body []byte) []byte {
	msg := make([]byte, 16+len(body))
	binary.BigEndian.PutUint32(msg[0:4], timestamp)
	binary.BigEndian.PutUint16(msg[4:6], recordType)
	binary.BigEndian.PutUint16(msg[6:8], subType)
	binary.BigEndian.PutUint32(msg[8:12], uint32(4+len(body)))
	binary.BigEndian.PutUint32(msg[12:16], usec)
	copy(msg[16:], body)
	return msg
}

func readOne(t *testing.T, raw []byte) (*Header, Record) {
	t.Helper()
	h, rec, err := Read(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return h, rec
}

func TestRead_Marker(t *testing.T) {
	h, rec := readOne(t, buildRecord(1700000000, TypeStart, 0, nil))
	if h.Timestamp != 1700000000 {
		t.Errorf("expected timestamp 1700000000, got %d", h.Timestamp)
	}
	if _, ok := rec.(Start); !ok {
		t.Fatalf("expected Start, got %T", rec)
	}
}

func TestRead_CleanEOF(t *testing.T) {
	_, _, err := Read(bytes.NewReader(nil))
	if err != io.EOF {
		t.Fatalf("expected io.EOF at record boundary, got %v", err)
	}
}

func TestRead_TruncatedHeader(t *testing.T) {
	_, _, err := Read(bytes.NewReader([]byte{0x01, 0x02, 0x03}))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF for partial header, got %v", err)
	}
}

func TestRead_TruncatedBody(t *testing.T) {
	raw := buildRecord(0, TypeISIS, 0, []byte{1, 2, 3, 4})
	_, _, err := Read(bytes.NewReader(raw[:14]))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF for partial body, got %v", err)
	}
}

func TestRead_UnsupportedType(t *testing.T) {
	_, _, err := Read(bytes.NewReader(buildRecord(0, 99, 0, nil)))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestRead_ExtendedTimestamp(t *testing.T) {
	pdu := []byte{0x83, 0x1b, 0x01, 0x00}
	h, rec := readOne(t, buildExtendedRecord(1700000000, 250000, TypeISISET, 0, pdu))
	if h.Extended != 250000 {
		t.Errorf("expected microseconds 250000, got %d", h.Extended)
	}
	if h.Length != uint32(4+len(pdu)) {
		t.Errorf("expected declared length %d, got %d", 4+len(pdu), h.Length)
	}
	isis, ok := rec.(ISIS)
	if !ok {
		t.Fatalf("expected ISIS, got %T", rec)
	}
	if !bytes.Equal(isis.Message, pdu) {
		t.Errorf("expected PDU %x, got %x", pdu, isis.Message)
	}
}

func TestRead_ExtendedLengthTooSmall(t *testing.T) {
	raw := make([]byte, 16)
	binary.BigEndian.PutUint16(raw[4:6], TypeISISET)
	binary.BigEndian.PutUint32(raw[8:12], 2) // shorter than the usec field
	_, _, err := Read(bytes.NewReader(raw))
	if err == nil {
		t.Fatal("expected error for declared length below extended timestamp size")
	}
}

func TestRead_NonExtendedHasNoMicroseconds(t *testing.T) {
	pdu := []byte{0xde, 0xad}
	h, _ := readOne(t, buildRecord(5, TypeISIS, 0, pdu))
	if h.Extended != 0 {
		t.Errorf("expected Extended=0 for plain ISIS, got %d", h.Extended)
	}
}

func TestResolveAFI(t *testing.T) {
	if afi, err := ResolveAFI(1); err != nil || afi != AFIIPv4 {
		t.Errorf("ResolveAFI(1) = %v, %v", afi, err)
	}
	if afi, err := ResolveAFI(2); err != nil || afi != AFIIPv6 {
		t.Errorf("ResolveAFI(2) = %v, %v", afi, err)
	}
	for _, code := range []uint16{0, 3, 25, 0xffff} {
		if _, err := ResolveAFI(code); !errors.Is(err, ErrInvalidAFI) {
			t.Errorf("ResolveAFI(%d): expected ErrInvalidAFI, got %v", code, err)
		}
	}
}

func TestPrefixBytes(t *testing.T) {
	cases := []struct {
		bits uint8
		want int
	}{
		{0, 0}, {1, 1}, {7, 1}, {8, 1}, {9, 2}, {24, 3}, {32, 4}, {128, 16},
	}
	for _, c := range cases {
		if got := prefixBytes(c.bits); got != c.want {
			t.Errorf("prefixBytes(%d) = %d, want %d", c.bits, got, c.want)
		}
	}
}

func TestRead_BGPStateChange(t *testing.T) {
	body := make([]byte, 10)
	binary.BigEndian.PutUint16(body[0:2], 0x1234) // peer_as
	copy(body[2:6], []byte{1, 2, 3, 4})           // peer_ip
	binary.BigEndian.PutUint16(body[6:8], 1)      // old_state
	binary.BigEndian.PutUint16(body[8:10], 2)     // new_state

	_, rec := readOne(t, buildRecord(0, TypeBGP, BGPSubTypeStateChange, body))
	sc, ok := rec.(BGPStateChange)
	if !ok {
		t.Fatalf("expected BGPStateChange, got %T", rec)
	}
	if sc.PeerAS != 0x1234 {
		t.Errorf("expected peer AS 0x1234, got 0x%x", sc.PeerAS)
	}
	if want := netip.AddrFrom4([4]byte{1, 2, 3, 4}); sc.PeerIP != want {
		t.Errorf("expected peer IP %v, got %v", want, sc.PeerIP)
	}
	if sc.OldState != 1 || sc.NewState != 2 {
		t.Errorf("expected transition 1->2, got %d->%d", sc.OldState, sc.NewState)
	}
}

func TestRead_BGPUpdate(t *testing.T) {
	payload := []byte{0xff, 0xee, 0xdd}
	body := make([]byte, 12+len(payload))
	binary.BigEndian.PutUint16(body[0:2], 64512) // peer_as
	copy(body[2:6], []byte{10, 0, 0, 1})         // peer_ip
	binary.BigEndian.PutUint16(body[6:8], 64513) // local_as
	copy(body[8:12], []byte{10, 0, 0, 2})        // local_ip
	copy(body[12:], payload)

	_, rec := readOne(t, buildRecord(0, TypeBGP, BGPSubTypeUpdate, body))
	m, ok := rec.(BGPMessage)
	if !ok {
		t.Fatalf("expected BGPMessage, got %T", rec)
	}
	if m.SubType != BGPSubTypeUpdate {
		t.Errorf("expected subtype UPDATE, got %d", m.SubType)
	}
	if m.PeerAS != 64512 || m.LocalAS != 64513 {
		t.Errorf("unexpected AS pair %d/%d", m.PeerAS, m.LocalAS)
	}
	if !bytes.Equal(m.Message, payload) {
		t.Errorf("expected message %x, got %x", payload, m.Message)
	}
}

func TestRead_BGP4PlusUsesIPv6Addresses(t *testing.T) {
	peer := netip.MustParseAddr("2001:db8::1")
	local := netip.MustParseAddr("2001:db8::2")
	body := make([]byte, 36)
	binary.BigEndian.PutUint16(body[0:2], 100)
	p16 := peer.As16()
	copy(body[2:18], p16[:])
	binary.BigEndian.PutUint16(body[18:20], 200)
	l16 := local.As16()
	copy(body[20:36], l16[:])

	_, rec := readOne(t, buildRecord(0, TypeBGP4Plus, BGPSubTypeKeepalive, body))
	m, ok := rec.(BGPMessage)
	if !ok {
		t.Fatalf("expected BGPMessage, got %T", rec)
	}
	if m.PeerIP != peer || m.LocalIP != local {
		t.Errorf("unexpected address pair %v/%v", m.PeerIP, m.LocalIP)
	}
	if len(m.Message) != 0 {
		t.Errorf("expected empty message, got %d bytes", len(m.Message))
	}
}

func TestRead_BGPSyncFilenameStopsAtNUL(t *testing.T) {
	body := []byte{0x00, 0x07}
	body = append(body, []byte("dump.bin\x00garbage")...)

	_, rec := readOne(t, buildRecord(0, TypeBGP, BGPSubTypeSync, body))
	s, ok := rec.(BGPSync)
	if !ok {
		t.Fatalf("expected BGPSync, got %T", rec)
	}
	if s.ViewNumber != 7 {
		t.Errorf("expected view 7, got %d", s.ViewNumber)
	}
	if s.Filename != "dump.bin" {
		t.Errorf("expected filename 'dump.bin', got %q", s.Filename)
	}
}

func TestRead_BGPInvalidSubType(t *testing.T) {
	_, _, err := Read(bytes.NewReader(buildRecord(0, TypeBGP, 42, nil)))
	if !errors.Is(err, ErrInvalidSubType) {
		t.Fatalf("expected ErrInvalidSubType, got %v", err)
	}
}

// buildBGP4MPHeader encodes the AS pair, interface, AFI and address pair
// shared by the BGP4MP message and state change forms.
func buildBGP4MPHeader(peerAS, localAS uint32, as4 bool, peer, local netip.Addr) []byte {
	var b []byte
	if as4 {
		b = binary.BigEndian.AppendUint32(b, peerAS)
		b = binary.BigEndian.AppendUint32(b, localAS)
	} else {
		b = binary.BigEndian.AppendUint16(b, uint16(peerAS))
		b = binary.BigEndian.AppendUint16(b, uint16(localAS))
	}
	b = binary.BigEndian.AppendUint16(b, 3) // interface index
	if peer.Is4() {
		b = binary.BigEndian.AppendUint16(b, 1)
		p, l := peer.As4(), local.As4()
		b = append(b, p[:]...)
		b = append(b, l[:]...)
	} else {
		b = binary.BigEndian.AppendUint16(b, 2)
		p, l := peer.As16(), local.As16()
		b = append(b, p[:]...)
		b = append(b, l[:]...)
	}
	return b
}

func TestRead_BGP4MPStateChangeAS4(t *testing.T) {
	peer := netip.MustParseAddr("192.0.2.1")
	local := netip.MustParseAddr("192.0.2.2")
	body := buildBGP4MPHeader(4200000001, 4200000002, true, peer, local)
	body = binary.BigEndian.AppendUint16(body, 5) // old_state
	body = binary.BigEndian.AppendUint16(body, 6) // new_state

	_, rec := readOne(t, buildRecord(0, TypeBGP4MP, BGP4MPSubTypeStateChangeAS4, body))
	sc, ok := rec.(BGP4MPStateChangeAS4)
	if !ok {
		t.Fatalf("expected BGP4MPStateChangeAS4, got %T", rec)
	}
	if sc.PeerAS != 4200000001 || sc.LocalAS != 4200000002 {
		t.Errorf("unexpected AS pair %d/%d", sc.PeerAS, sc.LocalAS)
	}
	if sc.Interface != 3 {
		t.Errorf("expected interface 3, got %d", sc.Interface)
	}
	if sc.OldState != 5 || sc.NewState != 6 {
		t.Errorf("expected transition 5->6, got %d->%d", sc.OldState, sc.NewState)
	}
}

func TestRead_BGP4MPMessageVariants(t *testing.T) {
	peer := netip.MustParseAddr("2001:db8::10")
	local := netip.MustParseAddr("2001:db8::20")
	payload := []byte{0x01, 0x02, 0x03, 0x04}

	cases := []struct {
		subType uint16
		local   bool
		addPath bool
	}{
		{BGP4MPSubTypeMessageAS4, false, false},
		{BGP4MPSubTypeMessageAS4Local, true, false},
		{BGP4MPSubTypeMessageAS4AddPath, false, true},
		{BGP4MPSubTypeMessageAS4LocalAddPath, true, true},
	}
	for _, c := range cases {
		body := buildBGP4MPHeader(65000, 65001, true, peer, local)
		body = append(body, payload...)

		_, rec := readOne(t, buildRecord(0, TypeBGP4MP, c.subType, body))
		m, ok := rec.(BGP4MPMessageAS4)
		if !ok {
			t.Fatalf("subtype %d: expected BGP4MPMessageAS4, got %T", c.subType, rec)
		}
		if m.Local != c.local || m.AddPath != c.addPath {
			t.Errorf("subtype %d: got local=%v addPath=%v", c.subType, m.Local, m.AddPath)
		}
		if !bytes.Equal(m.Message, payload) {
			t.Errorf("subtype %d: expected message %x, got %x", c.subType, payload, m.Message)
		}
	}
}

func TestRead_BGP4MPMessage16BitAS(t *testing.T) {
	peer := netip.MustParseAddr("198.51.100.1")
	local := netip.MustParseAddr("198.51.100.2")
	body := buildBGP4MPHeader(65100, 65101, false, peer, local)
	body = append(body, 0xaa)

	_, rec := readOne(t, buildRecord(0, TypeBGP4MP, BGP4MPSubTypeMessage, body))
	m, ok := rec.(BGP4MPMessage)
	if !ok {
		t.Fatalf("expected BGP4MPMessage, got %T", rec)
	}
	if m.PeerAS != 65100 || m.LocalAS != 65101 {
		t.Errorf("unexpected AS pair %d/%d", m.PeerAS, m.LocalAS)
	}
	if m.PeerAddress != peer || m.LocalAddress != local {
		t.Errorf("unexpected address pair %v/%v", m.PeerAddress, m.LocalAddress)
	}
}

func TestRead_BGP4MPSnapshot(t *testing.T) {
	body := []byte{0x00, 0x02}
	body = append(body, []byte("snap\x00\x00\x00")...)

	_, rec := readOne(t, buildRecord(0, TypeBGP4MP, BGP4MPSubTypeSnapshot, body))
	s, ok := rec.(BGP4MPSnapshot)
	if !ok {
		t.Fatalf("expected BGP4MPSnapshot, got %T", rec)
	}
	if s.ViewNumber != 2 || s.Filename != "snap" {
		t.Errorf("got view %d filename %q", s.ViewNumber, s.Filename)
	}
}

func TestRead_TableDumpIPv4(t *testing.T) {
	attrs := []byte{0x40, 0x01, 0x01, 0x00}
	var body []byte
	body = binary.BigEndian.AppendUint16(body, 0)  // view_number
	body = binary.BigEndian.AppendUint16(body, 42) // sequence_number
	body = append(body, 203, 0, 113, 0)            // prefix
	body = append(body, 24)                        // prefix_length
	body = append(body, 1)                         // status
	body = binary.BigEndian.AppendUint32(body, 1600000000)
	body = append(body, 192, 0, 2, 9) // peer_address
	body = binary.BigEndian.AppendUint16(body, 64500)
	body = binary.BigEndian.AppendUint16(body, uint16(len(attrs)))
	body = append(body, attrs...)

	_, rec := readOne(t, buildRecord(0, TypeTableDump, TableDumpSubTypeIPv4, body))
	td, ok := rec.(TableDump)
	if !ok {
		t.Fatalf("expected TableDump, got %T", rec)
	}
	if td.SequenceNumber != 42 {
		t.Errorf("expected sequence 42, got %d", td.SequenceNumber)
	}
	if want := netip.AddrFrom4([4]byte{203, 0, 113, 0}); td.Prefix != want || td.PrefixLength != 24 {
		t.Errorf("expected prefix %v/24, got %v/%d", want, td.Prefix, td.PrefixLength)
	}
	if td.PeerAS != 64500 {
		t.Errorf("expected peer AS 64500, got %d", td.PeerAS)
	}
	if !bytes.Equal(td.Attributes, attrs) {
		t.Errorf("expected attributes %x, got %x", attrs, td.Attributes)
	}
}

func TestRead_TableDumpInvalidSubType(t *testing.T) {
	_, _, err := Read(bytes.NewReader(buildRecord(0, TypeTableDump, 3, nil)))
	if !errors.Is(err, ErrInvalidSubType) {
		t.Fatalf("expected ErrInvalidSubType, got %v", err)
	}
}

func buildPeerEntry(flags uint8, bgpID uint32, addr netip.Addr, as uint32) []byte {
	b := []byte{flags}
	b = binary.BigEndian.AppendUint32(b, bgpID)
	if addr.Is4() {
		a := addr.As4()
		b = append(b, a[:]...)
	} else {
		a := addr.As16()
		b = append(b, a[:]...)
	}
	if flags&peerFlagAS4 != 0 {
		b = binary.BigEndian.AppendUint32(b, as)
	} else {
		b = binary.BigEndian.AppendUint16(b, uint16(as))
	}
	return b
}

func TestRead_PeerIndexTableEmpty(t *testing.T) {
	var body []byte
	body = binary.BigEndian.AppendUint32(body, 0x0a000001) // collector_id
	body = binary.BigEndian.AppendUint16(body, 0)          // view_name_length
	body = binary.BigEndian.AppendUint16(body, 0)          // peer_count

	_, rec := readOne(t, buildRecord(0, TypeTableDumpV2, TableDumpV2SubTypePeerIndexTable, body))
	pit, ok := rec.(PeerIndexTable)
	if !ok {
		t.Fatalf("expected PeerIndexTable, got %T", rec)
	}
	if pit.CollectorID != 0x0a000001 {
		t.Errorf("expected collector 0x0a000001, got 0x%x", pit.CollectorID)
	}
	if pit.ViewName != "" || len(pit.Peers) != 0 {
		t.Errorf("expected empty table, got %q with %d peers", pit.ViewName, len(pit.Peers))
	}
}

func TestRead_PeerIndexTableMixedPeers(t *testing.T) {
	v4 := netip.MustParseAddr("192.0.2.1")
	v6 := netip.MustParseAddr("2001:db8::1")

	var body []byte
	body = binary.BigEndian.AppendUint32(body, 1)
	name := "rrc00"
	body = binary.BigEndian.AppendUint16(body, uint16(len(name)))
	body = append(body, name...)
	body = binary.BigEndian.AppendUint16(body, 3)
	body = append(body, buildPeerEntry(0, 0x01010101, v4, 64496)...)
	body = append(body, buildPeerEntry(peerFlagAS4, 0x02020202, v4, 4200000000)...)
	body = append(body, buildPeerEntry(peerFlagAS4|peerFlagIPv6, 0x03030303, v6, 4200000001)...)

	_, rec := readOne(t, buildRecord(0, TypeTableDumpV2, TableDumpV2SubTypePeerIndexTable, body))
	pit, ok := rec.(PeerIndexTable)
	if !ok {
		t.Fatalf("expected PeerIndexTable, got %T", rec)
	}
	if pit.ViewName != "rrc00" {
		t.Errorf("expected view name 'rrc00', got %q", pit.ViewName)
	}
	if len(pit.Peers) != 3 {
		t.Fatalf("expected 3 peers, got %d", len(pit.Peers))
	}
	if pit.Peers[0].PeerAS != 64496 {
		t.Errorf("peer 0: expected AS 64496, got %d", pit.Peers[0].PeerAS)
	}
	if pit.Peers[1].PeerAS != 4200000000 || pit.Peers[1].IPAddress != v4 {
		t.Errorf("peer 1: got AS %d addr %v", pit.Peers[1].PeerAS, pit.Peers[1].IPAddress)
	}
	if pit.Peers[2].IPAddress != v6 {
		t.Errorf("peer 2: expected %v, got %v", v6, pit.Peers[2].IPAddress)
	}
}

func buildRIBEntry(peerIndex uint16, originated uint32, attrs []byte) []byte {
	b := binary.BigEndian.AppendUint16(nil, peerIndex)
	b = binary.BigEndian.AppendUint32(b, originated)
	b = binary.BigEndian.AppendUint16(b, uint16(len(attrs)))
	return append(b, attrs...)
}

func TestRead_RIBIPv4Unicast(t *testing.T) {
	attrs := []byte{0x40, 0x01, 0x01, 0x00}
	var body []byte
	body = binary.BigEndian.AppendUint32(body, 7) // sequence_number
	body = append(body, 22)                       // prefix_length
	body = append(body, 198, 51, 100)             // prefix, 3 bytes
	body = binary.BigEndian.AppendUint16(body, 2) // entry_count
	body = append(body, buildRIBEntry(0, 1600000000, attrs)...)
	body = append(body, buildRIBEntry(4, 1600000100, nil)...)

	_, rec := readOne(t, buildRecord(0, TypeTableDumpV2, TableDumpV2SubTypeRIBIPv4Unicast, body))
	rib, ok := rec.(RIB)
	if !ok {
		t.Fatalf("expected RIB, got %T", rec)
	}
	if rib.AFI != AFIIPv4 || rib.SequenceNumber != 7 {
		t.Errorf("got AFI %d sequence %d", rib.AFI, rib.SequenceNumber)
	}
	if rib.PrefixLength != 22 || !bytes.Equal(rib.Prefix, []byte{198, 51, 100}) {
		t.Errorf("got prefix %x/%d", rib.Prefix, rib.PrefixLength)
	}
	if len(rib.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(rib.Entries))
	}
	if rib.Entries[1].PeerIndex != 4 || len(rib.Entries[1].Attributes) != 0 {
		t.Errorf("entry 1: got peer %d, %d attr bytes", rib.Entries[1].PeerIndex, len(rib.Entries[1].Attributes))
	}
}

func TestRead_RIBEntryCountExceedsBody(t *testing.T) {
	var body []byte
	body = binary.BigEndian.AppendUint32(body, 1)
	body = append(body, 8, 10)                    // /8 prefix
	body = binary.BigEndian.AppendUint16(body, 3) // declares 3 entries
	body = append(body, buildRIBEntry(0, 0, nil)...)
	body = append(body, buildRIBEntry(1, 0, nil)...)

	_, _, err := Read(bytes.NewReader(buildRecord(0, TypeTableDumpV2, TableDumpV2SubTypeRIBIPv4Unicast, body)))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF for missing third entry, got %v", err)
	}
}

func TestRead_RIBIPv6UnicastAddPath(t *testing.T) {
	var body []byte
	body = binary.BigEndian.AppendUint32(body, 9)
	body = append(body, 32)              // prefix_length
	body = append(body, 0x20, 1, 0xd, 8) // 2001:d08::/32
	body = binary.BigEndian.AppendUint16(body, 1)
	body = binary.BigEndian.AppendUint16(body, 12)         // peer_index
	body = binary.BigEndian.AppendUint32(body, 1600000000) // originated_time
	body = binary.BigEndian.AppendUint32(body, 77)         // path_identifier
	body = binary.BigEndian.AppendUint16(body, 0)          // attribute_length

	_, rec := readOne(t, buildRecord(0, TypeTableDumpV2, TableDumpV2SubTypeRIBIPv6UnicastAddPath, body))
	rib, ok := rec.(RIBAddPath)
	if !ok {
		t.Fatalf("expected RIBAddPath, got %T", rec)
	}
	if rib.AFI != AFIIPv6 {
		t.Errorf("expected AFI IPv6, got %d", rib.AFI)
	}
	if len(rib.Entries) != 1 || rib.Entries[0].PathIdentifier != 77 {
		t.Fatalf("expected one entry with path id 77, got %+v", rib.Entries)
	}
}

func TestRead_RIBGeneric(t *testing.T) {
	nlri := []byte{0x18, 0xc0, 0x00, 0x02}
	var body []byte
	body = binary.BigEndian.AppendUint32(body, 3)
	body = binary.BigEndian.AppendUint16(body, 1) // afi
	body = append(body, 128)                      // safi
	body = binary.BigEndian.AppendUint16(body, uint16(len(nlri)))
	body = append(body, nlri...)
	body = binary.BigEndian.AppendUint16(body, 1)
	body = append(body, buildRIBEntry(2, 10, nil)...)

	_, rec := readOne(t, buildRecord(0, TypeTableDumpV2, TableDumpV2SubTypeRIBGeneric, body))
	rib, ok := rec.(RIBGeneric)
	if !ok {
		t.Fatalf("expected RIBGeneric, got %T", rec)
	}
	if rib.AFI != AFIIPv4 || rib.SAFI != 128 {
		t.Errorf("got AFI %d SAFI %d", rib.AFI, rib.SAFI)
	}
	if !bytes.Equal(rib.NLRI, nlri) {
		t.Errorf("expected NLRI %x, got %x", nlri, rib.NLRI)
	}
}

func TestRead_RIBGenericRejectsBadAFI(t *testing.T) {
	var body []byte
	body = binary.BigEndian.AppendUint32(body, 0)
	body = binary.BigEndian.AppendUint16(body, 99) // invalid afi
	body = append(body, 1)
	body = binary.BigEndian.AppendUint16(body, 0)
	body = binary.BigEndian.AppendUint16(body, 0)

	_, _, err := Read(bytes.NewReader(buildRecord(0, TypeTableDumpV2, TableDumpV2SubTypeRIBGeneric, body)))
	if !errors.Is(err, ErrInvalidAFI) {
		t.Fatalf("expected ErrInvalidAFI, got %v", err)
	}
}

func TestRead_TrailingBytesRejected(t *testing.T) {
	body := make([]byte, 10+2) // state change plus 2 stray bytes
	binary.BigEndian.PutUint16(body[0:2], 1)
	copy(body[2:6], []byte{1, 2, 3, 4})

	_, _, err := Read(bytes.NewReader(buildRecord(0, TypeBGP, BGPSubTypeStateChange, body)))
	if err == nil {
		t.Fatal("expected error for undecoded trailing bytes")
	}
}

func TestRead_ISISPassthrough(t *testing.T) {
	pdu := []byte{0x83, 0x1b, 0x01, 0x00, 0x11, 0x22}
	_, rec := readOne(t, buildRecord(0, TypeISIS, 0, pdu))
	isis, ok := rec.(ISIS)
	if !ok {
		t.Fatalf("expected ISIS, got %T", rec)
	}
	if !bytes.Equal(isis.Message, pdu) {
		t.Errorf("expected byte-exact PDU %x, got %x", pdu, isis.Message)
	}
}

func TestRead_RIPNG(t *testing.T) {
	remote := netip.MustParseAddr("fe80::1")
	local := netip.MustParseAddr("fe80::2")
	r16, l16 := remote.As16(), local.As16()
	body := append(append([]byte{}, r16[:]...), l16[:]...)
	body = append(body, 0x01, 0x01)

	_, rec := readOne(t, buildRecord(0, TypeRIPNG, 0, body))
	r, ok := rec.(RIPNG)
	if !ok {
		t.Fatalf("expected RIPNG, got %T", rec)
	}
	if r.RemoteAddress != remote || r.LocalAddress != local {
		t.Errorf("unexpected endpoints %v/%v", r.RemoteAddress, r.LocalAddress)
	}
}

func TestRead_OSPFv3AddressWidth(t *testing.T) {
	remote := netip.MustParseAddr("2001:db8::a")
	local := netip.MustParseAddr("2001:db8::b")
	r16, l16 := remote.As16(), local.As16()
	body := binary.BigEndian.AppendUint16(nil, 2) // afi
	body = append(body, r16[:]...)
	body = append(body, l16[:]...)
	body = append(body, 0x03)

	_, rec := readOne(t, buildRecord(0, TypeOSPFv3, 0, body))
	o, ok := rec.(OSPFv3)
	if !ok {
		t.Fatalf("expected OSPFv3, got %T", rec)
	}
	if o.AFI != AFIIPv6 || o.RemoteAddress != remote {
		t.Errorf("got AFI %d remote %v", o.AFI, o.RemoteAddress)
	}
}

func TestRead_MultipleRecordsFromStream(t *testing.T) {
	var stream []byte
	stream = append(stream, buildRecord(1, TypeStart, 0, nil)...)
	stream = append(stream, buildRecord(2, TypeISIS, 0, []byte{0xab})...)
	stream = append(stream, buildRecord(3, TypeDie, 0, nil)...)

	r := bytes.NewReader(stream)
	var types []uint16
	for {
		h, _, err := Read(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		types = append(types, h.Type)
	}
	want := []uint16{TypeStart, TypeISIS, TypeDie}
	if len(types) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(types))
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("record %d: expected type %d, got %d", i, want[i], types[i])
		}
	}
}

func TestReadHeader_SkipsBody(t *testing.T) {
	var stream []byte
	stream = append(stream, buildRecord(10, TypeISIS, 0, make([]byte, 100))...)
	stream = append(stream, buildExtendedRecord(11, 500, TypeBGP4MPET, BGP4MPSubTypeMessageAS4, make([]byte, 50))...)
	stream = append(stream, buildRecord(12, TypeDie, 0, nil)...)

	r := bytes.NewReader(stream)
	var seen []uint32
	for {
		h, err := ReadHeader(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		seen = append(seen, h.Timestamp)
	}
	if len(seen) != 3 || seen[0] != 10 || seen[1] != 11 || seen[2] != 12 {
		t.Fatalf("expected timestamps [10 11 12], got %v", seen)
	}
}

func TestReadHeader_ExtendedMicroseconds(t *testing.T) {
	raw := buildExtendedRecord(1, 999999, TypeOSPFv3ET, 0, make([]byte, 8))
	h, err := ReadHeader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Extended != 999999 {
		t.Errorf("expected microseconds 999999, got %d", h.Extended)
	}
}

// errReader fails every read with the same error, the way a damaged
// compressed stream does.
type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func TestRead_HeaderStreamFailure(t *testing.T) {
	cause := errors.New("read /dev/sdb: input/output error")
	_, _, err := Read(errReader{err: cause})
	if !errors.Is(err, ErrStream) {
		t.Fatalf("expected ErrStream, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected underlying error preserved, got %v", err)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("stream failure must not classify as truncation: %v", err)
	}
}

func TestRead_BodyStreamFailure(t *testing.T) {
	cause := errors.New("read /dev/sdb: input/output error")
	raw := buildRecord(0, TypeISIS, 0, make([]byte, 8))
	r := io.MultiReader(bytes.NewReader(raw[:12]), errReader{err: cause})
	_, _, err := Read(r)
	if !errors.Is(err, ErrStream) || !errors.Is(err, cause) {
		t.Fatalf("expected ErrStream wrapping the cause, got %v", err)
	}
}

func TestRead_ExtendedTimestampStreamFailure(t *testing.T) {
	cause := errors.New("read /dev/sdb: input/output error")
	raw := buildExtendedRecord(0, 0, TypeISISET, 0, make([]byte, 4))
	r := io.MultiReader(bytes.NewReader(raw[:12]), errReader{err: cause})
	_, _, err := Read(r)
	if !errors.Is(err, ErrStream) || !errors.Is(err, cause) {
		t.Fatalf("expected ErrStream wrapping the cause, got %v", err)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("stream failure must not classify as truncation: %v", err)
	}
}

func TestRead_ExtendedTimestampTruncated(t *testing.T) {
	raw := buildExtendedRecord(0, 0, TypeISISET, 0, make([]byte, 4))
	_, _, err := Read(bytes.NewReader(raw[:13]))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF for partial extended timestamp, got %v", err)
	}
}

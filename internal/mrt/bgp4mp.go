package mrt

import (
	"fmt"
	"net/netip"
)

// BGP4MP subtype codes (RFC 6396 §4.4, RFC 8050 §3).
const (
	BGP4MPSubTypeStateChange            uint16 = 0
	BGP4MPSubTypeMessage                uint16 = 1
	BGP4MPSubTypeEntry                  uint16 = 2
	BGP4MPSubTypeSnapshot               uint16 = 3
	BGP4MPSubTypeMessageAS4             uint16 = 4
	BGP4MPSubTypeStateChangeAS4         uint16 = 5
	BGP4MPSubTypeMessageLocal           uint16 = 6
	BGP4MPSubTypeMessageAS4Local        uint16 = 7
	BGP4MPSubTypeMessageAddPath         uint16 = 8
	BGP4MPSubTypeMessageAS4AddPath      uint16 = 9
	BGP4MPSubTypeMessageLocalAddPath    uint16 = 10
	BGP4MPSubTypeMessageAS4LocalAddPath uint16 = 11
)

// BGP4MPStateChange is a BGP FSM transition with 16-bit AS numbers.
type BGP4MPStateChange struct {
	PeerAS       uint16
	LocalAS      uint16
	Interface    uint16
	PeerAddress  netip.Addr
	LocalAddress netip.Addr
	OldState     uint16
	NewState     uint16
}

// BGP4MPStateChangeAS4 is a BGP FSM transition with 32-bit AS numbers.
type BGP4MPStateChangeAS4 struct {
	PeerAS       uint32
	LocalAS      uint32
	Interface    uint16
	PeerAddress  netip.Addr
	LocalAddress netip.Addr
	OldState     uint16
	NewState     uint16
}

// BGP4MPMessage is a BGP message record with 16-bit AS numbers. Local and
// AddPath record which of the wire subtypes produced it; the field layout
// is identical across all four (the Add-Path path identifier lives inside
// the opaque Message bytes, not at this layer).
type BGP4MPMessage struct {
	PeerAS       uint16
	LocalAS      uint16
	Interface    uint16
	PeerAddress  netip.Addr
	LocalAddress netip.Addr
	Message      []byte
	Local        bool
	AddPath      bool
}

// BGP4MPMessageAS4 is a BGP message record with 32-bit AS numbers.
type BGP4MPMessageAS4 struct {
	PeerAS       uint32
	LocalAS      uint32
	Interface    uint16
	PeerAddress  netip.Addr
	LocalAddress netip.Addr
	Message      []byte
	Local        bool
	AddPath      bool
}

// BGP4MPEntry is the deprecated per-route RIB entry form.
type BGP4MPEntry struct {
	PeerAS         uint16
	LocalAS        uint16
	Interface      uint16
	PeerAddress    netip.Addr
	LocalAddress   netip.Addr
	ViewNumber     uint16
	Status         uint16
	TimeLastChange uint32
	NextHop        netip.Addr
	AFI            uint16
	SAFI           uint8
	PrefixLength   uint8
	Prefix         []byte
	Attributes     []byte
}

// BGP4MPSnapshot is the deprecated snapshot pointer. Filename is
// truncated at the first NUL byte of the wire field.
type BGP4MPSnapshot struct {
	ViewNumber uint16
	Filename   string
}

func (BGP4MPStateChange) isRecord()    {}
func (BGP4MPStateChangeAS4) isRecord() {}
func (BGP4MPMessage) isRecord()        {}
func (BGP4MPMessageAS4) isRecord()     {}
func (BGP4MPEntry) isRecord()          {}
func (BGP4MPSnapshot) isRecord()       {}

func decodeBGP4MP(subType uint16, d *decoder) (Record, error) {
	switch subType {
	case BGP4MPSubTypeStateChange:
		return decodeBGP4MPStateChange(d)
	case BGP4MPSubTypeStateChangeAS4:
		return decodeBGP4MPStateChangeAS4(d)
	case BGP4MPSubTypeMessage:
		return decodeBGP4MPMessage(d, false, false)
	case BGP4MPSubTypeMessageLocal:
		return decodeBGP4MPMessage(d, true, false)
	case BGP4MPSubTypeMessageAddPath:
		return decodeBGP4MPMessage(d, false, true)
	case BGP4MPSubTypeMessageLocalAddPath:
		return decodeBGP4MPMessage(d, true, true)
	case BGP4MPSubTypeMessageAS4:
		return decodeBGP4MPMessageAS4(d, false, false)
	case BGP4MPSubTypeMessageAS4Local:
		return decodeBGP4MPMessageAS4(d, true, false)
	case BGP4MPSubTypeMessageAS4AddPath:
		return decodeBGP4MPMessageAS4(d, false, true)
	case BGP4MPSubTypeMessageAS4LocalAddPath:
		return decodeBGP4MPMessageAS4(d, true, true)
	case BGP4MPSubTypeEntry:
		return decodeBGP4MPEntry(d)
	case BGP4MPSubTypeSnapshot:
		return decodeBGP4MPSnapshot(d)
	default:
		return nil, fmt.Errorf("%w: BGP4MP subtype %d", ErrInvalidSubType, subType)
	}
}

// peerPair reads the interface index, the embedded address family code and
// the peer/local address pair common to every BGP4MP state/message form.
func (d *decoder) peerPair() (iface uint16, peer, local netip.Addr, err error) {
	if iface, err = d.u16("interface"); err != nil {
		return
	}
	var afi AFI
	if afi, err = d.afi("address_family"); err != nil {
		return
	}
	if peer, err = d.addr(afi, "peer_address"); err != nil {
		return
	}
	local, err = d.addr(afi, "local_address")
	return
}

func decodeBGP4MPStateChange(d *decoder) (Record, error) {
	var sc BGP4MPStateChange
	var err error
	if sc.PeerAS, err = d.u16("peer_as"); err != nil {
		return nil, err
	}
	if sc.LocalAS, err = d.u16("local_as"); err != nil {
		return nil, err
	}
	if sc.Interface, sc.PeerAddress, sc.LocalAddress, err = d.peerPair(); err != nil {
		return nil, err
	}
	if sc.OldState, err = d.u16("old_state"); err != nil {
		return nil, err
	}
	if sc.NewState, err = d.u16("new_state"); err != nil {
		return nil, err
	}
	return sc, nil
}

func decodeBGP4MPStateChangeAS4(d *decoder) (Record, error) {
	var sc BGP4MPStateChangeAS4
	var err error
	if sc.PeerAS, err = d.u32("peer_as"); err != nil {
		return nil, err
	}
	if sc.LocalAS, err = d.u32("local_as"); err != nil {
		return nil, err
	}
	if sc.Interface, sc.PeerAddress, sc.LocalAddress, err = d.peerPair(); err != nil {
		return nil, err
	}
	if sc.OldState, err = d.u16("old_state"); err != nil {
		return nil, err
	}
	if sc.NewState, err = d.u16("new_state"); err != nil {
		return nil, err
	}
	return sc, nil
}

func decodeBGP4MPMessage(d *decoder, local, addPath bool) (Record, error) {
	m := BGP4MPMessage{Local: local, AddPath: addPath}
	var err error
	if m.PeerAS, err = d.u16("peer_as"); err != nil {
		return nil, err
	}
	if m.LocalAS, err = d.u16("local_as"); err != nil {
		return nil, err
	}
	if m.Interface, m.PeerAddress, m.LocalAddress, err = d.peerPair(); err != nil {
		return nil, err
	}
	m.Message = d.rest()
	return m, nil
}

func decodeBGP4MPMessageAS4(d *decoder, local, addPath bool) (Record, error) {
	m := BGP4MPMessageAS4{Local: local, AddPath: addPath}
	var err error
	if m.PeerAS, err = d.u32("peer_as"); err != nil {
		return nil, err
	}
	if m.LocalAS, err = d.u32("local_as"); err != nil {
		return nil, err
	}
	if m.Interface, m.PeerAddress, m.LocalAddress, err = d.peerPair(); err != nil {
		return nil, err
	}
	m.Message = d.rest()
	return m, nil
}

func decodeBGP4MPEntry(d *decoder) (Record, error) {
	var e BGP4MPEntry
	var err error
	if e.PeerAS, err = d.u16("peer_as"); err != nil {
		return nil, err
	}
	if e.LocalAS, err = d.u16("local_as"); err != nil {
		return nil, err
	}
	if e.Interface, e.PeerAddress, e.LocalAddress, err = d.peerPair(); err != nil {
		return nil, err
	}
	if e.ViewNumber, err = d.u16("view_number"); err != nil {
		return nil, err
	}
	if e.Status, err = d.u16("status"); err != nil {
		return nil, err
	}
	if e.TimeLastChange, err = d.u32("time_last_change"); err != nil {
		return nil, err
	}
	nextHopAFI, err := d.afi("next_hop_afi")
	if err != nil {
		return nil, err
	}
	if e.NextHop, err = d.addr(nextHopAFI, "next_hop"); err != nil {
		return nil, err
	}
	if e.AFI, err = d.u16("afi"); err != nil {
		return nil, err
	}
	if e.SAFI, err = d.u8("safi"); err != nil {
		return nil, err
	}
	if e.PrefixLength, err = d.u8("prefix_length"); err != nil {
		return nil, err
	}
	if e.Prefix, err = d.prefix(e.PrefixLength, "prefix"); err != nil {
		return nil, err
	}
	attrLen, err := d.u16("attribute_length")
	if err != nil {
		return nil, err
	}
	if e.Attributes, err = d.bytes(int(attrLen), "attributes"); err != nil {
		return nil, err
	}
	return e, nil
}

func decodeBGP4MPSnapshot(d *decoder) (Record, error) {
	var s BGP4MPSnapshot
	var err error
	if s.ViewNumber, err = d.u16("view_number"); err != nil {
		return nil, err
	}
	s.Filename = cstring(d.rest())
	return s, nil
}

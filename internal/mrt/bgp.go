package mrt

import (
	"fmt"
	"net/netip"
)

// Legacy BGP subtype codes, shared by record types 5 (BGP) and 9/10
// (BGP4PLUS). BGP4PLUS records are structurally identical but carry
// 16-byte addresses.
const (
	BGPSubTypeNull        uint16 = 0
	BGPSubTypeUpdate      uint16 = 1
	BGPSubTypePrefUpdate  uint16 = 2
	BGPSubTypeStateChange uint16 = 3
	BGPSubTypeSync        uint16 = 4
	BGPSubTypeOpen        uint16 = 5
	BGPSubTypeNotify      uint16 = 6
	BGPSubTypeKeepalive   uint16 = 7
)

// BGPNull is the payload-less NULL subtype of the legacy BGP families.
type BGPNull struct{}

// BGPPrefUpdate is the reserved PREF_UPDATE subtype.
type BGPPrefUpdate struct{}

// BGPMessage is the shared shape of the UPDATE, OPEN, NOTIFY and
// KEEPALIVE subtypes. SubType records which one was on the wire; Message
// holds the raw BGP message bytes including the BGP header.
type BGPMessage struct {
	SubType uint16
	PeerAS  uint16
	PeerIP  netip.Addr
	LocalAS uint16
	LocalIP netip.Addr
	Message []byte
}

// BGPStateChange records a BGP FSM transition.
type BGPStateChange struct {
	PeerAS   uint16
	PeerIP   netip.Addr
	OldState uint16
	NewState uint16
}

// BGPSync is the deprecated RIB synchronization pointer. Filename is
// truncated at the first NUL byte of the wire field.
type BGPSync struct {
	ViewNumber uint16
	Filename   string
}

func (BGPNull) isRecord()        {}
func (BGPPrefUpdate) isRecord()  {}
func (BGPMessage) isRecord()     {}
func (BGPStateChange) isRecord() {}
func (BGPSync) isRecord()        {}

// decodeBGP handles the legacy BGP and BGP4PLUS families; afi fixes the
// address width (IPv4 for type 5, IPv6 for types 9 and 10).
func decodeBGP(subType uint16, afi AFI, d *decoder) (Record, error) {
	switch subType {
	case BGPSubTypeNull:
		d.rest()
		return BGPNull{}, nil
	case BGPSubTypePrefUpdate:
		d.rest()
		return BGPPrefUpdate{}, nil
	case BGPSubTypeUpdate, BGPSubTypeOpen, BGPSubTypeNotify, BGPSubTypeKeepalive:
		return decodeBGPMessage(subType, afi, d)
	case BGPSubTypeStateChange:
		return decodeBGPStateChange(afi, d)
	case BGPSubTypeSync:
		return decodeBGPSync(d)
	default:
		return nil, fmt.Errorf("%w: BGP subtype %d", ErrInvalidSubType, subType)
	}
}

func decodeBGPMessage(subType uint16, afi AFI, d *decoder) (Record, error) {
	m := BGPMessage{SubType: subType}
	var err error
	if m.PeerAS, err = d.u16("peer_as"); err != nil {
		return nil, err
	}
	if m.PeerIP, err = d.addr(afi, "peer_ip"); err != nil {
		return nil, err
	}
	if m.LocalAS, err = d.u16("local_as"); err != nil {
		return nil, err
	}
	if m.LocalIP, err = d.addr(afi, "local_ip"); err != nil {
		return nil, err
	}
	m.Message = d.rest()
	return m, nil
}

func decodeBGPStateChange(afi AFI, d *decoder) (Record, error) {
	var sc BGPStateChange
	var err error
	if sc.PeerAS, err = d.u16("peer_as"); err != nil {
		return nil, err
	}
	if sc.PeerIP, err = d.addr(afi, "peer_ip"); err != nil {
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

func decodeBGPSync(d *decoder) (Record, error) {
	var s BGPSync
	var err error
	if s.ViewNumber, err = d.u16("view_number"); err != nil {
		return nil, err
	}
	s.Filename = cstring(d.rest())
	return s, nil
}

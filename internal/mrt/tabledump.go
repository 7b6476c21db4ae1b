package mrt

import (
	"fmt"
	"net/netip"
)

// TABLE_DUMP subtype codes select the address family directly.
const (
	TableDumpSubTypeIPv4 uint16 = 1
	TableDumpSubTypeIPv6 uint16 = 2
)

// TABLE_DUMP_V2 subtype codes (RFC 6396 §4.3, RFC 8050 §4).
const (
	TableDumpV2SubTypePeerIndexTable          uint16 = 1
	TableDumpV2SubTypeRIBIPv4Unicast          uint16 = 2
	TableDumpV2SubTypeRIBIPv4Multicast        uint16 = 3
	TableDumpV2SubTypeRIBIPv6Unicast          uint16 = 4
	TableDumpV2SubTypeRIBIPv6Multicast        uint16 = 5
	TableDumpV2SubTypeRIBGeneric              uint16 = 6
	TableDumpV2SubTypeRIBIPv4UnicastAddPath   uint16 = 8
	TableDumpV2SubTypeRIBIPv4MulticastAddPath uint16 = 9
	TableDumpV2SubTypeRIBIPv6UnicastAddPath   uint16 = 10
	TableDumpV2SubTypeRIBIPv6MulticastAddPath uint16 = 11
	TableDumpV2SubTypeRIBGenericAddPath       uint16 = 12
)

// PeerEntry flag bits: bit 0 selects the AS number width, bit 1 the
// address family.
const (
	peerFlagAS4  uint8 = 0x01
	peerFlagIPv6 uint8 = 0x02
)

// TableDump is the original one-entry-per-record RIB dump (type 12).
type TableDump struct {
	ViewNumber     uint16
	SequenceNumber uint16
	Prefix         netip.Addr
	PrefixLength   uint8
	Status         uint8
	OriginatedTime uint32
	PeerAddress    netip.Addr
	PeerAS         uint16
	Attributes     []byte
}

// PeerIndexTable maps peer indexes used by subsequent RIB records to peer
// identities. It must appear first in a TABLE_DUMP_V2 dump.
type PeerIndexTable struct {
	CollectorID uint32
	ViewName    string
	Peers       []PeerEntry
}

// PeerEntry is one peer in a PeerIndexTable. PeerAS is widened to uint32
// even when the wire carried 16 bits; Type preserves the raw flags byte.
type PeerEntry struct {
	Type      uint8
	BGPID     uint32
	IPAddress netip.Addr
	PeerAS    uint32
}

// RIBEntry is one per-peer route within a RIB record.
type RIBEntry struct {
	PeerIndex      uint16
	OriginatedTime uint32
	Attributes     []byte
}

// RIBEntryAddPath is a RIBEntry carrying an RFC 8050 path identifier.
type RIBEntryAddPath struct {
	PeerIndex      uint16
	OriginatedTime uint32
	PathIdentifier uint32
	Attributes     []byte
}

// RIB is the AFI-specific RIB shape shared by the IPv4/IPv6
// unicast/multicast subtypes. AFI records which family the subtype
// selected.
type RIB struct {
	AFI            AFI
	SequenceNumber uint32
	PrefixLength   uint8
	Prefix         []byte
	Entries        []RIBEntry
}

// RIBAddPath is the Add-Path counterpart of RIB.
type RIBAddPath struct {
	AFI            AFI
	SequenceNumber uint32
	PrefixLength   uint8
	Prefix         []byte
	Entries        []RIBEntryAddPath
}

// RIBGeneric carries an explicit AFI/SAFI pair and a length-prefixed NLRI
// whose internal format depends on that pair.
type RIBGeneric struct {
	SequenceNumber uint32
	AFI            AFI
	SAFI           uint8
	NLRI           []byte
	Entries        []RIBEntry
}

// RIBGenericAddPath is the Add-Path counterpart of RIBGeneric.
type RIBGenericAddPath struct {
	SequenceNumber uint32
	AFI            AFI
	SAFI           uint8
	NLRI           []byte
	Entries        []RIBEntryAddPath
}

func (TableDump) isRecord()         {}
func (PeerIndexTable) isRecord()    {}
func (RIB) isRecord()               {}
func (RIBAddPath) isRecord()        {}
func (RIBGeneric) isRecord()        {}
func (RIBGenericAddPath) isRecord() {}

func decodeTableDump(subType uint16, d *decoder) (Record, error) {
	var afi AFI
	switch subType {
	case TableDumpSubTypeIPv4:
		afi = AFIIPv4
	case TableDumpSubTypeIPv6:
		afi = AFIIPv6
	default:
		return nil, fmt.Errorf("%w: TABLE_DUMP subtype %d", ErrInvalidSubType, subType)
	}

	var td TableDump
	var err error
	if td.ViewNumber, err = d.u16("view_number"); err != nil {
		return nil, err
	}
	if td.SequenceNumber, err = d.u16("sequence_number"); err != nil {
		return nil, err
	}
	if td.Prefix, err = d.addr(afi, "prefix"); err != nil {
		return nil, err
	}
	if td.PrefixLength, err = d.u8("prefix_length"); err != nil {
		return nil, err
	}
	if td.Status, err = d.u8("status"); err != nil {
		return nil, err
	}
	if td.OriginatedTime, err = d.u32("originated_time"); err != nil {
		return nil, err
	}
	if td.PeerAddress, err = d.addr(afi, "peer_address"); err != nil {
		return nil, err
	}
	if td.PeerAS, err = d.u16("peer_as"); err != nil {
		return nil, err
	}
	attrLen, err := d.u16("attribute_length")
	if err != nil {
		return nil, err
	}
	if td.Attributes, err = d.bytes(int(attrLen), "attributes"); err != nil {
		return nil, err
	}
	return td, nil
}

func decodeTableDumpV2(subType uint16, d *decoder) (Record, error) {
	switch subType {
	case TableDumpV2SubTypePeerIndexTable:
		return decodePeerIndexTable(d)
	case TableDumpV2SubTypeRIBIPv4Unicast, TableDumpV2SubTypeRIBIPv4Multicast:
		return decodeRIB(AFIIPv4, d)
	case TableDumpV2SubTypeRIBIPv6Unicast, TableDumpV2SubTypeRIBIPv6Multicast:
		return decodeRIB(AFIIPv6, d)
	case TableDumpV2SubTypeRIBGeneric:
		return decodeRIBGeneric(d)
	case TableDumpV2SubTypeRIBIPv4UnicastAddPath, TableDumpV2SubTypeRIBIPv4MulticastAddPath:
		return decodeRIBAddPath(AFIIPv4, d)
	case TableDumpV2SubTypeRIBIPv6UnicastAddPath, TableDumpV2SubTypeRIBIPv6MulticastAddPath:
		return decodeRIBAddPath(AFIIPv6, d)
	case TableDumpV2SubTypeRIBGenericAddPath:
		return decodeRIBGenericAddPath(d)
	default:
		return nil, fmt.Errorf("%w: TABLE_DUMP_V2 subtype %d", ErrInvalidSubType, subType)
	}
}

func decodePeerIndexTable(d *decoder) (Record, error) {
	var pit PeerIndexTable
	var err error
	if pit.CollectorID, err = d.u32("collector_id"); err != nil {
		return nil, err
	}
	nameLen, err := d.u16("view_name_length")
	if err != nil {
		return nil, err
	}
	name, err := d.bytes(int(nameLen), "view_name")
	if err != nil {
		return nil, err
	}
	pit.ViewName = string(name)

	peerCount, err := d.u16("peer_count")
	if err != nil {
		return nil, err
	}
	pit.Peers = make([]PeerEntry, 0, peerCount)
	for i := 0; i < int(peerCount); i++ {
		pe, err := decodePeerEntry(d)
		if err != nil {
			return nil, fmt.Errorf("mrt: peer entry %d: %w", i, err)
		}
		pit.Peers = append(pit.Peers, pe)
	}
	return pit, nil
}

func decodePeerEntry(d *decoder) (PeerEntry, error) {
	var pe PeerEntry
	var err error
	if pe.Type, err = d.u8("peer_type"); err != nil {
		return pe, err
	}
	if pe.BGPID, err = d.u32("peer_bgp_id"); err != nil {
		return pe, err
	}
	afi := AFIIPv4
	if pe.Type&peerFlagIPv6 != 0 {
		afi = AFIIPv6
	}
	if pe.IPAddress, err = d.addr(afi, "peer_ip_address"); err != nil {
		return pe, err
	}
	if pe.Type&peerFlagAS4 != 0 {
		pe.PeerAS, err = d.u32("peer_as")
	} else {
		var as16 uint16
		as16, err = d.u16("peer_as")
		pe.PeerAS = uint32(as16)
	}
	return pe, err
}

func decodeRIBEntry(d *decoder) (RIBEntry, error) {
	var e RIBEntry
	var err error
	if e.PeerIndex, err = d.u16("peer_index"); err != nil {
		return e, err
	}
	if e.OriginatedTime, err = d.u32("originated_time"); err != nil {
		return e, err
	}
	attrLen, err := d.u16("attribute_length")
	if err != nil {
		return e, err
	}
	e.Attributes, err = d.bytes(int(attrLen), "attributes")
	return e, err
}

func decodeRIBEntryAddPath(d *decoder) (RIBEntryAddPath, error) {
	var e RIBEntryAddPath
	var err error
	if e.PeerIndex, err = d.u16("peer_index"); err != nil {
		return e, err
	}
	if e.OriginatedTime, err = d.u32("originated_time"); err != nil {
		return e, err
	}
	if e.PathIdentifier, err = d.u32("path_identifier"); err != nil {
		return e, err
	}
	attrLen, err := d.u16("attribute_length")
	if err != nil {
		return e, err
	}
	e.Attributes, err = d.bytes(int(attrLen), "attributes")
	return e, err
}

func decodeRIB(afi AFI, d *decoder) (Record, error) {
	rib := RIB{AFI: afi}
	var err error
	if rib.SequenceNumber, err = d.u32("sequence_number"); err != nil {
		return nil, err
	}
	if rib.PrefixLength, err = d.u8("prefix_length"); err != nil {
		return nil, err
	}
	if rib.Prefix, err = d.prefix(rib.PrefixLength, "prefix"); err != nil {
		return nil, err
	}
	entryCount, err := d.u16("entry_count")
	if err != nil {
		return nil, err
	}
	rib.Entries = make([]RIBEntry, 0, entryCount)
	for i := 0; i < int(entryCount); i++ {
		e, err := decodeRIBEntry(d)
		if err != nil {
			return nil, fmt.Errorf("mrt: rib entry %d of %d: %w", i, entryCount, err)
		}
		rib.Entries = append(rib.Entries, e)
	}
	return rib, nil
}

func decodeRIBAddPath(afi AFI, d *decoder) (Record, error) {
	rib := RIBAddPath{AFI: afi}
	var err error
	if rib.SequenceNumber, err = d.u32("sequence_number"); err != nil {
		return nil, err
	}
	if rib.PrefixLength, err = d.u8("prefix_length"); err != nil {
		return nil, err
	}
	if rib.Prefix, err = d.prefix(rib.PrefixLength, "prefix"); err != nil {
		return nil, err
	}
	entryCount, err := d.u16("entry_count")
	if err != nil {
		return nil, err
	}
	rib.Entries = make([]RIBEntryAddPath, 0, entryCount)
	for i := 0; i < int(entryCount); i++ {
		e, err := decodeRIBEntryAddPath(d)
		if err != nil {
			return nil, fmt.Errorf("mrt: rib entry %d of %d: %w", i, entryCount, err)
		}
		rib.Entries = append(rib.Entries, e)
	}
	return rib, nil
}

func decodeRIBGeneric(d *decoder) (Record, error) {
	var rib RIBGeneric
	var err error
	if rib.SequenceNumber, err = d.u32("sequence_number"); err != nil {
		return nil, err
	}
	if rib.AFI, err = d.afi("afi"); err != nil {
		return nil, err
	}
	if rib.SAFI, err = d.u8("safi"); err != nil {
		return nil, err
	}
	nlriLen, err := d.u16("nlri_length")
	if err != nil {
		return nil, err
	}
	if rib.NLRI, err = d.bytes(int(nlriLen), "nlri"); err != nil {
		return nil, err
	}
	entryCount, err := d.u16("entry_count")
	if err != nil {
		return nil, err
	}
	rib.Entries = make([]RIBEntry, 0, entryCount)
	for i := 0; i < int(entryCount); i++ {
		e, err := decodeRIBEntry(d)
		if err != nil {
			return nil, fmt.Errorf("mrt: rib entry %d of %d: %w", i, entryCount, err)
		}
		rib.Entries = append(rib.Entries, e)
	}
	return rib, nil
}

func decodeRIBGenericAddPath(d *decoder) (Record, error) {
	var rib RIBGenericAddPath
	var err error
	if rib.SequenceNumber, err = d.u32("sequence_number"); err != nil {
		return nil, err
	}
	if rib.AFI, err = d.afi("afi"); err != nil {
		return nil, err
	}
	if rib.SAFI, err = d.u8("safi"); err != nil {
		return nil, err
	}
	nlriLen, err := d.u16("nlri_length")
	if err != nil {
		return nil, err
	}
	if rib.NLRI, err = d.bytes(int(nlriLen), "nlri"); err != nil {
		return nil, err
	}
	entryCount, err := d.u16("entry_count")
	if err != nil {
		return nil, err
	}
	rib.Entries = make([]RIBEntryAddPath, 0, entryCount)
	for i := 0; i < int(entryCount); i++ {
		e, err := decodeRIBEntryAddPath(d)
		if err != nil {
			return nil, fmt.Errorf("mrt: rib entry %d of %d: %w", i, entryCount, err)
		}
		rib.Entries = append(rib.Entries, e)
	}
	return rib, nil
}

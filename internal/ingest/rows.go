// Package ingest turns decoded MRT records into RIB rows and loads them
// into Postgres, optionally publishing each row as a JSON event.
package ingest

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/route-beacon/mrt-ingester/internal/mrt"
)

// Row is one RIB entry ready for the database: a prefix as seen by one
// peer at one point in time.
type Row struct {
	Collector      string     `json:"collector"`
	SeenAt         time.Time  `json:"seen_at"`
	AFI            int        `json:"afi"`
	Prefix         string     `json:"prefix"`
	PathID         *uint32    `json:"path_id,omitempty"`
	PeerAS         uint32     `json:"peer_as"`
	PeerIP         netip.Addr `json:"peer_ip"`
	OriginatedTime time.Time  `json:"originated_time"`
	Attributes     []byte     `json:"-"`
}

// PeerTable resolves TABLE_DUMP_V2 peer indexes. It is populated from the
// PEER_INDEX_TABLE record that leads every dump.
type PeerTable struct {
	CollectorID uint32
	ViewName    string
	peers       []mrt.PeerEntry
}

func NewPeerTable(pit mrt.PeerIndexTable) *PeerTable {
	return &PeerTable{
		CollectorID: pit.CollectorID,
		ViewName:    pit.ViewName,
		peers:       pit.Peers,
	}
}

func (pt *PeerTable) Lookup(index uint16) (mrt.PeerEntry, error) {
	if pt == nil {
		return mrt.PeerEntry{}, fmt.Errorf("ingest: rib entry before peer index table")
	}
	if int(index) >= len(pt.peers) {
		return mrt.PeerEntry{}, fmt.Errorf("ingest: peer index %d out of range (%d peers)", index, len(pt.peers))
	}
	return pt.peers[index], nil
}

// prefixString renders wire prefix bytes as CIDR notation, zero-padding
// the prefix to the family's full address width.
func prefixString(afi mrt.AFI, bits uint8, wire []byte) (string, error) {
	var addr netip.Addr
	switch afi {
	case mrt.AFIIPv4:
		var a [4]byte
		if len(wire) > 4 {
			return "", fmt.Errorf("ingest: %d prefix bytes for IPv4", len(wire))
		}
		copy(a[:], wire)
		addr = netip.AddrFrom4(a)
	case mrt.AFIIPv6:
		var a [16]byte
		if len(wire) > 16 {
			return "", fmt.Errorf("ingest: %d prefix bytes for IPv6", len(wire))
		}
		copy(a[:], wire)
		addr = netip.AddrFrom16(a)
	default:
		return "", fmt.Errorf("ingest: unknown AFI %d", afi)
	}
	p, err := addr.Prefix(int(bits))
	if err != nil {
		return "", fmt.Errorf("ingest: prefix /%d for AFI %d: %w", bits, afi, err)
	}
	return p.String(), nil
}

// Convert expands one MRT record into RIB rows. Records that carry no RIB
// content (markers, BGP messages, IGP packets) yield no rows and no error.
// A PEER_INDEX_TABLE record replaces the current peer table in place.
func Convert(collector string, h *mrt.Header, rec mrt.Record, pt **PeerTable) ([]Row, error) {
	seenAt := time.Unix(int64(h.Timestamp), int64(h.Extended)*int64(time.Microsecond/time.Nanosecond)).UTC()

	switch r := rec.(type) {
	case mrt.PeerIndexTable:
		*pt = NewPeerTable(r)
		return nil, nil

	case mrt.TableDump:
		afi := mrt.AFIIPv4
		if h.SubType == mrt.TableDumpSubTypeIPv6 {
			afi = mrt.AFIIPv6
		}
		prefix, err := r.Prefix.Prefix(int(r.PrefixLength))
		if err != nil {
			return nil, fmt.Errorf("ingest: table dump prefix /%d: %w", r.PrefixLength, err)
		}
		return []Row{{
			Collector:      collector,
			SeenAt:         seenAt,
			AFI:            int(afi),
			Prefix:         prefix.String(),
			PeerAS:         uint32(r.PeerAS),
			PeerIP:         r.PeerAddress,
			OriginatedTime: time.Unix(int64(r.OriginatedTime), 0).UTC(),
			Attributes:     r.Attributes,
		}}, nil

	case mrt.RIB:
		prefix, err := prefixString(r.AFI, r.PrefixLength, r.Prefix)
		if err != nil {
			return nil, err
		}
		rows := make([]Row, 0, len(r.Entries))
		for _, e := range r.Entries {
			peer, err := (*pt).Lookup(e.PeerIndex)
			if err != nil {
				return nil, err
			}
			rows = append(rows, Row{
				Collector:      collector,
				SeenAt:         seenAt,
				AFI:            int(r.AFI),
				Prefix:         prefix,
				PeerAS:         peer.PeerAS,
				PeerIP:         peer.IPAddress,
				OriginatedTime: time.Unix(int64(e.OriginatedTime), 0).UTC(),
				Attributes:     e.Attributes,
			})
		}
		return rows, nil

	case mrt.RIBAddPath:
		prefix, err := prefixString(r.AFI, r.PrefixLength, r.Prefix)
		if err != nil {
			return nil, err
		}
		rows := make([]Row, 0, len(r.Entries))
		for _, e := range r.Entries {
			peer, err := (*pt).Lookup(e.PeerIndex)
			if err != nil {
				return nil, err
			}
			pathID := e.PathIdentifier
			rows = append(rows, Row{
				Collector:      collector,
				SeenAt:         seenAt,
				AFI:            int(r.AFI),
				Prefix:         prefix,
				PathID:         &pathID,
				PeerAS:         peer.PeerAS,
				PeerIP:         peer.IPAddress,
				OriginatedTime: time.Unix(int64(e.OriginatedTime), 0).UTC(),
				Attributes:     e.Attributes,
			})
		}
		return rows, nil

	default:
		// BGP4MP updates, RIB_GENERIC and the IGP families carry no
		// directly loadable RIB content.
		return nil, nil
	}
}

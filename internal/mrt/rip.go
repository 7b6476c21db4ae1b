package mrt

import "net/netip"

// RIP is a RIPv1/RIPv2 packet record (type 6). Message holds the raw RIP
// packet bytes.
type RIP struct {
	RemoteAddress netip.Addr
	LocalAddress  netip.Addr
	Message       []byte
}

// RIPNG is a RIPng packet record (type 8) with IPv6 endpoints.
type RIPNG struct {
	RemoteAddress netip.Addr
	LocalAddress  netip.Addr
	Message       []byte
}

func (RIP) isRecord()   {}
func (RIPNG) isRecord() {}

func decodeRIP(d *decoder) (Record, error) {
	var r RIP
	var err error
	if r.RemoteAddress, err = d.addr(AFIIPv4, "remote_address"); err != nil {
		return nil, err
	}
	if r.LocalAddress, err = d.addr(AFIIPv4, "local_address"); err != nil {
		return nil, err
	}
	r.Message = d.rest()
	return r, nil
}

func decodeRIPNG(d *decoder) (Record, error) {
	var r RIPNG
	var err error
	if r.RemoteAddress, err = d.addr(AFIIPv6, "remote_address"); err != nil {
		return nil, err
	}
	if r.LocalAddress, err = d.addr(AFIIPv6, "local_address"); err != nil {
		return nil, err
	}
	r.Message = d.rest()
	return r, nil
}

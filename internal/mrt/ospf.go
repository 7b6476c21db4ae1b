package mrt

import "net/netip"

// OSPFv2 is an OSPFv2 packet record (type 11). Message holds the raw OSPF
// packet bytes.
type OSPFv2 struct {
	RemoteAddress netip.Addr
	LocalAddress  netip.Addr
	Message       []byte
}

// OSPFv3 is an OSPFv3 packet record (types 48 and 49). A leading address
// family code selects the endpoint width on the wire.
type OSPFv3 struct {
	AFI           AFI
	RemoteAddress netip.Addr
	LocalAddress  netip.Addr
	Message       []byte
}

func (OSPFv2) isRecord() {}
func (OSPFv3) isRecord() {}

func decodeOSPFv2(d *decoder) (Record, error) {
	var o OSPFv2
	var err error
	if o.RemoteAddress, err = d.addr(AFIIPv4, "remote_address"); err != nil {
		return nil, err
	}
	if o.LocalAddress, err = d.addr(AFIIPv4, "local_address"); err != nil {
		return nil, err
	}
	o.Message = d.rest()
	return o, nil
}

func decodeOSPFv3(d *decoder) (Record, error) {
	var o OSPFv3
	var err error
	if o.AFI, err = d.afi("address_family"); err != nil {
		return nil, err
	}
	if o.RemoteAddress, err = d.addr(o.AFI, "remote_address"); err != nil {
		return nil, err
	}
	if o.LocalAddress, err = d.addr(o.AFI, "local_address"); err != nil {
		return nil, err
	}
	o.Message = d.rest()
	return o, nil
}

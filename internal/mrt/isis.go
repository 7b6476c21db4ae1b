package mrt

// ISIS is an IS-IS PDU record (types 32 and 33). The entire body is the
// raw PDU; MRT adds no framing of its own.
type ISIS struct {
	Message []byte
}

func (ISIS) isRecord() {}

func decodeISIS(d *decoder) (Record, error) {
	return ISIS{Message: d.rest()}, nil
}

package wire

import (
	"encoding/binary"
	"errors"
)

// DropReqCIF is the body of a DROPREQ control packet (spec §4.L): the
// inclusive sequence range the sender is telling its peer to stop asking
// for, because it no longer has the packets to retransmit.
type DropReqCIF struct {
	First uint32
	Last  uint32
}

// DropReqCIFSize is the fixed wire size of a DROPREQ CIF.
const DropReqCIFSize = 8

func (d DropReqCIF) Encode() []byte {
	buf := make([]byte, DropReqCIFSize)
	binary.BigEndian.PutUint32(buf[0:4], d.First)
	binary.BigEndian.PutUint32(buf[4:8], d.Last)
	return buf
}

func ParseDropReqCIF(buf []byte) (DropReqCIF, error) {
	var d DropReqCIF
	if len(buf) < DropReqCIFSize {
		return d, errors.New("wire: DROPREQ CIF too short")
	}
	d.First = binary.BigEndian.Uint32(buf[0:4])
	d.Last = binary.BigEndian.Uint32(buf[4:8])
	return d, nil
}

package wire

import (
	"encoding/binary"
	"errors"
)

// Handshake type values (standard SRT protocol constants).
const (
	HSTypeDone       uint32 = 0xFFFFFFFF
	HSTypeInduction  uint32 = 1
	HSTypeWaveahand  uint32 = 0
	HSTypeConclusion uint32 = 0xFFFFFFFD
	HSTypeAgreement  uint32 = 0xFFFFFFFE
	HSTypeReject     uint32 = 0x7FFFFFFF
)

// MagicCode is the SRT_MAGIC_CODE value carried in the extension field of
// an induction handshake (spec §6, §8 testable property 1).
const MagicCode uint32 = 0x4A17

// Handshake extension flags (bitmask in the conclusion CIF extension field).
const (
	ExtFlagHSREQ uint32 = 1 << 0
	ExtFlagKMREQ uint32 = 1 << 1
	ExtFlagSID   uint32 = 1 << 3
)

// Handshake extension block types.
const (
	ExtTypeHSREQ uint16 = 1
	ExtTypeHSRSP uint16 = 2
	ExtTypeKMREQ uint16 = 3
	ExtTypeKMRSP uint16 = 4
	ExtTypeSID   uint16 = 5
)

// HandshakeCIFSize is the fixed portion of the handshake CIF (everything
// before the variable extension blocks).
const HandshakeCIFSize = 48

// HandshakeCIF is the fixed-size body of a handshake control packet (spec
// §4.J/§6): version, encryption field, extension field/flags, initial
// sequence number, MTU, max flow window, handshake type, socket id, cookie,
// and the peer IPv4/v6 address.
type HandshakeCIF struct {
	Version     uint32
	Encryption  uint16
	Extension   uint16
	ISN         uint32
	MTU         uint32
	MFW         uint32
	HSType      uint32
	SocketID    uint32
	SynCookie   uint32
	PeerAddress [16]byte
}

// Encode serializes the fixed CIF portion (48 bytes); extension blocks, if
// any, are appended by the caller after this.
func (c HandshakeCIF) Encode() []byte {
	buf := make([]byte, HandshakeCIFSize)
	binary.BigEndian.PutUint32(buf[0:4], c.Version)
	binary.BigEndian.PutUint16(buf[4:6], c.Encryption)
	binary.BigEndian.PutUint16(buf[6:8], c.Extension)
	binary.BigEndian.PutUint32(buf[8:12], c.ISN)
	binary.BigEndian.PutUint32(buf[12:16], c.MTU)
	binary.BigEndian.PutUint32(buf[16:20], c.MFW)
	binary.BigEndian.PutUint32(buf[20:24], c.HSType)
	binary.BigEndian.PutUint32(buf[24:28], c.SocketID)
	binary.BigEndian.PutUint32(buf[28:32], c.SynCookie)
	copy(buf[32:48], c.PeerAddress[:])
	return buf
}

// ParseHandshakeCIF parses the fixed 48-byte CIF portion of buf.
func ParseHandshakeCIF(buf []byte) (HandshakeCIF, error) {
	var c HandshakeCIF
	if len(buf) < HandshakeCIFSize {
		return c, errors.New("wire: handshake CIF too short")
	}
	c.Version = binary.BigEndian.Uint32(buf[0:4])
	c.Encryption = binary.BigEndian.Uint16(buf[4:6])
	c.Extension = binary.BigEndian.Uint16(buf[6:8])
	c.ISN = binary.BigEndian.Uint32(buf[8:12])
	c.MTU = binary.BigEndian.Uint32(buf[12:16])
	c.MFW = binary.BigEndian.Uint32(buf[16:20])
	c.HSType = binary.BigEndian.Uint32(buf[20:24])
	c.SocketID = binary.BigEndian.Uint32(buf[24:28])
	c.SynCookie = binary.BigEndian.Uint32(buf[28:32])
	copy(c.PeerAddress[:], buf[32:48])
	return c, nil
}

// ExtensionHeader is the 4-byte type+length prefix of each extension block
// following the fixed CIF (spec §4.J HSREQ/KMREQ/SID extensions).
type ExtensionHeader struct {
	Type uint16
	Len  uint16 // length in 32-bit words
}

func (e ExtensionHeader) Encode() []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], e.Type)
	binary.BigEndian.PutUint16(buf[2:4], e.Len)
	return buf
}

func ParseExtensionHeader(buf []byte) (ExtensionHeader, error) {
	var e ExtensionHeader
	if len(buf) < 4 {
		return e, errors.New("wire: extension header too short")
	}
	e.Type = binary.BigEndian.Uint16(buf[0:2])
	e.Len = binary.BigEndian.Uint16(buf[2:4])
	return e, nil
}

// HSREQSize is the fixed size of an HSREQ/HSRSP extension body.
const HSREQSize = 12

// HSREQ carries the peer's SRT version, capability flags, and TSBPD delays
// negotiated during conclusion (spec §4.J).
type HSREQ struct {
	SRTVersion          uint32
	Flags               uint32
	ReceiverTSBPDDelay  uint16
	SenderTSBPDDelay    uint16
}

func (h HSREQ) Encode() []byte {
	buf := make([]byte, HSREQSize)
	binary.BigEndian.PutUint32(buf[0:4], h.SRTVersion)
	binary.BigEndian.PutUint32(buf[4:8], h.Flags)
	binary.BigEndian.PutUint16(buf[8:10], h.ReceiverTSBPDDelay)
	binary.BigEndian.PutUint16(buf[10:12], h.SenderTSBPDDelay)
	return buf
}

func ParseHSREQ(buf []byte) (HSREQ, error) {
	var h HSREQ
	if len(buf) < HSREQSize {
		return h, errors.New("wire: HSREQ too short")
	}
	h.SRTVersion = binary.BigEndian.Uint32(buf[0:4])
	h.Flags = binary.BigEndian.Uint32(buf[4:8])
	h.ReceiverTSBPDDelay = binary.BigEndian.Uint16(buf[8:10])
	h.SenderTSBPDDelay = binary.BigEndian.Uint16(buf[10:12])
	return h, nil
}

// EncodeSRTVersion packs major.minor.patch into the 24-bit SRT version
// field convention (0x00MMmmpp).
func EncodeSRTVersion(major, minor, patch uint8) uint32 {
	return uint32(major)<<16 | uint32(minor)<<8 | uint32(patch)
}

package wire

import (
	"encoding/binary"
	"errors"
)

// KMCipher identifies the cipher family in a keying-material message.
const KMCipherAES uint8 = 2

// KMCommonSize is the fixed portion of a KMREQ/KMRSP message preceding the
// salt and wrapped key material.
const KMCommonSize = 16

// KeyMaterial is the keying-material message exchanged during handshake
// conclusion (spec §4.J): cipher, key length, key-encryption flags (kk
// parity bitmask), a 16-byte salt, and one or two AES-wrapped SEKs.
type KeyMaterial struct {
	Cipher  uint8
	KeyLen  uint8 // SEK length in bytes (16 or 32)
	KK      uint8 // bit0: even SEK present, bit1: odd SEK present
	Salt    [16]byte
	Wrapped []byte // concatenated wrapped SEK(s), each len(SEK)+8 bytes
}

// Encode serializes the message: common header, salt, then wrapped keys.
func (k KeyMaterial) Encode() []byte {
	buf := make([]byte, KMCommonSize+16+len(k.Wrapped))
	buf[0] = k.Cipher
	buf[1] = k.KeyLen
	buf[2] = k.KK
	binary.BigEndian.PutUint32(buf[4:8], 0) // reserved/sign
	copy(buf[KMCommonSize:KMCommonSize+16], k.Salt[:])
	copy(buf[KMCommonSize+16:], k.Wrapped)
	return buf
}

// ParseKeyMaterial parses a KMREQ/KMRSP message body.
func ParseKeyMaterial(buf []byte) (KeyMaterial, error) {
	var k KeyMaterial
	if len(buf) < KMCommonSize+16 {
		return k, errors.New("wire: KM message too short")
	}
	k.Cipher = buf[0]
	k.KeyLen = buf[1]
	k.KK = buf[2]
	copy(k.Salt[:], buf[KMCommonSize:KMCommonSize+16])
	k.Wrapped = append([]byte(nil), buf[KMCommonSize+16:]...)
	return k, nil
}

// AckCIF is the body of a Full ACK control packet (spec §4.K).
type AckCIF struct {
	LastAckSeq   uint32
	RTT          uint32 // microseconds
	RTTVariance  uint32
	BufferAvail  uint32
	PacketRate   uint32 // packets per second
	LinkCapacity uint32 // estimated, packets per second
	ByteRate     uint32 // bytes per second
}

// AckCIFSize is the fixed wire size of a Full ACK CIF.
const AckCIFSize = 28

func (a AckCIF) Encode() []byte {
	buf := make([]byte, AckCIFSize)
	binary.BigEndian.PutUint32(buf[0:4], a.LastAckSeq)
	binary.BigEndian.PutUint32(buf[4:8], a.RTT)
	binary.BigEndian.PutUint32(buf[8:12], a.RTTVariance)
	binary.BigEndian.PutUint32(buf[12:16], a.BufferAvail)
	binary.BigEndian.PutUint32(buf[16:20], a.PacketRate)
	binary.BigEndian.PutUint32(buf[20:24], a.LinkCapacity)
	binary.BigEndian.PutUint32(buf[24:28], a.ByteRate)
	return buf
}

func ParseAckCIF(buf []byte) (AckCIF, error) {
	var a AckCIF
	if len(buf) < AckCIFSize {
		return a, errors.New("wire: ACK CIF too short")
	}
	a.LastAckSeq = binary.BigEndian.Uint32(buf[0:4])
	a.RTT = binary.BigEndian.Uint32(buf[4:8])
	a.RTTVariance = binary.BigEndian.Uint32(buf[8:12])
	a.BufferAvail = binary.BigEndian.Uint32(buf[12:16])
	a.PacketRate = binary.BigEndian.Uint32(buf[16:20])
	a.LinkCapacity = binary.BigEndian.Uint32(buf[20:24])
	a.ByteRate = binary.BigEndian.Uint32(buf[24:28])
	return a, nil
}

// NakRangeHighBit marks the first sequence of a contiguous range in a NAK
// CIF (spec §4.K: "range NAKs, high bit set on first sequence").
const NakRangeHighBit uint32 = 1 << 31

// EncodeNAK serializes a list of already-computed 32-bit NAK CIF words
// (singleton sequences, or range-start|HighBit followed by range-end) into
// a CIF body.
func EncodeNAK(words []uint32) []byte {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.BigEndian.PutUint32(buf[i*4:i*4+4], w)
	}
	return buf
}

// ParseNAK splits a NAK CIF body back into 32-bit words for the caller to
// interpret (a word with NakRangeHighBit set starts a range; the following
// word is its inclusive end).
func ParseNAK(buf []byte) ([]uint32, error) {
	if len(buf)%4 != 0 {
		return nil, errors.New("wire: NAK CIF not word-aligned")
	}
	words := make([]uint32, len(buf)/4)
	for i := range words {
		words[i] = binary.BigEndian.Uint32(buf[i*4 : i*4+4])
	}
	return words, nil
}

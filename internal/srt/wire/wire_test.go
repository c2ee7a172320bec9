package wire

import (
	"bytes"
	"testing"
)

func TestControlHeaderRoundTrip(t *testing.T) {
	h := ControlHeader{Type: CtrlAck, Subtype: 0, TypeSpecific: 42, Timestamp: 123456, DestSocketID: 99}
	buf := h.Encode()
	if len(buf) != HeaderSize {
		t.Fatalf("expected %d bytes, got %d", HeaderSize, len(buf))
	}
	if buf[0]&0x80 == 0 {
		t.Fatalf("expected control bit set")
	}
	got, ok := ParseControlHeader(buf)
	if !ok {
		t.Fatalf("expected parse ok")
	}
	if got != h {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, h)
	}
}

func TestDataHeaderRoundTrip(t *testing.T) {
	h := DataHeader{
		Sequence: 0x12345678 & 0x7FFFFFFF, Position: PosOnly, Order: true,
		Enc: EncEven, Retransmit: true, MessageNum: 0x03ABCDEF & 0x03FFFFFF,
		Timestamp: 555, DestSocketID: 777,
	}
	buf := h.Encode()
	if buf[0]&0x80 != 0 {
		t.Fatalf("expected control bit clear for data packet")
	}
	got, ok := ParseDataHeader(buf)
	if !ok {
		t.Fatalf("expected parse ok")
	}
	if got != h {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, h)
	}
	if IsControl(buf) {
		t.Fatalf("expected data packet classified as non-control")
	}
}

func TestHandshakeCIFRoundTrip(t *testing.T) {
	c := HandshakeCIF{
		Version: 0x00010000, Encryption: 0, Extension: uint16(MagicCode),
		ISN: 1000, MTU: 1500, MFW: 8192, HSType: HSTypeInduction,
		SocketID: 42, SynCookie: 0,
	}
	buf := c.Encode()
	got, err := ParseHandshakeCIF(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != c {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, c)
	}
}

func TestHSREQRoundTrip(t *testing.T) {
	h := HSREQ{SRTVersion: EncodeSRTVersion(1, 5, 0), Flags: 0xF, ReceiverTSBPDDelay: 120, SenderTSBPDDelay: 60}
	buf := h.Encode()
	got, err := ParseHSREQ(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch")
	}
}

func TestDeriveIVMatchesSpecConstruction(t *testing.T) {
	var salt [16]byte
	for i := range salt {
		salt[i] = byte(i + 1)
	}
	iv := DeriveIV(salt, 0x00000001)
	// base is salt[0:14] followed by two zero bytes
	want := salt
	want[14], want[15] = 0, 0
	want[13] ^= 1 // sequence 1 big-endian in the low byte of bytes 10..13
	if iv != want {
		t.Fatalf("iv mismatch: got %x want %x", iv, want)
	}
}

func TestCryptCTRRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, 16)
	iv := make([]byte, 16)
	plain := []byte("hello srt data packet payload!!")
	buf := append([]byte(nil), plain...)
	if err := CryptCTR(key, iv, buf); err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Equal(buf, plain) {
		t.Fatalf("expected ciphertext to differ from plaintext")
	}
	if err := CryptCTR(key, iv, buf); err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(buf, plain) {
		t.Fatalf("expected decrypt to recover plaintext")
	}
}

func TestKeyWrapUnwrapRoundTrip(t *testing.T) {
	kek := bytes.Repeat([]byte{0x42}, 16)
	sek := bytes.Repeat([]byte{0x07}, 16)
	wrapped, err := WrapKey(kek, sek)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	if len(wrapped) != len(sek)+8 {
		t.Fatalf("expected wrapped length %d, got %d", len(sek)+8, len(wrapped))
	}
	unwrapped, err := UnwrapKey(kek, wrapped)
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	if !bytes.Equal(unwrapped, sek) {
		t.Fatalf("expected unwrap to recover original key")
	}
}

func TestUnwrapKeyDetectsTamperedIntegrity(t *testing.T) {
	kek := bytes.Repeat([]byte{0x42}, 16)
	sek := bytes.Repeat([]byte{0x07}, 32)
	wrapped, _ := WrapKey(kek, sek)
	wrapped[0] ^= 0xFF
	if _, err := UnwrapKey(kek, wrapped); err == nil {
		t.Fatalf("expected tampered wrapped key to fail integrity check")
	}
}

func TestDeriveKEKDeterministic(t *testing.T) {
	var salt [16]byte
	copy(salt[:], []byte("0123456789ABCDEF"))
	k1 := DeriveKEK("s3cr3t", salt, 16)
	k2 := DeriveKEK("s3cr3t", salt, 16)
	if !bytes.Equal(k1, k2) {
		t.Fatalf("expected deterministic derivation")
	}
	k3 := DeriveKEK("different", salt, 16)
	if bytes.Equal(k1, k3) {
		t.Fatalf("expected different password to yield different key")
	}
	if len(k1) != 16 {
		t.Fatalf("expected 16-byte key, got %d", len(k1))
	}
}

func TestAckCIFRoundTrip(t *testing.T) {
	a := AckCIF{LastAckSeq: 1000, RTT: 25000, RTTVariance: 5000, BufferAvail: 8192, PacketRate: 5000, LinkCapacity: 50000, ByteRate: 7_000_000}
	got, err := ParseAckCIF(a.Encode())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != a {
		t.Fatalf("round trip mismatch")
	}
}

func TestNAKEncodeParseRoundTrip(t *testing.T) {
	words := []uint32{4 | NakRangeHighBit, 6, 9}
	buf := EncodeNAK(words)
	got, err := ParseNAK(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != len(words) {
		t.Fatalf("expected %d words, got %d", len(words), len(got))
	}
	for i := range words {
		if got[i] != words[i] {
			t.Fatalf("word %d mismatch: got %x want %x", i, got[i], words[i])
		}
	}
}

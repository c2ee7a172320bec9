package sender

import (
	"bytes"
	"testing"

	"github.com/alxayo/streamengine/internal/srt/wire"
)

type fakeClock struct{ now int64 }

func (c *fakeClock) Now() int64         { return c.now }
func (c *fakeClock) advance(t int64)    { c.now += t }

func newTestSender(clk *fakeClock, sent *[][]byte) *Sender {
	return NewSender(clk, 100_000, 0xABCD, func(b []byte) error {
		*sent = append(*sent, append([]byte(nil), b...))
		return nil
	})
}

// TestRetransmitOnNAKThenDropReqForMissingSeq exercises spec §8 testable
// property 3: sender sends 5,6,7; a NAK for 6 triggers an identical
// retransmit with the retransmit bit set; a later NAK for a sequence no
// longer in the queue (99) produces a DROPREQ(99,99).
func TestRetransmitOnNAKThenDropReqForMissingSeq(t *testing.T) {
	clk := &fakeClock{}
	var sent [][]byte
	s := newTestSender(clk, &sent)
	s.nextSeq = 5

	for _, payload := range [][]byte{{0xA}, {0xB}, {0xC}} {
		if err := s.SendPayload(payload, 0); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	if len(sent) != 3 {
		t.Fatalf("expected 3 sent packets, got %d", len(sent))
	}
	original6 := sent[1]

	sent = nil
	if err := s.OnNAK([]uint32{6}); err != nil {
		t.Fatalf("OnNAK: %v", err)
	}
	if len(sent) != 1 {
		t.Fatalf("expected 1 retransmit, got %d", len(sent))
	}
	hdr, ok := wire.ParseDataHeader(sent[0])
	if !ok {
		t.Fatalf("expected a data packet")
	}
	if hdr.Sequence != 6 || !hdr.Retransmit {
		t.Fatalf("expected seq 6 with retransmit bit, got %+v", hdr)
	}
	if !bytes.Equal(sent[0][wire.HeaderSize:], original6[wire.HeaderSize:]) {
		t.Fatalf("expected identical payload on retransmit")
	}

	sent = nil
	if err := s.OnNAK([]uint32{99}); err != nil {
		t.Fatalf("OnNAK: %v", err)
	}
	if len(sent) != 1 {
		t.Fatalf("expected 1 DROPREQ, got %d", len(sent))
	}
	ctrlHdr, ok := wire.ParseControlHeader(sent[0])
	if !ok || ctrlHdr.Type != wire.CtrlDropReq {
		t.Fatalf("expected a DROPREQ control packet, got %+v ok=%v", ctrlHdr, ok)
	}
	drop, err := wire.ParseDropReqCIF(sent[0][wire.HeaderSize:])
	if err != nil {
		t.Fatalf("parse dropreq: %v", err)
	}
	if drop.First != 99 || drop.Last != 99 {
		t.Fatalf("expected DROPREQ(99,99), got %+v", drop)
	}
}

func TestDrainEvictsOldClonesAndProactivelyDropsActiveNAK(t *testing.T) {
	clk := &fakeClock{}
	var sent [][]byte
	s := NewSender(clk, 10_000, 0x1, func(b []byte) error {
		sent = append(sent, b)
		return nil
	})

	if err := s.SendPayload([]byte{1}, 0); err != nil {
		t.Fatalf("send: %v", err)
	}
	seq := s.queue[0].hdr.Sequence

	// A NAK arrives for this sequence but nothing has retransmitted it yet
	// in this test (simulate a lost retransmit by directly recording the
	// range without going through OnNAK's immediate hit path).
	s.activeNAKs = append(s.activeNAKs, nakRange{first: seq, last: seq, addedAt: clk.Now()})

	clk.advance(10_001) // past latency, clone should age out
	sent = nil
	if err := s.Drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(s.queue) != 0 {
		t.Fatalf("expected clone evicted, queue has %d", len(s.queue))
	}
	if len(sent) != 1 {
		t.Fatalf("expected 1 proactive DROPREQ, got %d", len(sent))
	}
	ctrlHdr, ok := wire.ParseControlHeader(sent[0])
	if !ok || ctrlHdr.Type != wire.CtrlDropReq {
		t.Fatalf("expected DROPREQ, got %+v", ctrlHdr)
	}
	drop, _ := wire.ParseDropReqCIF(sent[0][wire.HeaderSize:])
	if drop.First != seq || drop.Last != seq {
		t.Fatalf("expected DROPREQ(%d,%d), got %+v", seq, seq, drop)
	}
}

func TestDrainSilentWhenNoActiveNAK(t *testing.T) {
	clk := &fakeClock{}
	var sent [][]byte
	s := NewSender(clk, 10_000, 0x1, func(b []byte) error {
		sent = append(sent, b)
		return nil
	})
	if err := s.SendPayload([]byte{1}, 0); err != nil {
		t.Fatalf("send: %v", err)
	}

	clk.advance(10_001)
	sent = nil
	if err := s.Drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(sent) != 0 {
		t.Fatalf("expected no DROPREQ without an active NAK, got %d", len(sent))
	}
	if len(s.queue) != 0 {
		t.Fatalf("expected clone evicted regardless, queue has %d", len(s.queue))
	}
}

func TestSendPayloadEncryptsWithActiveSEK(t *testing.T) {
	clk := &fakeClock{}
	var sent [][]byte
	s := newTestSender(clk, &sent)

	var salt [16]byte
	for i := range salt {
		salt[i] = byte(i + 1)
	}
	key := make([]byte, 16)
	for i := range key {
		key[i] = byte(32 - i)
	}
	s.SetKey(salt, key)

	plain := []byte("srt sender payload bytes.......")
	if err := s.SendPayload(plain, 0); err != nil {
		t.Fatalf("send: %v", err)
	}
	hdr, ok := wire.ParseDataHeader(sent[0])
	if !ok || hdr.Enc != wire.EncEven {
		t.Fatalf("expected EncEven, got %+v ok=%v", hdr, ok)
	}
	cipher := append([]byte(nil), sent[0][wire.HeaderSize:]...)
	if bytes.Equal(cipher, plain) {
		t.Fatalf("expected payload to be encrypted")
	}

	iv := wire.DeriveIV(salt, hdr.Sequence)
	if err := wire.CryptCTR(key, iv[:], cipher); err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(cipher, plain) {
		t.Fatalf("expected decrypted payload to match original")
	}
}

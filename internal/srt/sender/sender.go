// Package sender implements the SRT send-side packet pump of spec §4.L:
// sequence assignment, AES-CTR encryption with the active key parity,
// immediate forwarding, and a retransmission buffer drained on NAK or on
// age.
//
// Grounded on the teacher's chunk reassembly counterpart
// (internal/rtmp/chunk), generalized from "hold partial state until a
// message completes" to "hold a sent clone until it ages out or is
// retransmitted". The wire-level concerns (header framing, encryption)
// stay in the sibling wire package exactly as the receiver uses it.
package sender

import (
	"github.com/alxayo/streamengine/internal/core/upump"
	"github.com/alxayo/streamengine/internal/srt/wire"
)

// clone is one retransmission-buffer entry: the header and post-encryption
// body exactly as first sent, so a retransmit only needs to flip the
// retransmit bit and re-encode the header.
type clone struct {
	hdr   wire.DataHeader
	body  []byte
	crSys int64
}

// nakRange is a peer NAK request the sender has received, kept for
// activeNAKTTL whether or not a retransmit already answered it, so a later
// buffer eviction can proactively DROPREQ it instead of waiting for the peer
// to re-NAK
// (spec §4.L supplement: proactive DROPREQ on eviction).
type nakRange struct {
	first, last uint32
	addedAt     int64
}

// Sender is the SRT send-side pipe state.
type Sender struct {
	Latency int64 // ticks
	clock   upump.Clock

	// Send transmits one already-framed wire packet (data or control).
	Send func([]byte) error

	destSocketID uint32
	nextSeq      uint32
	msgNum       uint32

	salt   [16]byte
	encKey []byte // active (even-parity) SEK; nil means send in the clear

	queue      []*clone
	activeNAKs []nakRange
}

// activeNAKTTL bounds how long a received NAK range is remembered for
// proactive-eviction purposes before it is assumed stale and dropped.
const activeNAKTTL = upump.ClockFreq * 5 // 5 seconds, in 27MHz ticks

// NewSender builds a Sender targeting destSocketID, with latencyTicks
// governing how long a sent clone is retained before aging out.
func NewSender(clock upump.Clock, latencyTicks int64, destSocketID uint32, send func([]byte) error) *Sender {
	return &Sender{Latency: latencyTicks, clock: clock, destSocketID: destSocketID, Send: send}
}

// SetKey arms encryption with the negotiated salt and the active-parity
// SEK (spec §4.L: "always uses the currently active key parity, initially
// even"). SetKey(salt, nil) disarms encryption.
func (s *Sender) SetKey(salt [16]byte, sek []byte) {
	s.salt = salt
	s.encKey = sek
}

// SendPayload assigns the next sequence (31-bit wrap), optionally
// encrypts payload in place with the active SEK, frames it as a
// PosOnly data packet, forwards it immediately, and enqueues a clone for
// retransmission (spec §4.L Send).
func (s *Sender) SendPayload(payload []byte, timestamp uint32) error {
	seq := s.nextSeq
	s.nextSeq = (s.nextSeq + 1) & 0x7FFFFFFF
	s.msgNum = (s.msgNum + 1) & 0x03FFFFFF

	body := append([]byte(nil), payload...)
	enc := wire.EncClear
	if s.encKey != nil {
		iv := wire.DeriveIV(s.salt, seq)
		if err := wire.CryptCTR(s.encKey, iv[:], body); err != nil {
			return err
		}
		enc = wire.EncEven
	}

	hdr := wire.DataHeader{
		Sequence:     seq,
		Position:     wire.PosOnly,
		Order:        true,
		Enc:          enc,
		MessageNum:   s.msgNum,
		Timestamp:    timestamp,
		DestSocketID: s.destSocketID,
	}

	now := s.clock.Now()
	s.queue = append(s.queue, &clone{hdr: hdr, body: body, crSys: now})

	return s.Send(append(hdr.Encode(), body...))
}

// Drain removes clones older than latency (spec §4.L: "remove packets
// whose cr_sys is older than now-latency"), intended to be called once a
// second from a timer. Any evicted sequence still covered by an
// unresolved NAK range is DROPREQ'd proactively before being discarded.
func (s *Sender) Drain() error {
	now := s.clock.Now()
	s.expireActiveNAKs(now)

	var kept []*clone
	var droppedFirst, droppedLast uint32
	haveDropped := false

	for _, c := range s.queue {
		if now-c.crSys < s.Latency {
			kept = append(kept, c)
			continue
		}
		if s.coveredByActiveNAK(c.hdr.Sequence) {
			if !haveDropped {
				droppedFirst, droppedLast = c.hdr.Sequence, c.hdr.Sequence
				haveDropped = true
			} else {
				droppedLast = c.hdr.Sequence
			}
		}
	}
	s.queue = kept

	if haveDropped {
		return s.sendDropReq(droppedFirst, droppedLast)
	}
	return nil
}

func (s *Sender) coveredByActiveNAK(seq uint32) bool {
	for _, r := range s.activeNAKs {
		if seqInRange(seq, r.first, r.last) {
			return true
		}
	}
	return false
}

func (s *Sender) expireActiveNAKs(now int64) {
	var kept []nakRange
	for _, r := range s.activeNAKs {
		if now-r.addedAt < activeNAKTTL {
			kept = append(kept, r)
		}
	}
	s.activeNAKs = kept
}

func seqInRange(seq, first, last uint32) bool {
	return !seqLess(seq, first) && !seqLess(last, seq)
}

// seqLess reports whether a precedes b in the 31-bit wraparound sequence
// space (same comparison the receiver uses).
func seqLess(a, b uint32) bool {
	diff := (a - b) & 0x7FFFFFFF
	return diff != 0 && diff >= 0x40000000
}

func (s *Sender) sendDropReq(first, last uint32) error {
	hdr := wire.ControlHeader{
		Type:         wire.CtrlDropReq,
		Timestamp:    uint32(s.clock.Now()),
		DestSocketID: s.destSocketID,
	}
	cif := wire.DropReqCIF{First: first, Last: last}
	return s.Send(append(hdr.Encode(), cif.Encode()...))
}

// Package receiver implements the SRT receive-side reorder buffer, NAK/ACK
// schedulers, RTT estimation, and AES-CTR decryption of spec §4.K.
//
// Grounded on the teacher's chunk reassembly (internal/rtmp/chunk), which
// already holds partial/out-of-order state per stream id in a map and
// drains it in order; generalized here from "reassemble one fragmented
// message" to "reorder a datagram sequence with loss/duplicate/late
// classification and a NAK feedback loop".
package receiver

import (
	"sort"

	"github.com/alxayo/streamengine/internal/core/upump"
)

// packet is one buffered, not-yet-released datagram. present distinguishes
// a genuinely-arrived packet from a gap placeholder independent of payload
// length, so a zero-size data packet (an empty but real payload) isn't
// mistaken for a sequence that never arrived: data alone can't carry that
// distinction since both cases leave it nil/empty.
type packet struct {
	seq        uint32
	data       []byte
	present    bool
	crSys      int64 // arrival clock-ref, ticks
	lastNAK    int64 // ticks, 0 = never NAKed
	retransmit bool
}

// Stats tallies the classification counters spec §4.K/§8 calls for.
type Stats struct {
	Repaired uint64
	Dup      uint64
	Late     uint64
}

// Buffer is the reorder/retransmission buffer indexed by 31-bit sequence
// number (spec §4.K).
type Buffer struct {
	Latency int64 // ticks
	clock   upump.Clock

	expected uint32
	hasFirst bool

	queue []*packet // sorted ascending by seq
	rtt   int64     // ticks
	rttVar int64

	Stats Stats

	ackSent map[uint32]int64 // ack_num -> send time, ticks
	nextAck uint32
}

// NewBuffer builds a Buffer anchored to clock for timestamping arrivals.
func NewBuffer(clock upump.Clock, latencyTicks int64) *Buffer {
	return &Buffer{Latency: latencyTicks, clock: clock, ackSent: make(map[uint32]int64)}
}

// RTT returns the current smoothed RTT estimate, ticks.
func (b *Buffer) RTT() int64 { return b.rtt }

// Insert admits a newly-arrived data packet at sequence seq (spec §4.K
// Insert algorithm).
func (b *Buffer) Insert(seq uint32, data []byte) {
	now := b.clock.Now()
	if !b.hasFirst {
		b.expected = seq
		b.hasFirst = true
	}

	switch {
	case seq == b.expected:
		b.queue = append(b.queue, &packet{seq: seq, data: data, present: true, crSys: now})
		b.expected = seq + 1
	case seqLess(seq, b.expected):
		b.insertOutOfOrder(seq, data, now)
	default: // seq is ahead of expected: a gap opened
		for gap := b.expected; gap != seq; gap++ {
			b.queue = append(b.queue, &packet{seq: gap, lastNAK: now - b.rtt})
		}
		b.queue = append(b.queue, &packet{seq: seq, data: data, present: true, crSys: now})
		b.expected = seq + 1
		b.sortQueue()
	}
}

func (b *Buffer) insertOutOfOrder(seq uint32, data []byte, now int64) {
	if len(b.queue) == 0 {
		return
	}
	first := b.queue[0].seq
	if seqLess(seq, first) {
		b.Stats.Late++
		return
	}
	for _, p := range b.queue {
		if p.seq == seq {
			if p.present {
				b.Stats.Dup++
				return
			}
			p.data = data
			p.present = true
			p.crSys = now
			b.Stats.Repaired++
			return
		}
	}
	b.Stats.Late++
}

func (b *Buffer) sortQueue() {
	sort.Slice(b.queue, func(i, j int) bool { return seqLess(b.queue[i].seq, b.queue[j].seq) })
}

func seqLess(a, b uint32) bool {
	// 31-bit sequence space wraparound comparison: true when a precedes b.
	// (a-b) mod 2^31 in the upper half means a is behind b once unwrapped.
	diff := (a - b) & 0x7FFFFFFF
	return diff != 0 && diff >= 0x40000000
}

// Release returns, in sequence order, every buffered packet whose
// cr_sys + latency - rtt has elapsed, shifting their emit timestamp as
// spec §4.K describes (downstream sees a smoothed stream). Gap
// placeholders (present == false, never arrived) are skipped, not
// released, and remain in the queue to keep the NAK scheduler aware of the
// hole.
func (b *Buffer) Release() []Delivered {
	now := b.clock.Now()
	var out []Delivered
	var remaining []*packet
	for _, p := range b.queue {
		if !p.present {
			remaining = append(remaining, p)
			continue
		}
		if now-p.crSys >= b.Latency-b.rtt {
			out = append(out, Delivered{Seq: p.seq, Data: p.data, EmitShift: b.Latency - b.rtt})
		} else {
			remaining = append(remaining, p)
		}
	}
	b.queue = remaining
	return out
}

// Delivered is a packet released downstream.
type Delivered struct {
	Seq       uint32
	Data      []byte
	EmitShift int64 // ticks to add to the original timestamp
}

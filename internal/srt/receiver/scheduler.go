package receiver

import "github.com/alxayo/streamengine/internal/srt/wire"

// BuildNAK walks the queue for gaps whose last-NAK time is older than
// now - 1.2*rtt, packs contiguous ranges (high bit on the first sequence)
// and singletons, and updates each included sequence's last-NAK time
// (spec §4.K NAK scheduler).
func (b *Buffer) BuildNAK() []uint32 {
	now := b.clock.Now()
	threshold := now - (12*b.rtt)/10

	var words []uint32
	i := 0
	for i < len(b.queue) {
		p := b.queue[i]
		if p.present || p.lastNAK >= threshold {
			i++
			continue
		}
		start := i
		for i < len(b.queue) && !b.queue[i].present && b.queue[i].lastNAK < threshold {
			b.queue[i].lastNAK = now
			i++
		}
		end := i - 1
		if end == start {
			words = append(words, b.queue[start].seq)
		} else {
			words = append(words, b.queue[start].seq|wire.NakRangeHighBit, b.queue[end].seq)
		}
	}
	return words
}

// BuildAck constructs the Full ACK CIF of spec §4.K: last in-order
// acknowledged sequence, RTT/variance, an estimated rate, and the buffer
// availability sentinel (spec Design Notes §9: a fixed non-zero value to
// avoid the peer treating zero as a stall). It records (ackNum, now) so a
// returning ACKACK can be matched back to a send time.
func (b *Buffer) BuildAck(lastAckSeq uint32, rate wire.AckCIF) wire.AckCIF {
	now := b.clock.Now()
	b.nextAck++
	b.ackSent[b.nextAck] = now

	return wire.AckCIF{
		LastAckSeq:   lastAckSeq,
		RTT:          uint32(b.rtt),
		RTTVariance:  uint32(b.rttVar),
		BufferAvail:  8192, // sentinel, see Design Notes §9
		PacketRate:   rate.PacketRate,
		LinkCapacity: rate.PacketRate * 10,
		ByteRate:     rate.ByteRate,
	}
}

// LastAckNum returns the ack sequence number most recently assigned by
// BuildAck, for the caller to embed in the outgoing ACK packet header.
func (b *Buffer) LastAckNum() uint32 { return b.nextAck }

// OnAckAck matches ackNum to its recorded send time and updates the RTT
// estimate: rtt = (7*rtt + sample)/8, var = (3*var + |sample-rtt|)/4
// (spec §4.K ACKACK).
func (b *Buffer) OnAckAck(ackNum uint32) {
	sentAt, ok := b.ackSent[ackNum]
	if !ok {
		return
	}
	delete(b.ackSent, ackNum)
	now := b.clock.Now()
	sample := now - sentAt
	if b.rtt == 0 {
		b.rtt = sample
	} else {
		b.rtt = (7*b.rtt + sample) / 8
	}
	diff := sample - b.rtt
	if diff < 0 {
		diff = -diff
	}
	b.rttVar = (3*b.rttVar + diff) / 4
}

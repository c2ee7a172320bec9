package sender

import "github.com/alxayo/streamengine/internal/srt/wire"

// OnNAK handles an incoming NAK CIF (already split into words by
// wire.ParseNAK): for each requested sequence, retransmits the matching
// clone with its retransmit bit set, or — if the clone has already aged
// out of the queue — coalesces the miss into a DROPREQ so the peer stops
// re-asking (spec §4.L "On incoming NAK from peer"). Each requested range
// is also remembered as an active NAK so a later buffer eviction can
// proactively DROPREQ it instead of waiting for a repeat NAK.
func (s *Sender) OnNAK(words []uint32) error {
	now := s.clock.Now()

	var missFirst, missLast uint32
	haveMiss := false

	for i := 0; i < len(words); i++ {
		w := words[i]
		var first, last uint32
		if w&wire.NakRangeHighBit != 0 {
			first = w &^ wire.NakRangeHighBit
			i++
			last = words[i]
		} else {
			first, last = w, w
		}

		s.activeNAKs = append(s.activeNAKs, nakRange{first: first, last: last, addedAt: now})

		for seq := first; ; seq++ {
			if c := s.findClone(seq); c != nil {
				if err := s.retransmit(c); err != nil {
					return err
				}
			} else if !haveMiss {
				missFirst, missLast = seq, seq
				haveMiss = true
			} else if seq == missLast+1 {
				missLast = seq
			} else {
				if err := s.sendDropReq(missFirst, missLast); err != nil {
					return err
				}
				missFirst, missLast = seq, seq
			}
			if seq == last {
				break
			}
		}
	}

	if haveMiss {
		return s.sendDropReq(missFirst, missLast)
	}
	return nil
}

func (s *Sender) findClone(seq uint32) *clone {
	for _, c := range s.queue {
		if c.hdr.Sequence == seq {
			return c
		}
	}
	return nil
}

func (s *Sender) retransmit(c *clone) error {
	c.hdr.Retransmit = true
	c.crSys = s.clock.Now()
	return s.Send(append(c.hdr.Encode(), c.body...))
}

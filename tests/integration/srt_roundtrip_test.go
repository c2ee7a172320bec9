package integration

import (
	"bytes"
	"testing"

	"github.com/alxayo/streamengine/internal/srt/receiver"
	"github.com/alxayo/streamengine/internal/srt/sender"
	"github.com/alxayo/streamengine/internal/srt/wire"
)

// sharedClock is a manually-advanced upump.Clock shared by a Sender and a
// Buffer in the same test, standing in for the two sides of a link tied
// together by nothing but latency.
type sharedClock struct{ now int64 }

func (c *sharedClock) Now() int64      { return c.now }
func (c *sharedClock) advance(t int64) { c.now += t }

// TestSRTSenderToReceiverRoundTrip frames three payloads with
// internal/srt/sender, hands the raw datagrams to internal/srt/receiver's
// reorder buffer as if they arrived over UDP in order, and checks they
// come back out once the configured latency has elapsed.
func TestSRTSenderToReceiverRoundTrip(t *testing.T) {
	clk := &sharedClock{}
	const latencyTicks = 50_000

	var onWire [][]byte
	s := sender.NewSender(clk, latencyTicks, 0x1234, func(b []byte) error {
		onWire = append(onWire, append([]byte(nil), b...))
		return nil
	})

	payloads := [][]byte{[]byte("alpha"), []byte("bravo"), []byte("charlie")}
	for i, p := range payloads {
		if err := s.SendPayload(p, uint32(i)); err != nil {
			t.Fatalf("SendPayload(%d): %v", i, err)
		}
	}
	if len(onWire) != len(payloads) {
		t.Fatalf("expected %d datagrams on the wire, got %d", len(payloads), len(onWire))
	}

	buf := receiver.NewBuffer(clk, latencyTicks)
	for _, pkt := range onWire {
		if wire.IsControl(pkt) {
			t.Fatalf("unexpected control packet on a data-only link")
		}
		hdr, ok := wire.ParseDataHeader(pkt)
		if !ok {
			t.Fatalf("failed to parse data header")
		}
		buf.Insert(hdr.Sequence, append([]byte(nil), pkt[wire.HeaderSize:]...))
	}

	if got := buf.Release(); len(got) != 0 {
		t.Fatalf("expected nothing released before latency elapses, got %d", len(got))
	}

	clk.advance(latencyTicks)
	delivered := buf.Release()
	if len(delivered) != len(payloads) {
		t.Fatalf("expected %d delivered packets, got %d", len(payloads), len(delivered))
	}
	for i, want := range payloads {
		if delivered[i].Seq != uint32(i) {
			t.Fatalf("delivered[%d].Seq = %d, want %d", i, delivered[i].Seq, i)
		}
		if !bytes.Equal(delivered[i].Data, want) {
			t.Fatalf("delivered[%d].Data = %q, want %q", i, delivered[i].Data, want)
		}
	}
}

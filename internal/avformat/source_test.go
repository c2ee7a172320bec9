package avformat

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alxayo/streamengine/internal/core/deal"
	"github.com/alxayo/streamengine/internal/core/request"
	"github.com/alxayo/streamengine/internal/core/ubuf"
	"github.com/alxayo/streamengine/internal/core/upipe"
	"github.com/alxayo/streamengine/internal/core/upump"
	"github.com/alxayo/streamengine/internal/core/uref"
)

type fakeDemuxer struct {
	streams []StreamInfo
	packets []Packet
	idx     int
}

func (d *fakeDemuxer) Probe() ([]StreamInfo, error) { return d.streams, nil }

func (d *fakeDemuxer) ReadPacket() (*Packet, error) {
	if d.idx >= len(d.packets) {
		return nil, io.EOF
	}
	p := d.packets[d.idx]
	d.idx++
	return &p, nil
}

func (d *fakeDemuxer) Close() error { return nil }

type collectProbe struct {
	mu     sync.Mutex
	events []request.Event
}

func (p *collectProbe) Handle(e request.Event) bool {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	return true
}

func (p *collectProbe) count(t request.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for condition")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func newTestUbufManager() *ubuf.Manager {
	return ubuf.NewBlockManager(nil, 0, 0, 1, 0)
}

func TestSourceProbePublishesSplitUpdatePerStream(t *testing.T) {
	demux := &fakeDemuxer{
		streams: []StreamInfo{
			{Index: 0, Kind: StreamVideoCoded, Codec: "h264", HSize: 1280, VSize: 720, FPSNum: 30, FPSDen: 1, TimeBaseNum: 1, TimeBaseDen: 90000},
			{Index: 1, Kind: StreamAudioCoded, Codec: "aac", SampleRate: 48000, Channels: 2, Planes: 1, SampleSize: 4, TimeBaseNum: 1, TimeBaseDen: 48000},
		},
	}
	mgr := upump.New(nil)
	defer mgr.Stop()
	dl := deal.New()

	probe := &collectProbe{}
	src := NewSource(demux, mgr, newTestUbufManager(), dl)
	src.Base = upipe.NewBase(nil, probe, nil)

	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitUntil(t, func() bool { return probe.count(request.EventSplitUpdate) == 2 })
	if src.Subs().Len() != 2 {
		t.Fatalf("Subs().Len() = %d, want 2", src.Subs().Len())
	}
}

func TestSourceEmitsPacketsWithAnchoredDTS(t *testing.T) {
	demux := &fakeDemuxer{
		streams: []StreamInfo{
			{Index: 0, Kind: StreamVideoRaw, HSize: 640, VSize: 480, FPSNum: 25, FPSDen: 1, TimeBaseNum: 1, TimeBaseDen: 90000},
		},
		packets: []Packet{
			{StreamIndex: 0, Data: []byte("frame1"), DTS: 90000, Duration: 3600, KeyFrame: true},
			{StreamIndex: 0, Data: []byte("frame2"), DTS: 93600, Duration: 3600},
		},
	}
	mgr := upump.New(nil)
	defer mgr.Stop()
	dl := deal.New()

	src := NewSource(demux, mgr, newTestUbufManager(), dl)

	sink := newCaptureSink()

	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitUntil(t, func() bool { return src.Subs().Len() == 1 })

	sub := src.Subs().Iterate(nil)
	cmd := &upipe.Command{Kind: upipe.CmdSetOutput, Output: sink}
	if err := sub.Control(cmd); err != nil {
		t.Fatalf("SetOutput: %v", err)
	}

	waitUntil(t, func() bool { return len(sink.snapshot()) == 2 })

	got := sink.snapshot()
	wantDelta := 3600 * upump.ClockFreq / 90000
	if got[1]-got[0] != wantDelta {
		t.Fatalf("DTS delta = %d, want %d (got %v)", got[1]-got[0], wantDelta, got)
	}
	if got[0] != AVClockMin+PCROffset {
		t.Fatalf("first packet DTS = %d, want anchored to AVClockMin+PCROffset (%d)", got[0], AVClockMin+PCROffset)
	}
}

// captureSink is a minimal upipe.Pipe recording the DomainOrig DTS of every
// uref it receives, standing in for a decoder or sink in these tests. It
// must accept a flow def (spec §4.D: SET_FLOW_DEF before the first data
// uref) to become a valid output.
type captureSink struct {
	*upipe.Base
	mu  sync.Mutex
	dts []int64
}

func newCaptureSink() *captureSink {
	s := &captureSink{}
	s.Base = upipe.NewBase(nil, nil, nil)
	return s
}

func (c *captureSink) Control(cmd *upipe.Command) error {
	if handled, err := c.Base.HandleCommon(cmd, nil); handled {
		return err
	}
	if cmd.Kind == upipe.CmdSetFlowDef {
		return nil
	}
	return nil
}

func (c *captureSink) Input(u *uref.Uref) error {
	dts, _ := u.Dts(uref.DomainOrig)
	c.mu.Lock()
	c.dts = append(c.dts, dts)
	c.mu.Unlock()
	u.Free()
	return nil
}

func (c *captureSink) snapshot() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int64, len(c.dts))
	copy(out, c.dts)
	return out
}

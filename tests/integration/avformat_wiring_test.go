package integration

import (
	"io"
	"testing"
	"time"

	"github.com/alxayo/streamengine/internal/avformat"
	"github.com/alxayo/streamengine/internal/core/deal"
	"github.com/alxayo/streamengine/internal/core/ubuf"
	"github.com/alxayo/streamengine/internal/core/upipe"
	"github.com/alxayo/streamengine/internal/core/upump"
)

// fakeDemuxer and fakeMuxer stand in for a real container library on
// either side of the graph: avformat only defines the contract (spec §1
// keeps codec/container libraries out of scope), so a full source→sink
// wiring test has to supply its own.
type fakeDemuxer struct {
	streams []avformat.StreamInfo
	packets []avformat.Packet
	idx     int
}

func (d *fakeDemuxer) Probe() ([]avformat.StreamInfo, error) { return d.streams, nil }

func (d *fakeDemuxer) ReadPacket() (*avformat.Packet, error) {
	if d.idx >= len(d.packets) {
		return nil, io.EOF
	}
	p := d.packets[d.idx]
	d.idx++
	return &p, nil
}

func (d *fakeDemuxer) Close() error { return nil }

type fakeMuxer struct {
	headerWritten bool
	written       []avformat.Packet
}

func (m *fakeMuxer) WriteHeader(streams []avformat.StreamInfo) error {
	m.headerWritten = true
	return nil
}

func (m *fakeMuxer) WritePacket(streamIndex int, pkt *avformat.Packet) error {
	m.written = append(m.written, *pkt)
	return nil
}

func (m *fakeMuxer) Close() error { return nil }

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

// TestAvformatSourceToSinkWiring builds a one-stream demux source and a
// matching mux sink, attaches the source's elementary-stream sub-pipe
// directly to the sink's sub-pipe of the same index, and checks every
// demuxed packet reaches the muxer in order.
func TestAvformatSourceToSinkWiring(t *testing.T) {
	streams := []avformat.StreamInfo{
		{Index: 0, Kind: avformat.StreamVideoRaw, HSize: 640, VSize: 480, FPSNum: 25, FPSDen: 1, TimeBaseNum: 1, TimeBaseDen: 90000},
	}
	demux := &fakeDemuxer{
		streams: streams,
		packets: []avformat.Packet{
			{StreamIndex: 0, Data: []byte("frame1"), DTS: 90000, Duration: 3600, KeyFrame: true},
			{StreamIndex: 0, Data: []byte("frame2"), DTS: 93600, Duration: 3600},
			{StreamIndex: 0, Data: []byte("frame3"), DTS: 97200, Duration: 3600},
		},
	}
	mux := &fakeMuxer{}

	mgr := upump.New(nil)
	defer mgr.Stop()
	dl := deal.New()
	ubufMgr := ubuf.NewBlockManager(nil, 0, 0, 1, 0)

	src := avformat.NewSource(demux, mgr, ubufMgr, dl)
	sink := avformat.NewSink(mux, streams, false)

	if err := src.Start(); err != nil {
		t.Fatalf("source Start: %v", err)
	}
	waitUntil(t, func() bool { return src.Subs().Len() == 1 })

	sourceSub := src.Subs().Iterate(nil)
	if err := sourceSub.Control(&upipe.Command{Kind: upipe.CmdSetOutput, Output: sink.Sub(0)}); err != nil {
		t.Fatalf("wire source sub to sink sub: %v", err)
	}

	waitUntil(t, func() bool { return len(mux.written) == 3 })

	if !mux.headerWritten {
		t.Fatalf("expected WriteHeader to have been called before packets were written")
	}
	for i, want := range []string{"frame1", "frame2", "frame3"} {
		if string(mux.written[i].Data) != want {
			t.Fatalf("packet %d: got %q, want %q", i, mux.written[i].Data, want)
		}
	}
}

// Package avformat implements the demux/mux bridge of spec §4.G/§4.H: a
// source pipe that probes an external demuxer under the deal (§4.E) and
// fans its streams out one sub-pipe per elementary stream, and a sink pipe
// that merges several sub-pipes' queues back into one muxer by smallest
// next-DTS.
//
// Demuxer and Muxer are injected contracts rather than a binding to any
// concrete library — spec §1 keeps actual codec/container libraries out of
// scope, so this package only defines the shape a real demuxer/muxer
// adapter must satisfy.
package avformat

import "io"

// StreamKind classifies an elementary stream the way spec §4.G's flow
// definition synthesis does: audio/video each split into raw vs. coded,
// plus subtitle and opaque data.
type StreamKind int

const (
	StreamVideoRaw StreamKind = iota
	StreamVideoCoded
	StreamAudioRaw
	StreamAudioCoded
	StreamSubtitle
	StreamData
)

// StreamInfo describes one elementary stream as probed from the demuxer,
// enough to synthesize a flow definition (spec §3/§4.B).
type StreamInfo struct {
	Index int
	Kind  StreamKind
	Codec string // coded streams: short codec name (e.g. "h264", "aac"); empty for raw

	// Picture attributes (StreamVideoRaw/StreamVideoCoded).
	HSize, VSize   int
	FPSNum, FPSDen int64

	// Sound attributes (StreamAudioRaw/StreamAudioCoded).
	SampleRate uint64
	Channels   int
	Planes     int
	SampleSize int

	// TimeBase expresses Packet.DTS/PTS/Duration in TimeBaseNum/TimeBaseDen
	// seconds per tick, as the demuxer reports them (e.g. 1/90000 for an
	// MPEG-TS PES stream).
	TimeBaseNum, TimeBaseDen int64
}

// Packet is one demuxed (or, for the sink, about-to-be-muxed) elementary
// stream unit, timestamped in its stream's own TimeBase.
type Packet struct {
	StreamIndex int
	Data        []byte
	DTS         int64
	PTS         int64
	Duration    int64
	KeyFrame    bool
}

// Demuxer bridges an external container/demux library. Probe runs once,
// under the deal (spec §4.E: "non-reentrant native libraries... are
// serialized by a process-wide deal"); ReadPacket is called repeatedly from
// an idler watcher and returns io.ErrUnexpectedEOF-free io.EOF once the
// container is exhausted.
type Demuxer interface {
	Probe() ([]StreamInfo, error)
	ReadPacket() (*Packet, error)
	Close() error
}

// ErrNoMorePackets is an alias kept for readability at call sites; Demuxer
// implementations should return io.EOF directly.
var ErrNoMorePackets = io.EOF

// Muxer bridges an external container/mux library. WriteHeader is called
// once, after every sub-pipe has produced its first queued packet (spec
// §4.H: "on first packet, the header is written").
type Muxer interface {
	WriteHeader(streams []StreamInfo) error
	WritePacket(streamIndex int, pkt *Packet) error
	Close() error
}

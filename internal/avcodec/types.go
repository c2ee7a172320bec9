// Package avcodec implements the decoder pipe of spec §4.I: it accepts
// coded block urefs, drives an injected Codec under the deal (§4.E) to open
// and decode them, and supplies the codec with buffers allocated straight
// from the pipe's own ubuf manager (the "direct rendering" hook) instead of
// copying out of codec-owned memory.
//
// Codec is an injected contract rather than a binding to a concrete codec
// library — spec §1 keeps actual codec libraries out of scope.
package avcodec

import "github.com/alxayo/streamengine/internal/core/ubuf"

// FrameKind distinguishes the two direct-rendering allocation shapes spec
// §4.I describes.
type FrameKind int

const (
	FramePicture FrameKind = iota
	FrameSound
)

// FrameAllocator is the direct-rendering buffer hook: a Codec calls back
// into it from inside Decode/Flush to obtain pipe-managed memory to decode
// into, rather than handing the pipe its own buffer for a copy.
//
// AllocatePicture takes the macroblock-aligned size the codec needs to
// write into; the Decoder pipe later applies the logical crop to the
// frame's reported HSize/VSize by carrying the smaller size in the flow
// definition while the buffer itself keeps the aligned (possibly larger)
// dimensions — ubuf's Picture has no separate crop-window field, so the
// flow def's logical size is the crop, matching how a real decoder's
// padded reference frames are windowed by its reported display rectangle.
type FrameAllocator interface {
	AllocatePicture(alignedHSize, alignedVSize int) (*ubuf.Ubuf, error)
	AllocateSound(samples int, rate uint32, channels, sampleSize int) (*ubuf.Ubuf, error)
}

// Frame is one decoded picture or sound buffer, as handed back by Codec.
type Frame struct {
	Kind FrameKind
	Buf  *ubuf.Ubuf

	// PTS is the frame's presentation timestamp in engine 27 MHz ticks, or
	// uref.Unset if the codec did not carry one for this frame (spec §4.I:
	// "if program PTS is missing, it is set to next_pts").
	PTS      int64
	KeyFrame bool

	// Coded/logical size (picture) or format (sound). FormatChanged marks
	// a pixel/sample format the Decoder pipe has not seen yet and must
	// publish a fresh flow definition for.
	HSize, VSize  int
	SampleRate    uint64
	Channels      int
	SampleSize    int
	FormatChanged bool
}

// Packet is one coded input unit fed to Codec.Decode, timestamped in
// engine 27 MHz ticks (the avformat source upstream already normalizes
// every stream's native time_base into this single domain, so no further
// rate conversion is needed here — spec §4.I's "rate" multiplier reduces
// to identity once timestamps share one clock).
type Packet struct {
	Data []byte
	DTS  int64
	PTS  int64 // uref.Unset if the container didn't carry one
}

// Codec bridges an external decoding library. Open is expected to be slow
// and/or non-reentrant — the Decoder pipe always calls it under a deal
// (spec §4.E).
type Codec interface {
	// Open prepares the codec context for a "block.<name>." coded flow
	// definition string.
	Open(codedFlowDef string) error
	// Decode feeds one input packet. It may return (nil, nil) if the codec
	// needs more input before it can produce a frame (e.g. B-frame
	// reordering, or bitstream parsing not yet at a frame boundary).
	Decode(pkt *Packet, alloc FrameAllocator) (*Frame, error)
	// HasDelayedFrames reports whether Close must flush with null packets
	// first (spec §4.I).
	HasDelayedFrames() bool
	// Flush drains one buffered frame with a null packet, or (nil, nil)
	// once exhausted.
	Flush(alloc FrameAllocator) (*Frame, error)
	Close() error
}

package main

import (
	"bufio"
	"fmt"
	"io"

	"github.com/alxayo/streamengine/internal/core/request"
	"github.com/alxayo/streamengine/internal/core/ubuf"
	"github.com/alxayo/streamengine/internal/core/upipe"
	"github.com/alxayo/streamengine/internal/core/uref"
)

// interleaveSound packs a planar float32 sound uref's channel planes back
// into one interleaved byte slice, the wire layout both the SRT sink and
// the stdout sink send downstream. Returns nil for anything that isn't a
// sound uref with data.
func interleaveSound(u *uref.Uref, channels, sampleSize int) []byte {
	if u.Ubuf == nil || u.Ubuf.Kind != ubuf.KindSound {
		return nil
	}
	samples := u.Ubuf.Sound.Samples
	if samples == 0 {
		return nil
	}
	out := make([]byte, samples*channels*sampleSize)
	for ch := 0; ch < channels; ch++ {
		plane, _, err := u.Ubuf.MapRead(fmt.Sprintf("ch%d", ch))
		if err != nil {
			continue
		}
		for i := 0; i < samples; i++ {
			dstOff := i*channels*sampleSize + ch*sampleSize
			srcOff := i * sampleSize
			if srcOff+sampleSize > len(plane) {
				break
			}
			copy(out[dstOff:dstOff+sampleSize], plane[srcOff:srcOff+sampleSize])
		}
	}
	return out
}

// stdoutSink writes the crossblender's output as raw interleaved PCM to a
// writer (stdout in normal operation), for local testing without a UDP
// peer.
type stdoutSink struct {
	*upipe.Base
	w          *bufio.Writer
	channels   int
	sampleSize int
}

func newStdoutSink(probe *request.Chain, w io.Writer, channels, sampleSize int) *stdoutSink {
	s := &stdoutSink{w: bufio.NewWriter(w), channels: channels, sampleSize: sampleSize}
	s.Base = upipe.NewBase(probe, nil, nil)
	return s
}

func (s *stdoutSink) Control(cmd *upipe.Command) error {
	if handled, err := s.Base.HandleCommon(cmd, nil); handled {
		return err
	}
	if cmd.Kind == upipe.CmdSetFlowDef {
		return nil
	}
	return fmt.Errorf("enginectl: stdout sink unhandled command %s", cmd.Kind)
}

func (s *stdoutSink) Input(u *uref.Uref) error {
	defer u.Free()
	payload := interleaveSound(u, s.channels, s.sampleSize)
	if payload == nil {
		return nil
	}
	_, err := s.w.Write(payload)
	return err
}

func (s *stdoutSink) Flush() error { return s.w.Flush() }

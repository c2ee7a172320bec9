package main

import (
	"fmt"

	"github.com/alxayo/streamengine/internal/audiocont"
	"github.com/alxayo/streamengine/internal/core/flowdef"
	"github.com/alxayo/streamengine/internal/core/request"
	"github.com/alxayo/streamengine/internal/core/ubuf"
	"github.com/alxayo/streamengine/internal/core/upipe"
	"github.com/alxayo/streamengine/internal/core/upump"
	"github.com/alxayo/streamengine/internal/core/uref"
)

// pcmBridge sits between a raw-byte source (httpsrc, or the SRT data-plane
// adapter in this package) and one of the crossblender's named inputs: it
// deinterleaves a block of little-endian float32 PCM into the crossblender's
// planar sound representation. The crossblender's sound format is fixed by
// the graph's configuration rather than negotiated, so the bridge forwards
// data directly to the target input sub-pipe instead of going through an
// OutputHelper flow-def handshake.
type pcmBridge struct {
	*upipe.Base
	channels   int
	sampleSize int
	rate       uint32
	clock      upump.Clock
	ubufMgr    *ubuf.Manager
	target     upipe.Pipe // the crossblender's AddInput sub-pipe
}

func newPCMBridge(probe *request.Chain, clock upump.Clock, rate uint32, channels int, target upipe.Pipe) *pcmBridge {
	b := &pcmBridge{channels: channels, sampleSize: audiocont.DefaultSampleSize, rate: rate, clock: clock, target: target}
	b.Base = upipe.NewBase(probe, nil, nil)

	m := ubuf.NewSoundManager(nil)
	for ch := 0; ch < channels; ch++ {
		m.RegisterPlane(ubuf.PlaneDef{Name: fmt.Sprintf("ch%d", ch), HSub: 1, VSub: 1})
	}
	b.ubufMgr = m
	return b
}

func (b *pcmBridge) Control(cmd *upipe.Command) error {
	if handled, err := b.Base.HandleCommon(cmd, nil); handled {
		return err
	}
	if cmd.Kind == upipe.CmdSetFlowDef {
		return nil
	}
	return fmt.Errorf("enginectl: pcm bridge unhandled command %s", cmd.Kind)
}

// Input deinterleaves one block of raw PCM bytes into a sound uref and
// forwards it to the target crossblender input.
func (b *pcmBridge) Input(u *uref.Uref) error {
	defer u.Free()
	if u.Ubuf == nil || u.Ubuf.Kind != ubuf.KindBlock {
		return nil
	}
	data, _, err := u.Ubuf.MapRead("")
	if err != nil {
		return err
	}
	frameSize := b.channels * b.sampleSize
	if frameSize == 0 {
		return nil
	}
	samples := len(data) / frameSize
	if samples == 0 {
		return nil
	}

	out, err := b.ubufMgr.AllocateSound(samples, b.rate, b.sampleSize)
	if err != nil {
		return err
	}
	for ch := 0; ch < b.channels; ch++ {
		plane, _, err := out.MapWrite(fmt.Sprintf("ch%d", ch))
		if err != nil {
			return err
		}
		for i := 0; i < samples; i++ {
			frameOff := i*frameSize + ch*b.sampleSize
			copy(plane[i*b.sampleSize:(i+1)*b.sampleSize], data[frameOff:frameOff+b.sampleSize])
		}
	}

	now := b.clock.Now()
	outU := uref.NewData(out)
	outU.SetPts(uref.DomainSystem, now)
	outU.Dict.SetInt(flowdef.KeyDuration, int64(samples)*upump.ClockFreq/int64(b.rate))
	return b.target.Input(outU)
}

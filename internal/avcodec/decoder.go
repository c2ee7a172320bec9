package avcodec

import (
	"fmt"

	"github.com/alxayo/streamengine/internal/core/deal"
	"github.com/alxayo/streamengine/internal/core/flowdef"
	pipeerrors "github.com/alxayo/streamengine/internal/errors"
	"github.com/alxayo/streamengine/internal/core/request"
	"github.com/alxayo/streamengine/internal/core/ubuf"
	"github.com/alxayo/streamengine/internal/core/upipe"
	"github.com/alxayo/streamengine/internal/core/upump"
	"github.com/alxayo/streamengine/internal/core/uref"
)

func alignUp(v, align int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// Decoder is the avcodec decoder pipe (spec §4.I).
type Decoder struct {
	*upipe.Base
	out *upipe.OutputHelper
	in  *upipe.InputHelper

	codec Codec
	mgr   *upump.Manager
	dl    *deal.Deal

	dealWatcher *deal.Watcher
	opened      bool
	opening     bool

	codedFlowDef string

	ubufMgr  *ubuf.Manager
	channels int

	outFlowDefSent bool

	// Timestamp rebase state (spec §4.I).
	nextPTS, lastPTS         int64
	haveNextPTS, haveLastPTS bool
	iframeRAP, indexRAP      int64
	ticksPerFrame            int64

	// Anchors carried from the input uref currently being processed, used
	// by emitFrame and by Flush's null-packet draining.
	lastDTS, lastDTSSys int64
}

// NewDecoder builds a Decoder driving codec, sharing mgr's event loop and
// serialized against other non-reentrant codec opens by dl. ticksPerFrame
// seeds the picture-path duration fallback (spec §4.I: "duration from
// ticks_per_frame and time_base"); sound durations are always derived from
// the sample count, and with 0 every picture frame gets a duration of 0.
func NewDecoder(codec Codec, mgr *upump.Manager, dl *deal.Deal, ticksPerFrame int64) *Decoder {
	d := &Decoder{codec: codec, mgr: mgr, dl: dl, ticksPerFrame: ticksPerFrame}
	d.Base = upipe.NewBase(nil, nil, nil)
	d.out = upipe.NewOutputHelper(d.Base)
	d.in = upipe.NewInputHelper(0, d.process)
	return d
}

func (d *Decoder) Control(cmd *upipe.Command) error {
	if handled, err := d.Base.HandleCommon(cmd, d.out); handled {
		return err
	}
	if cmd.Kind == upipe.CmdSetFlowDef {
		return d.setFlowDef(cmd.FlowDef)
	}
	return fmt.Errorf("avcodec: decoder unhandled command %s", cmd.Kind)
}

// setFlowDef records the coded flow def spec §4.I requires
// ("block.<codec>.") and, on the first one, starts a deal-guarded codec
// open; input urefs arriving before the codec is open are buffered by the
// §4.D input helper rather than dropped.
func (d *Decoder) setFlowDef(def *uref.Uref) error {
	if !flowdef.MatchesPrefix(def, flowdef.ClassBlock) {
		return pipeerrors.NewPipeError(pipeerrors.CodeInvalid, "decoder.set_flow_def", nil)
	}
	d.codedFlowDef = flowdef.Def(def)
	if d.opened || d.opening {
		return nil
	}
	d.opening = true
	w, err := d.dl.AllocWatcher(d.mgr, d.attemptOpen)
	if err != nil {
		return pipeerrors.NewPipeError(pipeerrors.CodeUpump, "decoder.set_flow_def", err)
	}
	d.dealWatcher = w
	d.attemptOpen()
	return nil
}

func (d *Decoder) attemptOpen() {
	if !d.dl.Grab() {
		d.dealWatcher.Wait()
		return
	}
	defer d.dl.Yield(d.dealWatcher)

	if err := d.codec.Open(d.codedFlowDef); err != nil {
		d.Throw(request.Event{Type: request.EventFatal, Code: request.CodeExternal, Message: err.Error()})
		return
	}
	d.opened = true
	d.opening = false
	if err := d.in.Drain(); err != nil {
		d.Throw(request.Event{Type: request.EventError, Code: request.CodeExternal, Message: err.Error()})
	}
}

// Input implements upipe.Pipe; a coded packet is processed immediately
// once the codec is open, or held until it is.
func (d *Decoder) Input(u *uref.Uref) error {
	if !d.opened {
		d.in.Hold(u)
		return nil
	}
	return d.in.Submit(u)
}

func (d *Decoder) process(u *uref.Uref) error {
	dts, _ := u.Dts(uref.DomainOrig)
	dtsSys, _ := u.Cr(uref.DomainSystem)
	pts, hasPTS := u.Pts(uref.DomainOrig)
	if !hasPTS {
		pts = uref.Unset
	}
	data, _, err := u.Ubuf.MapRead("")
	if err != nil {
		u.Free()
		return err
	}
	pkt := &Packet{Data: data, DTS: dts, PTS: pts}
	u.Free()

	d.lastDTS, d.lastDTSSys = dts, dtsSys

	frame, err := d.codec.Decode(pkt, d)
	if err != nil {
		d.Throw(request.Event{Type: request.EventError, Code: request.CodeExternal, Message: err.Error()})
		return err
	}
	if frame == nil {
		return nil
	}
	return d.emitFrame(frame)
}

// emitFrame applies spec §4.I's timestamp rebase rules and publishes the
// decoded buffer downstream.
func (d *Decoder) emitFrame(f *Frame) error {
	if f.KeyFrame {
		d.iframeRAP = d.lastDTS
		d.indexRAP = 0
	} else {
		d.indexRAP++
	}

	pts := f.PTS
	switch {
	case pts == uref.Unset:
		if d.haveNextPTS {
			pts = d.nextPTS
		} else {
			pts = d.lastDTS
		}
	case d.haveLastPTS && pts <= d.lastPTS:
		pts = d.lastPTS + 1
	}
	d.lastPTS = pts
	d.haveLastPTS = true

	sysPTS := d.lastDTSSys + (pts - d.lastDTS)

	dur := d.frameDuration(f)
	d.nextPTS = pts + dur
	d.haveNextPTS = true

	u := uref.NewData(f.Buf)
	u.SetDts(uref.DomainOrig, d.lastDTS)
	u.SetPts(uref.DomainOrig, pts)
	u.SetPts(uref.DomainSystem, sysPTS)
	u.Dict.SetInt(flowdef.KeyDuration, dur)
	if f.KeyFrame {
		u.Dict.SetSmallUnsigned(flowdef.KeyFrame, 1)
	}

	var def *uref.Uref
	if !d.outFlowDefSent || f.FormatChanged {
		def = d.flowDefFor(f)
		d.outFlowDefSent = true
	}
	if err := d.out.Emit(u, def); err != nil {
		u.Free()
		return err
	}
	return nil
}

func (d *Decoder) frameDuration(f *Frame) int64 {
	switch f.Kind {
	case FrameSound:
		if f.SampleRate == 0 || f.Buf == nil || f.Buf.Sound == nil {
			return 0
		}
		return int64(f.Buf.Sound.Samples) * upump.ClockFreq / int64(f.SampleRate)
	default:
		return d.ticksPerFrame
	}
}

func (d *Decoder) flowDefFor(f *Frame) *uref.Uref {
	switch f.Kind {
	case FrameSound:
		def := flowdef.New(flowdef.ClassSoundF32)
		flowdef.SetSoundAttrs(def, f.SampleRate, f.Channels, f.Channels, f.SampleSize)
		return def
	default:
		def := flowdef.New(flowdef.ClassPic)
		flowdef.SetPictureAttrs(def, f.HSize, f.VSize, 0, 1)
		return def
	}
}

// AllocatePicture implements FrameAllocator, registering a fresh
// (re)configured picture ubuf manager on the first call or whenever the
// caller has swapped kinds, matching spec §4.I's "reallocates its ubuf
// manager via a flow-format request" on format change.
func (d *Decoder) AllocatePicture(alignedHSize, alignedVSize int) (*ubuf.Ubuf, error) {
	if d.ubufMgr == nil || d.ubufMgr.Kind != ubuf.KindPicture {
		m := ubuf.NewPictureManager(nil)
		m.RegisterPlane(ubuf.PlaneDef{Name: "y8", HSub: 1, VSub: 1})
		m.RegisterPlane(ubuf.PlaneDef{Name: "u8", HSub: 2, VSub: 2})
		m.RegisterPlane(ubuf.PlaneDef{Name: "v8", HSub: 2, VSub: 2})
		d.ubufMgr = m
	}
	return d.ubufMgr.AllocatePicture(alignUp(alignedHSize, 16), alignUp(alignedVSize, 16))
}

// AllocateSound implements FrameAllocator.
func (d *Decoder) AllocateSound(samples int, rate uint32, channels, sampleSize int) (*ubuf.Ubuf, error) {
	if d.ubufMgr == nil || d.ubufMgr.Kind != ubuf.KindSound || d.channels != channels {
		m := ubuf.NewSoundManager(nil)
		for i := 0; i < channels; i++ {
			m.RegisterPlane(ubuf.PlaneDef{Name: fmt.Sprintf("ch%d", i), HSub: 1, VSub: 1})
		}
		d.ubufMgr = m
		d.channels = channels
	}
	return d.ubufMgr.AllocateSound(samples, rate, sampleSize)
}

// Close implements teardown (spec §4.I): flushes delayed frames with null
// packets, then closes the codec. The close is called directly; it is not
// serialized through the deal the way Open is.
func (d *Decoder) Close() error {
	if d.opened && d.codec.HasDelayedFrames() {
		for {
			f, err := d.codec.Flush(d)
			if err != nil || f == nil {
				break
			}
			_ = d.emitFrame(f)
		}
	}
	return d.codec.Close()
}

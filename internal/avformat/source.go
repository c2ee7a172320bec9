package avformat

import (
	"fmt"
	"io"

	"github.com/alxayo/streamengine/internal/core/deal"
	"github.com/alxayo/streamengine/internal/core/flowdef"
	"github.com/alxayo/streamengine/internal/core/request"
	"github.com/alxayo/streamengine/internal/core/ubuf"
	"github.com/alxayo/streamengine/internal/core/upipe"
	"github.com/alxayo/streamengine/internal/core/upump"
	"github.com/alxayo/streamengine/internal/core/uref"
)

// AVClockMin and PCROffset anchor the first observed DTS of a probed
// stream to a fixed point on the engine's 27 MHz timeline (spec §4.G/§9:
// "the first observed DTS maps to a fixed AV_CLOCK_MIN + PCR_OFFSET").
// AVClockMin is 0 here (ticks are already process-relative per
// upump.SystemClock); PCROffset gives two seconds of headroom so a stream
// whose demuxer reports small negative DTS values near zero never needs a
// negative engine timestamp.
const (
	AVClockMin int64 = 0
	PCROffset  int64 = 2 * upump.ClockFreq
)

// Source is the avformat demux source pipe (spec §4.G).
type Source struct {
	*upipe.Base

	demux   Demuxer
	mgr     *upump.Manager
	clock   upump.Clock
	ubufMgr *ubuf.Manager
	dl      *deal.Deal

	dealWatcher *deal.Watcher
	idler       *upump.Watcher

	streams  []StreamInfo
	subs     map[int]*sourceSub
	anchor   int64
	anchored bool
	synced   bool // debounced per SPEC_FULL.md §D's upipe_helper_sync.h
}

// NewSource builds a Source over demux, sharing mgr's event loop and
// ubufMgr's block allocator, serialized against other deal users by dl.
func NewSource(demux Demuxer, mgr *upump.Manager, ubufMgr *ubuf.Manager, dl *deal.Deal) *Source {
	s := &Source{demux: demux, mgr: mgr, clock: mgr.Clock(), ubufMgr: ubufMgr, dl: dl}
	s.Base = upipe.NewBase(nil, nil, nil)
	return s
}

// Control implements upipe.Pipe. A demux source has no single output of
// its own — SET_OUTPUT must target one of its sub-pipes — so beyond the
// shared prologue there is nothing left for it to answer.
func (s *Source) Control(cmd *upipe.Command) error {
	if handled, err := s.Base.HandleCommon(cmd, nil); handled {
		return err
	}
	return fmt.Errorf("avformat: source unhandled command %s", cmd.Kind)
}

// Input implements upipe.Pipe; a source has no upstream.
func (s *Source) Input(*uref.Uref) error {
	return fmt.Errorf("avformat: source pipe does not accept input")
}

// Start requests the deal and, once granted, probes the demuxer and begins
// reading packets (spec §4.E's grab/wait/critical-section/yield sequence).
func (s *Source) Start() error {
	w, err := s.dl.AllocWatcher(s.mgr, s.attemptGrab)
	if err != nil {
		return fmt.Errorf("avformat: alloc deal watcher: %w", err)
	}
	s.dealWatcher = w
	s.attemptGrab()
	return nil
}

func (s *Source) attemptGrab() {
	if !s.dl.Grab() {
		s.dealWatcher.Wait()
		return
	}
	defer s.dl.Yield(s.dealWatcher)
	s.probeAndPublish()
}

// probeAndPublish runs inside the deal's critical section: it probes
// stream types, builds one sub-pipe per stream, and throws a split-update
// event per stream so the wiring layer can attach a decoder/sink to each.
func (s *Source) probeAndPublish() {
	streams, err := s.demux.Probe()
	if err != nil {
		s.Throw(request.Event{Type: request.EventFatal, Code: request.CodeExternal, Message: err.Error()})
		return
	}
	s.streams = streams
	s.subs = make(map[int]*sourceSub, len(streams))
	for _, si := range streams {
		sub := newSourceSub(s.Base, si)
		s.Subs().Add(sub)
		s.subs[si.Index] = sub
		s.Throw(request.Event{Type: request.EventSplitUpdate, FlowDef: flowDefFor(si)})
	}

	s.idler = s.mgr.AllocIdler(func(any) { s.readOne() }, nil)
	s.idler.Start()
}

// readOne reads and dispatches a single packet. It runs on an idler, per
// spec §5's ordering rule that idlers fire only when no fd/timer watcher
// is pending — demux reads never starve a manager's other work.
func (s *Source) readOne() {
	pkt, err := s.demux.ReadPacket()
	if err != nil {
		s.idler.Stop()
		if err == io.EOF {
			s.setSynced(false)
			s.Throw(request.Event{Type: request.EventSourceEnd})
			return
		}
		s.Throw(request.Event{Type: request.EventError, Code: request.CodeExternal, Message: err.Error()})
		return
	}

	sub, ok := s.subs[pkt.StreamIndex]
	if !ok {
		return // packet for a stream we didn't publish (e.g. probe skipped it)
	}

	ticksPerUnit := float64(upump.ClockFreq) * float64(sub.info.TimeBaseNum) / float64(sub.info.TimeBaseDen)
	dtsTicks := int64(float64(pkt.DTS) * ticksPerUnit)
	if !s.anchored {
		s.anchor = (AVClockMin + PCROffset) - dtsTicks
		s.anchored = true
	}
	dtsTicks += s.anchor
	durTicks := int64(float64(pkt.Duration) * ticksPerUnit)

	buf, err := s.ubufMgr.Allocate(len(pkt.Data))
	if err != nil {
		s.Throw(request.Event{Type: request.EventFatal, Code: request.CodeAlloc, Message: err.Error()})
		return
	}
	data, _, err := buf.MapWrite("")
	if err != nil {
		s.Throw(request.Event{Type: request.EventFatal, Code: request.CodeAlloc, Message: err.Error()})
		return
	}
	copy(data, pkt.Data)

	u := uref.NewData(buf)
	u.SetDts(uref.DomainOrig, dtsTicks)
	u.SetCr(uref.DomainSystem, s.clock.Now())
	u.SetPtsDelay(0)
	u.Dict.SetInt(flowdef.KeyDuration, durTicks)
	if pkt.KeyFrame {
		u.Dict.SetSmallUnsigned(flowdef.KeyFrame, 1)
	}

	s.setSynced(true)
	s.Throw(request.Event{Type: request.EventClockRef, Cr: dtsTicks - PCROffset, Discontinuity: false})

	var def *uref.Uref
	if !sub.flowDefSent {
		def = flowDefFor(sub.info)
		sub.flowDefSent = true
	}
	if err := sub.out.Emit(u, def); err != nil {
		u.Free()
	}
}

// setSynced debounces SYNC_ACQUIRED/SYNC_LOST so the event fires only on
// the true/false transition edge, per SPEC_FULL.md §D's
// upipe_helper_sync.h supplement.
func (s *Source) setSynced(synced bool) {
	if s.synced == synced {
		return
	}
	s.synced = synced
	if synced {
		s.Throw(request.Event{Type: request.EventSyncAcquired})
	} else {
		s.Throw(request.Event{Type: request.EventSyncLost})
	}
}

// sourceSub is the per-elementary-stream sub-pipe spec §4.G requires: a
// thin pipe that only carries an output link, wired to whichever decoder
// or sink the pipeline graph attaches.
type sourceSub struct {
	*upipe.Base
	out *upipe.OutputHelper

	info        StreamInfo
	flowDefSent bool
}

func newSourceSub(parent *upipe.Base, info StreamInfo) *sourceSub {
	sub := &sourceSub{info: info}
	sub.Base = upipe.NewBase(parent.Probe(), nil, nil)
	sub.out = upipe.NewOutputHelper(sub.Base)
	return sub
}

func (s *sourceSub) Control(cmd *upipe.Command) error {
	if handled, err := s.Base.HandleCommon(cmd, s.out); handled {
		return err
	}
	return fmt.Errorf("avformat: source sub-pipe unhandled command %s", cmd.Kind)
}

func (s *sourceSub) Input(*uref.Uref) error {
	return fmt.Errorf("avformat: source sub-pipe does not accept input")
}

// flowDefFor synthesizes the flow definition grammar string (spec §3/§6)
// for a probed stream: "pic" for raw video, "sound.f32" for raw audio,
// "block.<codec>" for coded video or audio, "pic.sub" for subtitles,
// "block" for opaque data.
func flowDefFor(si StreamInfo) *uref.Uref {
	var def string
	switch si.Kind {
	case StreamVideoRaw:
		def = flowdef.ClassPic
	case StreamVideoCoded:
		def = "block." + si.Codec
	case StreamAudioRaw:
		def = flowdef.ClassSoundF32
	case StreamAudioCoded:
		def = "block." + si.Codec
	case StreamSubtitle:
		def = flowdef.ClassPicSub
	default:
		def = flowdef.ClassBlock
	}
	f := flowdef.New(def)
	switch si.Kind {
	case StreamVideoRaw, StreamVideoCoded:
		flowdef.SetPictureAttrs(f, si.HSize, si.VSize, si.FPSNum, si.FPSDen)
	case StreamAudioRaw, StreamAudioCoded:
		flowdef.SetSoundAttrs(f, si.SampleRate, si.Channels, si.Planes, si.SampleSize)
	}
	return f
}

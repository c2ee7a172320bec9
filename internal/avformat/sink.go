package avformat

import (
	"fmt"

	"github.com/alxayo/streamengine/internal/core/flowdef"
	"github.com/alxayo/streamengine/internal/core/request"
	"github.com/alxayo/streamengine/internal/core/upipe"
	"github.com/alxayo/streamengine/internal/core/uref"
)

// Sink is the avformat mux sink pipe (spec §4.H): one sub-pipe per stream
// queues data urefs by DTS; the super-pipe drains them through Muxer in
// smallest-next-DTS order.
type Sink struct {
	*upipe.Base

	mux     Muxer
	streams []StreamInfo
	subs    []*sinkSub

	headerWritten bool
	keepZeroOffset bool // true for formats (e.g. MPEG-TS) that don't rebase
	rebaseSet     bool
	rebaseOffset  int64
}

// NewSink builds a Sink writing streams through mux, one sinkSub per
// entry. keepZeroOffset matches spec §4.H's "MPEG-TS keeps offset 0; other
// formats rebase to the first DTS".
func NewSink(mux Muxer, streams []StreamInfo, keepZeroOffset bool) *Sink {
	s := &Sink{mux: mux, streams: streams, keepZeroOffset: keepZeroOffset}
	s.Base = upipe.NewBase(nil, nil, nil)
	s.subs = make([]*sinkSub, len(streams))
	for i, si := range streams {
		sub := &sinkSub{sink: s, index: si.Index}
		sub.Base = upipe.NewBase(s.Base.Probe(), nil, nil)
		s.subs[i] = sub
		s.Subs().Add(sub)
	}
	return s
}

// Sub returns the sub-pipe feeding streamIndex, for the pipeline wiring
// layer to attach as a decoder's or source's output.
func (s *Sink) Sub(streamIndex int) upipe.Pipe {
	for _, sub := range s.subs {
		if sub.index == streamIndex {
			return sub
		}
	}
	return nil
}

func (s *Sink) Control(cmd *upipe.Command) error {
	if handled, err := s.Base.HandleCommon(cmd, nil); handled {
		return err
	}
	return fmt.Errorf("avformat: sink unhandled command %s", cmd.Kind)
}

// Input implements upipe.Pipe; data must be fed to one of Sub's sub-pipes,
// not to the super-pipe directly (mirrors the one-queue-per-stream shape
// spec §4.H describes).
func (s *Sink) Input(*uref.Uref) error {
	return fmt.Errorf("avformat: sink super-pipe accepts no input, feed Sub(streamIndex)")
}

// Close closes the muxer. It runs no further drain: packets still buffered
// in a sub-pipe are left unwritten, since drain only writes while every
// sub-pipe holds at least one packet, and it already runs on every Input.
func (s *Sink) Close() error {
	return s.mux.Close()
}

// drain runs the multiplexer loop of spec §4.H: pick the sub-pipe with the
// smallest next-DTS among those with a buffered packet, write it, and
// repeat; stop as soon as any sub-pipe's queue is empty.
func (s *Sink) drain() {
	for {
		var pick *sinkSub
		for _, sub := range s.subs {
			if len(sub.queue) == 0 {
				return
			}
			if pick == nil || sub.queue[0].dts < pick.queue[0].dts {
				pick = sub
			}
		}
		if pick == nil {
			return
		}

		if !s.headerWritten {
			if err := s.mux.WriteHeader(s.streams); err != nil {
				s.Throw(request.Event{Type: request.EventFatal, Code: request.CodeExternal, Message: err.Error()})
				return
			}
			s.headerWritten = true
			if !s.keepZeroOffset {
				s.rebaseOffset = -pick.queue[0].dts
				s.rebaseSet = true
			}
		}

		head := pick.queue[0]
		pick.queue = pick.queue[1:]

		outDTS := head.dts
		if s.rebaseSet {
			outDTS += s.rebaseOffset
		}
		pkt := &Packet{
			StreamIndex: pick.index,
			Data:        readBlock(head.u),
			DTS:         outDTS,
			PTS:         outDTS,
			Duration:    head.dur,
			KeyFrame:    head.key,
		}
		err := s.mux.WritePacket(pick.index, pkt)
		head.u.Free()
		if err != nil {
			s.Throw(request.Event{Type: request.EventError, Code: request.CodeExternal, Message: err.Error()})
			return
		}
	}
}

// sinkSub is the per-stream queue spec §4.H requires: it buffers whatever
// arrives on its Input, ordered by arrival (the upstream pipe is expected
// to already deliver DTS-ordered urefs along one edge, per spec §5).
type sinkSub struct {
	*upipe.Base

	sink  *Sink
	index int
	queue []queuedUref
}

type queuedUref struct {
	u   *uref.Uref
	dts int64
	dur int64
	key bool
}

func (sub *sinkSub) Control(cmd *upipe.Command) error {
	if handled, err := sub.Base.HandleCommon(cmd, nil); handled {
		return err
	}
	if cmd.Kind == upipe.CmdSetFlowDef {
		return nil
	}
	return fmt.Errorf("avformat: sink sub-pipe unhandled command %s", cmd.Kind)
}

func (sub *sinkSub) Input(u *uref.Uref) error {
	dts, _ := u.Dts(uref.DomainOrig)
	dur, _ := u.Dict.GetInt(flowdef.KeyDuration)
	_, key := u.Dict.GetSmallUnsigned(flowdef.KeyFrame)
	sub.queue = append(sub.queue, queuedUref{u: u, dts: dts, dur: dur, key: key})
	sub.sink.drain()
	return nil
}

func readBlock(u *uref.Uref) []byte {
	if u.Ubuf == nil {
		return nil
	}
	data, _, err := u.Ubuf.MapRead("")
	if err != nil {
		return nil
	}
	return data
}

package upipe

import (
	"testing"

	"github.com/alxayo/streamengine/internal/core/flowdef"
	"github.com/alxayo/streamengine/internal/core/request"
	"github.com/alxayo/streamengine/internal/core/uref"
)

// sinkPipe is a minimal Pipe that records every uref it receives, used to
// exercise OutputHelper.Emit and the common Control dispatch.
type sinkPipe struct {
	*Base
	received []*uref.Uref
	lastDef  *uref.Uref
	reject   bool
}

func newSinkPipe() *sinkPipe {
	s := &sinkPipe{}
	s.Base = NewBase(nil, nil, nil)
	return s
}

func (s *sinkPipe) Control(cmd *Command) error {
	if handled, err := s.HandleCommon(cmd, nil); handled {
		return err
	}
	switch cmd.Kind {
	case CmdSetFlowDef:
		if s.reject {
			return pipeErrBusy()
		}
		s.lastDef = cmd.FlowDef
		return nil
	case CmdGetFlowDef:
		cmd.FlowDef = s.lastDef
		return nil
	}
	return pipeErrUnhandled()
}

func (s *sinkPipe) Input(u *uref.Uref) error {
	s.received = append(s.received, u)
	return nil
}

func TestOutputHelperEmitPushesFlowDefOnce(t *testing.T) {
	sink := newSinkPipe()
	src := NewBase(nil, nil, nil)
	out := NewOutputHelper(src)
	out.SetOutput(sink)

	def := flowdef.New(flowdef.ClassPic)
	u1 := uref.New()
	u2 := uref.New()

	if err := out.Emit(u1, def); err != nil {
		t.Fatalf("first emit: %v", err)
	}
	if err := out.Emit(u2, def); err != nil {
		t.Fatalf("second emit: %v", err)
	}
	if len(sink.received) != 2 {
		t.Fatalf("expected 2 urefs delivered, got %d", len(sink.received))
	}
	if sink.lastDef != def {
		t.Fatalf("expected sink to have received the flow def")
	}
}

func TestOutputHelperRejectedFlowDefIsBusy(t *testing.T) {
	sink := newSinkPipe()
	sink.reject = true
	src := NewBase(nil, nil, nil)
	out := NewOutputHelper(src)
	out.SetOutput(sink)

	err := out.Emit(uref.New(), flowdef.New(flowdef.ClassPic))
	if err == nil {
		t.Fatalf("expected rejected flow def to surface an error")
	}
}

func TestOutputHelperNoOutputThrowsNeedOutput(t *testing.T) {
	var sawNeedOutput bool
	probe := request.ProbeFunc(func(e request.Event) bool {
		if e.Type == request.EventNeedOutput {
			sawNeedOutput = true
		}
		return true
	})
	base := NewBase(nil, probe, nil)
	out := NewOutputHelper(base)

	err := out.Emit(uref.New(), flowdef.New(flowdef.ClassPic))
	if err == nil {
		t.Fatalf("expected error with no output attached")
	}
	if !sawNeedOutput {
		t.Fatalf("expected NEED_OUTPUT to be thrown")
	}
}

func TestSetOutputReregistersProxies(t *testing.T) {
	var provided any
	original := request.New(request.KindClock, nil, func(answer any) error {
		provided = answer
		return nil
	})
	proxy := request.NewProxy(original)

	src := NewBase(nil, nil, nil)
	out := NewOutputHelper(src)
	out.AddProxy(proxy)

	sink := newSinkPipe()
	sinkProbe := request.ProbeFunc(func(e request.Event) bool {
		if e.Type == request.EventProvideRequest {
			return e.Request.Provide("clock-1") == nil
		}
		return false
	})
	sink.Base = NewBase(nil, sinkProbe, nil)

	out.SetOutput(sink)
	if provided != "clock-1" {
		t.Fatalf("expected proxy reregistration against new output to answer the request, got %v", provided)
	}
}

func TestSubManagerIterateAndSuper(t *testing.T) {
	parent := NewBase(nil, nil, nil)
	childA := newSinkPipe()
	childB := newSinkPipe()
	parent.Subs().Add(childA)
	parent.Subs().Add(childB)

	first := parent.Subs().Iterate(nil)
	if first != Pipe(childA) {
		t.Fatalf("expected iteration to start with childA")
	}
	second := parent.Subs().Iterate(first)
	if second != Pipe(childB) {
		t.Fatalf("expected iteration to continue with childB")
	}
	if third := parent.Subs().Iterate(second); third != nil {
		t.Fatalf("expected iteration to end after last sub-pipe")
	}
	if parent.Subs().Len() != 2 {
		t.Fatalf("expected 2 registered sub-pipes")
	}
}

func TestInputHelperHoldsAndDrainsInOrder(t *testing.T) {
	var processed []*uref.Uref
	blocked := true
	h := NewInputHelper(1, func(u *uref.Uref) error {
		if blocked {
			return errBlocked
		}
		processed = append(processed, u)
		return nil
	})

	u1, u2, u3 := uref.New(), uref.New(), uref.New()
	h.Hold(u1)
	h.Hold(u2)
	h.Hold(u3)
	if h.Len() != 3 {
		t.Fatalf("expected 3 held urefs, got %d", h.Len())
	}

	blocked = false
	if err := h.Drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(processed) != 3 {
		t.Fatalf("expected all 3 urefs processed, got %d", len(processed))
	}
	if processed[0] != u1 || processed[1] != u2 || processed[2] != u3 {
		t.Fatalf("expected FIFO order")
	}
	if h.Len() != 0 {
		t.Fatalf("expected queue empty after drain")
	}
}

func TestInputHelperFlushDiscards(t *testing.T) {
	h := NewInputHelper(0, func(u *uref.Uref) error { return nil })
	h.Hold(uref.New())
	h.Hold(uref.New())
	h.Flush()
	if h.Len() != 0 {
		t.Fatalf("expected flush to clear the queue")
	}
}

var errBlocked = pipeErrBusy()

func pipeErrBusy() error     { return errFromCode("busy") }
func pipeErrUnhandled() error { return errFromCode("unhandled") }

func errFromCode(tag string) error { return &tagError{tag} }

type tagError struct{ tag string }

func (e *tagError) Error() string { return e.tag }

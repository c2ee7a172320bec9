// Package request implements the probe and request systems of spec §3/§4.F:
// asynchronous provisioning requests and event probes that travel up a
// pipe's parent chain.
//
// Grounded on the teacher's hook system
// (internal/rtmp/server/hooks/{events,hook,manager}.go): EventType + typed
// Event + a registered-handler-per-type dispatch generalizes directly into
// probe EventType + Event + Probe, with one difference the spec calls for
// explicitly — handling returns handled/unhandled and unhandled events
// bubble to the next probe in the chain, where the hook manager instead
// fans an event out to every registered hook unconditionally.
package request

import (
	"github.com/alxayo/streamengine/internal/core/uref"
	pipeerrors "github.com/alxayo/streamengine/internal/errors"
)

// EventType enumerates the probe events of spec §6.
type EventType int

const (
	EventReady EventType = iota
	EventDead
	EventNeedOutput
	EventNeedUpumpMgr
	EventNeedUclock
	EventProvideRequest
	EventFatal
	EventError
	EventSyncAcquired
	EventSyncLost
	EventClockTS
	EventClockRef
	EventSourceEnd
	EventSplitUpdate
	// EventCustom is the base of the subsystem-signed custom event range
	// (HTTP redirect, HTTP scheme-hook, SRT reject reason, ...). Subsystems
	// define their own constants starting at EventCustom+n.
	EventCustom
)

func (t EventType) String() string {
	switch t {
	case EventReady:
		return "ready"
	case EventDead:
		return "dead"
	case EventNeedOutput:
		return "need_output"
	case EventNeedUpumpMgr:
		return "need_upump_mgr"
	case EventNeedUclock:
		return "need_uclock"
	case EventProvideRequest:
		return "provide_request"
	case EventFatal:
		return "fatal"
	case EventError:
		return "error"
	case EventSyncAcquired:
		return "sync_acquired"
	case EventSyncLost:
		return "sync_lost"
	case EventClockTS:
		return "clock_ts"
	case EventClockRef:
		return "clock_ref"
	case EventSourceEnd:
		return "source_end"
	case EventSplitUpdate:
		return "split_update"
	default:
		return "custom"
	}
}

// Code is the same error classification control paths return
// (internal/errors.Code), reused here rather than redefined so FATAL/ERROR
// probe events and synchronous control errors agree on one enum.
type Code = pipeerrors.Code

const (
	CodeNone      = pipeerrors.CodeNone
	CodeUnhandled = pipeerrors.CodeUnhandled
	CodeInvalid   = pipeerrors.CodeInvalid
	CodeAlloc     = pipeerrors.CodeAlloc
	CodeBusy      = pipeerrors.CodeBusy
	CodeExternal  = pipeerrors.CodeExternal
	CodeUpump     = pipeerrors.CodeUpump
)

// Event is a single probe occurrence. Pipe identifies the originating pipe
// by an opaque identity (typed any to avoid an import cycle with the upipe
// package): upipe.Base.Throw fills it with the thrower's *upipe.Base, which
// exposes ID().
type Event struct {
	Type   EventType
	Pipe   any
	FlowDef *uref.Uref // NEED_OUTPUT, SPLIT_UPDATE
	Code   Code        // FATAL, ERROR
	Uref   *uref.Uref  // CLOCK_TS
	Cr     int64       // CLOCK_REF
	Discontinuity bool  // CLOCK_REF
	Request *Request    // PROVIDE_REQUEST
	Message string
}

// Probe handles an Event, returning whether it was handled. An unhandled
// event bubbles to the next probe up the parent chain.
type Probe interface {
	Handle(e Event) bool
}

// ProbeFunc adapts a plain function to the Probe interface.
type ProbeFunc func(e Event) bool

func (f ProbeFunc) Handle(e Event) bool { return f(e) }

// Chain is an ordered list of probes tried in sequence: the pipe's own
// local probe first, then whatever it inherited from its parent, matching
// "a probe handler ... unhandled bubbles" (spec §3).
type Chain struct {
	probes []Probe
}

// NewChain builds a probe chain from innermost (tried first) to outermost.
func NewChain(probes ...Probe) *Chain {
	return &Chain{probes: probes}
}

// Push adds a probe to the front of the chain (tried before existing
// members), used when a pipe wraps an inherited parent chain with its own
// local handler.
func (c *Chain) Push(p Probe) *Chain {
	return &Chain{probes: append([]Probe{p}, c.probes...)}
}

// Throw dispatches e to each probe in order until one returns handled.
func (c *Chain) Throw(e Event) bool {
	if c == nil {
		return false
	}
	for _, p := range c.probes {
		if p != nil && p.Handle(e) {
			return true
		}
	}
	return false
}

package upipe

import (
	"github.com/alxayo/streamengine/internal/core/flowdef"
	pipeerrors "github.com/alxayo/streamengine/internal/errors"
	"github.com/alxayo/streamengine/internal/core/request"
	"github.com/alxayo/streamengine/internal/core/uref"
)

// outputState is the three-way state of spec §4.D's output helper: a pipe
// has either no output attached, an output with a flow def it accepted, or
// an output whose flow def it rejected (in which case data urefs must be
// dropped, not queued, until a fresh SET_OUTPUT or SET_FLOW_DEF arrives).
type outputState int

const (
	outputNone outputState = iota
	outputValid
	outputInvalid
)

// OutputHelper implements the output-linkage state machine every pipe with
// an output embeds (spec §4.D): it tracks the attached output pipe, the
// flow def last pushed to it, whether that def was accepted, and the set
// of requests proxied onto the current output so they can be moved when
// the output changes.
//
// Grounded on the teacher's relay fan-out (internal/rtmp/relay/relay.go),
// which already tracks "current downstream target(s) + what to do when the
// target changes" — generalized here from a fixed relay target to a single
// swappable output plus the request-reregistration spec requires.
type OutputHelper struct {
	base    *Base
	output  Pipe
	flowDef *uref.Uref
	state   outputState
	proxies request.ProxyList
}

// NewOutputHelper builds an OutputHelper bound to base's probe chain (used
// to throw NEED_OUTPUT when output is nil and data needs flushing).
func NewOutputHelper(base *Base) *OutputHelper {
	return &OutputHelper{base: base}
}

// SetOutput installs a new output pipe, unregistering every proxied request
// from the old output and re-registering it against the new one's probe
// chain, per spec §4.D: "On output change, all prior requests are
// unregistered from the old output and re-registered on the new." The flow
// def last pushed, if any, is resent to the new output.
func (h *OutputHelper) SetOutput(p Pipe) {
	h.proxies.UnregisterAll()
	prev := h.flowDef
	h.output = p
	h.state = outputNone
	h.flowDef = nil
	if p != nil {
		h.proxies.ReregisterAll(p.Probe())
		if prev != nil {
			_ = h.SetFlowDef(prev)
		}
	}
}

// Output returns the currently attached output pipe, or nil.
func (h *OutputHelper) Output() Pipe { return h.output }

// SetFlowDef pushes def downstream via SET_FLOW_DEF and records whether the
// output accepted it. A rejected def moves the helper to outputInvalid,
// after which Emit refuses data urefs rather than forward them (spec §4.D
// transition table).
func (h *OutputHelper) SetFlowDef(def *uref.Uref) error {
	h.flowDef = def
	if h.output == nil {
		h.base.Throw(request.Event{Type: request.EventNeedOutput, FlowDef: def})
		h.state = outputInvalid
		return pipeerrors.NewPipeError(pipeerrors.CodeUnhandled, "output.set_flow_def", nil)
	}
	cmd := &Command{Kind: CmdSetFlowDef, FlowDef: def}
	if err := h.output.Control(cmd); err != nil {
		h.state = outputInvalid
		return err
	}
	h.state = outputValid
	return nil
}

// AddProxy registers a Proxy so its upstream request rides along with
// whichever pipe is currently attached as output, moving automatically on
// the next SetOutput call.
func (h *OutputHelper) AddProxy(p *request.Proxy) {
	h.proxies.Add(p)
	if h.output != nil {
		p.Upstream.Register(h.output.Probe())
	}
}

// Emit delivers a data uref to the output, matching its flow def first if
// def is non-nil and differs from the last one pushed (spec §4.D: "a
// transform that changes format pushes the new flow def before the first
// uref carrying it"). Returns an error without forwarding u if that push
// fails (the output's own error, or an *errors.PipeError(CodeUnhandled)
// when no output is attached) or, otherwise, an *errors.PipeError(CodeBusy)
// if the output is absent or not in the valid state; in every error case
// the caller must free u itself (the helper never frees on the caller's
// behalf to keep ownership unambiguous).
func (h *OutputHelper) Emit(u *uref.Uref, def *uref.Uref) error {
	if def != nil && !flowdef.Equal(def, h.flowDef) {
		if err := h.SetFlowDef(def); err != nil {
			return err
		}
	}
	if h.state != outputValid || h.output == nil {
		return pipeerrors.NewPipeError(pipeerrors.CodeBusy, "output.emit", nil)
	}
	return h.output.Input(u)
}

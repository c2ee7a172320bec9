package upipe

import (
	"sync"

	"github.com/google/uuid"

	"github.com/alxayo/streamengine/internal/core/refcount"
	"github.com/alxayo/streamengine/internal/core/request"
	"github.com/alxayo/streamengine/internal/core/uref"
)

// Pipe is the uniform control surface every engine element implements:
// sources, transforms, sinks, and the SRT/avformat/avcodec adapters built
// on top of them all reduce to this one interface at the runtime level
// (spec §4.D). Control is a single typed-command entry point rather than a
// grab-bag of per-concern methods, matching the teacher's
// control.Handler.Dispatch pattern of routing every control message through
// one switch.
type Pipe interface {
	// Control executes cmd.Kind against the pipe, filling cmd's out fields
	// and returning nil on success, or a *errors.PipeError (see internal/errors).
	Control(cmd *Command) error

	// Input delivers a data or control uref produced upstream. This is the
	// data path; Control is the out-of-band command path. A pipe with no
	// output of its own (a sink) consumes u here; a transform processes it
	// and calls its own OutputHelper.Emit to forward downstream.
	Input(u *uref.Uref) error

	// Probe exposes the pipe's probe chain so a sub-pipe can inherit it,
	// and so the output helper can throw NEED_OUTPUT/NEED_UPUMP_MGR up it.
	Probe() *request.Chain

	// Use/Release adjust the external strong reference count (spec §4.A /
	// Design Notes §9): sub-pipes hold an *internal* link back to their
	// super-pipe that does not itself keep the super-pipe alive, breaking
	// the cycle a naive single refcount would create.
	Use()
	Release()
}

// Base is embedded by every concrete pipe implementation. It wires the
// refcount, probe chain, and sub-pipe manager that spec §4.D requires of
// every pipe, leaving Control's kind-specific switch to the embedder.
//
// Grounded on the teacher's conn.Session struct (internal/rtmp/conn/session.go):
// an embeddable struct holding lifecycle state (there: a context+cancel+wg;
// here: a RefCount+probe chain+sub-pipe manager) that concrete handlers
// build on top of rather than reimplement.
type Base struct {
	mu    sync.Mutex
	id    string
	ref   *refcount.RefCount
	chain *request.Chain
	subs  *SubManager
	dead  func()
}

// NewBase constructs a Base with dead invoked when the external refcount
// reaches zero. parentChain is the inherited probe chain (nil for a root
// pipe); ownProbe, if non-nil, is pushed in front of it so local probes see
// events before the parent's.
func NewBase(parentChain *request.Chain, ownProbe request.Probe, dead func()) *Base {
	chain := parentChain
	if ownProbe != nil {
		if chain == nil {
			chain = request.NewChain(ownProbe)
		} else {
			chain = chain.Push(ownProbe)
		}
	}
	b := &Base{id: uuid.NewString(), chain: chain, dead: dead}
	b.ref = refcount.New(func() {
		if b.dead != nil {
			b.dead()
		}
	})
	b.subs = newSubManager(b)
	return b
}

// ID is a process-local identifier assigned at construction, for
// correlating a pipe across log lines and probe events (a bare %v on a
// Pipe value prints an unstable pointer address).
func (b *Base) ID() string { return b.id }

func (b *Base) Probe() *request.Chain { return b.chain }
func (b *Base) Use()                  { b.ref.Use() }
func (b *Base) Release()              { b.ref.Release() }

// Single reports whether this pipe holds the last external reference,
// mirroring ubuf/uref's single-owner convention for in-place mutation
// decisions (here: whether a SET_OUTPUT_SIZE may resize without realloc).
func (b *Base) Single() bool { return b.ref.Single() }

// Throw propagates e up this pipe's probe chain, setting e.Pipe to b when
// the caller left it nil.
func (b *Base) Throw(e request.Event) bool {
	if e.Pipe == nil {
		e.Pipe = b
	}
	return b.chain.Throw(e)
}

// Subs returns the sub-pipe manager for this pipe (GET_SUB_MGR backing).
func (b *Base) Subs() *SubManager { return b.subs }

// Lock/Unlock expose Base's mutex to embedders that need to serialize
// control access without a second lock object.
func (b *Base) Lock()   { b.mu.Lock() }
func (b *Base) Unlock() { b.mu.Unlock() }

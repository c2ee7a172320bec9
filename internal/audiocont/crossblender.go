package audiocont

import (
	"fmt"

	"github.com/alxayo/streamengine/internal/core/flowdef"
	"github.com/alxayo/streamengine/internal/core/request"
	"github.com/alxayo/streamengine/internal/core/ubuf"
	"github.com/alxayo/streamengine/internal/core/upipe"
	"github.com/alxayo/streamengine/internal/core/upump"
	"github.com/alxayo/streamengine/internal/core/uref"
)

// Crossblender is the audio continuity pipe of spec §4.M. It exposes one
// named input sub-pipe per source (AddInput) plus a dedicated clock
// sub-pipe (Clock) whose urefs drive the crossblend tick; data never flows
// into the super-pipe itself.
type Crossblender struct {
	*upipe.Base
	out *upipe.OutputHelper
	mgr *upump.Manager

	rate       uint32
	channels   int
	sampleSize int

	crossblendPeriod int64 // ticks
	step             float64

	ubufMgr *ubuf.Manager

	inputs         map[string]*inputSub
	curName        string
	prevName       string
	curInput       *inputSub
	prevInput      *inputSub
	crossblend     float64
	haveSelected   bool
	outFlowDefSent bool
}

// NewCrossblender builds a Crossblender mixing channels-channel float32
// planar sound at rate, crossfading a new input in over crossblendPeriod
// engine ticks (spec §4.M: "step = CLOCK / rate / crossblend_period").
func NewCrossblender(mgr *upump.Manager, rate uint32, channels int, crossblendPeriod int64) *Crossblender {
	c := &Crossblender{
		mgr:              mgr,
		rate:             rate,
		channels:         channels,
		sampleSize:       DefaultSampleSize,
		crossblendPeriod: crossblendPeriod,
		inputs:           map[string]*inputSub{},
	}
	if rate > 0 && crossblendPeriod > 0 {
		c.step = float64(upump.ClockFreq) / float64(rate) / float64(crossblendPeriod)
	}
	c.Base = upipe.NewBase(nil, nil, nil)
	c.out = upipe.NewOutputHelper(c.Base)

	m := ubuf.NewSoundManager(nil)
	for i := 0; i < channels; i++ {
		m.RegisterPlane(ubuf.PlaneDef{Name: planeName(i), HSub: 1, VSub: 1})
	}
	c.ubufMgr = m
	return c
}

// AddInput registers a new named data input and returns its sub-pipe for
// the pipeline wiring layer to attach as an upstream pipe's output.
func (c *Crossblender) AddInput(name string) upipe.Pipe {
	in := &inputSub{name: name, parent: c}
	in.Base = upipe.NewBase(c.Base.Probe(), nil, nil)
	c.inputs[name] = in
	c.Subs().Add(in)
	return in
}

// Clock returns the sub-pipe a reference clock source feeds to drive the
// crossblend tick (spec §4.M: "driven by a clock input").
func (c *Crossblender) Clock() upipe.Pipe {
	cl := &clockSub{parent: c}
	cl.Base = upipe.NewBase(c.Base.Probe(), nil, nil)
	c.Subs().Add(cl)
	return cl
}

func (c *Crossblender) Control(cmd *upipe.Command) error {
	if handled, err := c.Base.HandleCommon(cmd, c.out); handled {
		return err
	}
	if cmd.Kind == upipe.CmdSetOption && cmd.OptionKey == "input" {
		return c.selectInput(cmd.OptionVal)
	}
	return fmt.Errorf("audiocont: crossblender unhandled command %s", cmd.Kind)
}

// Input implements upipe.Pipe; data must be fed to AddInput's or Clock's
// sub-pipes, not to the super-pipe directly.
func (c *Crossblender) Input(*uref.Uref) error {
	return fmt.Errorf("audiocont: crossblender accepts no input, feed AddInput/Clock sub-pipes")
}

// selectInput implements spec §4.M's handover rule: "input_prev ←
// input_cur, input_cur ← new, crossblend ← 0". The very first selection has
// no previous input to fade from, so it starts at full weight on the new
// input rather than fading in from silence.
func (c *Crossblender) selectInput(name string) error {
	in, ok := c.inputs[name]
	if !ok {
		return fmt.Errorf("audiocont: no such input %q", name)
	}
	c.prevName, c.prevInput = c.curName, c.curInput
	c.curName, c.curInput = name, in
	if c.haveSelected {
		c.crossblend = 0
	} else {
		c.crossblend = 1
		c.haveSelected = true
	}
	return nil
}

// tick runs spec §4.M's per-reference-tick algorithm.
func (c *Crossblender) tick(refPTS, refDur int64) {
	nextPTS := refPTS + refDur

	for _, in := range c.inputs {
		in.dropStale(nextPTS, refDur)
	}

	samples := samplesFor(refDur, c.rate)
	if samples <= 0 || c.curInput == nil {
		return
	}

	u, err := c.ubufMgr.AllocateSound(samples, c.rate, c.sampleSize)
	if err != nil {
		c.Throw(request.Event{Type: request.EventError, Code: request.CodeAlloc, Message: err.Error()})
		return
	}

	if c.crossblend < 1 && c.prevInput != nil {
		c.prevInput.mixInto(u, float32(1-c.crossblend), samples)
	}
	weight := float32(c.crossblend)
	if c.crossblend >= 1 {
		weight = 1
	}
	c.curInput.mixInto(u, weight, samples)

	if c.step > 0 {
		c.crossblend += c.step * float64(samples)
		if c.crossblend > 1 {
			c.crossblend = 1
		}
	}

	out := uref.NewData(u)
	out.SetPts(uref.DomainSystem, refPTS)
	out.SetPts(uref.DomainOrig, refPTS)
	out.Dict.SetInt(flowdef.KeyDuration, refDur)

	var def *uref.Uref
	if !c.outFlowDefSent {
		def = flowdef.New(flowdef.ClassSoundF32)
		flowdef.SetSoundAttrs(def, uint64(c.rate), c.channels, c.channels, c.sampleSize)
		c.outFlowDefSent = true
	}
	if err := c.out.Emit(out, def); err != nil {
		out.Free()
	}
}

// inputSub buffers one named input's urefs in arrival order (spec §4.M:
// "maintains per-input buffered urefs ordered by pts-sys").
type inputSub struct {
	*upipe.Base
	parent *Crossblender
	name   string
	queue  []*uref.Uref
}

func (in *inputSub) Control(cmd *upipe.Command) error {
	if handled, err := in.Base.HandleCommon(cmd, nil); handled {
		return err
	}
	return fmt.Errorf("audiocont: input sub-pipe unhandled command %s", cmd.Kind)
}

func (in *inputSub) Input(u *uref.Uref) error {
	in.queue = append(in.queue, u)
	return nil
}

// dropStale removes buffered urefs that can no longer contribute to the
// output window (spec §4.M step 2).
func (in *inputSub) dropStale(nextPTS, refDur int64) {
	for len(in.queue) > 0 {
		head := in.queue[0]
		ptsSys, _ := head.Pts(uref.DomainSystem)
		dur, _ := head.Dict.GetInt(flowdef.KeyDuration)
		if ptsSys+dur+refDur >= nextPTS {
			break
		}
		head.Free()
		in.queue = in.queue[1:]
	}
}

// mixInto scales the samples at the head of the queue by scale and sums
// them into dst's channel planes, consuming the head uref once it is fully
// read (spec §4.M steps 4/5). An input with nothing buffered contributes
// silence for this tick, matching the "first packet... missing" boundary
// case resolved by leaving the freshly zeroed output untouched.
func (in *inputSub) mixInto(dst *ubuf.Ubuf, scale float32, samples int) {
	if len(in.queue) == 0 || scale == 0 {
		return
	}
	head := in.queue[0]
	if head.Ubuf == nil || head.Ubuf.Kind != ubuf.KindSound {
		return
	}
	n := samples
	if head.Ubuf.Sound.Samples < n {
		n = head.Ubuf.Sound.Samples
	}
	for ch := 0; ch < in.parent.channels; ch++ {
		name := planeName(ch)
		dstData, _, err := dst.MapWrite(name)
		if err != nil {
			continue
		}
		srcData, _, err := head.Ubuf.MapRead(name)
		if err != nil {
			continue
		}
		scaleAndSum(dstData, srcData, scale, n)
	}
	if n >= head.Ubuf.Sound.Samples {
		head.Free()
		in.queue = in.queue[1:]
	}
}

// clockSub is the reference-tick input (spec §4.M: "driven by a clock
// input"); each uref it receives triggers one crossblend tick.
type clockSub struct {
	*upipe.Base
	parent *Crossblender
}

func (cl *clockSub) Control(cmd *upipe.Command) error {
	if handled, err := cl.Base.HandleCommon(cmd, nil); handled {
		return err
	}
	return fmt.Errorf("audiocont: clock sub-pipe unhandled command %s", cmd.Kind)
}

func (cl *clockSub) Input(u *uref.Uref) error {
	refPTS, _ := u.Pts(uref.DomainSystem)
	refDur, _ := u.Dict.GetInt(flowdef.KeyDuration)
	u.Free()
	cl.parent.tick(refPTS, refDur)
	return nil
}

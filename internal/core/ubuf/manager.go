package ubuf

import (
	"fmt"

	"github.com/alxayo/streamengine/internal/bufpool"
	"github.com/alxayo/streamengine/internal/core/refcount"
)

// PlaneDef declares a named plane (chroma component or audio channel) a
// Manager will produce, along with its subsampling factors. Picture and
// sound managers must have their planes registered before first Allocate
// (spec §4.B: "a picture manager registers named planes with their
// subsampling before first use").
type PlaneDef struct {
	Name       string
	HSub, VSub int // subsampling factors; 1,1 for unsampled / audio channels
}

// Manager is the polymorphic buffer allocator of spec §4.B: parameterized by
// element Kind, with configurable prepend/append headroom and alignment, and
// (for picture/sound) a fixed set of named planes.
type Manager struct {
	Kind           Kind
	Prepend        int
	AppendHeadroom int
	Align          int
	AlignOff       int

	pool   *bufpool.Pool
	planes []PlaneDef
}

// NewBlockManager returns a Manager that allocates block ubufs, backed by the
// given pool (or a fresh bufpool.New() pool if nil).
func NewBlockManager(pool *bufpool.Pool, prepend, appendHeadroom, align, alignOffset int) *Manager {
	if pool == nil {
		pool = bufpool.New()
	}
	return &Manager{Kind: KindBlock, Prepend: prepend, AppendHeadroom: appendHeadroom, Align: align, AlignOff: alignOffset, pool: pool}
}

// NewPictureManager returns a Manager that allocates picture ubufs. Planes
// must be registered with RegisterPlane before the first Allocate.
func NewPictureManager(pool *bufpool.Pool) *Manager {
	if pool == nil {
		pool = bufpool.New()
	}
	return &Manager{Kind: KindPicture, pool: pool}
}

// NewSoundManager returns a Manager that allocates sound ubufs. Planes
// (channels) must be registered with RegisterPlane before the first
// Allocate.
func NewSoundManager(pool *bufpool.Pool) *Manager {
	if pool == nil {
		pool = bufpool.New()
	}
	return &Manager{Kind: KindSound, pool: pool}
}

// RegisterPlane adds a named plane definition. It does not check whether
// the manager has already allocated: buffers allocated earlier keep the
// planes they were built with, and later allocations include the new one.
func (m *Manager) RegisterPlane(def PlaneDef) {
	m.planes = append(m.planes, def)
}

// Allocate creates a new ubuf of the manager's kind.
//
// For KindBlock, size is the octet count and the backing array includes the
// configured prepend/append headroom so later Resize calls can grow without
// reallocating.
//
// For KindPicture, size is interpreted as hsize and a second dimension is
// required — callers should use AllocatePicture. For KindSound use
// AllocateSound. Allocate exists for the block (most common) case and to
// satisfy a single polymorphic entry point per spec text; it returns an
// error for the other kinds.
func (m *Manager) Allocate(size int) (*Ubuf, error) {
	if m.Kind != KindBlock {
		return nil, fmt.Errorf("ubuf: Allocate(size) only valid for block managers, use AllocatePicture/AllocateSound")
	}
	total := m.Prepend + size + m.AppendHeadroom
	if m.Align > 1 {
		total += m.Align
	}
	backing := m.pool.Get(total)
	offset := m.Prepend
	if m.Align > 1 {
		rem := (offset - m.AlignOff) % m.Align
		if rem < 0 {
			rem += m.Align
		}
		if rem != 0 {
			offset += m.Align - rem
		}
	}
	u := &Ubuf{Kind: KindBlock, Block: &Block{backing: backing, Offset: offset, Size: size}, mgr: m}
	u.ref = refcount.New(u.onDead)
	return u, nil
}

// AllocatePicture creates a picture ubuf sized hsize x vsize, with one
// backing plane per registered PlaneDef, each subsampled and strided
// accordingly.
func (m *Manager) AllocatePicture(hsize, vsize int) (*Ubuf, error) {
	if m.Kind != KindPicture {
		return nil, fmt.Errorf("ubuf: AllocatePicture requires a picture manager")
	}
	if len(m.planes) == 0 {
		return nil, fmt.Errorf("ubuf: no planes registered")
	}
	pic := &Picture{HSize: hsize, VSize: vsize, Planes: map[string]*Plane{}}
	for _, def := range m.planes {
		w := ceilDiv(hsize, def.HSub)
		h := ceilDiv(vsize, def.VSub)
		stride := w
		data := make([]byte, stride*h)
		pic.Planes[def.Name] = &Plane{Name: def.Name, Data: data, Stride: stride, HSub: def.HSub, VSub: def.VSub}
		pic.order = append(pic.order, def.Name)
	}
	u := &Ubuf{Kind: KindPicture, Picture: pic, mgr: m}
	u.ref = refcount.New(u.onDead)
	return u, nil
}

// AllocateSound creates a sound ubuf with the given sample count, rate, and
// sample size (bytes/sample), one plane per registered channel.
func (m *Manager) AllocateSound(samples int, rate uint32, sampleSize int) (*Ubuf, error) {
	if m.Kind != KindSound {
		return nil, fmt.Errorf("ubuf: AllocateSound requires a sound manager")
	}
	if len(m.planes) == 0 {
		return nil, fmt.Errorf("ubuf: no planes registered")
	}
	snd := &Sound{Samples: samples, Rate: rate, SampleSize: sampleSize, Planes: map[string]*Plane{}}
	for _, def := range m.planes {
		data := make([]byte, samples*sampleSize)
		snd.Planes[def.Name] = &Plane{Name: def.Name, Data: data}
		snd.order = append(snd.order, def.Name)
	}
	u := &Ubuf{Kind: KindSound, Sound: snd, mgr: m}
	u.ref = refcount.New(u.onDead)
	return u, nil
}

// Resize shrinks or grows a single-owner block buffer by adjusting its
// offset/size window (zero-copy) when the new window still fits the backing
// array; otherwise it reallocates and copies (spec §4.B).
func (m *Manager) Resize(u *Ubuf, offset, newSize int) error {
	if u == nil || u.Kind != KindBlock {
		return fmt.Errorf("ubuf: Resize only valid for block ubufs")
	}
	b := u.Block
	newStart := b.Offset + offset
	if newStart >= 0 && newStart+newSize <= len(b.backing) && u.Single() {
		b.Offset = newStart
		b.Size = newSize
		return nil
	}
	// Not single-owner or doesn't fit: reallocate and copy the visible window.
	total := m.Prepend + newSize + m.AppendHeadroom
	nb := m.pool.Get(total)
	src := b.Data()
	lo, hi := 0, len(src)
	// Compute overlap between the requested [offset, offset+newSize) window
	// (relative to the old visible data) and the old data itself.
	if offset < 0 {
		lo = -offset
	}
	if offset+newSize < hi {
		hi = offset + newSize
	}
	dstOff := m.Prepend
	if offset < 0 {
		dstOff += -offset
	}
	if lo < hi {
		copy(nb[dstOff:], src[lo:hi])
	}
	b.backing = nb
	b.Offset = m.Prepend
	b.Size = newSize
	return nil
}

// Append chains src onto the end of dst's block list without copying,
// matching spec's "append/insert another ubuf (chaining)".
func (m *Manager) Append(dst, src *Ubuf) error {
	if dst == nil || src == nil || dst.Kind != KindBlock || src.Kind != KindBlock {
		return fmt.Errorf("ubuf: Append only valid for block ubufs")
	}
	tail := dst.Block
	for tail.Next != nil {
		tail = tail.Next
	}
	tail.Next = src.Block
	return nil
}

// IteratePlanes returns the ordered plane names of a picture or sound ubuf.
func IteratePlanes(u *Ubuf) []string {
	if u == nil {
		return nil
	}
	switch u.Kind {
	case KindPicture:
		return append([]string{}, u.Picture.order...)
	case KindSound:
		return append([]string{}, u.Sound.order...)
	}
	return nil
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		b = 1
	}
	return (a + b - 1) / b
}

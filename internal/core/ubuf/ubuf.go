// Package ubuf implements the buffer record (spec §3, §4.B): a typed,
// immutable-by-default byte carrier with three variants — block, picture,
// and sound — plus the polymorphic manager that allocates, resizes, maps,
// and chains them.
//
// The shape mirrors the teacher's chunk.ChunkStreamState reassembly buffers
// (internal/rtmp/chunk/state.go) in spirit — rolling, size-class-backed
// scratch storage — generalized from "one RTMP chunk stream" to "one typed
// media buffer with refcounted single-owner semantics".
package ubuf

import (
	"fmt"

	"github.com/alxayo/streamengine/internal/core/refcount"
)

// Kind identifies which variant a Ubuf carries.
type Kind int

const (
	KindBlock Kind = iota
	KindPicture
	KindSound
)

func (k Kind) String() string {
	switch k {
	case KindBlock:
		return "block"
	case KindPicture:
		return "picture"
	case KindSound:
		return "sound"
	default:
		return "unknown"
	}
}

// Plane is one named plane of a Picture or Sound buffer: a chroma component
// (e.g. "y8", "u8", "v8") or a channel name, with its own backing storage.
type Plane struct {
	Name       string
	Data       []byte
	Stride     int // bytes per row (picture) or per sample frame (sound, informational)
	HSub, VSub int // horizontal/vertical subsampling factor (picture only, 1 for sound)
	mapped     bool
}

// Block is a contiguous octet sequence with an offset/size window into a
// (possibly larger, headroom-padded) backing array, plus an optional chain
// link to the next block for append-without-copy concatenation.
type Block struct {
	backing    []byte
	Offset     int
	Size       int
	Next       *Block // chained block, nil if this is the tail
}

// Data returns the currently visible window of the block.
func (b *Block) Data() []byte {
	if b == nil {
		return nil
	}
	return b.backing[b.Offset : b.Offset+b.Size]
}

// Picture holds one or more named planes for a raster image.
type Picture struct {
	HSize, VSize int
	Planes       map[string]*Plane
	order        []string
}

// Sound holds one or more named planes (channels) of interleaved or planar
// samples.
type Sound struct {
	Samples    int
	Rate       uint32
	SampleSize int // bytes per sample
	Planes     map[string]*Plane
	order      []string
}

// Ubuf is the tagged-union buffer record. Exactly one of Block/Picture/Sound
// is populated, selected by Kind.
type Ubuf struct {
	Kind    Kind
	Block   *Block
	Picture *Picture
	Sound   *Sound
	ref     *refcount.RefCount
	mgr     *Manager
}

// Single reports whether this Ubuf has exactly one owner, i.e. whether an
// in-place (zero-copy) mutation is safe.
func (u *Ubuf) Single() bool {
	if u == nil || u.ref == nil {
		return true
	}
	return u.ref.Single()
}

// Use takes an additional reference on the buffer (shared ownership).
func (u *Ubuf) Use() *Ubuf {
	if u == nil {
		return nil
	}
	u.ref.Use()
	return u
}

// Free releases a reference; when the last one drops, backing storage is
// returned to the manager's pool (block kind) or simply dropped (picture/
// sound, which may be backed by codec-owned memory via direct rendering).
func (u *Ubuf) Free() {
	if u == nil {
		return
	}
	u.ref.Release()
}

// Dup duplicates the record. Per spec §4.B, ubuf duplication follows its own
// copy-on-write policy: block buffers whose manager is still present are
// shared (refcount bump) unless the caller explicitly requests a deep copy
// via Clone.
func (u *Ubuf) Dup() *Ubuf {
	if u == nil {
		return nil
	}
	return u.Use()
}

// Clone performs a true deep copy, independent of the original's refcount.
func (u *Ubuf) Clone() (*Ubuf, error) {
	if u == nil {
		return nil, nil
	}
	switch u.Kind {
	case KindBlock:
		nb := make([]byte, u.Block.Size)
		copy(nb, u.Block.Data())
		out := &Ubuf{Kind: KindBlock, Block: &Block{backing: nb, Offset: 0, Size: len(nb)}, mgr: u.mgr}
		out.ref = refcount.New(out.onDead)
		return out, nil
	case KindPicture:
		np := &Picture{HSize: u.Picture.HSize, VSize: u.Picture.VSize, Planes: map[string]*Plane{}, order: append([]string{}, u.Picture.order...)}
		for _, name := range u.Picture.order {
			p := u.Picture.Planes[name]
			cp := make([]byte, len(p.Data))
			copy(cp, p.Data)
			np.Planes[name] = &Plane{Name: name, Data: cp, Stride: p.Stride, HSub: p.HSub, VSub: p.VSub}
		}
		out := &Ubuf{Kind: KindPicture, Picture: np, mgr: u.mgr}
		out.ref = refcount.New(out.onDead)
		return out, nil
	case KindSound:
		ns := &Sound{Samples: u.Sound.Samples, Rate: u.Sound.Rate, SampleSize: u.Sound.SampleSize, Planes: map[string]*Plane{}, order: append([]string{}, u.Sound.order...)}
		for _, name := range u.Sound.order {
			p := u.Sound.Planes[name]
			cp := make([]byte, len(p.Data))
			copy(cp, p.Data)
			ns.Planes[name] = &Plane{Name: name, Data: cp}
		}
		out := &Ubuf{Kind: KindSound, Sound: ns, mgr: u.mgr}
		out.ref = refcount.New(out.onDead)
		return out, nil
	}
	return nil, fmt.Errorf("ubuf: unknown kind %v", u.Kind)
}

func (u *Ubuf) onDead() {
	if u.mgr == nil {
		return
	}
	if u.Kind == KindBlock && u.Block != nil && u.Block.Next == nil {
		u.mgr.pool.Put(u.Block.backing)
	}
}

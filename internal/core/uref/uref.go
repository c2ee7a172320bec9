package uref

import "github.com/alxayo/streamengine/internal/core/ubuf"

// Domain identifies one of the three timestamp domains a uref tracks.
type Domain int

const (
	DomainProgram Domain = iota
	DomainSystem
	DomainOrig
	numDomains
)

// Unset is the sentinel value meaning "this timestamp has not been set",
// matching upipe's UINT64_MAX convention translated to a signed space so
// ordinary arithmetic (subtraction, comparison) doesn't need special-casing
// at every call site except the explicit IsSet check.
const Unset int64 = -1

// Uref is the carrier record of spec §3: it owns exactly one Ubuf (may be
// nil for a control uref), an attribute dictionary, an intrusive Next link
// for attaching sibling records (e.g. a pending flow-def amendment), and a
// chain link for list membership (used by the SRT receiver reorder buffer,
// the input helper, etc).
type Uref struct {
	Ubuf *ubuf.Ubuf
	Dict *Dict

	// Next attaches a sibling record, e.g. a flow-def amendment riding along
	// with a data uref.
	Next *Uref

	// chain link for intrusive list membership; exported via ChainNext so
	// list-holding helpers (input buffering, reorder buffers) can splice
	// without a second allocation.
	ChainNext *Uref

	dts [numDomains]int64
	pts [numDomains]int64
	cr  [numDomains]int64

	ptsDelay int64 // dts-pts delay, ticks
	rateNum  int64
	rateDen  int64
}

// New creates a control uref (no backing ubuf).
func New() *Uref {
	return newUref(nil)
}

// NewData creates a data uref owning the given ubuf.
func NewData(b *ubuf.Ubuf) *Uref {
	return newUref(b)
}

func newUref(b *ubuf.Ubuf) *Uref {
	u := &Uref{Dict: NewDict()}
	u.Ubuf = b
	for i := range u.dts {
		u.dts[i] = Unset
		u.pts[i] = Unset
		u.cr[i] = Unset
	}
	u.ptsDelay = Unset
	return u
}

// Dup duplicates the record: the dictionary is deep-copied; the ubuf follows
// its own copy-on-write policy (Dup bumps its refcount rather than copying).
func (u *Uref) Dup() *Uref {
	if u == nil {
		return nil
	}
	nu := &Uref{
		Dict:     u.Dict.Dup(),
		dts:      u.dts,
		pts:      u.pts,
		cr:       u.cr,
		ptsDelay: u.ptsDelay,
		rateNum:  u.rateNum,
		rateDen:  u.rateDen,
	}
	if u.Ubuf != nil {
		nu.Ubuf = u.Ubuf.Dup()
	}
	return nu
}

// Free releases the owned ubuf, if any. The Uref struct itself is left to
// the garbage collector, matching Go idiom (no manual free of the carrier,
// only of the heavier, possibly-pooled buffer it owns).
func (u *Uref) Free() {
	if u == nil {
		return
	}
	if u.Ubuf != nil {
		u.Ubuf.Free()
		u.Ubuf = nil
	}
}

// Dts/Pts/Cr -----------------------------------------------------------------

func (u *Uref) Dts(d Domain) (int64, bool) { return get(u.dts[d]) }
func (u *Uref) SetDts(d Domain, v int64)   { u.dts[d] = v }

func (u *Uref) Pts(d Domain) (int64, bool) { return get(u.pts[d]) }
func (u *Uref) SetPts(d Domain, v int64)   { u.pts[d] = v }

func (u *Uref) Cr(d Domain) (int64, bool) { return get(u.cr[d]) }
func (u *Uref) SetCr(d Domain, v int64)   { u.cr[d] = v }

func (u *Uref) PtsDelay() (int64, bool)   { return get(u.ptsDelay) }
func (u *Uref) SetPtsDelay(v int64)       { u.ptsDelay = v }

// SetRate sets the rate struct (num/den). Dup copies it; RebaseDates does
// not apply it.
func (u *Uref) SetRate(num, den int64) { u.rateNum, u.rateDen = num, den }

// RebaseDates shifts every set timestamp in every domain by delta ticks,
// letting a pipe rebase dates when it changes the zero point of its
// timeline.
func (u *Uref) RebaseDates(delta int64) {
	for i := range u.dts {
		if u.dts[i] != Unset {
			u.dts[i] += delta
		}
		if u.pts[i] != Unset {
			u.pts[i] += delta
		}
		if u.cr[i] != Unset {
			u.cr[i] += delta
		}
	}
}

func get(v int64) (int64, bool) {
	if v == Unset {
		return 0, false
	}
	return v, true
}

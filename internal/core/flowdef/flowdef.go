// Package flowdef implements the flow definition (spec §3, §4.B, §6): a
// control-type uref whose dictionary carries a "def" string following the
// grammar `class ("." subclass)*` plus format-specific attributes.
package flowdef

import (
	"strings"

	"github.com/alxayo/streamengine/internal/core/uref"
)

// Well-known attribute keys.
const (
	KeyDef       = "def"
	KeyHSize     = "hsize"
	KeyVSize     = "vsize"
	KeyFPS       = "fps" // rational
	KeySAR       = "sar" // rational, sample aspect ratio
	KeyRate      = "rate"
	KeyChannels  = "channels"
	KeyPlanes    = "planes"
	KeySampleSz  = "sample_size"
	KeyOctetRate = "octetrate"
	KeyHeaders   = "headers" // opaque codec headers (e.g. SPS/PPS, extradata)

	// KeyDuration and KeyFrame are not flow-definition attributes but uref
	// dictionary attributes carried on data urefs themselves (uref has no
	// dedicated duration field, and no boolean dict value kind for a
	// key-frame flag — presence of KeyFrame with value 1 stands in for
	// true). Declared here, rather than per-package, so avformat, avcodec,
	// and audiocont agree on the same wire key without importing each
	// other.
	KeyDuration = "duration"
	KeyFrame    = "key_frame"
)

// Def classes per spec §6 grammar.
const (
	ClassVoid      = "void"
	ClassBlock     = "block"
	ClassPic       = "pic"
	ClassPicSub    = "pic.sub"
	ClassSoundF32  = "sound.f32"
	ClassSoundS16  = "sound.s16"
)

// New creates a control uref carrying the given def string.
func New(def string) *uref.Uref {
	u := uref.New()
	u.Dict.SetString(KeyDef, def)
	return u
}

// Def returns the def string, or "" if absent.
func Def(f *uref.Uref) string {
	if f == nil || f.Dict == nil {
		return ""
	}
	d, _ := f.Dict.GetString(KeyDef)
	return d
}

// MatchesPrefix reports whether f's def string matches prefix by dotted
// class-prefix comparison (spec §6: "Comparators match by prefix").
func MatchesPrefix(f *uref.Uref, prefix string) bool {
	def := Def(f)
	if def == prefix {
		return true
	}
	return strings.HasPrefix(def, prefix+".")
}

// Equal reports whether two flow definitions compare equal: their
// dictionaries match structurally (spec §3, §4.B).
func Equal(a, b *uref.Uref) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Dict.Equal(b.Dict)
}

// Amend returns a duplicate of f with the given mutation applied, for a
// pipe that must publish a new flow definition derived from the prior one.
func Amend(f *uref.Uref, mutate func(*uref.Uref)) *uref.Uref {
	nf := f.Dup()
	if mutate != nil {
		mutate(nf)
	}
	return nf
}

// SetPictureAttrs sets the common picture attributes.
func SetPictureAttrs(f *uref.Uref, hsize, vsize int, fpsNum, fpsDen int64) {
	f.Dict.SetUnsigned(KeyHSize, uint64(hsize))
	f.Dict.SetUnsigned(KeyVSize, uint64(vsize))
	f.Dict.SetRational(KeyFPS, fpsNum, fpsDen)
}

// SetSoundAttrs sets the common sound attributes.
func SetSoundAttrs(f *uref.Uref, rate uint64, channels, planes, sampleSize int) {
	f.Dict.SetUnsigned(KeyRate, rate)
	f.Dict.SetUnsigned(KeyChannels, uint64(channels))
	f.Dict.SetUnsigned(KeyPlanes, uint64(planes))
	f.Dict.SetUnsigned(KeySampleSz, uint64(sampleSize))
}

// PictureSize returns hsize/vsize, defaulting to 0 if unset.
func PictureSize(f *uref.Uref) (hsize, vsize int) {
	h, _ := f.Dict.GetUnsigned(KeyHSize)
	v, _ := f.Dict.GetUnsigned(KeyVSize)
	return int(h), int(v)
}

package audiocont

import (
	"encoding/binary"
	"math"
)

// ubuf plane data is an untyped []byte (internal/core/ubuf.Plane), so the
// crossblender's per-sample arithmetic has to decode/encode IEEE 754
// float32 values explicitly rather than reinterpreting the slice with
// unsafe — keeping this package portable and free of the usual unsafe
// aliasing hazards for a handful of extra instructions per sample.

func readFloat32(b []byte, i int) float32 {
	off := i * DefaultSampleSize
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off : off+DefaultSampleSize]))
}

func writeFloat32(b []byte, i int, v float32) {
	off := i * DefaultSampleSize
	binary.LittleEndian.PutUint32(b[off:off+DefaultSampleSize], math.Float32bits(v))
}

// scaleAndSum adds scale*src[i] into dst[i] for the first n samples common
// to both slices, implementing spec §4.M steps 4/5 ("scales each sample...
// sums into the output").
func scaleAndSum(dst, src []byte, scale float32, n int) {
	maxDst := len(dst) / DefaultSampleSize
	maxSrc := len(src) / DefaultSampleSize
	if n > maxDst {
		n = maxDst
	}
	if n > maxSrc {
		n = maxSrc
	}
	for i := 0; i < n; i++ {
		writeFloat32(dst, i, readFloat32(dst, i)+scale*readFloat32(src, i))
	}
}

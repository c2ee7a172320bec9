//go:build !linux && !windows

package upump

import (
	"os"

	"golang.org/x/sys/unix"
)

// signalImpl on non-Linux unixes falls back to the classic self-pipe trick
// (spec §4.C: "implemented atop either a kernel eventfd-like primitive or a
// self-pipe"): a pipe(2) pair where signal() writes one byte (best-effort,
// EAGAIN on a full pipe is fine since the reader only cares that *some*
// byte arrived) and drain() reads until empty.
type signalImpl struct {
	r, w *os.File
}

func newSignal() (*signalImpl, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(int(r.Fd()), true); err != nil {
		r.Close()
		w.Close()
		return nil, err
	}
	if err := unix.SetNonblock(int(w.Fd()), true); err != nil {
		r.Close()
		w.Close()
		return nil, err
	}
	return &signalImpl{r: r, w: w}, nil
}

func (s *signalImpl) fd() int { return int(s.r.Fd()) }

func (s *signalImpl) signal() {
	var b [1]byte
	_, _ = s.w.Write(b[:])
}

func (s *signalImpl) drain() {
	var buf [64]byte
	for {
		n, err := s.r.Read(buf[:])
		if n == 0 || err != nil {
			return
		}
	}
}

func (s *signalImpl) close() {
	s.r.Close()
	s.w.Close()
}

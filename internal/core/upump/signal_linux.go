//go:build linux

package upump

import "golang.org/x/sys/unix"

// signalImpl on Linux is backed by eventfd(2): non-blocking, coalescing
// (multiple signals before a drain collapse into one wakeup), and safe to
// write from any thread while the loop goroutine reads it (spec §4.C
// ueventfd contract).
type signalImpl struct {
	efd int
}

func newSignal() (*signalImpl, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &signalImpl{efd: fd}, nil
}

func (s *signalImpl) fd() int { return s.efd }

func (s *signalImpl) signal() {
	var buf [8]byte
	buf[7] = 1
	_, _ = unix.Write(s.efd, buf[:])
}

// drain reads the counter, collapsing any pending writes into a single
// wakeup ("readable-one-shot": a single read drains all writes).
func (s *signalImpl) drain() {
	var buf [8]byte
	_, _ = unix.Read(s.efd, buf[:])
}

func (s *signalImpl) close() {
	_ = unix.Close(s.efd)
}

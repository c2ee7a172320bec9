//go:build windows

package upump

import "errors"

// signalImpl has no Windows backend yet: there is no first-class poll(2)
// target to register a self-pipe read-end against via this package's
// poller. AllocSignal returns an error on Windows rather than silently
// never firing.
type signalImpl struct{}

func newSignal() (*signalImpl, error) {
	return nil, errors.New("upump: signal watcher unsupported on windows")
}

func (s *signalImpl) fd() int    { return -1 }
func (s *signalImpl) signal()    {}
func (s *signalImpl) drain()     {}
func (s *signalImpl) close()     {}

//go:build !windows

package upump

import (
	"sync"

	"golang.org/x/sys/unix"
)

// poller is the fd-readiness backend. It is intentionally a thin wrapper
// around POSIX poll(2) (via golang.org/x/sys/unix) rather than an
// edge-triggered epoll ring: spec §4.C only asks for level-triggered
// readable/writable watchers plus a handful of long-lived fds per manager,
// which is exactly what poll(2) is good at and keeps the implementation
// portable across linux/darwin/bsd without per-OS epoll/kqueue branches.
type poller interface {
	add(w *Watcher)
	remove(w *Watcher)
	// poll returns the watchers whose fd is ready, blocking up to
	// timeoutMs (0 = return immediately).
	poll(timeoutMs int) []*Watcher
}

type unixPoller struct {
	mu sync.Mutex
	ws map[int][]*Watcher // fd -> watchers registered on it (readable and/or writable)
}

func newPoller() poller {
	return &unixPoller{ws: make(map[int][]*Watcher)}
}

func (p *unixPoller) add(w *Watcher) {
	if w.kind == KindSignal {
		w.fd = w.sig.fd()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ws[w.fd] = append(p.ws[w.fd], w)
}

func (p *unixPoller) remove(w *Watcher) {
	fd := w.fd
	if w.kind == KindSignal && w.sig != nil {
		fd = w.sig.fd()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	lst := p.ws[fd]
	for i, ww := range lst {
		if ww == w {
			p.ws[fd] = append(lst[:i], lst[i+1:]...)
			break
		}
	}
	if len(p.ws[fd]) == 0 {
		delete(p.ws, fd)
	}
}

func (p *unixPoller) poll(timeoutMs int) []*Watcher {
	p.mu.Lock()
	if len(p.ws) == 0 {
		p.mu.Unlock()
		return nil
	}
	fds := make([]unix.PollFd, 0, len(p.ws))
	watchersByFD := make(map[int][]*Watcher, len(p.ws))
	for fd, ws := range p.ws {
		var events int16
		for _, w := range ws {
			switch w.kind {
			case KindFDReadable, KindSignal:
				events |= unix.POLLIN
			case KindFDWritable:
				events |= unix.POLLOUT
			}
		}
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: events})
		watchersByFD[fd] = ws
	}
	p.mu.Unlock()

	n, err := unix.Poll(fds, timeoutMs)
	if err != nil || n <= 0 {
		return nil
	}

	var out []*Watcher
	for _, pfd := range fds {
		if pfd.Revents == 0 {
			continue
		}
		for _, w := range watchersByFD[int(pfd.Fd)] {
			switch w.kind {
			case KindFDReadable, KindSignal:
				if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
					out = append(out, w)
				}
			case KindFDWritable:
				if pfd.Revents&(unix.POLLOUT|unix.POLLHUP|unix.POLLERR) != 0 {
					out = append(out, w)
				}
			}
		}
	}
	return out
}

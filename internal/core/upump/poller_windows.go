//go:build windows

package upump

// Windows has no first-class poll(2)/epoll equivalent exposed identically
// through golang.org/x/sys; fd-readable/writable watchers are unsupported
// there today. The signal watcher has no Windows backend either
// (signal_windows.go): AllocSignal returns an error, so the deal primitive
// (§4.E) and cross-manager wakeups are unavailable there as well.
type noopPoller struct{}

func newPoller() poller { return noopPoller{} }

func (noopPoller) add(w *Watcher)    {}
func (noopPoller) remove(w *Watcher) {}
func (noopPoller) poll(timeoutMs int) []*Watcher { return nil }

package sender

import (
	"time"

	"github.com/alxayo/streamengine/internal/core/upump"
)

const drainPeriod = time.Second

// AttachUpumpMgr starts the 1-second retransmission-buffer drain timer
// (spec §4.L "Retransmission buffer drain (every 1 s)"). onErr, if
// non-nil, receives any error returned by a Drain/DROPREQ send so the
// owning pipe can throw a probe event.
func (s *Sender) AttachUpumpMgr(mgr *upump.Manager, onErr func(error)) *upump.Watcher {
	w := mgr.AllocTimer(drainPeriod, drainPeriod, func(any) {
		if err := s.Drain(); err != nil && onErr != nil {
			onErr(err)
		}
	}, nil)
	w.Start()
	return w
}

package handshake

import "github.com/alxayo/streamengine/internal/core/upump"

const (
	retransmitPeriodMs = 250
	handshakeTimeoutMs = 3000
	keepaliveMs        = 1000
	peerIdleMs         = 10000
	rekeyRetryMs       = 1000
)

// AttachUpumpMgr wires the handshake's retransmit/timeout/keepalive timers
// to mgr (ATTACH_UPUMP_MGR equivalent, spec §4.J). Must be called before
// Start for the caller side's retransmit-every-250ms behavior to take
// effect.
func (h *Handshake) AttachUpumpMgr(mgr *upump.Manager) {
	h.mgr = mgr
	if h.Mode == ModeCaller {
		h.retransmitTimer = mgr.AllocTimer(msToDuration(retransmitPeriodMs), msToDuration(retransmitPeriodMs), func(any) {
			if h.State == StateInductionSent {
				_ = h.sendInduction()
			}
		}, nil)
		h.retransmitTimer.Start()
	}
	h.timeoutTimer = mgr.AllocTimer(msToDuration(handshakeTimeoutMs), 0, func(any) {
		if !h.established {
			h.State = StateClosed
			if h.onRejected != nil {
				h.onRejected("handshake timeout")
			}
		}
	}, nil)
	h.timeoutTimer.Start()
}

// StartKeepalive begins the post-establishment keepalive/idle-timeout
// timers (spec §4.J: "if no packet sent for 1s, emit keepalive; if no
// traffic received for 10s, raise source-end"). sendKeepalive and
// onIdleTimeout are injected so this package stays agnostic of the
// transport's send-activity bookkeeping.
func (h *Handshake) StartKeepalive(sendKeepalive func(), onIdleTimeout func()) {
	if h.mgr == nil {
		return
	}
	h.keepaliveTimer = h.mgr.AllocTimer(msToDuration(keepaliveMs), msToDuration(keepaliveMs), func(any) {
		sendKeepalive()
	}, nil)
	h.keepaliveTimer.Start()
	h.mgr.AllocTimer(msToDuration(peerIdleMs), msToDuration(peerIdleMs), func(any) {
		onIdleTimeout()
	}, nil).Start()
}

func (h *Handshake) stopRetransmit() {
	if h.retransmitTimer != nil {
		h.retransmitTimer.Stop()
	}
	if h.timeoutTimer != nil {
		h.timeoutTimer.Stop()
	}
}

// Shutdown emits a shutdown control packet before teardown (spec §4.J).
func (h *Handshake) Shutdown() error {
	if h.keepaliveTimer != nil {
		h.keepaliveTimer.Stop()
	}
	hdr := shutdownHeader(h.RemoteSocketID)
	h.State = StateClosed
	if h.Send == nil {
		return nil
	}
	return h.Send(hdr)
}

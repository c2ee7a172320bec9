package upipe

import (
	"time"

	"github.com/alxayo/streamengine/internal/core/upump"
	pipeerrors "github.com/alxayo/streamengine/internal/errors"
)

// HandleCommon dispatches the commands every pipe answers identically
// regardless of its concrete kind (sub-pipe iteration, request
// registration, upump/uclock attachment). Concrete Control implementations
// call this first and fall through to their own switch only when handled
// is false, matching the teacher's control.Handler.Dispatch convention of
// a shared prologue before the per-message-type switch.
func (b *Base) HandleCommon(cmd *Command, out *OutputHelper) (handled bool, err error) {
	switch cmd.Kind {
	case CmdGetSubMgr:
		cmd.SubMgr = b.subs
		return true, nil
	case CmdIterateSub:
		cmd.SubCursor = b.subs.Iterate(cmd.SubCursor)
		return true, nil
	case CmdSubGetSuper:
		cmd.Super = b.subs.Super()
		return true, nil
	case CmdRegisterRequest:
		if cmd.Req == nil {
			return true, pipeerrors.NewPipeError(pipeerrors.CodeInvalid, "control.register_request", nil)
		}
		cmd.Req.Register(b.chain)
		return true, nil
	case CmdUnregisterRequest:
		if cmd.Req != nil {
			cmd.Req.Unregister()
		}
		return true, nil
	case CmdGetOutput:
		if out == nil {
			return true, pipeerrors.NewPipeError(pipeerrors.CodeUnhandled, "control.get_output", nil)
		}
		cmd.Output = out.Output()
		return true, nil
	case CmdSetOutput:
		if out == nil {
			return true, pipeerrors.NewPipeError(pipeerrors.CodeUnhandled, "control.set_output", nil)
		}
		out.SetOutput(cmd.Output)
		return true, nil
	case CmdAttachUpumpMgr, CmdAttachUclock:
		// Concrete pipes that own pumps/timers override these by handling the
		// kind before calling HandleCommon; a pipe with neither simply
		// acknowledges; the attachment is not forwarded to its sub-pipes.
		return true, nil
	default:
		return false, nil
	}
}

// AllocTimer is a convenience forwarding to mgr.AllocTimer, kept here so
// callers that only have a *Command{UpumpMgr: ...} in hand don't need to
// import upump just to allocate a watcher off it.
func AllocTimer(mgr *upump.Manager, delay, period time.Duration, cb func()) *upump.Watcher {
	return mgr.AllocTimer(delay, period, func(any) { cb() }, nil)
}

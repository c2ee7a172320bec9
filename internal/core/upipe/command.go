// Package upipe implements the pipe runtime of spec §4.D: allocation,
// control dispatch, output linkage, probe chain, and sub-pipe aggregation.
//
// The control command set is a typed sum type rather than the C original's
// numeric-command-plus-va_list convention, per spec §9 REDESIGN FLAGS
// ("move the command-number/va_list pair to a typed enum"). Dispatch style
// is grounded on the teacher's control.Handler
// (internal/rtmp/control/handler.go), which already does "switch on a typed
// command, return a typed result, unknown command is an error" — we widen
// the switch from RTMP control-message IDs to the pipe command enum of
// spec §6.
package upipe

import (
	"github.com/alxayo/streamengine/internal/core/request"
	"github.com/alxayo/streamengine/internal/core/upump"
	"github.com/alxayo/streamengine/internal/core/uref"
)

// CommandKind enumerates the stable numeric control commands of spec §6.
type CommandKind int

const (
	CmdSetFlowDef CommandKind = iota
	CmdGetFlowDef
	CmdGetOutput
	CmdSetOutput
	CmdRegisterRequest
	CmdUnregisterRequest
	CmdAttachUpumpMgr
	CmdAttachUclock
	CmdGetURI
	CmdSetURI
	CmdGetOption
	CmdSetOption
	CmdGetOutputSize
	CmdSetOutputSize
	CmdGetSubMgr
	CmdIterateSub
	CmdSubGetSuper
	CmdSplitIterate
	// CmdSubsystem is the base of the subsystem-signed command range (SRT/
	// http/avformat-specific commands, e.g. SET_LATENCY, SET_STREAM_ID).
	CmdSubsystem
)

func (k CommandKind) String() string {
	names := map[CommandKind]string{
		CmdSetFlowDef: "SET_FLOW_DEF", CmdGetFlowDef: "GET_FLOW_DEF",
		CmdGetOutput: "GET_OUTPUT", CmdSetOutput: "SET_OUTPUT",
		CmdRegisterRequest: "REGISTER_REQUEST", CmdUnregisterRequest: "UNREGISTER_REQUEST",
		CmdAttachUpumpMgr: "ATTACH_UPUMP_MGR", CmdAttachUclock: "ATTACH_UCLOCK",
		CmdGetURI: "GET_URI", CmdSetURI: "SET_URI",
		CmdGetOption: "GET_OPTION", CmdSetOption: "SET_OPTION",
		CmdGetOutputSize: "GET_OUTPUT_SIZE", CmdSetOutputSize: "SET_OUTPUT_SIZE",
		CmdGetSubMgr: "GET_SUB_MGR", CmdIterateSub: "ITERATE_SUB",
		CmdSubGetSuper: "SUB_GET_SUPER", CmdSplitIterate: "SPLIT_ITERATE",
	}
	if n, ok := names[k]; ok {
		return n
	}
	return "SUBSYSTEM"
}

// Command is the typed argument/result carrier for a single control call.
// Only the fields relevant to Kind are populated; this replaces the C
// API's printf-style variadic marshalling (spec §9).
type Command struct {
	Kind CommandKind

	FlowDef    *uref.Uref  // in: SET_FLOW_DEF; out: GET_FLOW_DEF
	Output     Pipe        // in: SET_OUTPUT; out: GET_OUTPUT
	Req        *request.Request // in: REGISTER_REQUEST/UNREGISTER_REQUEST
	UpumpMgr   *upump.Manager   // in: ATTACH_UPUMP_MGR
	Uclock     upump.Clock      // in: ATTACH_UCLOCK
	URI        string           // in/out: SET_URI/GET_URI
	OptionKey  string           // in: GET_OPTION/SET_OPTION
	OptionVal  string           // in: SET_OPTION; out: GET_OPTION
	OutputSize int              // in/out: SET_OUTPUT_SIZE/GET_OUTPUT_SIZE
	SubMgr     *SubManager      // out: GET_SUB_MGR
	SubCursor  Pipe             // in/out: ITERATE_SUB (nil starts iteration)
	Super      Pipe             // out: SUB_GET_SUPER
	SplitIdx   int              // in/out: SPLIT_ITERATE
	Subsystem  any              // subsystem-signed command payload
}

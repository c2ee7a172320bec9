package handshake

import (
	"time"

	"github.com/alxayo/streamengine/internal/srt/wire"
)

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func shutdownHeader(dst uint32) []byte {
	return wire.ControlHeader{Type: wire.CtrlShutdown, DestSocketID: dst}.Encode()
}

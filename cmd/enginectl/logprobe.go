package main

import (
	"log/slog"

	"github.com/alxayo/streamengine/internal/core/request"
)

// logProbe is the root probe every graph-built pipe's Base inherits,
// turning unhandled FATAL/ERROR/READY/DEAD events into structured log
// lines instead of letting them vanish at the top of the chain.
type logProbe struct {
	log *slog.Logger
}

// pipeID reports e.Pipe's stable Base.ID() when available, falling back to
// the bare value so a pipe without an embedded Base still logs.
func pipeID(p any) any {
	if idp, ok := p.(interface{ ID() string }); ok {
		return idp.ID()
	}
	return p
}

func (p *logProbe) Handle(e request.Event) bool {
	switch e.Type {
	case request.EventFatal:
		p.log.Error("pipe fatal", "pipe", pipeID(e.Pipe), "code", e.Code, "message", e.Message)
	case request.EventError:
		p.log.Warn("pipe error", "pipe", pipeID(e.Pipe), "code", e.Code, "message", e.Message)
	case request.EventReady:
		p.log.Info("pipe ready", "pipe", pipeID(e.Pipe))
	case request.EventDead:
		p.log.Info("pipe dead", "pipe", pipeID(e.Pipe))
	case request.EventSourceEnd:
		p.log.Info("source end", "pipe", pipeID(e.Pipe))
	default:
		return false
	}
	return true
}

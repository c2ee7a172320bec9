package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alxayo/streamengine/internal/audiocont"
	"github.com/alxayo/streamengine/internal/core/flowdef"
	"github.com/alxayo/streamengine/internal/core/request"
	"github.com/alxayo/streamengine/internal/core/ubuf"
	"github.com/alxayo/streamengine/internal/core/upipe"
	"github.com/alxayo/streamengine/internal/core/upump"
	"github.com/alxayo/streamengine/internal/core/uref"
	"github.com/alxayo/streamengine/internal/source/httpsrc"
)

// closer is satisfied by every node kind the graph tears down on Stop.
type closer interface {
	Close() error
}

// Graph is a running instance of a Config: the crossblender, its wired
// inputs, the clock timer driving ticks, and the output sink.
type Graph struct {
	mgr     *upump.Manager
	cb      *audiocont.Crossblender
	log     *slog.Logger
	closers []closer
	stdout  *stdoutSink
}

// BuildGraph instantiates every pipe cfg names and wires the edges spec §6
// describes: named inputs → crossblender → clock-driven tick → output.
func BuildGraph(cfg *Config, mgr *upump.Manager, log *slog.Logger) (*Graph, error) {
	period, err := time.ParseDuration(cfg.CrossblendPeriod)
	if err != nil {
		return nil, fmt.Errorf("enginectl: parse crossblend_period: %w", err)
	}
	periodTicks := upump.DurationToTicks(period)

	cb := audiocont.NewCrossblender(mgr, cfg.Rate, cfg.Channels, periodTicks)
	g := &Graph{mgr: mgr, cb: cb, log: log}
	probe := request.NewChain(&logProbe{log: log})

	var cookies *httpsrc.CookieStore
	for _, in := range cfg.Inputs {
		target := cb.AddInput(in.Name)
		bridge := newPCMBridge(probe, mgr.Clock(), cfg.Rate, cfg.Channels, target)

		switch in.Kind {
		case "srt":
			node, err := startSRTReceiver(mgr, in.Listen, in.LatencyMS, bridge, log)
			if err != nil {
				return nil, fmt.Errorf("enginectl: input %q: %w", in.Name, err)
			}
			g.closers = append(g.closers, node)

		case "http":
			idle, err := parseDurationOr(in.IdleTimeout, 30*time.Second)
			if err != nil {
				return nil, fmt.Errorf("enginectl: input %q: %w", in.Name, err)
			}
			if cookies == nil {
				cookies = httpsrc.NewCookieStore()
			}
			blockMgr := ubuf.NewBlockManager(nil, 0, 0, 0, 0)
			src := httpsrc.NewSource(httpsrc.Config{URL: in.URL, IdleTimeout: idle}, cookies, mgr, blockMgr)
			if err := src.Control(&upipe.Command{Kind: upipe.CmdSetOutput, Output: bridge}); err != nil {
				return nil, fmt.Errorf("enginectl: input %q: attach bridge: %w", in.Name, err)
			}
			if err := src.Start(); err != nil {
				return nil, fmt.Errorf("enginectl: input %q: start: %w", in.Name, err)
			}
		}
	}

	if err := cb.Control(&upipe.Command{Kind: upipe.CmdSetOption, OptionKey: "input", OptionVal: cfg.Select}); err != nil {
		return nil, fmt.Errorf("enginectl: select %q: %w", cfg.Select, err)
	}

	switch cfg.Output.Kind {
	case "srt":
		sink, err := startSRTSender(probe, mgr, cfg.Output.Dest, cfg.Output.DestID, cfg.Output.LatencyMS, cfg.Channels, audiocont.DefaultSampleSize)
		if err != nil {
			return nil, fmt.Errorf("enginectl: output: %w", err)
		}
		cb.Control(&upipe.Command{Kind: upipe.CmdSetOutput, Output: sink})
		g.closers = append(g.closers, sink)
	case "stdout":
		g.stdout = newStdoutSink(probe, os.Stdout, cfg.Channels, audiocont.DefaultSampleSize)
		cb.Control(&upipe.Command{Kind: upipe.CmdSetOutput, Output: g.stdout})
	}

	clk := cb.Clock()
	w := mgr.AllocTimer(periodToDuration(periodTicks), periodToDuration(periodTicks), func(any) {
		feedClockTick(clk, mgr, periodTicks)
	}, nil)
	w.Start()

	return g, nil
}

func periodToDuration(ticks int64) time.Duration {
	return upump.TicksToDuration(ticks)
}

// feedClockTick builds the reference-tick control uref the crossblender's
// clock sub-pipe expects (pts_sys "now", duration one crossblend period)
// and feeds it in.
func feedClockTick(clk upipe.Pipe, mgr *upump.Manager, periodTicks int64) {
	u := uref.New()
	u.SetPts(uref.DomainSystem, mgr.Clock().Now())
	u.Dict.SetInt(flowdef.KeyDuration, periodTicks)
	clk.Input(u)
}

func parseDurationOr(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

// Stop tears down every UDP listener/dialer the graph opened and flushes
// the stdout sink, if any.
func (g *Graph) Stop() {
	for _, c := range g.closers {
		if err := c.Close(); err != nil {
			g.log.Warn("graph: close error", "error", err)
		}
	}
	if g.stdout != nil {
		g.stdout.Flush()
	}
}

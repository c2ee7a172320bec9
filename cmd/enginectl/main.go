// Command enginectl assembles and runs a pipeline graph — named SRT/HTTP
// inputs crossfaded by the audio continuity crossblender out to an SRT or
// stdout sink — described by a YAML document, with pflag-driven overrides
// for the settings an operator wants to flip without editing the file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alxayo/streamengine/internal/core/upump"
	"github.com/alxayo/streamengine/internal/logger"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if cfg.showVersion {
		fmt.Println(version)
		return
	}

	doc, err := LoadConfig(cfg.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.selectInput != "" {
		doc.Select = cfg.selectInput
	}
	if cfg.logLevel != "" {
		doc.LogLevel = cfg.logLevel
	}

	logger.Init()
	if err := logger.SetLevel(doc.LogLevel); err != nil {
		fmt.Printf("Warning: invalid log level %q, using default\n", doc.LogLevel)
	}
	log := logger.Logger().With("component", "enginectl")

	mgr := upump.New(nil)
	graph, err := BuildGraph(doc, mgr, log)
	if err != nil {
		log.Error("failed to build pipeline graph", "error", err)
		os.Exit(1)
	}
	log.Info("pipeline graph running", "rate", doc.Rate, "channels", doc.Channels, "select", doc.Select, "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Info("shutdown signal received")

	graph.Stop()
	mgr.Stop()
	log.Info("pipeline stopped")
}

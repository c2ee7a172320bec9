package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// version is injected at build time with -ldflags "-X main.version=...".
var version = "dev"

// cliOverrides holds flag values that take precedence over the YAML
// document's corresponding fields when set.
type cliOverrides struct {
	configPath  string
	selectInput string
	logLevel    string
	showVersion bool
}

func parseFlags(args []string) (*cliOverrides, error) {
	fs := pflag.NewFlagSet("enginectl", pflag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliOverrides{}
	fs.StringVarP(&cfg.configPath, "config", "c", "", "path to the pipeline graph YAML document (required)")
	fs.StringVarP(&cfg.selectInput, "select", "s", "", "input name to activate at startup, overriding the document's select")
	fs.StringVarP(&cfg.logLevel, "log-level", "l", "", "log level: debug|info|warn|error, overriding the document's log_level")
	fs.BoolVarP(&cfg.showVersion, "version", "v", false, "print version and exit")

	fs.Usage = func() {
		fmt.Fprintln(os.Stdout, "enginectl wires a YAML-described pipeline graph of SRT/HTTP inputs feeding")
		fmt.Fprintln(os.Stdout, "the audio continuity crossblender out to an SRT or stdout sink.")
		fmt.Fprintln(os.Stdout)
		fmt.Fprintln(os.Stdout, "Usage: enginectl -c graph.yaml [flags]")
		fmt.Fprintln(os.Stdout)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if !cfg.showVersion && cfg.configPath == "" {
		fs.Usage()
		return nil, fmt.Errorf("enginectl: -c/--config is required")
	}
	return cfg, nil
}

// enginectl assembles the engine's concrete pipes — the SRT data-plane
// pumps, the HTTP source, and the audio continuity crossblender — into a
// running graph described by a YAML document, with pflag-driven overrides
// for the handful of settings an operator wants to flip without editing the
// file (spec §6's wiring surface, given a CLI home).
//
// avformat's Demuxer/Muxer and avcodec's Codec are injected contracts with
// no concrete binding shipped in this module (only test fakes exist), so
// the graph schema below has no avformat/avcodec node kind: wiring one
// would need a real container/codec library this module deliberately does
// not vendor. See DESIGN.md's enginectl section.
package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the YAML pipeline graph document.
type Config struct {
	Rate             uint32         `yaml:"rate"`
	Channels         int            `yaml:"channels"`
	CrossblendPeriod string         `yaml:"crossblend_period"` // time.ParseDuration syntax, e.g. "100ms"
	Select           string         `yaml:"select"`            // name of the input active at startup
	Inputs           []InputConfig  `yaml:"inputs"`
	Output           OutputConfig   `yaml:"output"`
	LogLevel         string         `yaml:"log_level"`
}

// InputConfig describes one named crossblender input and how its PCM
// arrives.
type InputConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"` // "srt" or "http"

	// kind: srt
	Listen    string `yaml:"listen"`     // local UDP address to receive on
	LatencyMS int    `yaml:"latency_ms"` // reorder buffer latency

	// kind: http
	URL         string `yaml:"url"`
	IdleTimeout string `yaml:"idle_timeout"`
}

// OutputConfig describes where the crossblended sound goes.
type OutputConfig struct {
	Kind      string `yaml:"kind"` // "srt" or "stdout"
	Dest      string `yaml:"dest"` // kind: srt — remote UDP address
	DestID    uint32 `yaml:"dest_socket_id"`
	LatencyMS int    `yaml:"latency_ms"`
}

// LoadConfig reads and parses the pipeline graph document at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("enginectl: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("enginectl: parse config: %w", err)
	}
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}
	if cfg.Rate == 0 {
		cfg.Rate = 48000
	}
	if cfg.CrossblendPeriod == "" {
		cfg.CrossblendPeriod = "100ms"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	for i, in := range cfg.Inputs {
		if in.Name == "" {
			return nil, fmt.Errorf("enginectl: inputs[%d] missing name", i)
		}
		switch in.Kind {
		case "srt", "http":
		default:
			return nil, fmt.Errorf("enginectl: input %q has unknown kind %q", in.Name, in.Kind)
		}
	}
	switch cfg.Output.Kind {
	case "srt", "stdout":
	default:
		return nil, fmt.Errorf("enginectl: output has unknown kind %q", cfg.Output.Kind)
	}
	return &cfg, nil
}

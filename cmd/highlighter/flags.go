package main

import (
	"flag"
	"strings"

	"github.com/you/gnasty-highlights/internal/config"
)

type flagValues struct {
	settingsPath  string
	settingsWatch bool
	dbPath        string
	twChannels    string
	twNick        string
	twToken       string
	twTokenFile   string
	twTLS         bool
	httpAddr      string
	httpCors      string
	httpRateRPS   int
	httpRateBurst int
	httpMetrics   bool
	defaultSound  string
}

// applyFlags overlays explicitly set command line flags on the environment
// config.
func applyFlags(cfg config.Config, v flagValues) config.Config {
	overrides := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		overrides[f.Name] = true
	})
	return overlay(cfg, v, overrides)
}

func overlay(cfg config.Config, v flagValues, overrides map[string]bool) config.Config {
	if overrides["settings"] {
		cfg.Settings.Path = strings.TrimSpace(v.settingsPath)
	}
	if overrides["settings-watch"] {
		cfg.Settings.Watch = v.settingsWatch
	}
	if overrides["sqlite"] {
		cfg.Sink.SQLite.Path = strings.TrimSpace(v.dbPath)
		if !cfg.HasSink("sqlite") {
			cfg.Sinks = append(cfg.Sinks, "sqlite")
		}
	}
	if overrides["twitch-channels"] {
		var channels []string
		seen := make(map[string]bool)
		for _, c := range strings.Split(v.twChannels, ",") {
			c = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c), "#"))
			if c != "" && !seen[c] {
				seen[c] = true
				channels = append(channels, c)
			}
		}
		cfg.Twitch.Channels = channels
		cfg.Twitch.Enabled = len(channels) > 0
	}
	if overrides["twitch-nick"] {
		cfg.Twitch.Nick = strings.TrimSpace(v.twNick)
	}
	if overrides["twitch-token"] {
		cfg.Twitch.Token = strings.TrimSpace(v.twToken)
	}
	if overrides["twitch-token-file"] {
		cfg.Twitch.TokenFile = strings.TrimSpace(v.twTokenFile)
	}
	if overrides["twitch-tls"] {
		cfg.Twitch.TLS = v.twTLS
	}
	if overrides["http-addr"] {
		cfg.HTTP.Addr = strings.TrimSpace(v.httpAddr)
	}
	if overrides["http-cors-origins"] {
		cfg.HTTP.CORSOrigins = nil
		for _, origin := range strings.Split(v.httpCors, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.HTTP.CORSOrigins = append(cfg.HTTP.CORSOrigins, origin)
			}
		}
	}
	if overrides["http-rate-rps"] {
		cfg.HTTP.RateRPS = v.httpRateRPS
	}
	if overrides["http-rate-burst"] {
		cfg.HTTP.RateBurst = v.httpRateBurst
	}
	if overrides["http-metrics"] {
		cfg.HTTP.Metrics = v.httpMetrics
	}
	if overrides["default-sound-url"] {
		cfg.Sound.DefaultURL = strings.TrimSpace(v.defaultSound)
	}
	return cfg
}

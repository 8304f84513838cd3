package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/you/gnasty-highlights/internal/colors"
	"github.com/you/gnasty-highlights/internal/config"
	"github.com/you/gnasty-highlights/internal/core"
	"github.com/you/gnasty-highlights/internal/highlight"
	"github.com/you/gnasty-highlights/internal/highlighter"
	httpadmin "github.com/you/gnasty-highlights/internal/http"
	"github.com/you/gnasty-highlights/internal/httpapi"
	"github.com/you/gnasty-highlights/internal/settings"
	"github.com/you/gnasty-highlights/internal/sink"
	"github.com/you/gnasty-highlights/internal/twitchirc"
	"github.com/you/gnasty-highlights/internal/version"
)

// logWriter stands in for the event sink when none is configured.
type logWriter struct{}

func (logWriter) Write(ev core.HighlightEvent) error {
	log.Printf("highlighter: %s %s: %q alert=%t sound=%t color=%s",
		ev.Message.Kind, ev.Message.Username, ev.Message.Text, ev.Alert, ev.PlaySound, ev.Color)
	return nil
}

// broadcastWriter feeds stream clients when there is no database.
type broadcastWriter struct{ api *httpapi.Server }

func (b broadcastWriter) Write(ev core.HighlightEvent) error {
	b.api.Broadcast(ev)
	return nil
}

type emptyStore struct{}

func (emptyStore) CountHighlights(context.Context, httpapi.Filters) (int64, error) { return 0, nil }

func (emptyStore) ListHighlights(context.Context, httpapi.Filters) ([]core.HighlightEvent, error) {
	return nil, nil
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		versionFlag     bool
		debug           bool
		settingsPath    string
		settingsWatch   bool
		dbPath          string
		twChannels      string
		twNick          string
		twToken         string
		twTokenFile     string
		twTLS           bool
		httpAddr        string
		httpCorsOrigins string
		httpRateRPS     int
		httpRateBurst   int
		httpMetrics     bool
		defaultSound    string
	)

	flag.BoolVar(&versionFlag, "version", false, "Print build version and exit")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.StringVar(&settingsPath, "settings", "highlights.yaml", "Path to the highlight settings YAML file")
	flag.BoolVar(&settingsWatch, "settings-watch", true, "Reload the settings file when it changes")
	flag.StringVar(&dbPath, "sqlite", "highlights.db", "Path to SQLite database file for highlight events")
	flag.StringVar(&twChannels, "twitch-channels", "", "Comma-separated Twitch channels to join (without #)")
	flag.StringVar(&twNick, "twitch-nick", "", "Twitch nickname to login as; also the self-highlight account")
	flag.StringVar(&twToken, "twitch-token", "", "Twitch OAuth token (format: oauth:xxxxx)")
	flag.StringVar(&twTokenFile, "twitch-token-file", "", "Path to file containing the Twitch OAuth token, re-read on reconnect")
	flag.BoolVar(&twTLS, "twitch-tls", true, "Use TLS (port 6697) for Twitch IRC connection")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP API address (e.g., :8765)")
	flag.StringVar(&httpCorsOrigins, "http-cors-origins", "", "Comma-separated list of allowed CORS origins")
	flag.IntVar(&httpRateRPS, "http-rate-rps", 20, "Maximum HTTP requests per second per client")
	flag.IntVar(&httpRateBurst, "http-rate-burst", 40, "Burst size for HTTP rate limiter")
	flag.BoolVar(&httpMetrics, "http-metrics", true, "Expose Prometheus metrics endpoint")
	flag.StringVar(&defaultSound, "default-sound-url", "", "Sound URL reported when a rule asks for sound without its own")
	flag.Parse()

	if versionFlag {
		fmt.Printf(
			"highlighter version: %s (commit %s, built %s)\n",
			version.Version,
			version.Commit,
			version.BuildTime,
		)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := applyFlags(config.Load(), flagValues{
		settingsPath:  settingsPath,
		settingsWatch: settingsWatch,
		dbPath:        dbPath,
		twChannels:    twChannels,
		twNick:        twNick,
		twToken:       twToken,
		twTokenFile:   twTokenFile,
		twTLS:         twTLS,
		httpAddr:      httpAddr,
		httpCors:      httpCorsOrigins,
		httpRateRPS:   httpRateRPS,
		httpRateBurst: httpRateBurst,
		httpMetrics:   httpMetrics,
		defaultSound:  defaultSound,
	})
	log.Printf("%s", cfg.SummaryJSON())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("highlighter: received %s, shutting down", sig)
		cancel()
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	registerIngestMetrics(registry)

	st := settings.New(settings.Options{ItemsDelay: cfg.RulesDelay()})
	defer st.Close()
	if err := loadInitialSettings(st, cfg.Settings.Path, cfg.Twitch.Nick); err != nil {
		log.Fatalf("highlighter: %v", err)
	}

	ctrl := highlight.New(st, colors.NewProvider(st), highlight.Options{
		Logger:  slog.Default(),
		Metrics: highlight.NewMetrics(registry),
	})
	defer ctrl.Close()

	var (
		sinkDB   *sink.SQLiteSink
		api      *httpapi.Server
		writer   sink.Writer = logWriter{}
		buffered *sink.BufferedWriter
	)

	if cfg.HasSink("sqlite") {
		db, err := sink.OpenSQLite(cfg.Sink.SQLite.Path)
		if err != nil {
			log.Fatalf("highlighter: open sqlite: %v", err)
		}
		sinkDB = db
		if err := sinkDB.Ping(); err != nil {
			log.Fatalf("highlighter: ping sqlite: %v", err)
		}
		writer = sinkDB
		defer func() {
			if err := sinkDB.Close(); err != nil {
				log.Printf("highlighter: closing sink: %v", err)
			}
		}()
	} else {
		log.Printf("highlighter: sqlite sink disabled (configured sinks=%v)", cfg.Sinks)
	}

	onWriteError := func(error) {}
	if cfg.HTTP.Addr != "" {
		var store httpapi.Store = emptyStore{}
		if sinkDB != nil {
			store = sinkDB
		}
		api = httpapi.New(store, ctrl, httpapi.Options{
			Addr:            cfg.HTTP.Addr,
			CORSOrigins:     cfg.HTTP.CORSOrigins,
			RateRPS:         cfg.HTTP.RateRPS,
			RateBurst:       cfg.HTTP.RateBurst,
			CheckRPS:        cfg.HTTP.CheckRPS,
			CheckBurst:      cfg.HTTP.CheckBurst,
			CheckMaxBytes:   int64(cfg.HTTP.CheckMaxBytes),
			Registry:        registry,
			DisableMetrics:  !cfg.HTTP.Metrics,
			DefaultSoundURL: cfg.Sound.DefaultURL,
			Build: httpapi.BuildInfo{
				Version:  version.Version,
				Revision: version.Commit,
				BuiltAt:  version.BuiltAt(),
			},
		})
		if sinkDB != nil {
			writer = sink.WithAPI(sinkDB, api)
		} else {
			writer = broadcastWriter{api: api}
		}
		onWriteError = func(error) { api.ReportWriteError() }
	}

	if sinkDB != nil && (cfg.Batch() > 1 || cfg.FlushInterval() > 0) {
		buffered = sink.NewBufferedWriter(writer, sink.BufferedOptions{
			BatchSize:     cfg.Batch(),
			FlushInterval: cfg.FlushInterval(),
		})
		writer = buffered
		defer func() {
			if err := buffered.Close(); err != nil {
				log.Printf("highlighter: flush buffered sink: %v", err)
			}
		}()
	}

	hl := highlighter.New(st, ctrl, writer, highlighter.Options{
		SettingsPath:    cfg.Settings.Path,
		DefaultAccount:  cfg.Twitch.Nick,
		DefaultSoundURL: cfg.Sound.DefaultURL,
		OnWriteError:    onWriteError,
	})

	if api != nil {
		httpadmin.New(hl).Register(api.Mux())
		go func() {
			if err := api.Start(); err != nil {
				log.Fatalf("highlighter: http api: %v", err)
			}
		}()
		log.Printf("highlighter: http api ready on %s", cfg.HTTP.Addr)
	}

	if cfg.Settings.Watch {
		if err := hl.WatchSettings(ctx); err != nil {
			log.Printf("highlighter: settings watch disabled: %v", err)
		}
	}

	var wg sync.WaitGroup
	started := 0
	if cfg.Twitch.Enabled && len(cfg.Twitch.Channels) > 0 {
		if cfg.Twitch.Nick == "" {
			log.Fatal("highlighter: twitch-nick is required when twitch channels are configured")
		}
		staticToken := cfg.Twitch.Token
		tokens := twitchirc.NewFileToken(cfg.Twitch.TokenFile, staticToken)

		for i, channel := range cfg.Twitch.Channels {
			client := twitchirc.New(twitchirc.Config{
				Channel:       channel,
				Nick:          cfg.Twitch.Nick,
				Token:         staticToken,
				UseTLS:        cfg.Twitch.TLS,
				TokenProvider: tokens.Current,
				Whispers:      i == 0,
				DebugDrops:    cfg.Twitch.DebugDrops,
			}, func(msg core.ChatMessage) { hl.Handle(msg) })

			wg.Add(1)
			started++
			go func(channel string) {
				defer wg.Done()
				if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("highlighter: twitch #%s stopped: %v", channel, err)
				}
			}(channel)
		}
	}

	if started == 0 && api == nil {
		log.Printf("highlighter: nothing to do; configure twitch channels or an http address")
		return
	}

	<-ctx.Done()
	wg.Wait()

	if api != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := api.Shutdown(shutdownCtx); err != nil {
			log.Printf("highlighter: http shutdown: %v", err)
		}
	}
}

func registerIngestMetrics(reg prometheus.Registerer) {
	counter := func(name, help string, read func(twitchirc.Stats) int64) prometheus.CounterFunc {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "gnasty",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(twitchirc.ReadStats())) })
	}
	reg.MustRegister(
		counter("twitch_messages_total", "Chat messages received from Twitch IRC",
			func(s twitchirc.Stats) int64 { return s.Total }),
		counter("twitch_subscriptions_total", "Subscription notices received from Twitch IRC",
			func(s twitchirc.Stats) int64 { return s.Subscriptions }),
		counter("twitch_whispers_total", "Whispers received from Twitch IRC",
			func(s twitchirc.Stats) int64 { return s.Whispers }),
	)
}

// loadInitialSettings applies the settings file once at startup. A missing
// file leaves the defaults in place.
func loadInitialSettings(st *settings.Settings, path, defaultAccount string) error {
	f, err := settings.LoadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Printf("highlighter: settings file %s not found; using defaults", path)
	case err != nil:
		return fmt.Errorf("load settings: %w", err)
	}
	if strings.TrimSpace(f.Account) == "" {
		f.Account = defaultAccount
	}
	st.Apply(f)
	return nil
}

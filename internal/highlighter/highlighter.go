package highlighter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/you/gnasty-highlights/internal/core"
	"github.com/you/gnasty-highlights/internal/highlight"
	"github.com/you/gnasty-highlights/internal/settings"
)

// Writer receives highlight events.
type Writer interface {
	Write(core.HighlightEvent) error
}

type Options struct {
	// SettingsPath is the YAML rules file. Empty disables reloads.
	SettingsPath string
	// DefaultAccount is used when the file names no account, normally the
	// Twitch login the receiver joins as.
	DefaultAccount string
	// DefaultSoundURL fills events that ask for sound without a custom URL.
	DefaultSoundURL string
	// OnWriteError is called after a failed event write.
	OnWriteError func(error)
}

// Highlighter ties the live settings, the highlight controller and the event
// sink together.
type Highlighter struct {
	settings *settings.Settings
	ctrl     *highlight.Controller
	opts     Options

	reloadMu sync.Mutex

	mu  sync.Mutex
	out Writer
}

func New(s *settings.Settings, ctrl *highlight.Controller, out Writer, opts Options) *Highlighter {
	return &Highlighter{settings: s, ctrl: ctrl, out: out, opts: opts}
}

// SetWriter swaps the event destination.
func (h *Highlighter) SetWriter(out Writer) {
	h.mu.Lock()
	h.out = out
	h.mu.Unlock()
}

// ReloadReport summarizes a settings reload.
type ReloadReport struct {
	Account        string `json:"account"`
	AccountChanged bool   `json:"account_changed"`
	Generation     uint64 `json:"generation"`
	Checks         int    `json:"checks"`
}

// ReloadSettings re-reads the settings file, applies it and rebuilds the
// checks once, so the report describes the rules now installed.
func (h *Highlighter) ReloadSettings() (ReloadReport, error) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	if strings.TrimSpace(h.opts.SettingsPath) == "" {
		return ReloadReport{}, fmt.Errorf("settings file not configured")
	}
	f, err := settings.LoadFile(h.opts.SettingsPath)
	if err != nil {
		return ReloadReport{}, err
	}
	if strings.TrimSpace(f.Account) == "" {
		f.Account = h.opts.DefaultAccount
	}

	previous := h.settings.Export()
	changed := h.settings.Apply(f)
	if diff := settings.Diff(previous, h.settings.Export()); diff != "" {
		slog.Debug("highlighter: settings changed", "path", h.opts.SettingsPath, "diff", diff)
	}
	// List edits only notify after the items-changed delay, and the account is
	// not observed at all, so install the new rules before reporting them.
	seq := h.ctrl.Rebuild()
	report := ReloadReport{
		Account:        h.settings.Account.Get(),
		AccountChanged: changed,
		Generation:     seq.Generation(),
		Checks:         seq.Len(),
	}
	slog.Info("highlighter: settings reloaded",
		"path", h.opts.SettingsPath,
		"account", report.Account,
		"account_changed", changed,
		"generation", report.Generation,
		"checks", report.Checks,
	)
	return report, nil
}

// RebuildHighlights forces a rebuild of the installed checks.
func (h *Highlighter) RebuildHighlights() highlight.Sequence {
	return h.ctrl.Rebuild()
}

// WatchSettings reloads the settings file whenever it changes until ctx ends.
func (h *Highlighter) WatchSettings(ctx context.Context) error {
	if strings.TrimSpace(h.opts.SettingsPath) == "" {
		return nil
	}
	return settings.Watch(ctx, h.opts.SettingsPath, func() {
		if _, err := h.ReloadSettings(); err != nil {
			slog.Error("highlighter: settings reload failed", "path", h.opts.SettingsPath, "err", err)
		}
	})
}

// Handle evaluates a received message and forwards an event when it is
// highlighted. It reports whether the message matched.
func (h *Highlighter) Handle(msg core.ChatMessage) bool {
	hm := highlight.MessageFromChat(msg)
	matched, res := h.ctrl.Check(&hm)
	if !matched {
		return false
	}
	if msg.Ts.IsZero() {
		msg.Ts = time.Now().UTC()
	}
	ev := highlight.NewEvent(msg, res, h.opts.DefaultSoundURL)

	h.mu.Lock()
	out := h.out
	h.mu.Unlock()
	if out == nil {
		return true
	}
	if err := out.Write(ev); err != nil {
		slog.Error("highlighter: write event failed", "id", ev.ID, "user", msg.Username, "err", err)
		if h.opts.OnWriteError != nil {
			h.opts.OnWriteError(err)
		}
	}
	return true
}

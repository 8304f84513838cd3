package highlight

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/you/gnasty-highlights/internal/settings"
)

type Options struct {
	Logger  *slog.Logger
	Metrics *Metrics
}

// Controller keeps the installed check sequence in step with the settings and
// answers highlight checks for incoming messages.
type Controller struct {
	settings *settings.Settings
	resolver ColorResolver
	registry *Registry
	logger   *slog.Logger
	metrics  *Metrics

	rebuildMu sync.Mutex

	mu     sync.Mutex
	tokens []settings.Unsubscribe
	closed atomic.Bool
}

// New subscribes to every setting the compiler reads and installs the first
// sequence before returning. The current account is read on each rebuild but
// not observed; call Rebuild after changing it.
func New(s *settings.Settings, resolver ColorResolver, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		settings: s,
		resolver: resolver,
		registry: NewRegistry(),
		logger:   logger,
		metrics:  opts.Metrics,
	}

	c.mu.Lock()
	for _, o := range rebuildSources(s) {
		c.tokens = append(c.tokens, o.OnChange(c.onChange))
	}
	c.mu.Unlock()

	c.Rebuild()
	return c
}

func rebuildSources(s *settings.Settings) []settings.Observable {
	return []settings.Observable{
		s.EnableWhisperHighlight,
		s.EnableWhisperHighlightSound,
		s.EnableWhisperHighlightTaskbar,
		s.WhisperHighlightSoundURL,
		s.WhisperHighlightColor,
		s.EnableSelfHighlight,
		s.EnableSelfHighlightSound,
		s.EnableSelfHighlightTaskbar,
		s.ShowSelfHighlightInMentions,
		s.SelfHighlightSoundURL,
		s.SelfHighlightColor,
		s.EnableSubHighlight,
		s.EnableSubHighlightSound,
		s.EnableSubHighlightTaskbar,
		s.SubHighlightSoundURL,
		s.SubHighlightColor,
		s.HighlightedMessages,
		s.HighlightedUsers,
		s.HighlightedBadges,
	}
}

func (c *Controller) onChange() {
	if c.closed.Load() {
		return
	}
	c.Rebuild()
}

// Rebuild compiles the current settings and installs the result. It returns
// the installed sequence.
func (c *Controller) Rebuild() Sequence {
	c.rebuildMu.Lock()
	defer c.rebuildMu.Unlock()

	start := time.Now()
	seq := c.registry.Replace(Compile(c.settings.Snapshot(), c.resolver))
	dur := time.Since(start)
	c.metrics.observeRebuild(seq, dur)

	counts := seq.Counts()
	for _, category := range Categories() {
		c.logger.Debug("highlight: rebuilt category", "category", category.String(), "checks", counts[category])
	}
	c.logger.Info("highlight: rebuilt checks",
		"generation", seq.Generation(),
		"checks", seq.Len(),
		"took", dur,
	)
	return seq
}

// Check evaluates msg against the installed sequence.
func (c *Controller) Check(msg *Message) (bool, Result) {
	start := time.Now()
	matched, result := Evaluate(c.registry.Snapshot(), msg)
	c.metrics.observeCheck(matched, time.Since(start))
	return matched, result
}

// Sequence returns the currently installed sequence.
func (c *Controller) Sequence() Sequence {
	return c.registry.Snapshot()
}

// Close releases all settings subscriptions. Later notifications are ignored.
func (c *Controller) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.mu.Lock()
	tokens := c.tokens
	c.tokens = nil
	c.mu.Unlock()
	for _, unsubscribe := range tokens {
		unsubscribe()
	}
}

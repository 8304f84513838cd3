package twitchirc

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	dropSummaryInterval = 5 * time.Second
	dropSampleMaxLen    = 96
	dropChannelMaxLen   = 32
)

// reasons a received line does not reach the handler
const (
	dropMalformed        = "malformed"
	dropNotChat          = "not_chat"
	dropOtherChannel     = "other_channel"
	dropNotSubscription  = "usernotice_not_sub"
	dropWhisperElsewhere = "whisper_elsewhere"
)

var (
	oauthTokenRe = regexp.MustCompile(`(?i)oauth:[^\s;]+`)
	longTokenRe  = regexp.MustCompile(`[A-Za-z0-9+/_=\-]{24,}`)
)

type ircSummary struct {
	command string
	channel string
	sample  string
}

type dropReasonSummary struct {
	total    int
	byCmd    map[string]int
	sampleBy map[string]ircSummary
}

// dropLogger aggregates ignored lines per reason and emits one slog line per
// reason every interval.
type dropLogger struct {
	verbose  bool
	interval time.Duration
	nextEmit time.Time
	reasons  map[string]*dropReasonSummary
}

func newDropLogger(now time.Time, verbose bool, interval time.Duration) *dropLogger {
	if interval <= 0 {
		interval = dropSummaryInterval
	}
	return &dropLogger{
		verbose:  verbose,
		interval: interval,
		nextEmit: now.Add(interval),
		reasons:  make(map[string]*dropReasonSummary),
	}
}

func (d *dropLogger) note(now time.Time, reason, rawLine string) {
	if d == nil {
		return
	}
	summary := summarizeIRC(rawLine)
	if d.verbose {
		slog.Debug("twitchirc: ignored line",
			"reason", reason,
			"command", summary.command,
			"channel", summary.channel,
			"sample", summary.sample,
		)
	}

	entry := d.reasons[reason]
	if entry == nil {
		entry = &dropReasonSummary{
			byCmd:    make(map[string]int),
			sampleBy: make(map[string]ircSummary),
		}
		d.reasons[reason] = entry
	}
	entry.total++
	entry.byCmd[summary.command]++
	if _, ok := entry.sampleBy[summary.command]; !ok {
		entry.sampleBy[summary.command] = summary
	}

	if !now.Before(d.nextEmit) {
		d.flush(now)
	}
}

func (d *dropLogger) flush(now time.Time) {
	if d == nil {
		return
	}
	for _, reason := range sortedKeys(d.reasons) {
		rs := d.reasons[reason]
		if rs == nil || rs.total == 0 {
			continue
		}
		slog.Info("twitchirc: ignored_"+reason,
			"total", rs.total,
			"commands", formatCommandCounts(rs.byCmd),
			"samples", formatCommandSamples(rs.sampleBy),
		)
	}
	clear(d.reasons)
	d.nextEmit = now.Add(d.interval)
}

func summarizeIRC(rawLine string) ircSummary {
	line := strings.TrimSpace(rawLine)
	if line == "" {
		return ircSummary{command: "UNKNOWN"}
	}

	irc, ok := parseIRC(line)
	if !ok {
		// bare commands such as "PING :x" carry no prefix
		cmd, rest, _ := strings.Cut(line, " ")
		return ircSummary{
			command: strings.ToUpper(cmd),
			sample:  sanitizeAndTruncate(strings.TrimPrefix(rest, ":"), dropSampleMaxLen),
		}
	}

	channel := ""
	if strings.HasPrefix(irc.target, "#") {
		channel = irc.target
	}

	sample := ""
	if irc.command == "USERNOTICE" {
		if msgID := irc.tags["msg-id"]; msgID != "" {
			sample = "msg-id=" + msgID
		}
	}
	if sample == "" {
		sample = irc.trailing
	}
	if sample == "" {
		sample = irc.target
	}

	return ircSummary{
		command: irc.command,
		channel: sanitizeAndTruncate(channel, dropChannelMaxLen),
		sample:  sanitizeAndTruncate(sample, dropSampleMaxLen),
	}
}

func sanitizeAndTruncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}

	upper := strings.ToUpper(s)
	if strings.HasPrefix(upper, "PASS ") || upper == "PASS" {
		s = "PASS [REDACTED]"
	}

	s = oauthTokenRe.ReplaceAllString(s, "oauth:[REDACTED]")
	s = longTokenRe.ReplaceAllStringFunc(s, func(v string) string {
		if strings.HasPrefix(v, "#") {
			return v
		}
		return "[REDACTED]"
	})

	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatCommandCounts(counts map[string]int) string {
	parts := make([]string, 0, len(counts))
	for _, cmd := range sortedKeys(counts) {
		parts = append(parts, fmt.Sprintf("%s:%d", cmd, counts[cmd]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func formatCommandSamples(samples map[string]ircSummary) string {
	parts := make([]string, 0, len(samples))
	for _, cmd := range sortedKeys(samples) {
		s := samples[cmd]
		if s.channel != "" {
			parts = append(parts, cmd+":'"+s.channel+" "+s.sample+"'")
			continue
		}
		parts = append(parts, cmd+":'"+s.sample+"'")
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

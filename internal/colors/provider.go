package colors

import (
	"strings"

	"github.com/you/gnasty-highlights/internal/settings"
)

// Type tags the fixed highlight categories that have a provider-owned color.
type Type int

const (
	Subscription Type = iota
	Whisper
	SelfHighlight
)

func (t Type) String() string {
	switch t {
	case Subscription:
		return "subscription"
	case Whisper:
		return "whisper"
	case SelfHighlight:
		return "self"
	default:
		return "unknown"
	}
}

// Provider resolves category colors from the custom color settings, falling
// back to the built-in defaults when unset or malformed.
type Provider struct {
	settings *settings.Settings
}

func NewProvider(s *settings.Settings) *Provider {
	return &Provider{settings: s}
}

func (p *Provider) Color(t Type) Color {
	var (
		raw      string
		fallback = FallbackHighlight
	)
	switch t {
	case Subscription:
		fallback = FallbackSubscription
		if p != nil && p.settings != nil {
			raw = p.settings.SubHighlightColor.Get()
		}
	case Whisper:
		if p != nil && p.settings != nil {
			raw = p.settings.WhisperHighlightColor.Get()
		}
	case SelfHighlight:
		if p != nil && p.settings != nil {
			raw = p.settings.SelfHighlightColor.Get()
		}
	}
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	c, err := Parse(raw)
	if err != nil {
		return fallback
	}
	return c
}

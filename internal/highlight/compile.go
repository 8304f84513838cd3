package highlight

import (
	"net/url"
	"strings"

	"github.com/you/gnasty-highlights/internal/colors"
	"github.com/you/gnasty-highlights/internal/settings"
)

// ColorResolver maps the fixed highlight categories to display colors.
type ColorResolver interface {
	Color(t colors.Type) colors.Color
}

// Compile turns a settings snapshot into the ordered check sequence:
// subscription, whisper, self, phrases, users, badges. It never fails;
// malformed rules compile to checks that never match.
func Compile(snap settings.Snapshot, resolver ColorResolver) Sequence {
	checks := make([]Check, 0, 3+len(snap.Phrases)+len(snap.Users)+len(snap.Badges))

	checks = appendSubscription(checks, snap, resolver)
	checks = appendWhisper(checks, snap, resolver)
	checks = appendSelf(checks, snap, resolver)
	for _, p := range snap.Phrases {
		checks = append(checks, NewCheck(CategoryPhrase, p.Pattern,
			matchText(compilePhrase(p.Pattern, p.Regex, p.CaseSensitive)),
			withMentions(ruleResult(p.Alert, p.Sound, p.SoundURL, p.Color), p.ShowInMentions)))
	}
	for _, p := range snap.Users {
		checks = append(checks, NewCheck(CategoryUser, p.Pattern,
			matchSender(compilePhrase(p.Pattern, p.Regex, p.CaseSensitive)),
			withMentions(ruleResult(p.Alert, p.Sound, p.SoundURL, p.Color), p.ShowInMentions)))
	}
	for _, b := range snap.Badges {
		checks = append(checks, NewCheck(CategoryBadge, b.Name,
			matchBadges(b.Name),
			ruleResult(b.Alert, b.Sound, b.SoundURL, b.Color)))
	}

	return NewSequence(checks...)
}

func appendSubscription(checks []Check, snap settings.Snapshot, resolver ColorResolver) []Check {
	if !snap.Subscription.Enabled {
		return checks
	}
	return append(checks, NewCheck(CategorySubscription, "subscription",
		func(msg *Message) bool { return msg.IsSubscription },
		categoryResult(snap.Subscription, resolveColor(resolver, colors.Subscription))))
}

func appendWhisper(checks []Check, snap settings.Snapshot, resolver ColorResolver) []Check {
	if !snap.Whisper.Enabled {
		return checks
	}
	return append(checks, NewCheck(CategoryWhisper, "whisper",
		func(msg *Message) bool { return msg.IsWhisper },
		categoryResult(snap.Whisper, resolveColor(resolver, colors.Whisper))))
}

func appendSelf(checks []Check, snap settings.Snapshot, resolver ColorResolver) []Check {
	username := strings.TrimSpace(snap.Username)
	if !snap.Self.Enabled || username == "" {
		return checks
	}
	return append(checks, NewCheck(CategorySelf, username,
		matchSender(compilePhrase(username, false, false)),
		withMentions(categoryResult(snap.Self, resolveColor(resolver, colors.SelfHighlight)), snap.ShowSelfInMentions)))
}

func categoryResult(c settings.Category, color colors.Color) Result {
	return Result{
		Alert:          c.Taskbar,
		PlaySound:      c.Sound,
		CustomSoundURL: soundURL(c.Sound, c.SoundURL),
		Color:          &color,
	}
}

func ruleResult(alert, sound bool, rawSound, rawColor string) Result {
	return Result{
		Alert:          alert,
		PlaySound:      sound,
		CustomSoundURL: soundURL(sound, rawSound),
		Color:          ruleColor(rawColor),
	}
}

func withMentions(r Result, show bool) Result {
	r.ShowInMentions = show
	return r
}

func resolveColor(resolver ColorResolver, t colors.Type) colors.Color {
	if resolver == nil {
		return colors.NewProvider(nil).Color(t)
	}
	return resolver.Color(t)
}

// soundURL returns the custom sound only when sound is on and a URL is set.
func soundURL(enabled bool, raw string) *url.URL {
	raw = strings.TrimSpace(raw)
	if !enabled || raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return u
}

func ruleColor(raw string) *colors.Color {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	c, err := colors.Parse(raw)
	if err != nil {
		return nil
	}
	return &c
}

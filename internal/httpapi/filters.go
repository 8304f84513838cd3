package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/you/gnasty-highlights/internal/core"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Order represents the chronological order to use when listing highlights.
type Order string

const (
	// OrderDesc returns highlights newest first.
	OrderDesc Order = "desc"
	// OrderAsc returns highlights oldest first.
	OrderAsc Order = "asc"
)

// Filters captures the parsed query parameters for highlight lookups.
type Filters struct {
	Channels  []string
	Kinds     []core.MessageKind
	Usernames []string
	Since     *time.Time
	Limit     int
	Order     Order
}

// ParseFilters parses query parameters into a Filters struct.
func ParseFilters(values url.Values) (Filters, error) {
	f := Filters{
		Limit: defaultLimit,
		Order: OrderDesc,
	}

	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Filters{}, errors.New("limit must be a positive integer")
		}
		if n > maxLimit {
			n = maxLimit
		}
		f.Limit = n
	}

	if raw := values.Get("order"); raw != "" {
		switch strings.ToLower(raw) {
		case "desc":
			f.Order = OrderDesc
		case "asc":
			f.Order = OrderAsc
		default:
			return Filters{}, errors.New("order must be asc or desc")
		}
	}

	if rawSince := values.Get("since"); rawSince != "" {
		parsed, err := parseSince(rawSince)
		if err != nil {
			return Filters{}, err
		}
		f.Since = &parsed
	}

	for _, raw := range lowered(values, "kind") {
		kind, ok := normalizeKind(raw)
		if !ok {
			return Filters{}, errors.New("kind must be chat, subscription or whisper")
		}
		f.Kinds = appendUnique(f.Kinds, kind)
	}

	for _, raw := range lowered(values, "channel") {
		f.Channels = appendUnique(f.Channels, strings.TrimPrefix(raw, "#"))
	}

	users := lowered(values, "user")
	users = append(users, lowered(values, "username")...)
	for _, raw := range users {
		f.Usernames = appendUnique(f.Usernames, raw)
	}

	return f, nil
}

// FiltersFromRequest parses filters from an HTTP request.
func FiltersFromRequest(r *http.Request) (Filters, error) {
	return ParseFilters(r.URL.Query())
}

// lowered splits every value of key on commas and returns the trimmed,
// lowercased, non-empty parts.
func lowered(values url.Values, key string) []string {
	var out []string
	for _, raw := range values[key] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func appendUnique[T comparable](list []T, v T) []T {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func normalizeKind(k string) (core.MessageKind, bool) {
	switch k {
	case "chat", "message", "privmsg":
		return core.KindChat, true
	case "subscription", "sub":
		return core.KindSubscription, true
	case "whisper":
		return core.KindWhisper, true
	default:
		return "", false
	}
}

func parseSince(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return time.Now().Add(-d).UTC(), nil
	}
	return time.Time{}, errors.New("invalid since parameter")
}

// Matches reports whether the provided event satisfies the filters.
func (f Filters) Matches(ev core.HighlightEvent) bool {
	msg := ev.Message
	if len(f.Channels) > 0 && !containsFold(f.Channels, msg.Channel) {
		return false
	}

	if len(f.Kinds) > 0 {
		kind := msg.Kind
		if kind == "" {
			kind = core.KindChat
		}
		match := false
		for _, k := range f.Kinds {
			if k == kind {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}

	if len(f.Usernames) > 0 {
		username := strings.ToLower(msg.Username)
		match := false
		for _, u := range f.Usernames {
			if strings.Contains(username, u) {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}

	if f.Since != nil && ev.Ts.Before(f.Since.UTC()) {
		return false
	}

	return true
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

// CloneForStream returns a copy of the filters adjusted for streaming transports.
func (f Filters) CloneForStream() Filters {
	f.Limit = 0
	return f
}

package httpapi

import (
	"net/url"
	"reflect"
	"testing"
	"time"

	"github.com/you/gnasty-highlights/internal/core"
)

func TestParseFilters(t *testing.T) {
	values := url.Values{
		"user":    {"Alice, bob", "ALICE"},
		"channel": {"#Chan"},
		"kind":    {"sub,whisper"},
		"limit":   {"5000"},
		"order":   {"ASC"},
		"since":   {"2024-05-01T12:00:00Z"},
	}
	f, err := ParseFilters(values)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(f.Usernames, []string{"alice", "bob"}) {
		t.Fatalf("unexpected usernames %v", f.Usernames)
	}
	if !reflect.DeepEqual(f.Channels, []string{"chan"}) {
		t.Fatalf("unexpected channels %v", f.Channels)
	}
	if !reflect.DeepEqual(f.Kinds, []core.MessageKind{core.KindSubscription, core.KindWhisper}) {
		t.Fatalf("unexpected kinds %v", f.Kinds)
	}
	if f.Limit != maxLimit || f.Order != OrderAsc {
		t.Fatalf("unexpected limit/order %d %s", f.Limit, f.Order)
	}
	if f.Since == nil || !f.Since.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected since %v", f.Since)
	}
}

func TestParseFiltersErrors(t *testing.T) {
	for _, raw := range []string{"limit=0", "order=sideways", "since=yesterday", "kind=raid"} {
		values, _ := url.ParseQuery(raw)
		if _, err := ParseFilters(values); err == nil {
			t.Fatalf("expected %q to fail", raw)
		}
	}
}

func TestFiltersMatches(t *testing.T) {
	since := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ev := core.HighlightEvent{
		Ts:      since.Add(time.Second),
		Message: core.ChatMessage{Channel: "Chan", Username: "Alice", Kind: core.KindChat},
	}

	tests := []struct {
		name string
		f    Filters
		want bool
	}{
		{"empty", Filters{}, true},
		{"channel fold", Filters{Channels: []string{"chan"}}, true},
		{"other channel", Filters{Channels: []string{"other"}}, false},
		{"kind", Filters{Kinds: []core.MessageKind{core.KindChat}}, true},
		{"wrong kind", Filters{Kinds: []core.MessageKind{core.KindWhisper}}, false},
		{"user substring", Filters{Usernames: []string{"lic"}}, true},
		{"since before", Filters{Since: &since}, true},
	}
	for _, tt := range tests {
		if got := tt.f.Matches(ev); got != tt.want {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}

	later := since.Add(time.Minute)
	if (Filters{Since: &later}).Matches(ev) {
		t.Fatalf("expected event before since to be excluded")
	}
}

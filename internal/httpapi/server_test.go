package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/you/gnasty-highlights/internal/colors"
	"github.com/you/gnasty-highlights/internal/core"
	"github.com/you/gnasty-highlights/internal/highlight"
	"github.com/you/gnasty-highlights/internal/settings"
)

type memoryStore struct {
	mu     sync.Mutex
	events []core.HighlightEvent
}

func (m *memoryStore) filtered(f Filters) []core.HighlightEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.HighlightEvent
	for _, ev := range m.events {
		if f.Matches(ev) {
			out = append(out, ev)
		}
	}
	return out
}

func (m *memoryStore) CountHighlights(_ context.Context, f Filters) (int64, error) {
	return int64(len(m.filtered(f))), nil
}

func (m *memoryStore) ListHighlights(_ context.Context, f Filters) ([]core.HighlightEvent, error) {
	out := m.filtered(f)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func newTestServer(t *testing.T, store Store) (*Server, *settings.Settings, *httptest.Server) {
	t.Helper()
	s := settings.New(settings.Options{})
	t.Cleanup(s.Close)
	ctrl := highlight.New(s, colors.NewProvider(s), highlight.Options{})
	t.Cleanup(ctrl.Close)

	srv := New(store, ctrl, Options{DefaultSoundURL: "https://example.com/default.wav"})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		ts.Close()
	})
	return srv, s, ts
}

func sampleEvent(id, user string, kind core.MessageKind) core.HighlightEvent {
	return core.HighlightEvent{
		ID:    id,
		Ts:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Alert: true,
		Message: core.ChatMessage{
			ID:       "m" + id,
			Channel:  "chan",
			Username: user,
			Platform: "Twitch",
			Kind:     kind,
			Text:     "hello",
		},
	}
}

func TestHealthz(t *testing.T) {
	_, _, ts := newTestServer(t, &memoryStore{})
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestHighlightsAndCount(t *testing.T) {
	store := &memoryStore{events: []core.HighlightEvent{
		sampleEvent("1", "Alice", core.KindChat),
		sampleEvent("2", "Bob", core.KindWhisper),
	}}
	_, _, ts := newTestServer(t, store)

	resp, err := http.Get(ts.URL + "/highlights?user=ali")
	if err != nil {
		t.Fatalf("get highlights: %v", err)
	}
	defer resp.Body.Close()
	var events []core.HighlightEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 1 || events[0].ID != "1" {
		t.Fatalf("unexpected events %+v", events)
	}

	resp2, err := http.Get(ts.URL + "/count?kind=whisper")
	if err != nil {
		t.Fatalf("get count: %v", err)
	}
	defer resp2.Body.Close()
	var count struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&count); err != nil {
		t.Fatalf("decode count: %v", err)
	}
	if count.Count != 1 {
		t.Fatalf("expected 1 whisper, got %d", count.Count)
	}

	bad, err := http.Get(ts.URL + "/highlights?limit=-1")
	if err != nil {
		t.Fatalf("get bad: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", bad.StatusCode)
	}
}

func postCheck(t *testing.T, ts *httptest.Server, body string) checkResponse {
	t.Helper()
	resp, err := http.Post(ts.URL+"/check", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post check: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode check: %v", err)
	}
	return out
}

func TestCheckEvaluatesLiveRules(t *testing.T) {
	_, s, ts := newTestServer(t, &memoryStore{})

	if got := postCheck(t, ts, `{"username":"bob","text":"gg wp"}`); got.Matched {
		t.Fatalf("expected no match before rules, got %+v", got)
	}

	s.HighlightedMessages.Append(settings.Phrase{Pattern: "gg", Alert: true, Sound: true, Color: "#ff0000"})

	got := postCheck(t, ts, `{"username":"bob","text":"gg wp"}`)
	if !got.Matched || !got.Alert || !got.PlaySound {
		t.Fatalf("expected phrase match with alert and sound, got %+v", got)
	}
	if got.SoundURL != "https://example.com/default.wav" {
		t.Fatalf("expected default sound fallback, got %q", got.SoundURL)
	}
	if got.Color != "#ff0000" {
		t.Fatalf("expected rule color, got %q", got.Color)
	}

	sub := postCheck(t, ts, `{"username":"fan","text":"","kind":"sub"}`)
	if !sub.Matched || sub.Color != colors.FallbackSubscription.Hex() {
		t.Fatalf("expected subscription highlight, got %+v", sub)
	}
}

func TestCheckRejectsBadInput(t *testing.T) {
	_, _, ts := newTestServer(t, &memoryStore{})

	tests := []struct {
		method string
		body   string
		status int
	}{
		{http.MethodGet, "", http.StatusMethodNotAllowed},
		{http.MethodPost, "{", http.StatusBadRequest},
		{http.MethodPost, `{"kind":"raid"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest(tt.method, ts.URL+"/check", strings.NewReader(tt.body))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("do: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.status {
			t.Fatalf("%s %q: expected %d, got %d", tt.method, tt.body, tt.status, resp.StatusCode)
		}
	}
}

func TestRulesReportsInstalledSequence(t *testing.T) {
	_, s, ts := newTestServer(t, &memoryStore{})
	s.HighlightedMessages.Append(settings.Phrase{Pattern: "pog", ShowInMentions: true})
	s.HighlightedBadges.Append(settings.BadgeRule{Name: "moderator", Alert: true})

	resp, err := http.Get(ts.URL + "/rules")
	if err != nil {
		t.Fatalf("get rules: %v", err)
	}
	defer resp.Body.Close()
	var out rulesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode rules: %v", err)
	}
	if out.Generation != 3 {
		t.Fatalf("expected generation 3, got %d", out.Generation)
	}
	if out.Total != len(out.Checks) || out.Total != 4 {
		t.Fatalf("expected 4 checks, got total=%d checks=%d", out.Total, len(out.Checks))
	}
	if out.Counts[highlight.CategoryBadge.String()] != 1 {
		t.Fatalf("expected one badge check, got %v", out.Counts)
	}
	phrase := out.Checks[len(out.Checks)-2]
	if phrase.Category != highlight.CategoryPhrase.String() || !phrase.Mentions {
		t.Fatalf("expected phrase check shown in mentions, got %+v", phrase)
	}
	last := out.Checks[len(out.Checks)-1]
	if last.Category != highlight.CategoryBadge.String() || !last.Alert || last.Mentions {
		t.Fatalf("expected badge check last, got %+v", last)
	}
}

func TestStreamDeliversMatchingEvents(t *testing.T) {
	srv, _, ts := newTestServer(t, &memoryStore{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/stream?"+url.Values{"kind": {"whisper"}}.Encode(), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	if line, _ := reader.ReadString('\n'); strings.TrimSpace(line) != ":ok" {
		t.Fatalf("expected :ok preamble, got %q", line)
	}

	// the handler registers before writing :ok
	srv.Broadcast(sampleEvent("chat", "alice", core.KindChat))
	srv.Broadcast(sampleEvent("w", "bob", core.KindWhisper))

	deadline := time.After(2 * time.Second)
	lines := make(chan string, 16)
	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			lines <- line
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed early")
			}
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev core.HighlightEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			if ev.ID != "w" {
				t.Fatalf("expected only the whisper event, got %q", ev.ID)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestRateLimit(t *testing.T) {
	srv := New(&memoryStore{}, nil, Options{RateRPS: 1, RateBurst: 1})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	statuses := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		resp, err := http.Get(ts.URL + "/count")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}
	if statuses[0] != http.StatusOK || statuses[1] != http.StatusTooManyRequests {
		t.Fatalf("expected 200 then 429, got %v", statuses)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := New(&memoryStore{}, nil, Options{CORSOrigins: []string{"https://overlay.example"}})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/highlights", nil)
	req.Header.Set("Origin", "https://overlay.example")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://overlay.example" {
		t.Fatalf("unexpected allow origin %q", got)
	}

	req2, _ := http.NewRequest(http.MethodGet, ts.URL+"/highlights", nil)
	req2.Header.Set("Origin", "https://evil.example")
	resp2, err := http.DefaultClient.Do(req2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign origin, got %d", resp2.StatusCode)
	}
}

package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/you/gnasty-highlights/internal/core"
	"github.com/you/gnasty-highlights/internal/highlight"
)

type checkResponse struct {
	Matched    bool   `json:"matched"`
	Alert      bool   `json:"alert"`
	PlaySound  bool   `json:"play_sound"`
	SoundURL   string `json:"sound_url,omitempty"`
	Color      string `json:"color,omitempty"`
	Mentions   bool   `json:"show_in_mentions,omitempty"`
	Generation uint64 `json:"generation"`
}

// handleCheck evaluates a posted chat message against the live rules without
// recording anything.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if s.checker == nil {
		http.Error(w, "highlighting disabled", http.StatusServiceUnavailable)
		return
	}

	var msg core.ChatMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.metrics.checkResult(checkTooLarge)
			http.Error(w, fmt.Sprintf("message body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		s.metrics.checkResult(checkInvalid)
		http.Error(w, "invalid message body", http.StatusBadRequest)
		return
	}
	if msg.Kind != "" {
		kind, ok := normalizeKind(string(msg.Kind))
		if !ok {
			s.metrics.checkResult(checkInvalid)
			http.Error(w, "kind must be chat, subscription or whisper", http.StatusBadRequest)
			return
		}
		msg.Kind = kind
	}

	hm := highlight.MessageFromChat(msg)
	matched, res := s.checker.Check(&hm)
	if matched {
		s.metrics.checkResult(checkMatched)
	} else {
		s.metrics.checkResult(checkUnmatched)
	}
	resp := checkResponse{
		Matched:    matched,
		Generation: s.checker.Sequence().Generation(),
	}
	if matched {
		resp.Alert = res.Alert
		resp.PlaySound = res.PlaySound
		resp.SoundURL = res.SoundURL(s.opts.DefaultSoundURL)
		resp.Color = res.ColorHex()
		resp.Mentions = res.ShowInMentions
	}
	writeJSON(w, http.StatusOK, resp)
}

type ruleEntry struct {
	Category  string `json:"category"`
	Label     string `json:"label"`
	Alert     bool   `json:"alert"`
	PlaySound bool   `json:"play_sound"`
	SoundURL  string `json:"sound_url,omitempty"`
	Color     string `json:"color,omitempty"`
	Mentions  bool   `json:"show_in_mentions,omitempty"`
}

type rulesResponse struct {
	Generation uint64         `json:"generation"`
	BuiltAt    string         `json:"built_at,omitempty"`
	Total      int            `json:"total"`
	Counts     map[string]int `json:"counts"`
	Checks     []ruleEntry    `json:"checks"`
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if s.checker == nil {
		http.Error(w, "highlighting disabled", http.StatusServiceUnavailable)
		return
	}

	seq := s.checker.Sequence()
	resp := rulesResponse{
		Generation: seq.Generation(),
		Total:      seq.Len(),
		Counts:     make(map[string]int),
		Checks:     make([]ruleEntry, 0, seq.Len()),
	}
	if !seq.BuiltAt().IsZero() {
		resp.BuiltAt = seq.BuiltAt().UTC().Format(time.RFC3339Nano)
	}
	for category, n := range seq.Counts() {
		resp.Counts[category.String()] = n
	}
	for _, c := range seq.Checks() {
		res := c.Result()
		entry := ruleEntry{
			Category:  c.Category().String(),
			Label:     c.Label(),
			Alert:     res.Alert,
			PlaySound: res.PlaySound,
			Color:     res.ColorHex(),
			Mentions:  c.ShowInMentions(),
		}
		if res.CustomSoundURL != nil {
			entry.SoundURL = res.CustomSoundURL.String()
		}
		resp.Checks = append(resp.Checks, entry)
	}
	writeJSON(w, http.StatusOK, resp)
}

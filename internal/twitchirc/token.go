package twitchirc

import (
	"errors"
	"log"
	"os"
	"strings"
	"sync"
)

var ErrEmptyToken = errors.New("twitchirc: empty token")

// NormalizeToken trims the token and ensures it is prefixed with "oauth:".
func NormalizeToken(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "oauth:") {
		return trimmed
	}
	return "oauth:" + trimmed
}

// FileToken reads the IRC token from disk on every connect so rotated tokens
// are picked up on the next reconnect. The last good value is cached.
type FileToken struct {
	path     string
	fallback string

	mu     sync.Mutex
	cached string
}

// NewFileToken watches path; fallback is used until the file yields a token.
func NewFileToken(path, fallback string) *FileToken {
	return &FileToken{path: path, fallback: NormalizeToken(fallback)}
}

// Load reads and normalizes the token. The returned boolean reports whether
// it differs from the cached value.
func (l *FileToken) Load() (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if err != nil {
		return "", false, err
	}
	token := NormalizeToken(string(data))
	if token == "" {
		return "", false, ErrEmptyToken
	}
	if token == l.cached {
		return token, false, nil
	}
	l.cached = token
	return token, true, nil
}

// Current suits Config.TokenProvider: the file token when readable, else the
// cached or fallback token.
func (l *FileToken) Current() string {
	if strings.TrimSpace(l.path) == "" {
		return l.fallback
	}
	token, changed, err := l.Load()
	if err == nil {
		if changed {
			log.Printf("twitchirc: loaded token from %s", l.path)
		}
		return token
	}
	log.Printf("twitchirc: token file %s: %v", l.path, err)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cached != "" {
		return l.cached
	}
	return l.fallback
}

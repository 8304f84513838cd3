package colors

import (
	"testing"

	"github.com/you/gnasty-highlights/internal/settings"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{in: "#7f3f49", want: Color{R: 127, G: 63, B: 73, A: 255}},
		{in: "7f3f49", want: Color{R: 127, G: 63, B: 73, A: 255}},
		{in: "#c466ff64", want: Color{R: 196, G: 102, B: 255, A: 100}},
		{in: " #000000 ", want: Color{A: 255}},
		{in: "#12", wantErr: true},
		{in: "#zzzzzz", wantErr: true},
		{in: "#112233zz", wantErr: true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("Parse(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestHex(t *testing.T) {
	if got := (Color{R: 255, G: 0, B: 16, A: 255}).Hex(); got != "#ff0010" {
		t.Fatalf("opaque hex = %q", got)
	}
	if got := FallbackHighlight.Hex(); got != "#7f3f497f" {
		t.Fatalf("translucent hex = %q", got)
	}
}

func TestProviderFallbacksAndOverrides(t *testing.T) {
	s := settings.New(settings.Options{})
	p := NewProvider(s)

	if got := p.Color(Subscription); got != FallbackSubscription {
		t.Fatalf("subscription fallback = %v", got)
	}
	if got := p.Color(Whisper); got != FallbackHighlight {
		t.Fatalf("whisper fallback = %v", got)
	}

	s.SelfHighlightColor.Set("#010203")
	if got := p.Color(SelfHighlight); got != (Color{R: 1, G: 2, B: 3, A: 255}) {
		t.Fatalf("self override = %v", got)
	}

	s.WhisperHighlightColor.Set("not a color")
	if got := p.Color(Whisper); got != FallbackHighlight {
		t.Fatalf("expected fallback for malformed override, got %v", got)
	}

	var nilProvider *Provider
	if got := nilProvider.Color(Subscription); got != FallbackSubscription {
		t.Fatalf("nil provider = %v", got)
	}
}

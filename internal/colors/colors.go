package colors

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is an sRGB color with an alpha channel.
type Color struct {
	R, G, B, A uint8
}

var (
	// FallbackHighlight is used for self, whisper and rule highlights without a custom color.
	FallbackHighlight = Color{R: 127, G: 63, B: 73, A: 127}
	// FallbackSubscription is used for subscription highlights without a custom color.
	FallbackSubscription = Color{R: 196, G: 102, B: 255, A: 100}
)

// Parse accepts "#rrggbb" (opaque) or "#rrggbbaa".
func Parse(raw string) (Color, error) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	alpha := uint8(255)
	switch len(s) {
	case 7:
	case 9:
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("colors: alpha %q: %w", raw, err)
		}
		alpha = uint8(a)
		s = s[:7]
	default:
		return Color{}, fmt.Errorf("colors: malformed color %q", raw)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("colors: %w", err)
	}
	r, g, b := c.RGB255()
	return Color{R: r, G: g, B: b, A: alpha}, nil
}

// Colorful returns the color without alpha for blending and conversions.
func (c Color) Colorful() colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

// Hex formats the color as "#rrggbb", appending the alpha byte when not opaque.
func (c Color) Hex() string {
	hex := c.Colorful().Hex()
	if c.A == 255 {
		return hex
	}
	return fmt.Sprintf("%s%02x", hex, c.A)
}

func (c Color) String() string { return c.Hex() }

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

package highlight

import (
	"net/url"

	"github.com/you/gnasty-highlights/internal/colors"
)

// Result is the outcome of a highlight evaluation. Pointer fields are absent
// when nil. Results returned by checks share their pointers with the compiled
// sequence; callers must treat them as read-only.
//
// ShowInMentions is carried along for consumers that keep a mentions view. It
// is set when any contributing check asks for it and takes no part in Full.
type Result struct {
	Alert          bool
	PlaySound      bool
	CustomSoundURL *url.URL
	Color          *colors.Color
	ShowInMentions bool
}

// Full reports whether every field is populated, after which no later check
// can contribute anything.
func (r Result) Full() bool {
	return r.Alert && r.PlaySound && r.CustomSoundURL != nil && r.Color != nil
}

// Empty reports whether no field is populated.
func (r Result) Empty() bool {
	return !r.Alert && !r.PlaySound && r.CustomSoundURL == nil && r.Color == nil
}

// merge copies each field of other that r has not set yet.
func (r *Result) merge(other Result) {
	if other.Alert && !r.Alert {
		r.Alert = true
	}
	if other.PlaySound && !r.PlaySound {
		r.PlaySound = true
	}
	if other.CustomSoundURL != nil && r.CustomSoundURL == nil {
		r.CustomSoundURL = other.CustomSoundURL
	}
	if other.Color != nil && r.Color == nil {
		r.Color = other.Color
	}
	if other.ShowInMentions {
		r.ShowInMentions = true
	}
}

// SoundURL returns the custom sound, or fallback when sound is requested
// without one. It is empty when no sound should play.
func (r Result) SoundURL(fallback string) string {
	if !r.PlaySound {
		return ""
	}
	if r.CustomSoundURL != nil {
		return r.CustomSoundURL.String()
	}
	return fallback
}

// ColorHex returns the highlight color or an empty string.
func (r Result) ColorHex() string {
	if r.Color == nil {
		return ""
	}
	return r.Color.Hex()
}

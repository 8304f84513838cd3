package core

import "time"

// MessageKind distinguishes the IRC commands that carry chat content.
type MessageKind string

const (
	KindChat         MessageKind = "chat"
	KindSubscription MessageKind = "subscription"
	KindWhisper      MessageKind = "whisper"
)

// ChatMessage is the unified structure produced by the receivers and fed to the highlighter.
type ChatMessage struct {
	ID          string      `json:"id"` // platform-native message ID (or composed)
	Ts          time.Time   `json:"ts"`
	Channel     string      `json:"channel,omitempty"`
	Username    string      `json:"username"`               // login; highlight rules match against it
	DisplayName string      `json:"display_name,omitempty"` // shown name, may be localized
	Platform    string      `json:"platform"`               // "Twitch"
	Kind        MessageKind `json:"kind"`
	Text        string      `json:"text"`
	Badges      []ChatBadge `json:"badges,omitempty"`
	Colour      string      `json:"colour,omitempty"` // optional (e.g., Twitch)
}

// ChatBadge is one badge attached to the sender, e.g. moderator/1.
type ChatBadge struct {
	Platform string `json:"platform"`
	ID       string `json:"id"`
	Version  string `json:"version,omitempty"`
}

// HighlightEvent records a message that matched at least one highlight rule.
type HighlightEvent struct {
	ID        string      `json:"id"`
	Ts        time.Time   `json:"ts"`
	Message   ChatMessage `json:"message"`
	Alert     bool        `json:"alert"`
	PlaySound bool        `json:"play_sound"`
	SoundURL  string      `json:"sound_url,omitempty"`
	Color     string      `json:"color,omitempty"`

	ShowInMentions bool `json:"show_in_mentions,omitempty"`
}

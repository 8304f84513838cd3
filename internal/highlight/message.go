package highlight

import (
	"time"

	"github.com/google/uuid"

	"github.com/you/gnasty-highlights/internal/core"
)

// Message carries the attributes of an incoming chat message that the
// highlight checks look at.
type Message struct {
	IsSubscription bool
	IsWhisper      bool
	Sender         string
	Text           string
	Badges         []core.ChatBadge
}

func MessageFromChat(msg core.ChatMessage) Message {
	return Message{
		IsSubscription: msg.Kind == core.KindSubscription,
		IsWhisper:      msg.Kind == core.KindWhisper,
		Sender:         msg.Username,
		Text:           msg.Text,
		Badges:         msg.Badges,
	}
}

// NewEvent describes a highlighted message for sinks and stream clients.
// defaultSound is used when the result asks for sound without a custom one.
func NewEvent(msg core.ChatMessage, r Result, defaultSound string) core.HighlightEvent {
	ts := msg.Ts
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return core.HighlightEvent{
		ID:        uuid.NewString(),
		Ts:        ts,
		Message:   msg,
		Alert:     r.Alert,
		PlaySound: r.PlaySound,
		SoundURL:  r.SoundURL(defaultSound),
		Color:     r.ColorHex(),

		ShowInMentions: r.ShowInMentions,
	}
}

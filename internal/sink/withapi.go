package sink

import "github.com/you/gnasty-highlights/internal/core"

type broadcaster interface {
	Broadcast(core.HighlightEvent)
}

// WithBroadcast forwards every persisted event to live stream clients.
type WithBroadcast struct {
	*SQLiteSink
	api broadcaster
}

func WithAPI(base *SQLiteSink, api broadcaster) *WithBroadcast {
	return &WithBroadcast{SQLiteSink: base, api: api}
}

func (w *WithBroadcast) Write(ev core.HighlightEvent) error {
	if err := w.SQLiteSink.Write(ev); err != nil {
		return err
	}
	if w.api != nil {
		w.api.Broadcast(ev)
	}
	return nil
}

package twitchirc

import (
	"sync/atomic"

	"github.com/you/gnasty-highlights/internal/core"
)

// ingestMetricsState tracks basic ingest counters for Twitch IRC handling.
type ingestMetricsState struct {
	total         atomic.Int64
	sinceLast     atomic.Int64
	subscriptions atomic.Int64
	whispers      atomic.Int64
}

var ingestMetrics ingestMetricsState

func (m *ingestMetricsState) incReceived(kind core.MessageKind) {
	if m == nil {
		return
	}
	m.total.Add(1)
	m.sinceLast.Add(1)
	switch kind {
	case core.KindSubscription:
		m.subscriptions.Add(1)
	case core.KindWhisper:
		m.whispers.Add(1)
	}
}

// window returns the count since the previous call and the running total.
func (m *ingestMetricsState) window() (int64, int64) {
	if m == nil {
		return 0, 0
	}
	return m.sinceLast.Swap(0), m.total.Load()
}

// Stats is a point-in-time view of the ingest counters.
type Stats struct {
	Total         int64 `json:"total"`
	Subscriptions int64 `json:"subscriptions"`
	Whispers      int64 `json:"whispers"`
}

func ReadStats() Stats {
	return Stats{
		Total:         ingestMetrics.total.Load(),
		Subscriptions: ingestMetrics.subscriptions.Load(),
		Whispers:      ingestMetrics.whispers.Load(),
	}
}

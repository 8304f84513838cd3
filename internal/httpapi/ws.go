package httpapi

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const wsWriteTimeout = 5 * time.Second

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	filters, err := FiltersFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	patterns, skipVerify := s.origins.websocketPatterns()
	opts := &websocket.AcceptOptions{
		OriginPatterns:     patterns,
		InsecureSkipVerify: skipVerify,
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		// Accept already wrote the error response
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	client, ok := s.subscribe(filters, transportWS)
	if !ok {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer s.unsubscribe(client)
	s.metrics.streamClient(transportWS, 1)
	defer s.metrics.streamClient(transportWS, -1)

	// clients never send; CloseRead handles control frames and cancels on close
	ctx := conn.CloseRead(r.Context())

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		case ev, ok := <-client.ch:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := wsjson.Write(writeCtx, conn, ev)
			cancel()
			if err != nil {
				return
			}
			s.metrics.delivered(transportWS)
		}
	}
}

// hostOf strips the scheme so configured CORS origins double as websocket
// origin patterns.
func hostOf(origin string) string {
	for _, prefix := range []string{"https://", "http://"} {
		if len(origin) > len(prefix) && origin[:len(prefix)] == prefix {
			return origin[len(prefix):]
		}
	}
	return origin
}

package httpadmin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/you/gnasty-highlights/internal/highlight"
	"github.com/you/gnasty-highlights/internal/highlighter"
)

type Reloader interface {
	ReloadSettings() (highlighter.ReloadReport, error)
	RebuildHighlights() highlight.Sequence
}

type Server struct {
	rel Reloader
}

func New(rel Reloader) *Server { return &Server{rel: rel} }

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/admin/settings/reload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		report, err := s.rel.ReloadSettings()
		if err != nil {
			http.Error(w, "reload failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{
			"status":          "ok",
			"reloaded":        true,
			"account":         report.Account,
			"account_changed": report.AccountChanged,
			"generation":      report.Generation,
			"checks":          report.Checks,
		})
	})
	mux.HandleFunc("/admin/highlights/rebuild", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		seq := s.rel.RebuildHighlights()
		writeJSON(w, map[string]any{
			"status":     "ok",
			"generation": seq.Generation(),
			"checks":     seq.Len(),
			"built_at":   seq.BuiltAt().UTC().Format(time.RFC3339Nano),
		})
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}

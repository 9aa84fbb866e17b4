package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/web3-frozen/akash-stats-bot/internal/dedup"
)

// PostedGuard forgets posted days so their report can run again.
type PostedGuard interface {
	Clear(ctx context.Context, key string) error
	ClearByPattern(ctx context.Context, pattern string) (int, error)
}

// ClearPosted handles DELETE /posted/{date}. A YYYY-MM-DD date clears that
// day, a YYYY-MM date clears the whole month.
func ClearPosted(g PostedGuard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g == nil {
			writeError(w, http.StatusServiceUnavailable, "posted guard not configured")
			return
		}

		date := chi.URLParam(r, "date")
		if day, err := time.Parse("2006-01-02", date); err == nil {
			key := dedup.ReportKey(day)
			if err := g.Clear(r.Context(), key); err != nil {
				writeError(w, http.StatusInternalServerError, "failed to clear "+key)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"cleared": key, "removed": 1})
			return
		}
		month, err := time.Parse("2006-01", date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD or YYYY-MM")
			return
		}
		pattern := dedup.MonthPattern(month)
		n, err := g.ClearByPattern(r.Context(), pattern)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to clear "+pattern)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cleared": pattern, "removed": n})
	}
}

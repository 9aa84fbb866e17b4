package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/web3-frozen/akash-stats-bot/internal/store"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// RunLister reads the run log.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
}

// ListRuns serves the most recent runs. A nil lister means no run log is
// configured.
func ListRuns(rl RunLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rl == nil {
			writeError(w, http.StatusServiceUnavailable, "run log not configured")
			return
		}

		limit := defaultRunsLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > maxRunsLimit {
				writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
				return
			}
			limit = n
		}

		runs, err := rl.ListRuns(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list runs")
			return
		}
		if runs == nil {
			runs = []store.Run{}
		}

		writeJSON(w, http.StatusOK, runs)
	}
}

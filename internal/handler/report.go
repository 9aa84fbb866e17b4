package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/web3-frozen/akash-stats-bot/internal/pipeline"
	"github.com/web3-frozen/akash-stats-bot/internal/transform"
)

// Runner starts a report run.
type Runner interface {
	Run(ctx context.Context, now time.Time) (*pipeline.Outcome, error)
}

// Previewer composes the report without posting it.
type Previewer interface {
	Preview(ctx context.Context, now time.Time) (string, *transform.Result, error)
}

// TriggerRun runs the pipeline now and returns its outcome.
func TriggerRun(runner Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// A run outlives a dropped client connection.
		out, err := runner.Run(context.WithoutCancel(r.Context()), time.Now())
		switch {
		case errors.Is(err, pipeline.ErrRunInProgress):
			writeError(w, http.StatusConflict, "run already in progress")
		case errors.Is(err, pipeline.ErrAlreadyPosted):
			resp := map[string]string{"error": "already posted today"}
			if out != nil {
				resp["root_id"] = out.RootID
			}
			writeJSON(w, http.StatusConflict, resp)
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusOK, out)
		}
	}
}

// PreviewReport serves the report text as it would be posted now.
func PreviewReport(p Previewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		text, _, err := p.Preview(r.Context(), time.Now())
		if err != nil {
			http.Error(w, "preview failed: "+err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(text))
	}
}

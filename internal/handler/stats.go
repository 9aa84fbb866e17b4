package handler

import (
	"net/http"
	"time"

	"github.com/web3-frozen/akash-stats-bot/internal/pipeline"
	"github.com/web3-frozen/akash-stats-bot/internal/transform"
)

// LatestSource exposes the last successful report run.
type LatestSource interface {
	LastResult() (*pipeline.Latest, bool)
}

type statsResponse struct {
	At        time.Time         `json:"at"`
	RootID    string            `json:"root_id"`
	Report    string            `json:"report"`
	Latest    *transform.Row    `json:"latest"`
	GPUs      transform.Summary `json:"gpus"`
	TotalGPUs int               `json:"total_gpus"`
}

// Stats serves the latest aligned row, GPU summary and report text.
func Stats(src LatestSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		last, ok := src.LastResult()
		if !ok {
			writeError(w, http.StatusServiceUnavailable, "no data available yet")
			return
		}

		writeJSON(w, http.StatusOK, statsResponse{
			At:        last.At,
			RootID:    last.RootID,
			Report:    last.Report,
			Latest:    last.Result.Table.Latest(),
			GPUs:      last.Result.GPUs,
			TotalGPUs: last.Result.GPUs.TotalGPUs(),
		})
	}
}

package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/web3-frozen/akash-stats-bot/internal/akash"
)

// RawSource exposes the individual stats endpoints.
type RawSource interface {
	Names() []string
	URL(name string) (string, bool)
	RetrieveOne(ctx context.Context, name string) (*akash.RawData, error)
}

type rawEndpoint struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ListRawMetrics lists every endpoint the fetcher reads, in fetch order.
func ListRawMetrics(src RawSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		names := src.Names()
		out := make([]rawEndpoint, 0, len(names))
		for _, name := range names {
			u, _ := src.URL(name)
			out = append(out, rawEndpoint{Name: name, URL: u})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// RawMetric fetches one endpoint live and returns what it decoded.
func RawMetric(src RawSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "metric")
		raw, err := src.RetrieveOne(r.Context(), name)
		switch {
		case errors.Is(err, akash.ErrUnknownMetric):
			writeError(w, http.StatusNotFound, "unknown metric "+name)
		case err != nil:
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			writeJSON(w, http.StatusOK, raw)
		}
	}
}

package akash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/web3-frozen/akash-stats-bot/internal/metrics"
)

const fetchTimeout = 30 * time.Second

// Aggregate endpoint names.
const (
	NameDashboard  = "dashboard"
	NameMarket     = "market"
	NameGPUDetails = "gpu_details"
	NameGPUPrices  = "gpu_prices"
)

// ErrUnknownMetric is returned for names with no configured endpoint.
var ErrUnknownMetric = errors.New("unknown metric")

// ProviderMetrics are served by provider-graph-data.
var ProviderMetrics = []string{"cpu", "gpu", "memory", "storage", "count"}

// GraphMetrics are served by graph-data.
var GraphMetrics = []string{
	"activeLeaseCount", "totalLeaseCount", "dailyLeaseCount",
	"totalUAktSpent", "dailyUAktSpent",
	"totalUUsdcSpent", "dailyUUsdcSpent",
	"totalUUsdSpent", "dailyUUsdSpent",
	"activeCPU", "activeGPU", "activeMemory", "activeStorage",
}

// Fetcher pulls network statistics from the Akash console and Cloudmos APIs.
type Fetcher struct {
	client    *resty.Client
	logger    *slog.Logger
	endpoints map[string]string
	order     []string
}

func NewFetcher(consoleURL, cloudmosURL string, logger *slog.Logger) *Fetcher {
	client := resty.New().
		SetTimeout(fetchTimeout).
		SetHeader("Accept", "application/json")
	return newFetcher(client, consoleURL, cloudmosURL, logger)
}

func newFetcher(client *resty.Client, consoleURL, cloudmosURL string, logger *slog.Logger) *Fetcher {
	f := &Fetcher{
		client:    client,
		logger:    logger,
		endpoints: make(map[string]string),
	}
	f.add(NameDashboard, join(consoleURL, "dashboard-data"))
	f.add(NameMarket, join(consoleURL, "market-data"))
	for _, m := range ProviderMetrics {
		f.add(m, join(consoleURL, "provider-graph-data", m))
	}
	f.add(NameGPUDetails, join(consoleURL, "gpu"))
	f.add(NameGPUPrices, join(cloudmosURL, "gpu-prices"))
	for _, m := range GraphMetrics {
		f.add(m, join(consoleURL, "graph-data", m))
	}
	return f
}

func (f *Fetcher) add(name, url string) {
	f.endpoints[name] = url
	f.order = append(f.order, name)
}

// Names returns every endpoint name in fetch order.
func (f *Fetcher) Names() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// URL returns the endpoint for name.
func (f *Fetcher) URL(name string) (string, bool) {
	u, ok := f.endpoints[name]
	return u, ok
}

// Retrieve fetches every endpoint. A failing endpoint does not stop the
// others: whatever was fetched is returned together with the joined errors.
func (f *Fetcher) Retrieve(ctx context.Context) (*RawData, error) {
	raw := newRawData()
	var errs []error
	for _, name := range f.order {
		if err := f.fetchInto(ctx, name, raw); err != nil {
			f.logger.Error("fetch metric failed", "metric", name, "error", err)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
	}
	return raw, errors.Join(errs...)
}

// RetrieveOne fetches a single named endpoint.
func (f *Fetcher) RetrieveOne(ctx context.Context, name string) (*RawData, error) {
	if _, ok := f.endpoints[name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}
	raw := newRawData()
	if err := f.fetchInto(ctx, name, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (f *Fetcher) fetchInto(ctx context.Context, name string, raw *RawData) error {
	start := time.Now()
	body, err := f.get(ctx, name)
	metrics.FetchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err == nil {
		err = decodeInto(name, body, raw)
	}
	if err != nil {
		metrics.FetchTotal.WithLabelValues(name, "error").Inc()
		return err
	}
	metrics.FetchTotal.WithLabelValues(name, "ok").Inc()
	f.logger.Debug("fetched metric", "metric", name, "bytes", len(body))
	return nil
}

func (f *Fetcher) get(ctx context.Context, name string) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(f.endpoints[name])
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get %s: status %d", name, resp.StatusCode())
	}
	return resp.Body(), nil
}

func decodeInto(name string, body []byte, raw *RawData) error {
	var err error
	switch name {
	case NameDashboard:
		var d Dashboard
		if err = json.Unmarshal(body, &d); err == nil {
			raw.Dashboard = &d
		}
	case NameMarket:
		var m Market
		if err = json.Unmarshal(body, &m); err == nil {
			raw.Market = &m
		}
	case NameGPUPrices:
		var p GPUPrices
		if err = json.Unmarshal(body, &p); err == nil {
			raw.GPUPrices = &p
		}
	case NameGPUDetails:
		if !json.Valid(body) {
			err = errors.New("invalid JSON")
		} else {
			raw.GPUDetails = json.RawMessage(body)
		}
	default:
		var s Series
		if err = json.Unmarshal(body, &s); err == nil {
			raw.Series[name] = s
		}
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// SaveSnapshot writes raw as indented JSON into dir for offline debugging.
func SaveSnapshot(raw *RawData, dir string, ts time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	data, err := json.MarshalIndent(raw, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	path := filepath.Join(dir, "raw_"+ts.UTC().Format("20060102T150405Z")+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a file written by SaveSnapshot.
func LoadSnapshot(path string) (*RawData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	raw := newRawData()
	if err := json.Unmarshal(data, raw); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return raw, nil
}

// SnapshotFetcher serves a saved snapshot in place of the live APIs.
type SnapshotFetcher struct {
	path string
}

func NewSnapshotFetcher(path string) *SnapshotFetcher {
	return &SnapshotFetcher{path: path}
}

// Retrieve reloads the snapshot file on every call.
func (s *SnapshotFetcher) Retrieve(_ context.Context) (*RawData, error) {
	return LoadSnapshot(s.path)
}

func join(base string, parts ...string) string {
	return strings.TrimRight(base, "/") + "/" + strings.Join(parts, "/")
}

package akash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
)

func newTestServer(t *testing.T, fail map[string]int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		if code, ok := fail[name]; ok {
			http.Error(w, "boom", code)
			return
		}
		switch r.URL.Path {
		case "/console/dashboard-data":
			fmt.Fprint(w, `{"chainStats":{"stakingAPR":0.151,"bondedTokens":45,"totalSupply":100},
				"now":{"activeGPU":100,"dailyUUsdSpent":12340000000},
				"compare":{"activeGPU":80,"dailyUUsdSpent":11980582524},
				"networkCapacity":{"totalGPU":400}}`)
		case "/console/market-data":
			fmt.Fprint(w, `{"price":1.23,"priceChangePercentage24":-5.0}`)
		case "/console/gpu":
			fmt.Fprint(w, `{"gpus":{"total":{"allocatable":10,"allocated":5}}}`)
		case "/cloudmos/gpu-prices":
			fmt.Fprint(w, `{"availability":{"total":58,"available":47},"models":[
				{"vendor":"nvidia","model":"a100","ram":"80Gi","interface":"SXM4","availability":{"total":50,"available":40},"price":{"avg":1.5}},
				{"vendor":"nvidia","model":"t4","ram":"16Gi","interface":"PCIe","availability":{"total":8,"available":7},"price":null}]}`)
		case "/console/graph-data/bad", "/console/provider-graph-data/bad":
			fmt.Fprint(w, `{"snapshots":[{"date":"2024-05-01","value":"x"}]}`)
		default:
			fmt.Fprint(w, `{"currentValue":3,"compareValue":2,"snapshots":[
				{"date":"2024-05-01T00:00:00.000Z","value":1},
				{"date":"2024-05-02T00:00:00.000Z","value":2},
				{"date":"2024-05-03T00:00:00.000Z","value":3}]}`)
		}
	}))
}

func testFetcher(srv *httptest.Server) *Fetcher {
	return newFetcher(resty.New().SetTimeout(5*time.Second), srv.URL+"/console", srv.URL+"/cloudmos/", slog.Default())
}

func TestFetcherEndpoints(t *testing.T) {
	f := NewFetcher("https://console-api.akash.network/v1/", "https://api.cloudmos.io/internal", slog.Default())

	tests := []struct {
		name string
		want string
	}{
		{"dashboard", "https://console-api.akash.network/v1/dashboard-data"},
		{"market", "https://console-api.akash.network/v1/market-data"},
		{"gpu", "https://console-api.akash.network/v1/provider-graph-data/gpu"},
		{"count", "https://console-api.akash.network/v1/provider-graph-data/count"},
		{"gpu_details", "https://console-api.akash.network/v1/gpu"},
		{"gpu_prices", "https://api.cloudmos.io/internal/gpu-prices"},
		{"dailyUUsdSpent", "https://console-api.akash.network/v1/graph-data/dailyUUsdSpent"},
	}
	for _, tt := range tests {
		got, ok := f.URL(tt.name)
		if !ok || got != tt.want {
			t.Errorf("URL(%q) = %q, %v, want %q", tt.name, got, ok, tt.want)
		}
	}

	if n := len(f.Names()); n != 4+len(ProviderMetrics)+len(GraphMetrics) {
		t.Errorf("len(Names) = %d, want %d", n, 4+len(ProviderMetrics)+len(GraphMetrics))
	}
}

func TestRetrieveAll(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	raw, err := testFetcher(srv).Retrieve(context.Background())
	if err != nil {
		t.Fatalf("Retrieve error: %v", err)
	}
	if len(raw.Series) != len(ProviderMetrics)+len(GraphMetrics) {
		t.Errorf("len(Series) = %d, want %d", len(raw.Series), len(ProviderMetrics)+len(GraphMetrics))
	}
	gpu := raw.Series["gpu"]
	if len(gpu.Snapshots) != 3 {
		t.Fatalf("gpu snapshots = %d, want 3", len(gpu.Snapshots))
	}
	want := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	if !gpu.Snapshots[1].Date.Equal(want) || gpu.Snapshots[1].Value != 2 {
		t.Errorf("gpu[1] = %+v, want %v/2", gpu.Snapshots[1], want)
	}
	if raw.Market == nil || raw.Market.PriceChangePercentage24 != -5.0 {
		t.Errorf("Market = %+v", raw.Market)
	}
	if raw.Dashboard == nil || raw.Dashboard.Now.ActiveGPU != 100 || raw.Dashboard.NetworkCapacity.TotalGPU != 400 {
		t.Errorf("Dashboard = %+v", raw.Dashboard)
	}
	if raw.GPUPrices == nil || len(raw.GPUPrices.Models) != 2 {
		t.Fatalf("GPUPrices = %+v", raw.GPUPrices)
	}
	if raw.GPUPrices.Models[1].Price != nil {
		t.Errorf("t4 price = %+v, want nil", raw.GPUPrices.Models[1].Price)
	}
	if len(raw.GPUDetails) == 0 {
		t.Error("GPUDetails should be kept as raw JSON")
	}
}

func TestRetrievePartialFailure(t *testing.T) {
	srv := newTestServer(t, map[string]int{"activeGPU": http.StatusBadGateway, "market-data": http.StatusNotFound})
	defer srv.Close()

	raw, err := testFetcher(srv).Retrieve(context.Background())
	if err == nil {
		t.Fatal("expected joined error, got nil")
	}
	if !strings.Contains(err.Error(), "activeGPU") || !strings.Contains(err.Error(), "status 502") {
		t.Errorf("error %q should name activeGPU and its status", err)
	}
	if !strings.Contains(err.Error(), "market") {
		t.Errorf("error %q should name market", err)
	}
	if _, ok := raw.Series["activeGPU"]; ok {
		t.Error("activeGPU should be absent after failure")
	}
	if _, ok := raw.Series["gpu"]; !ok {
		t.Error("gpu should still be fetched")
	}
	if raw.Market != nil {
		t.Error("market should be nil after failure")
	}
}

func TestRetrieveOne(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()
	f := testFetcher(srv)

	raw, err := f.RetrieveOne(context.Background(), "market")
	if err != nil {
		t.Fatalf("RetrieveOne(market) error: %v", err)
	}
	if raw.Market == nil || raw.Market.Price != 1.23 {
		t.Errorf("Market = %+v, want price 1.23", raw.Market)
	}

	_, err = f.RetrieveOne(context.Background(), "nope")
	if !errors.Is(err, ErrUnknownMetric) {
		t.Errorf("RetrieveOne(nope) err = %v, want ErrUnknownMetric", err)
	}
}

func TestMalformedValue(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()
	f := testFetcher(srv)
	f.add("bad", srv.URL+"/console/graph-data/bad")

	if _, err := f.RetrieveOne(context.Background(), "bad"); err == nil {
		t.Error("expected decode error for non-numeric value")
	}
}

func TestPointMissingValue(t *testing.T) {
	var p Point
	if err := p.UnmarshalJSON([]byte(`{"date":"2024-05-01"}`)); err == nil {
		t.Error("expected error for missing value")
	}
	if err := p.UnmarshalJSON([]byte(`{"date":"yesterday","value":1}`)); err == nil {
		t.Error("expected error for bad date")
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-05-01", "2024-05-01T00:00:00Z", "2024-05-01T00:00:00.000Z", "2024-05-01T13:45:00", " 2024-05-01 "} {
		got, err := parseDate(in)
		if err != nil {
			t.Errorf("parseDate(%q) error: %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("parseDate(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	raw, err := testFetcher(srv).Retrieve(context.Background())
	if err != nil {
		t.Fatalf("Retrieve error: %v", err)
	}

	dir := t.TempDir()
	ts := time.Date(2024, 5, 3, 11, 0, 0, 0, time.UTC)
	path, err := SaveSnapshot(raw, dir, ts)
	if err != nil {
		t.Fatalf("SaveSnapshot error: %v", err)
	}
	if filepath.Base(path) != "raw_20240503T110000Z.json" {
		t.Errorf("snapshot name = %q", filepath.Base(path))
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot error: %v", err)
	}
	if len(loaded.Series) != len(raw.Series) {
		t.Errorf("loaded series = %d, want %d", len(loaded.Series), len(raw.Series))
	}
	if loaded.Dashboard.Now.ActiveGPU != 100 {
		t.Errorf("loaded activeGPU = %d, want 100", loaded.Dashboard.Now.ActiveGPU)
	}

	replayed, err := NewSnapshotFetcher(path).Retrieve(context.Background())
	if err != nil {
		t.Fatalf("SnapshotFetcher.Retrieve error: %v", err)
	}
	if replayed.Market == nil || replayed.Market.Price != raw.Market.Price {
		t.Errorf("replayed market = %+v", replayed.Market)
	}
}

func TestSnapshotFetcherMissingFile(t *testing.T) {
	_, err := NewSnapshotFetcher(filepath.Join(t.TempDir(), "none.json")).Retrieve(context.Background())
	if err == nil || !strings.Contains(err.Error(), "read snapshot") {
		t.Errorf("err = %v, want read snapshot error", err)
	}
}

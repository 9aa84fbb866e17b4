package transform

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/web3-frozen/akash-stats-bot/internal/akash"
)

// ErrMissingMetric is returned when a required input is absent.
var ErrMissingMetric = errors.New("missing required metric")

const microUnits = 1_000_000

// BaseMetrics are the series joined into the aligned table.
var BaseMetrics = []string{
	"activeLeaseCount", "totalLeaseCount", "dailyLeaseCount",
	"totalUAktSpent", "dailyUAktSpent",
	"totalUUsdcSpent", "dailyUUsdcSpent",
	"totalUUsdSpent", "dailyUUsdSpent",
	"activeCPU", "activeGPU", "activeMemory", "activeStorage",
	"cpu", "gpu", "memory", "storage", "count",
}

// setters writes a base metric value into its renamed row column.
var setters = map[string]func(*Row, float64){
	"activeLeaseCount": func(r *Row, v float64) { r.ActiveLeaseCount = v },
	"totalLeaseCount":  func(r *Row, v float64) { r.TotalLeaseCount = v },
	"dailyLeaseCount":  func(r *Row, v float64) { r.DailyLeaseCount = v },
	"totalUAktSpent":   func(r *Row, v float64) { r.TotalAktSpent = v },
	"dailyUAktSpent":   func(r *Row, v float64) { r.DailyAktSpent = v },
	"totalUUsdcSpent":  func(r *Row, v float64) { r.TotalUUsdcSpent = v },
	"dailyUUsdcSpent":  func(r *Row, v float64) { r.DailyUUsdcSpent = v },
	"totalUUsdSpent":   func(r *Row, v float64) { r.TotalUsdSpent = v },
	"dailyUUsdSpent":   func(r *Row, v float64) { r.DailyUsdSpent = v },
	"activeCPU":        func(r *Row, v float64) { r.ActiveCPU = v },
	"activeGPU":        func(r *Row, v float64) { r.ActiveGPU = v },
	"activeMemory":     func(r *Row, v float64) { r.ActiveMemory = v },
	"activeStorage":    func(r *Row, v float64) { r.ActiveStorage = v },
	"cpu":              func(r *Row, v float64) { r.TotalCPU = v },
	"gpu":              func(r *Row, v float64) { r.TotalGPU = v },
	"memory":           func(r *Row, v float64) { r.TotalMemory = v },
	"storage":          func(r *Row, v float64) { r.TotalStorage = v },
	"count":            func(r *Row, v float64) { r.Count = v },
}

// Result is everything the report run needs from one fetch.
type Result struct {
	Table     *Table
	GPUs      Summary
	Market    akash.Market
	Dashboard akash.Dashboard
}

// Transform joins the base series, derives the computed columns and builds
// the GPU model summary. Market and dashboard pass through unchanged.
func Transform(raw *akash.RawData) (*Result, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: no data", ErrMissingMetric)
	}
	table, err := Align(raw.Series)
	if err != nil {
		return nil, err
	}
	if raw.GPUPrices == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingMetric, akash.NameGPUPrices)
	}
	if raw.Market == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingMetric, akash.NameMarket)
	}
	if raw.Dashboard == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingMetric, akash.NameDashboard)
	}
	return &Result{
		Table:     table,
		GPUs:      Summarize(raw.GPUPrices.Models),
		Market:    *raw.Market,
		Dashboard: *raw.Dashboard,
	}, nil
}

// Align inner-joins the base metric series on date.
func Align(series map[string]akash.Series) (*Table, error) {
	indexed := make([]map[time.Time]float64, len(BaseMetrics))
	for i, name := range BaseMetrics {
		s, ok := series[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingMetric, name)
		}
		idx := make(map[time.Time]float64, len(s.Snapshots))
		for _, p := range s.Snapshots {
			idx[p.Date] = p.Value
		}
		indexed[i] = idx
	}

	var dates []time.Time
	for d := range indexed[0] {
		shared := true
		for _, idx := range indexed[1:] {
			if _, ok := idx[d]; !ok {
				shared = false
				break
			}
		}
		if shared {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rows := make([]Row, 0, len(dates))
	for _, d := range dates {
		r := Row{Date: d}
		for i, name := range BaseMetrics {
			setters[name](&r, indexed[i][d])
		}
		derive(&r)
		rows = append(rows, r)
	}
	return &Table{Rows: rows}, nil
}

// derive fills utilization and converts micro-unit spend to full units.
// A zero GPU capacity yields NaN or +Inf utilization; see Row.Valid.
func derive(r *Row) {
	r.Utilization = r.ActiveGPU / r.TotalGPU
	r.TotalUsdSpent /= microUnits
	r.TotalAktSpent /= microUnits
	r.DailyAktSpent /= microUnits
	r.DailyUsdSpent /= microUnits
}

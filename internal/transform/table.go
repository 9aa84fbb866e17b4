// Package transform reshapes raw stats API payloads into the aligned daily
// table and the ranked GPU model summary.
package transform

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Row is one date of the aligned table. Spend columns that lost their "U"
// prefix are in full units; the USDC columns keep their micro units.
type Row struct {
	Date             time.Time `json:"date"`
	ActiveLeaseCount float64   `json:"activeLeaseCount"`
	TotalLeaseCount  float64   `json:"totalLeaseCount"`
	DailyLeaseCount  float64   `json:"dailyLeaseCount"`
	TotalAktSpent    float64   `json:"totalAktSpent"`
	DailyAktSpent    float64   `json:"dailyAktSpent"`
	TotalUUsdcSpent  float64   `json:"totalUUsdcSpent"`
	DailyUUsdcSpent  float64   `json:"dailyUUsdcSpent"`
	TotalUsdSpent    float64   `json:"totalUsdSpent"`
	DailyUsdSpent    float64   `json:"dailyUsdSpent"`
	ActiveCPU        float64   `json:"activeCPU"`
	ActiveGPU        float64   `json:"activeGPU"`
	ActiveMemory     float64   `json:"activeMemory"`
	ActiveStorage    float64   `json:"activeStorage"`
	TotalCPU         float64   `json:"totalCPU"`
	TotalGPU         float64   `json:"totalGPU"`
	TotalMemory      float64   `json:"totalMemory"`
	TotalStorage     float64   `json:"totalStorage"`
	Count            float64   `json:"count"`
	Utilization      float64   `json:"-"`
}

// Valid reports whether the derived utilization is a finite number. Rows
// with zero GPU capacity are kept in the table but are not displayable.
func (r Row) Valid() bool {
	return !math.IsNaN(r.Utilization) && !math.IsInf(r.Utilization, 0)
}

// MarshalJSON encodes a non-finite utilization as null.
func (r Row) MarshalJSON() ([]byte, error) {
	type plain Row
	out := struct {
		plain
		Utilization *float64 `json:"utilization"`
	}{plain: plain(r)}
	if r.Valid() {
		u := r.Utilization
		out.Utilization = &u
	}
	return json.Marshal(out)
}

// columns maps output column names to row accessors.
var columns = map[string]func(Row) float64{
	"activeLeaseCount": func(r Row) float64 { return r.ActiveLeaseCount },
	"totalLeaseCount":  func(r Row) float64 { return r.TotalLeaseCount },
	"dailyLeaseCount":  func(r Row) float64 { return r.DailyLeaseCount },
	"totalAktSpent":    func(r Row) float64 { return r.TotalAktSpent },
	"dailyAktSpent":    func(r Row) float64 { return r.DailyAktSpent },
	"totalUUsdcSpent":  func(r Row) float64 { return r.TotalUUsdcSpent },
	"dailyUUsdcSpent":  func(r Row) float64 { return r.DailyUUsdcSpent },
	"totalUsdSpent":    func(r Row) float64 { return r.TotalUsdSpent },
	"dailyUsdSpent":    func(r Row) float64 { return r.DailyUsdSpent },
	"activeCPU":        func(r Row) float64 { return r.ActiveCPU },
	"activeGPU":        func(r Row) float64 { return r.ActiveGPU },
	"activeMemory":     func(r Row) float64 { return r.ActiveMemory },
	"activeStorage":    func(r Row) float64 { return r.ActiveStorage },
	"totalCPU":         func(r Row) float64 { return r.TotalCPU },
	"totalGPU":         func(r Row) float64 { return r.TotalGPU },
	"totalMemory":      func(r Row) float64 { return r.TotalMemory },
	"totalStorage":     func(r Row) float64 { return r.TotalStorage },
	"count":            func(r Row) float64 { return r.Count },
	"utilization":      func(r Row) float64 { return r.Utilization },
}

// Column returns the named value of r.
func (r Row) Column(name string) (float64, bool) {
	get, ok := columns[name]
	if !ok {
		return 0, false
	}
	return get(r), true
}

// Table is the inner-joined series, ascending by date.
type Table struct {
	Rows []Row
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Tail returns the last n rows, or all of them when n exceeds the length.
func (t *Table) Tail(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return &Table{Rows: t.Rows[len(t.Rows)-n:]}
}

// Latest returns the most recent row, or nil for an empty table.
func (t *Table) Latest() *Row {
	if len(t.Rows) == 0 {
		return nil
	}
	r := t.Rows[len(t.Rows)-1]
	return &r
}

// Records selects columns into JSON-ready records. "date" is formatted as
// YYYY-MM-DD; non-finite values become nil.
func (t *Table) Records(cols ...string) ([]map[string]any, error) {
	for _, c := range cols {
		if _, ok := columns[c]; !ok && c != "date" {
			return nil, fmt.Errorf("unknown column %q", c)
		}
	}
	out := make([]map[string]any, 0, len(t.Rows))
	for _, r := range t.Rows {
		rec := make(map[string]any, len(cols))
		for _, c := range cols {
			if c == "date" {
				rec[c] = r.Date.Format("2006-01-02")
				continue
			}
			v, _ := r.Column(c)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				rec[c] = nil
				continue
			}
			rec[c] = v
		}
		out = append(out, rec)
	}
	return out, nil
}

package transform

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/web3-frozen/akash-stats-bot/internal/akash"
)

// OtherThreshold is the largest model total folded into the "Other" row.
const OtherThreshold = 10

// OtherLabel names the aggregate row.
const OtherLabel = "Other"

// GPUModel is one row of the GPU model summary. Price is the average hourly
// price, nil when no bids exist.
type GPUModel struct {
	Model     string   `json:"model"`
	Total     int      `json:"total"`
	Available int      `json:"available"`
	Price     *float64 `json:"price"`
}

// Summary is the ranked GPU model table, descending by total.
type Summary []GPUModel

// Summarize ranks price models by total GPUs, folding every model at or
// below OtherThreshold into one "Other" row.
func Summarize(models []akash.GPUPriceModel) Summary {
	var (
		out            Summary
		small          bool
		otherTotal     int
		otherAvailable int
		otherPrices    []float64
	)
	for _, m := range models {
		label := fmt.Sprintf("%s %s %s", m.Model, m.RAM, m.Interface)
		var price *float64
		if m.Price != nil {
			avg := m.Price.Avg
			price = &avg
		}

		if m.Availability.Total > OtherThreshold {
			out = append(out, GPUModel{
				Model:     label,
				Total:     m.Availability.Total,
				Available: m.Availability.Available,
				Price:     price,
			})
			continue
		}
		small = true
		otherTotal += m.Availability.Total
		otherAvailable += m.Availability.Available
		if price != nil {
			otherPrices = append(otherPrices, *price)
		}
	}

	if small {
		out = append(out, GPUModel{
			Model:     OtherLabel,
			Total:     otherTotal,
			Available: otherAvailable,
			Price:     meanPrice(otherPrices),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out
}

// meanPrice averages prices rounded to cents, nil for an empty slice.
func meanPrice(prices []float64) *float64 {
	if len(prices) == 0 {
		return nil
	}
	sum := decimal.Zero
	for _, p := range prices {
		sum = sum.Add(decimal.NewFromFloat(p))
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(prices)))).Round(2).InexactFloat64()
	return &mean
}

// Labels returns the model labels in rank order.
func (s Summary) Labels() []string {
	out := make([]string, len(s))
	for i, m := range s {
		out[i] = m.Model
	}
	return out
}

// TotalGPUs sums the totals of every row.
func (s Summary) TotalGPUs() int {
	n := 0
	for _, m := range s {
		n += m.Total
	}
	return n
}

// Records converts the summary into JSON-ready narration records.
func (s Summary) Records() []map[string]any {
	out := make([]map[string]any, 0, len(s))
	for _, m := range s {
		var price any
		if m.Price != nil {
			price = *m.Price
		}
		out = append(out, map[string]any{
			"model":     m.Model,
			"total":     m.Total,
			"available": m.Available,
			"price":     price,
		})
	}
	return out
}

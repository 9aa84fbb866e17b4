package akash

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Point is one daily sample of a graph-data time series.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func (p *Point) UnmarshalJSON(data []byte) error {
	var raw struct {
		Date  string   `json:"date"`
		Value *float64 `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Value == nil {
		return fmt.Errorf("point %q: missing value", raw.Date)
	}
	d, err := parseDate(raw.Date)
	if err != nil {
		return err
	}
	p.Date = d
	p.Value = *raw.Value
	return nil
}

// parseDate normalizes an API date to midnight UTC.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q", s)
}

// Series is the payload of a graph-data or provider-graph-data endpoint.
type Series struct {
	CurrentValue float64 `json:"currentValue"`
	CompareValue float64 `json:"compareValue"`
	Snapshots    []Point `json:"snapshots"`
}

// Market is the market-data aggregate.
type Market struct {
	Price                   float64 `json:"price"`
	Volume                  float64 `json:"volume"`
	MarketCap               float64 `json:"marketCap"`
	MarketCapRank           int     `json:"marketCapRank"`
	PriceChange24h          float64 `json:"priceChange24h"`
	PriceChangePercentage24 float64 `json:"priceChangePercentage24"`
}

// ChainStats holds staking figures from the dashboard.
type ChainStats struct {
	Height        int64   `json:"height"`
	BondedTokens  float64 `json:"bondedTokens"`
	TotalSupply   float64 `json:"totalSupply"`
	CommunityPool float64 `json:"communityPool"`
	Inflation     float64 `json:"inflation"`
	StakingAPR    float64 `json:"stakingAPR"`
}

// NetworkStats is one side (now or compare) of the dashboard's daily figures.
// Spend fields are in micro units.
type NetworkStats struct {
	Date             string  `json:"date"`
	Height           int64   `json:"height"`
	ActiveLeaseCount int64   `json:"activeLeaseCount"`
	TotalLeaseCount  int64   `json:"totalLeaseCount"`
	DailyLeaseCount  int64   `json:"dailyLeaseCount"`
	TotalUAktSpent   float64 `json:"totalUAktSpent"`
	DailyUAktSpent   float64 `json:"dailyUAktSpent"`
	TotalUUsdcSpent  float64 `json:"totalUUsdcSpent"`
	DailyUUsdcSpent  float64 `json:"dailyUUsdcSpent"`
	TotalUUsdSpent   float64 `json:"totalUUsdSpent"`
	DailyUUsdSpent   float64 `json:"dailyUUsdSpent"`
	ActiveCPU        float64 `json:"activeCPU"`
	ActiveGPU        int64   `json:"activeGPU"`
	ActiveMemory     float64 `json:"activeMemory"`
	ActiveStorage    float64 `json:"activeStorage"`
}

// NetworkCapacity is the provider capacity block of the dashboard.
type NetworkCapacity struct {
	ActiveProviderCount int64   `json:"activeProviderCount"`
	ActiveCPU           float64 `json:"activeCPU"`
	ActiveGPU           int64   `json:"activeGPU"`
	ActiveMemory        float64 `json:"activeMemory"`
	ActiveStorage       float64 `json:"activeStorage"`
	PendingCPU          float64 `json:"pendingCPU"`
	PendingGPU          int64   `json:"pendingGPU"`
	AvailableCPU        float64 `json:"availableCPU"`
	AvailableGPU        int64   `json:"availableGPU"`
	TotalCPU            float64 `json:"totalCPU"`
	TotalGPU            int64   `json:"totalGPU"`
	TotalMemory         float64 `json:"totalMemory"`
	TotalStorage        float64 `json:"totalStorage"`
}

// Dashboard is the dashboard-data aggregate.
type Dashboard struct {
	ChainStats      ChainStats      `json:"chainStats"`
	Now             NetworkStats    `json:"now"`
	Compare         NetworkStats    `json:"compare"`
	NetworkCapacity NetworkCapacity `json:"networkCapacity"`
}

// Availability counts GPUs of one model.
type Availability struct {
	Total     int `json:"total"`
	Available int `json:"available"`
}

// GPUPrice summarizes hourly USD pricing for one model. Nil when the model
// has no bids.
type GPUPrice struct {
	Currency        string  `json:"currency"`
	Min             float64 `json:"min"`
	Max             float64 `json:"max"`
	Avg             float64 `json:"avg"`
	WeightedAverage float64 `json:"weightedAverage"`
	Med             float64 `json:"med"`
}

// GPUPriceModel is one entry of the gpu-prices endpoint.
type GPUPriceModel struct {
	Vendor       string       `json:"vendor"`
	Model        string       `json:"model"`
	RAM          string       `json:"ram"`
	Interface    string       `json:"interface"`
	Availability Availability `json:"availability"`
	Price        *GPUPrice    `json:"price"`
}

// GPUPrices is the gpu-prices aggregate.
type GPUPrices struct {
	Availability Availability    `json:"availability"`
	Models       []GPUPriceModel `json:"models"`
}

// RawData is everything one Retrieve call collected.
type RawData struct {
	Series     map[string]Series `json:"series"`
	Dashboard  *Dashboard        `json:"dashboard,omitempty"`
	Market     *Market           `json:"market,omitempty"`
	GPUPrices  *GPUPrices        `json:"gpu_prices,omitempty"`
	GPUDetails json.RawMessage   `json:"gpu_details,omitempty"`
}

func newRawData() *RawData {
	return &RawData{Series: make(map[string]Series)}
}

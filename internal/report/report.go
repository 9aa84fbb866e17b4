package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/web3-frozen/akash-stats-bot/internal/akash"
)

var (
	// ErrZeroBaseline is returned when a day-over-day change has a zero
	// previous value.
	ErrZeroBaseline = errors.New("zero baseline for percentage change")
	// ErrZeroCapacity is returned when the network reports no GPU capacity.
	ErrZeroCapacity = errors.New("zero GPU capacity")
	// ErrZeroSupply is returned when the chain reports no token supply.
	ErrZeroSupply = errors.New("zero total supply")
)

const (
	glyphRocket = "🚀"
	glyphUp     = "📈"
	glyphDown   = "📉"

	tagline = "@akashnet_ #DeCloud #DePIN #AI"

	// dailyUUsdSpent is in micro USD; this yields thousands of USD.
	microToThousands = 1_000_000_000
)

// Figures are the values the daily report is built from.
type Figures struct {
	Price          float64
	PriceChange24h float64
	StakingAPR     float64
	BondedRatio    float64
	ActiveGPU      int64
	TotalGPU       int64
	Utilization    float64
	GPUChangePct   float64
	USDSpentK      float64
	USDChangePct   float64
}

// Compute derives the report figures from the market and dashboard snapshots.
func Compute(m akash.Market, d akash.Dashboard) (Figures, error) {
	f := Figures{
		Price:          m.Price,
		PriceChange24h: m.PriceChangePercentage24,
		StakingAPR:     d.ChainStats.StakingAPR,
		ActiveGPU:      d.Now.ActiveGPU,
		TotalGPU:       d.NetworkCapacity.TotalGPU,
	}
	if d.ChainStats.TotalSupply == 0 {
		return Figures{}, ErrZeroSupply
	}
	f.BondedRatio = d.ChainStats.BondedTokens / d.ChainStats.TotalSupply

	if f.TotalGPU == 0 {
		return Figures{}, ErrZeroCapacity
	}
	f.Utilization = float64(f.ActiveGPU) / float64(f.TotalGPU)

	gpuChange, err := changePct(float64(d.Now.ActiveGPU), float64(d.Compare.ActiveGPU))
	if err != nil {
		return Figures{}, fmt.Errorf("active GPUs: %w", err)
	}
	f.GPUChangePct = gpuChange

	f.USDSpentK = d.Now.DailyUUsdSpent / microToThousands
	usdChange, err := changePct(f.USDSpentK, d.Compare.DailyUUsdSpent/microToThousands)
	if err != nil {
		return Figures{}, fmt.Errorf("daily USD spent: %w", err)
	}
	f.USDChangePct = usdChange
	return f, nil
}

func changePct(now, prev float64) (float64, error) {
	if prev == 0 {
		return 0, ErrZeroBaseline
	}
	return (now - prev) / prev * 100, nil
}

// Compose renders the daily report text for now's UTC date.
func Compose(m akash.Market, d akash.Dashboard, now time.Time) (string, error) {
	f, err := Compute(m, d)
	if err != nil {
		return "", err
	}
	return Render(f, now), nil
}

// Render fills the report template from precomputed figures.
func Render(f Figures, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Akash Network Daily Report - %s\n\n", now.UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "%s $AKT: %.2f$ (%+.2f%% in 24h), staking APR: %.2f%%, bonded: %.2f%%\n",
		priceGlyph(f.PriceChange24h), f.Price, f.PriceChange24h, f.StakingAPR*100, f.BondedRatio*100)
	fmt.Fprintf(&b, "%s Active GPUs: %d (%+.2f%% in 24h) (out of %d GPUs, %.2f%% util)\n",
		trendGlyph(f.GPUChangePct), f.ActiveGPU, f.GPUChangePct, f.TotalGPU, f.Utilization*100)
	fmt.Fprintf(&b, "%s Daily USD spent: $%.2fK (%+.2f%% in 24h)\n",
		trendGlyph(f.USDChangePct), f.USDSpentK, f.USDChangePct)
	b.WriteString(tagline)
	return b.String()
}

func priceGlyph(change float64) string {
	if change >= 0 {
		return glyphRocket
	}
	return glyphDown
}

func trendGlyph(change float64) string {
	if change >= 0 {
		return glyphUp
	}
	return glyphDown
}

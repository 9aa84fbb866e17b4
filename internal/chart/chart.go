// Package chart renders the PNG images attached to the daily thread.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/web3-frozen/akash-stats-bot/internal/transform"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no data to plot")

const (
	dateTick  = "Jan 02"
	maxXTicks = 10
)

var (
	colorActive    = color.RGBA{R: 0xe4, G: 0x1e, B: 0x13, A: 0xff}
	colorTotal     = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	colorUtil      = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}
	colorAvailable = color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff}
	colorUSD       = color.RGBA{R: 0x94, G: 0x67, B: 0xbd, A: 0xff}
)

// Renderer draws charts of a fixed size.
type Renderer struct {
	width  vg.Length
	height vg.Length
	logger *slog.Logger
}

// New returns a Renderer producing 10x5 inch panels.
func New(logger *slog.Logger) *Renderer {
	return &Renderer{width: 10 * vg.Inch, height: 5 * vg.Inch, logger: logger}
}

// GPUChart plots active and total GPUs above a utilization panel for the
// last window of rows. Windows longer than 20 samples get trend lines.
func (r *Renderer) GPUChart(table *transform.Table, w Window, path string) error {
	samples, err := w.Samples()
	if err != nil {
		return err
	}
	rows := table.Tail(samples).Rows
	if len(rows) == 0 {
		return ErrNoData
	}

	counts := plot.New()
	counts.Title.Text = fmt.Sprintf("Akash GPUs, last %s", w)
	counts.Y.Label.Text = "GPUs"
	counts.X.Tick.Marker = plot.TimeTicks{Format: dateTick}
	counts.Legend.Top = true

	var active, total, util plotter.XYs
	for _, row := range rows {
		x := float64(row.Date.Unix())
		active = append(active, plotter.XY{X: x, Y: row.ActiveGPU})
		total = append(total, plotter.XY{X: x, Y: row.TotalGPU})
		if row.Valid() {
			util = append(util, plotter.XY{X: x, Y: row.Utilization * 100})
		}
	}
	if err := addLine(counts, "active", active, colorActive); err != nil {
		return err
	}
	if err := addLine(counts, "total", total, colorTotal); err != nil {
		return err
	}

	usage := plot.New()
	usage.Y.Label.Text = "utilization %"
	usage.X.Tick.Marker = plot.TimeTicks{Format: dateTick}
	usage.Legend.Top = true
	if len(util) > 0 {
		if err := addLine(usage, "utilization", util, colorUtil); err != nil {
			return err
		}
	}

	if samples > trendMinSamples {
		for _, s := range []struct {
			p   *plot.Plot
			xys plotter.XYs
			c   color.Color
		}{
			{counts, active, colorActive},
			{counts, total, colorTotal},
			{usage, util, colorUtil},
		} {
			if err := addTrend(s.p, s.xys, s.c); err != nil {
				r.logger.Warn("skip trend line", "path", path, "error", err)
			}
		}
	}

	return r.save(path, counts, usage)
}

// AvailabilityChart plots total and available GPUs per model with the
// average hourly price above each bar.
func (r *Renderer) AvailabilityChart(summary transform.Summary, now time.Time, path string) error {
	if len(summary) == 0 {
		return ErrNoData
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Akash GPU availability - %s", now.UTC().Format("2006-01-02"))
	p.Y.Label.Text = "GPUs"
	p.Legend.Top = true

	totals := make(plotter.Values, len(summary))
	available := make(plotter.Values, len(summary))
	var (
		tops   plotter.XYs
		prices []string
	)
	for i, m := range summary {
		totals[i] = float64(m.Total)
		available[i] = float64(m.Available)
		if m.Price != nil {
			tops = append(tops, plotter.XY{X: float64(i), Y: float64(m.Total)})
			prices = append(prices, fmt.Sprintf("$%.2f/h", *m.Price))
		}
	}

	width := barWidth(r.width, len(summary), 1)
	for _, b := range []struct {
		name   string
		values plotter.Values
		c      color.Color
	}{
		{"total", totals, colorTotal},
		{"available", available, colorAvailable},
	} {
		bars, err := plotter.NewBarChart(b.values, width)
		if err != nil {
			return fmt.Errorf("%s bars: %w", b.name, err)
		}
		bars.Color = b.c
		bars.LineStyle.Width = 0
		p.Add(bars)
		p.Legend.Add(b.name, bars)
	}
	if len(tops) > 0 {
		labels, err := plotter.NewLabels(plotter.XYLabels{XYs: tops, Labels: prices})
		if err != nil {
			return fmt.Errorf("price labels: %w", err)
		}
		p.Add(labels)
	}
	p.NominalX(summary.Labels()...)
	return r.save(path, p)
}

// USDChart plots active leases and active GPUs as grouped bars above the
// daily USD spend for the last window of rows.
func (r *Renderer) USDChart(table *transform.Table, w Window, path string) error {
	samples, err := w.Samples()
	if err != nil {
		return err
	}
	rows := table.Tail(samples).Rows
	if len(rows) == 0 {
		return ErrNoData
	}

	leases := make(plotter.Values, len(rows))
	gpus := make(plotter.Values, len(rows))
	spend := make(plotter.XYs, len(rows))
	for i, row := range rows {
		leases[i] = row.ActiveLeaseCount
		gpus[i] = row.ActiveGPU
		spend[i] = plotter.XY{X: float64(i), Y: row.DailyUsdSpent}
	}
	names := dateLabels(rows)

	activity := plot.New()
	activity.Title.Text = fmt.Sprintf("Akash activity and spend, last %s", w)
	activity.Y.Label.Text = "count"
	activity.Legend.Top = true
	width := barWidth(r.width, len(rows), 2)
	for i, b := range []struct {
		name   string
		values plotter.Values
		c      color.Color
	}{
		{"active leases", leases, colorTotal},
		{"active GPUs", gpus, colorActive},
	} {
		bars, err := plotter.NewBarChart(b.values, width)
		if err != nil {
			return fmt.Errorf("%s bars: %w", b.name, err)
		}
		bars.Color = b.c
		bars.LineStyle.Width = 0
		bars.Offset = vg.Length(2*i-1) * width / 2
		activity.Add(bars)
		activity.Legend.Add(b.name, bars)
	}
	activity.NominalX(names...)

	usd := plot.New()
	usd.Y.Label.Text = "daily USD spent"
	usd.Legend.Top = true
	if err := addLine(usd, "USD", spend, colorUSD); err != nil {
		return err
	}
	usd.NominalX(names...)

	return r.save(path, activity, usd)
}

func addLine(p *plot.Plot, name string, xys plotter.XYs, c color.Color) error {
	l, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("%s line: %w", name, err)
	}
	l.LineStyle.Color = c
	l.LineStyle.Width = vg.Points(1.5)
	p.Add(l)
	p.Legend.Add(name, l)
	return nil
}

// addTrend overlays the dashed quadratic fit of xys. The fit runs on day
// offsets from the first point to keep the system well conditioned.
func addTrend(p *plot.Plot, xys plotter.XYs, c color.Color) error {
	if len(xys) == 0 {
		return ErrNoData
	}
	const day = float64(24 * 60 * 60)
	origin := xys[0].X
	xs := make([]float64, len(xys))
	ys := make([]float64, len(xys))
	for i, pt := range xys {
		xs[i] = (pt.X - origin) / day
		ys[i] = pt.Y
	}
	coef, err := fitQuadratic(xs, ys)
	if err != nil {
		return err
	}
	fitted := make(plotter.XYs, len(xys))
	for i, pt := range xys {
		fitted[i] = plotter.XY{X: pt.X, Y: evalQuadratic(coef, xs[i])}
	}
	l, err := plotter.NewLine(fitted)
	if err != nil {
		return fmt.Errorf("trend line: %w", err)
	}
	l.LineStyle.Color = c
	l.LineStyle.Width = vg.Points(1)
	l.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(3)}
	p.Add(l)
	return nil
}

// barWidth fits groups of n bars side by side across the panel width.
func barWidth(panel vg.Length, n, group int) vg.Length {
	w := panel * 0.7 / vg.Length(n*group)
	if w > vg.Points(40) {
		w = vg.Points(40)
	}
	return w
}

// dateLabels returns one tick label per row, blanking all but about
// maxXTicks of them.
func dateLabels(rows []transform.Row) []string {
	step := (len(rows) + maxXTicks - 1) / maxXTicks
	out := make([]string, len(rows))
	for i, row := range rows {
		if i%step == 0 {
			out[i] = row.Date.Format(dateTick)
		}
	}
	return out
}

// save stacks plots vertically with aligned axes into one PNG at path.
func (r *Renderer) save(path string, plots ...*plot.Plot) error {
	img := vgimg.New(r.width, r.height*vg.Length(len(plots)))
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      len(plots),
		Cols:      1,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
		PadY:      vg.Millimeter * 4,
	}
	grid := make([][]*plot.Plot, len(plots))
	for i, p := range plots {
		grid[i] = []*plot.Plot{p}
	}
	canvases := plot.Align(grid, tiles, dc)
	for i := range grid {
		grid[i][0].Draw(canvases[i][0])
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("encode chart %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close chart file: %w", err)
	}
	r.logger.Debug("chart written", "path", path, "panels", len(plots))
	return nil
}

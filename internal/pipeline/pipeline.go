// Package pipeline runs the daily report end to end: fetch, reshape, plot,
// narrate and post.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/web3-frozen/akash-stats-bot/internal/akash"
	"github.com/web3-frozen/akash-stats-bot/internal/chart"
	"github.com/web3-frozen/akash-stats-bot/internal/dedup"
	"github.com/web3-frozen/akash-stats-bot/internal/metrics"
	"github.com/web3-frozen/akash-stats-bot/internal/poster"
	"github.com/web3-frozen/akash-stats-bot/internal/report"
	"github.com/web3-frozen/akash-stats-bot/internal/store"
	"github.com/web3-frozen/akash-stats-bot/internal/transform"
)

var (
	// ErrAlreadyPosted is returned when today's report has been posted.
	ErrAlreadyPosted = errors.New("report already posted today")
	// ErrRunInProgress is returned when another run holds the pipeline.
	ErrRunInProgress = errors.New("report run already in progress")
)

const tsLayout = "20060102T150405Z"

var (
	gpuColumns = []string{"date", "totalGPU", "activeGPU", "utilization"}
	usdColumns = []string{"date", "activeLeaseCount", "activeGPU", "dailyUsdSpent"}
)

// Fetcher collects the raw stats. It may return partial data with an error.
type Fetcher interface {
	Retrieve(ctx context.Context) (*akash.RawData, error)
}

// Renderer draws the three thread charts.
type Renderer interface {
	GPUChart(table *transform.Table, w chart.Window, path string) error
	AvailabilityChart(summary transform.Summary, now time.Time, path string) error
	USDChart(table *transform.Table, w chart.Window, path string) error
}

// Narrator describes the trends in a set of records.
type Narrator interface {
	Narrate(ctx context.Context, records any) (string, error)
}

// Guard remembers which days have been posted.
type Guard interface {
	AlreadySent(ctx context.Context, key string) (bool, error)
	Lookup(ctx context.Context, key string) (string, bool, error)
	Record(ctx context.Context, key, value string) error
}

// RunLog records the outcome of every run.
type RunLog interface {
	StartRun(ctx context.Context, runDate time.Time) (int64, error)
	FinishRun(ctx context.Context, id int64, status, rootPostID, report, errText string) error
}

// Deps are the pipeline's collaborators. Guard and RunLog are optional.
type Deps struct {
	Fetcher  Fetcher
	Renderer Renderer
	Narrator Narrator
	Poster   poster.Poster
	Guard    Guard
	RunLog   RunLog
}

// Options configure where artifacts go and how much history is charted.
type Options struct {
	PlotDir     string
	SnapshotDir string
	Window      chart.Window
}

// Outcome describes a finished run.
type Outcome struct {
	Date     string         `json:"date"`
	RootID   string         `json:"root_id"`
	Report   string         `json:"report,omitempty"`
	Entries  []poster.Entry `json:"entries,omitempty"`
	Duration time.Duration  `json:"duration_ns"`
}

// Latest is the state of the last successful run.
type Latest struct {
	Result *transform.Result
	Report string
	RootID string
	At     time.Time
}

type Pipeline struct {
	deps   Deps
	opts   Options
	logger *slog.Logger

	runMu  sync.Mutex
	lastMu sync.RWMutex
	last   *Latest
}

func New(deps Deps, opts Options, logger *slog.Logger) *Pipeline {
	return &Pipeline{deps: deps, opts: opts, logger: logger}
}

// LastResult returns the last successful run, if any.
func (p *Pipeline) LastResult() (*Latest, bool) {
	p.lastMu.RLock()
	defer p.lastMu.RUnlock()
	return p.last, p.last != nil
}

// Run executes one daily report for now's UTC date. It returns
// ErrRunInProgress without waiting when another run is active, and
// ErrAlreadyPosted, with the recorded root id, when the day is done.
func (p *Pipeline) Run(ctx context.Context, now time.Time) (*Outcome, error) {
	if !p.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer p.runMu.Unlock()

	start := time.Now()
	runID := p.startRun(ctx, now)

	out, err := p.run(ctx, now)
	elapsed := time.Since(start)
	metrics.RunDuration.Observe(elapsed.Seconds())

	status := store.StatusSuccess
	switch {
	case errors.Is(err, ErrAlreadyPosted):
		status = store.StatusSkipped
	case err != nil:
		status = store.StatusError
	}
	metrics.RunTotal.WithLabelValues(status).Inc()
	if status == store.StatusSuccess {
		metrics.RunLastSuccess.SetToCurrentTime()
	}

	if out != nil {
		out.Duration = elapsed
	}
	p.finishRun(ctx, runID, status, out, err)

	if err != nil {
		return out, err
	}
	p.logger.Info("report run finished", "date", out.Date, "root_id", out.RootID, "duration", elapsed)
	return out, nil
}

func (p *Pipeline) run(ctx context.Context, now time.Time) (*Outcome, error) {
	day := now.UTC().Format("2006-01-02")
	key := dedup.ReportKey(now)

	if p.deps.Guard != nil {
		sent, err := p.deps.Guard.AlreadySent(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("check posted guard: %w", err)
		}
		if sent {
			rootID, _, err := p.deps.Guard.Lookup(ctx, key)
			if err != nil {
				p.logger.Warn("lookup posted root id", "key", key, "error", err)
			}
			p.logger.Info("report already posted", "date", day, "root_id", rootID)
			return &Outcome{Date: day, RootID: rootID}, ErrAlreadyPosted
		}
	}

	samples, err := p.opts.Window.Samples()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(p.opts.PlotDir, 0o755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}

	text, res, figures, err := p.compose(ctx, now)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Date: day, Report: text}

	ts := now.UTC().Format(tsLayout)
	sections := []struct {
		name    string
		image   string
		render  func(path string) error
		records func() (any, error)
	}{
		{
			name:   "gpu",
			image:  "gpu_" + ts + ".png",
			render: func(path string) error { return p.deps.Renderer.GPUChart(res.Table, p.opts.Window, path) },
			records: func() (any, error) {
				return res.Table.Tail(samples).Records(gpuColumns...)
			},
		},
		{
			name:    "gpu models",
			image:   "gpu_details_" + ts + ".png",
			render:  func(path string) error { return p.deps.Renderer.AvailabilityChart(res.GPUs, now, path) },
			records: func() (any, error) { return res.GPUs.Records(), nil },
		},
		{
			name:   "usd",
			image:  "usd_" + ts + ".png",
			render: func(path string) error { return p.deps.Renderer.USDChart(res.Table, p.opts.Window, path) },
			records: func() (any, error) {
				return res.Table.Tail(samples).Records(usdColumns...)
			},
		},
	}

	for _, s := range sections {
		path := filepath.Join(p.opts.PlotDir, s.image)
		if err := s.render(path); err != nil {
			return out, fmt.Errorf("render %s chart: %w", s.name, err)
		}
		records, err := s.records()
		if err != nil {
			return out, fmt.Errorf("%s records: %w", s.name, err)
		}
		narration, err := p.deps.Narrator.Narrate(ctx, records)
		if err != nil {
			return out, fmt.Errorf("narrate %s: %w", s.name, err)
		}
		p.logger.Debug("section ready", "section", s.name, "image", path, "chars", len([]rune(narration)))
		out.Entries = append(out.Entries, poster.Entry{Text: narration, ImagePath: path})
	}

	rootID, err := p.deps.Poster.Post(ctx, poster.Thread{Report: text, Entries: out.Entries, Closing: poster.ClosingText})
	out.RootID = rootID
	if err != nil {
		return out, fmt.Errorf("post thread: %w", err)
	}

	if p.deps.Guard != nil {
		if err := p.deps.Guard.Record(ctx, key, rootID); err != nil {
			p.logger.Error("record posted guard", "key", key, "error", err)
		}
	}

	metrics.NetworkActiveGPU.Set(float64(figures.ActiveGPU))
	metrics.NetworkTotalGPU.Set(float64(figures.TotalGPU))
	metrics.NetworkGPUUtilization.Set(figures.Utilization)
	metrics.AKTPrice.Set(figures.Price)
	metrics.DailyUSDSpent.Set(figures.USDSpentK * 1000)

	p.lastMu.Lock()
	p.last = &Latest{Result: res, Report: text, RootID: rootID, At: now}
	p.lastMu.Unlock()
	return out, nil
}

// Preview fetches and composes the report for now without posting.
func (p *Pipeline) Preview(ctx context.Context, now time.Time) (string, *transform.Result, error) {
	text, res, _, err := p.compose(ctx, now)
	return text, res, err
}

func (p *Pipeline) compose(ctx context.Context, now time.Time) (string, *transform.Result, report.Figures, error) {
	raw, fetchErr := p.deps.Fetcher.Retrieve(ctx)
	if fetchErr != nil {
		p.logger.Warn("fetch incomplete", "error", fetchErr)
	}
	if raw == nil {
		return "", nil, report.Figures{}, fmt.Errorf("fetch stats: %w", fetchErr)
	}

	if p.opts.SnapshotDir != "" {
		if path, err := akash.SaveSnapshot(raw, p.opts.SnapshotDir, now); err != nil {
			p.logger.Warn("save snapshot", "error", err)
		} else {
			p.logger.Debug("snapshot saved", "path", path)
		}
	}

	res, err := transform.Transform(raw)
	if err != nil {
		if fetchErr != nil {
			err = errors.Join(err, fetchErr)
		}
		return "", nil, report.Figures{}, fmt.Errorf("transform stats: %w", err)
	}

	figures, err := report.Compute(res.Market, res.Dashboard)
	if err != nil {
		return "", nil, report.Figures{}, fmt.Errorf("compose report: %w", err)
	}
	return report.Render(figures, now), res, figures, nil
}

func (p *Pipeline) startRun(ctx context.Context, now time.Time) int64 {
	if p.deps.RunLog == nil {
		return 0
	}
	id, err := p.deps.RunLog.StartRun(ctx, now)
	if err != nil {
		p.logger.Error("start run log", "error", err)
		return 0
	}
	return id
}

func (p *Pipeline) finishRun(ctx context.Context, id int64, status string, out *Outcome, runErr error) {
	if p.deps.RunLog == nil || id == 0 {
		return
	}
	var rootID, text, errText string
	if out != nil {
		rootID, text = out.RootID, out.Report
	}
	if runErr != nil {
		errText = runErr.Error()
	}
	// The run context may already be cancelled; the outcome is still recorded.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.deps.RunLog.FinishRun(ctx, id, status, rootID, text, errText); err != nil {
		p.logger.Error("finish run log", "id", id, "error", err)
	}
}

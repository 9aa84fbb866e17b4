package chart

import (
	"errors"
	"fmt"
)

// ErrUnknownGranularity is returned for a window granularity other than
// day, week, month or year.
var ErrUnknownGranularity = errors.New("unknown granularity")

var granularityDays = map[string]int{
	"day":   1,
	"week":  7,
	"month": 30,
	"year":  365,
}

// Window is the span of history a chart covers, e.g. 2 weeks.
type Window struct {
	Granularity string
	Amount      int
}

// Samples returns the number of daily rows the window covers.
func (w Window) Samples() (int, error) {
	days, ok := granularityDays[w.Granularity]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownGranularity, w.Granularity)
	}
	if w.Amount <= 0 {
		return 0, fmt.Errorf("window amount must be positive, got %d", w.Amount)
	}
	return days * w.Amount, nil
}

func (w Window) String() string {
	if w.Amount == 1 {
		return fmt.Sprintf("1 %s", w.Granularity)
	}
	return fmt.Sprintf("%d %ss", w.Amount, w.Granularity)
}

// Package progress draws analysis progress on stderr.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/panbanda/gradelens/pkg/analyzer"
	"github.com/schollz/progressbar/v3"
)

// Tracker wraps a progress bar for the CLI.
type Tracker struct {
	bar   *progressbar.ProgressBar
	label string
	out   io.Writer
	mu    sync.Mutex
}

// NewSpinner creates a spinner for operations with unknown total count,
// such as loading a dataset.
func NewSpinner(label string) *Tracker {
	return newSpinner(os.Stderr, label)
}

func newSpinner(w io.Writer, label string) *Tracker {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	return &Tracker{bar: bar, label: label, out: w}
}

// NewTracker creates a progress bar with the given label and total count.
func NewTracker(label string, total int) *Tracker {
	return newTracker(os.Stderr, label, total)
}

func newTracker(w io.Writer, label string, total int) *Tracker {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Tracker{bar: bar, label: label, out: w}
}

// Tick increments the progress by 1. Safe for concurrent use.
func (t *Tracker) Tick() {
	t.bar.Add(1)
}

// Callback adapts the bar to an analyzer progress callback. The bar shows
// the most recently finished stage.
func (t *Tracker) Callback() analyzer.ProgressFunc {
	return func(current, total int, stage string) {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.bar.GetMax() != total {
			t.bar.ChangeMax(total)
		}
		t.bar.Describe(fmt.Sprintf("%s (%s)", t.label, stage))
		_ = t.bar.Set(current)
	}
}

// FinishSuccess clears the bar completely (no output).
func (t *Tracker) FinishSuccess() {
	t.bar.Finish()
	t.bar.Clear()
}

// FinishError clears the bar and prints an error message.
func (t *Tracker) FinishError(err error) {
	t.bar.Finish()
	t.bar.Clear()
	fmt.Fprintf(t.out, "  %s error: %v\n", t.label, err)
}

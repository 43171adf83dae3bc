// File: internal/genwait/detector.go

// Package genwait decides when a streamed model answer has finished
// rendering. There is no completion event to subscribe to; the detector
// infers completion from text stability combined with the page's
// in-progress indicators.
package genwait

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/nlm-cli/api/schemas"
	"github.com/xkilldash9x/nlm-cli/internal/config"
)

// Signals is the page evidence the detector samples. Errors from a single
// sample are tolerated; the page re-renders mid-read all the time.
type Signals interface {
	// AnswerText returns the latest answer's current text.
	AnswerText(ctx context.Context) (string, error)
	// InProgress reports whether the page is still generating (a stop
	// control or loading indicator is visible).
	InProgress(ctx context.Context) (bool, error)
}

// Result is the detector's verdict. Text is best-effort even on timeout.
type Result struct {
	Text     string
	Complete bool
	Elapsed  time.Duration
}

// Detector samples Signals on a fixed cadence and declares completion when
// the text stops changing.
//
// Two thresholds govern the call: the low threshold suffices when every
// in-progress indicator has cleared, while the high threshold declares
// completion on stability alone, covering UIs where the indicators never
// rendered. Text shorter than the minimum length never counts as stable;
// placeholder fragments flicker during early rendering.
type Detector struct {
	sig    Signals
	cfg    config.ChatConfig
	logger *zap.Logger

	// Overridable for tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewDetector creates a detector with the given tuning.
func NewDetector(sig Signals, cfg config.ChatConfig, logger *zap.Logger) *Detector {
	return &Detector{
		sig:    sig,
		cfg:    cfg,
		logger: logger.Named("genwait"),
		sleep:  sleepCtx,
		now:    time.Now,
	}
}

// Wait blocks until the answer is judged complete or the budget expires.
// On budget expiry the partial text gathered so far is returned together
// with schemas.ErrCompletionTimeout.
func (d *Detector) Wait(ctx context.Context) (Result, error) {
	start := d.now()
	deadline := start.Add(d.cfg.MaxWait)

	d.waitForStartup(ctx, start)

	var last string
	stable := 0
	for {
		if err := ctx.Err(); err != nil {
			return Result{Text: last, Elapsed: d.now().Sub(start)}, err
		}
		if !d.now().Before(deadline) {
			return Result{Text: last, Elapsed: d.now().Sub(start)},
				fmt.Errorf("%w: answer still changing after %s", schemas.ErrCompletionTimeout, d.cfg.MaxWait)
		}

		text, err := d.sig.AnswerText(ctx)
		if err != nil {
			d.logger.Debug("Answer read failed, retrying", zap.Error(err))
			text = last
		}
		text = strings.TrimSpace(text)

		if text == last && len(text) >= d.cfg.MinTextLength {
			stable++
		} else {
			stable = 0
			last = text
		}

		busy, err := d.sig.InProgress(ctx)
		if err != nil {
			busy = false
		}

		if (stable >= d.cfg.StableLow && !busy) || stable >= d.cfg.StableHigh {
			break
		}

		if err := d.sleep(ctx, d.cfg.Cadence); err != nil {
			return Result{Text: last, Elapsed: d.now().Sub(start)}, err
		}
	}

	final, err := d.settle(ctx, last)
	if err != nil {
		return Result{Text: final, Elapsed: d.now().Sub(start)}, err
	}

	elapsed := d.now().Sub(start)
	d.logger.Info("Answer complete",
		zap.Int("length", len(final)),
		zap.Duration("elapsed", elapsed.Round(time.Second)))
	return Result{Text: final, Complete: true, Elapsed: elapsed}, nil
}

// waitForStartup holds the stability loop back until generation has
// observably begun, so a slow first token is not mistaken for instant
// stability. Bounded by StartupWait; silence that long means the indicators
// will not help and the stability loop takes over.
func (d *Detector) waitForStartup(ctx context.Context, start time.Time) {
	deadline := start.Add(d.cfg.StartupWait)
	for d.now().Before(deadline) {
		if ctx.Err() != nil {
			return
		}
		if busy, err := d.sig.InProgress(ctx); err == nil && busy {
			d.logger.Debug("Generation started", zap.Duration("after", d.now().Sub(start)))
			return
		}
		if text, err := d.sig.AnswerText(ctx); err == nil && strings.TrimSpace(text) != "" {
			return
		}
		if err := d.sleep(ctx, d.cfg.Cadence); err != nil {
			return
		}
	}
	d.logger.Debug("No startup signals observed, proceeding to stability loop")
}

// settle re-reads the answer after a short delay to catch a final render
// that landed between the last sample and the stability verdict. One
// extension is granted when the re-read still differs.
func (d *Detector) settle(ctx context.Context, text string) (string, error) {
	if err := d.sleep(ctx, d.cfg.RecheckDelay); err != nil {
		return text, err
	}
	reread, err := d.sig.AnswerText(ctx)
	if err != nil {
		return text, nil
	}
	reread = strings.TrimSpace(reread)
	if reread == text {
		return text, nil
	}

	d.logger.Debug("Answer grew after stability verdict, extending once")
	if err := d.sleep(ctx, d.cfg.ExtensionDelay); err != nil {
		return reread, err
	}
	if final, err := d.sig.AnswerText(ctx); err == nil {
		return strings.TrimSpace(final), nil
	}
	return reread, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

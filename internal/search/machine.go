// File: internal/search/machine.go

// Package search tracks the source-discovery panel's state machine. The
// panel is either ready for a new query, holding un-imported results from a
// previous query, or in an unrecognized state; most workflows require READY
// before they may proceed.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/nlm-cli/api/schemas"
	"github.com/xkilldash9x/nlm-cli/internal/browser"
	"github.com/xkilldash9x/nlm-cli/internal/config"
)

// maxClearPasses bounds how many remove-and-recheck rounds ClearPending
// attempts before giving up.
const maxClearPasses = 10

// Page is the slice of the browser surface the state machine uses.
// *browser.ChromeDriver satisfies it.
type Page interface {
	browser.Source
	Click(ctx context.Context, el *browser.Element, force bool) error
	PressKey(ctx context.Context, key string) error
	Sleep(ctx context.Context, d time.Duration) error
}

// Selectors carries the probe chains the machine evaluates. The caller owns
// the concrete UI knowledge; the machine owns the transitions.
type Selectors struct {
	// ViewResults locates the control that reopens pending results. Its
	// visibility defines the PENDING_RESULTS state.
	ViewResults browser.Chain
	// Input locates the query textarea. Its visibility defines READY.
	Input browser.Chain
	// RemoveResult locates per-result remove buttons inside the results
	// panel.
	RemoveResult browser.Chain
	// ConfirmRemove locates the confirmation control in the removal dialog,
	// when one appears.
	ConfirmRemove browser.Chain
	// Completed locates the marker that appears when discovery has finished.
	Completed browser.Chain
	// ResultTitle locates result title elements, a secondary completion
	// signal.
	ResultTitle browser.Chain
	// Loading locates the in-progress indicator. While it is visible the
	// waiter keeps polling regardless of any other signal.
	Loading browser.Chain
}

// Machine detects and transitions the discovery panel's state.
type Machine struct {
	page   Page
	sel    Selectors
	cfg    config.SearchConfig
	logger *zap.Logger
}

// NewMachine creates a state machine over the given page surface.
func NewMachine(page Page, sel Selectors, cfg config.SearchConfig, logger *zap.Logger) *Machine {
	return &Machine{page: page, sel: sel, cfg: cfg, logger: logger.Named("search")}
}

// Detect classifies the panel's current state. The pending-results indicator
// is checked first: when both it and the input are somehow visible, pending
// results still block a new query.
func (m *Machine) Detect(ctx context.Context) (schemas.SearchState, error) {
	if _, err := browser.ResolveChain(ctx, m.page, m.sel.ViewResults, m.logger); err == nil {
		return schemas.SearchPendingResults, nil
	} else if ctx.Err() != nil {
		return schemas.SearchUnknown, ctx.Err()
	}

	if _, err := browser.ResolveChain(ctx, m.page, m.sel.Input, m.logger); err == nil {
		return schemas.SearchReady, nil
	} else if ctx.Err() != nil {
		return schemas.SearchUnknown, ctx.Err()
	}

	return schemas.SearchUnknown, nil
}

// EnsureReady verifies the panel is READY. With autoClear set, pending
// results are discarded first. Any other outcome is a PreconditionError so
// callers can distinguish "wrong state" from mechanical failures.
func (m *Machine) EnsureReady(ctx context.Context, autoClear bool) error {
	state, err := m.Detect(ctx)
	if err != nil {
		return err
	}
	if state == schemas.SearchReady {
		return nil
	}

	if state == schemas.SearchPendingResults && autoClear {
		m.logger.Info("Pending results block the query, clearing them")
		if err := m.ClearPending(ctx); err != nil {
			return err
		}
		state, err = m.Detect(ctx)
		if err != nil {
			return err
		}
		if state == schemas.SearchReady {
			return nil
		}
	}

	return schemas.NewPreconditionError(schemas.SearchReady, state)
}

// ClearPending discards all un-imported results until the panel leaves the
// PENDING_RESULTS state. Each pass removes every visible result, confirms
// dialogs when they appear, and falls back to Escape when no removable
// controls are found.
func (m *Machine) ClearPending(ctx context.Context) error {
	for pass := 0; pass < maxClearPasses; pass++ {
		state, err := m.Detect(ctx)
		if err != nil {
			return err
		}
		if state != schemas.SearchPendingResults {
			return nil
		}

		// Reopen the results panel so the remove buttons are reachable.
		if view, err := browser.ResolveChain(ctx, m.page, m.sel.ViewResults, m.logger); err == nil {
			if err := m.page.Click(ctx, view, false); err != nil {
				m.logger.Debug("Could not reopen results panel", zap.Error(err))
			}
			if err := m.page.Sleep(ctx, time.Second); err != nil {
				return err
			}
		}

		removed, err := m.removeVisibleResults(ctx)
		if err != nil {
			return err
		}
		if removed == 0 {
			// Nothing removable; a stray dialog may be eating clicks.
			if err := m.page.PressKey(ctx, "\x1b"); err != nil {
				return err
			}
		}
		if err := m.page.Sleep(ctx, time.Second); err != nil {
			return err
		}
		m.logger.Debug("Clear pass finished", zap.Int("pass", pass), zap.Int("removed", removed))
	}

	return fmt.Errorf("results still pending after %d clear passes", maxClearPasses)
}

// removeVisibleResults clicks every currently visible remove button and
// answers any confirmation dialog. Returns how many removals were issued.
func (m *Machine) removeVisibleResults(ctx context.Context) (int, error) {
	removed := 0
	for _, probe := range m.sel.RemoveResult.Probes {
		candidates, err := m.page.Candidates(ctx, probe)
		if err != nil {
			continue
		}
		for _, el := range candidates {
			visible, err := m.page.IsVisible(ctx, el)
			if err != nil || !visible {
				continue
			}
			if err := m.page.Click(ctx, el, true); err != nil {
				m.logger.Debug("Remove click failed", zap.Error(err))
				continue
			}
			removed++

			if confirm, err := browser.ResolveChain(ctx, m.page, m.sel.ConfirmRemove, m.logger); err == nil {
				if err := m.page.Click(ctx, confirm, true); err != nil {
					m.logger.Debug("Confirm click failed", zap.Error(err))
				}
			}
			if err := m.page.Sleep(ctx, 500*time.Millisecond); err != nil {
				return removed, err
			}
		}
		if removed > 0 {
			break
		}
	}
	return removed, nil
}

// WaitComplete blocks until discovery finishes, polling on the configured
// cadence. The budget depends on the research mode; deep research runs far
// longer than fast. Expiry returns schemas.ErrCompletionTimeout.
func (m *Machine) WaitComplete(ctx context.Context, mode schemas.ResearchMode) error {
	budget := m.cfg.FastWait
	if mode == schemas.ModeDeep {
		budget = m.cfg.DeepWait
	}
	cadence := m.cfg.Cadence
	if cadence <= 0 {
		cadence = 5 * time.Second
	}

	waitCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	m.logger.Info("Waiting for discovery to complete",
		zap.String("mode", string(mode)),
		zap.Duration("budget", budget))

	limiter := rate.NewLimiter(rate.Every(cadence), 1)
	start := time.Now()
	for {
		if err := limiter.Wait(waitCtx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// The limiter refuses a tick that cannot fit the remaining
			// budget, so it reports the deadline before waitCtx expires.
			return fmt.Errorf("%w: discovery still running after %s", schemas.ErrCompletionTimeout, budget)
		}

		if _, err := browser.ResolveChain(waitCtx, m.page, m.sel.Loading, m.logger); err == nil {
			continue
		}

		// The collapsed View control is the most reliable done signal.
		if _, err := browser.ResolveChain(waitCtx, m.page, m.sel.ViewResults, m.logger); err == nil {
			m.logger.Info("Discovery completed", zap.Duration("elapsed", time.Since(start).Round(time.Second)))
			return nil
		}
		if _, err := browser.ResolveChain(waitCtx, m.page, m.sel.Completed, m.logger); err == nil {
			m.logger.Info("Discovery completed", zap.Duration("elapsed", time.Since(start).Round(time.Second)))
			return nil
		}
		if _, err := browser.ResolveChain(waitCtx, m.page, m.sel.ResultTitle, m.logger); err == nil {
			m.logger.Info("Discovery produced results", zap.Duration("elapsed", time.Since(start).Round(time.Second)))
			return nil
		}
	}
}

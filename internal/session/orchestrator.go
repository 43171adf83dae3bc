// File: internal/session/orchestrator.go

// Package session orchestrates complete NotebookLM workflows. Each
// public operation runs inside a managed session: the target notebook is
// mapped to an isolated browser profile, the host-wide automation lock is
// held for the whole browser lifetime, and the lock is released on every
// exit path.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/nlm-cli/internal/browser"
	"github.com/xkilldash9x/nlm-cli/internal/config"
	"github.com/xkilldash9x/nlm-cli/internal/genwait"
	"github.com/xkilldash9x/nlm-cli/internal/hostlock"
	"github.com/xkilldash9x/nlm-cli/internal/instance"
	"github.com/xkilldash9x/nlm-cli/internal/profile"
	"github.com/xkilldash9x/nlm-cli/internal/search"
)

// defaultInstance is the profile key used when per-notebook isolation is
// disabled and no explicit instance was requested.
const defaultInstance = "default"

// DriverFactory builds the page driver for one session. Swappable in tests.
type DriverFactory func(ctx context.Context, cfg config.BrowserConfig, profileDir string, logger *zap.Logger) (browser.Driver, error)

// Orchestrator runs workflows against NotebookLM.
type Orchestrator struct {
	cfg       *config.Config
	logger    *zap.Logger
	locks     *hostlock.Manager
	profiles  *profile.Store
	newDriver DriverFactory
}

// New creates a production orchestrator.
func New(cfg *config.Config, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		logger:   logger.Named("session"),
		locks:    hostlock.NewManager(cfg.Paths.LockFile, cfg.Lock.PollInterval, logger),
		profiles: profile.NewStore(cfg.Paths, logger),
		newDriver: func(ctx context.Context, bcfg config.BrowserConfig, profileDir string, l *zap.Logger) (browser.Driver, error) {
			return browser.NewChromeDriver(ctx, bcfg, profileDir, l)
		},
	}
}

// NewWithDeps wires an orchestrator from explicit dependencies.
func NewWithDeps(cfg *config.Config, logger *zap.Logger, locks *hostlock.Manager, profiles *profile.Store, factory DriverFactory) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		logger:    logger.Named("session"),
		locks:     locks,
		profiles:  profiles,
		newDriver: factory,
	}
}

// Session is one live browser session bound to a notebook's profile.
type Session struct {
	ID      string
	drv     browser.Driver
	cfg     *config.Config
	logger  *zap.Logger
	machine *search.Machine
}

// run executes fn inside a fully managed session lifecycle.
func (o *Orchestrator) run(ctx context.Context, notebook string, fn func(context.Context, *Session) error) error {
	sessionID := uuid.New().String()
	log := o.logger.With(zap.String("session_id", sessionID))

	var profileDir string
	if o.cfg.Browser.UseUserProfile {
		var err error
		profileDir, err = browser.UserProfileDir()
		if err != nil {
			return err
		}
		log.Debug("Using the system browser profile", zap.String("path", profileDir))
	} else {
		key := o.instanceKey(notebook)
		log.Debug("Resolved instance", zap.String("notebook", notebook), zap.String("instance", key))

		var err error
		profileDir, err = o.profiles.Ensure(key, o.cfg.Browser.Engine)
		if err != nil {
			return err
		}
	}
	o.profiles.ClearSingletonArtifacts(profileDir)

	handle, err := o.locks.Acquire(ctx, o.cfg.Lock.Timeout)
	if err != nil {
		return err
	}
	defer handle.Release()

	drv, err := o.newDriver(ctx, o.cfg.Browser, profileDir, log)
	if err != nil {
		return err
	}
	defer drv.Close()

	s := &Session{
		ID:      sessionID,
		drv:     drv,
		cfg:     o.cfg,
		logger:  log,
		machine: search.NewMachine(drv, searchSelectors(), o.cfg.Search, log),
	}

	return fn(ctx, s)
}

// instanceKey decides which profile a notebook maps onto. An explicit
// instance wins; otherwise per-notebook isolation derives the key from the
// notebook identifier unless it has been switched off.
func (o *Orchestrator) instanceKey(notebook string) string {
	if o.cfg.Browser.Instance != "" {
		return o.cfg.Browser.Instance
	}
	if !o.cfg.Browser.AutoInstance || notebook == "" {
		return defaultInstance
	}
	return instance.Resolve(notebook)
}

// --- shared session helpers ---

// resolve evaluates a probe chain on the current page.
func (s *Session) resolve(ctx context.Context, chain browser.Chain) (*browser.Element, error) {
	return browser.ResolveChain(ctx, s.drv, chain, s.logger)
}

// waitFor polls a chain until it resolves or the timeout lapses.
func (s *Session) waitFor(ctx context.Context, chain browser.Chain, timeout time.Duration) (*browser.Element, error) {
	deadline := time.Now().Add(timeout)
	for {
		el, err := s.resolve(ctx, chain)
		if err == nil {
			return el, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !time.Now().Before(deadline) {
			return nil, err
		}
		if err := s.drv.Sleep(ctx, time.Second); err != nil {
			return nil, err
		}
	}
}

// clickChain resolves the chain and clicks its element.
func (s *Session) clickChain(ctx context.Context, chain browser.Chain, force bool) error {
	el, err := s.resolve(ctx, chain)
	if err != nil {
		return err
	}
	return s.drv.Click(ctx, el, force)
}

// settle waits the configured post-action delay.
func (s *Session) settle(ctx context.Context) error {
	return s.drv.Sleep(ctx, s.cfg.Browser.SettleDelay)
}

// openHome navigates to the NotebookLM landing page.
func (s *Session) openHome(ctx context.Context) error {
	if err := s.drv.Navigate(ctx, s.cfg.Paths.BaseURL); err != nil {
		return err
	}
	return s.settle(ctx)
}

// openNotebook navigates home and opens the notebook whose title matches
// the identifier. Matching is case-insensitive substring, with a numeric
// prefix treated as its own match key.
func (s *Session) openNotebook(ctx context.Context, notebook string) error {
	if err := s.openHome(ctx); err != nil {
		return err
	}

	link, err := s.findNotebookLink(ctx, notebook)
	if err != nil {
		return err
	}
	if err := s.drv.Click(ctx, link, false); err != nil {
		return fmt.Errorf("failed to open notebook %q: %w", notebook, err)
	}
	return s.settle(ctx)
}

// findNotebookLink scans the notebook tiles for one matching the
// identifier.
func (s *Session) findNotebookLink(ctx context.Context, notebook string) (*browser.Element, error) {
	want := strings.ToLower(strings.TrimSpace(notebook))

	for _, probe := range chainNotebookLink.Probes {
		candidates, err := s.drv.Candidates(ctx, probe)
		if err != nil {
			continue
		}
		for _, el := range candidates {
			visible, err := s.drv.IsVisible(ctx, el)
			if err != nil || !visible {
				continue
			}
			text, err := s.drv.ReadText(ctx, el)
			if err != nil {
				continue
			}
			if strings.Contains(strings.ToLower(text), want) {
				return el, nil
			}
		}
	}
	return nil, fmt.Errorf("notebook %q not found on the home page", notebook)
}

// answerSignals adapts the live page to the completion detector.
type answerSignals struct {
	s *Session
}

var _ genwait.Signals = answerSignals{}

// AnswerText reads the text of the newest assistant message.
func (a answerSignals) AnswerText(ctx context.Context) (string, error) {
	var last *browser.Element
	for _, probe := range chainAssistantMessage.Probes {
		candidates, err := a.s.drv.Candidates(ctx, probe)
		if err != nil || len(candidates) == 0 {
			continue
		}
		for _, el := range candidates {
			if visible, err := a.s.drv.IsVisible(ctx, el); err == nil && visible {
				last = el
			}
		}
		if last != nil {
			break
		}
	}
	if last == nil {
		return "", nil
	}
	return a.s.drv.ReadText(ctx, last)
}

// InProgress reports whether a stop control or loading indicator is
// visible.
func (a answerSignals) InProgress(ctx context.Context) (bool, error) {
	if _, err := a.s.resolve(ctx, chainStopGenerating); err == nil {
		return true, nil
	}
	if _, err := a.s.resolve(ctx, chainLoading); err == nil {
		return true, nil
	}
	return false, nil
}

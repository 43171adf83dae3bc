// File: internal/session/notebooks.go
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/nlm-cli/internal/browser"
)

// Login opens the landing page in a visible browser and waits for the user
// to complete Google sign-in. The session's profile keeps the resulting
// cookies, so later headless runs stay authenticated.
func (o *Orchestrator) Login(ctx context.Context) error {
	return o.run(ctx, "", func(ctx context.Context, s *Session) error {
		if err := s.openHome(ctx); err != nil {
			return err
		}

		if _, err := s.resolve(ctx, chainLoggedIn); err == nil {
			s.logger.Info("Already logged in")
			return nil
		}

		// A multi-account chooser can be stepped through without the user.
		if url, err := s.drv.CurrentURL(ctx); err == nil && strings.Contains(url, "accounts.google.com") {
			if err := s.clickChain(ctx, chainAccountEntry, true); err == nil {
				s.logger.Info("Account chooser detected, picked the first account")
				if err := s.settle(ctx); err != nil {
					return err
				}
				if _, err := s.resolve(ctx, chainLoggedIn); err == nil {
					s.logger.Info("Logged in via the saved account")
					return nil
				}
			}
		}

		s.logger.Info("Waiting for interactive login",
			zap.Duration("timeout", s.cfg.Browser.LoginWait))

		if _, err := s.waitFor(ctx, chainLoggedIn, s.cfg.Browser.LoginWait); err != nil {
			return fmt.Errorf("login was not completed within %s: %w", s.cfg.Browser.LoginWait, err)
		}
		s.logger.Info("Login detected, session cookies persisted")
		return nil
	})
}

// ListNotebooks returns the titles of all notebooks on the home page.
func (o *Orchestrator) ListNotebooks(ctx context.Context) ([]string, error) {
	var titles []string
	err := o.run(ctx, "", func(ctx context.Context, s *Session) error {
		if err := s.openHome(ctx); err != nil {
			return err
		}

		seen := make(map[string]struct{})
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
				title := strings.TrimSpace(strings.Split(text, "\n")[0])
				if title == "" {
					continue
				}
				if _, dup := seen[title]; dup {
					continue
				}
				seen[title] = struct{}{}
				titles = append(titles, title)
			}
			if len(titles) > 0 {
				break
			}
		}
		return nil
	})
	return titles, err
}

// CreateNotebook creates a notebook with the given title.
func (o *Orchestrator) CreateNotebook(ctx context.Context, title string) error {
	return o.run(ctx, title, func(ctx context.Context, s *Session) error {
		if err := s.openHome(ctx); err != nil {
			return err
		}

		if err := s.clickChain(ctx, chainNewNotebook, false); err != nil {
			return fmt.Errorf("could not find the new-notebook control: %w", err)
		}
		if err := s.drv.Sleep(ctx, 2*time.Second); err != nil {
			return err
		}

		// The title dialog does not always render; some releases drop the
		// user straight into an untitled notebook.
		if input, err := s.resolve(ctx, chainNotebookTitleInput); err == nil {
			if err := s.drv.Fill(ctx, input, title); err != nil {
				return err
			}
			if err := s.clickChain(ctx, chainDialogConfirm, false); err != nil {
				s.logger.Debug("No confirm control after title entry", zap.Error(err))
			}
		} else {
			s.logger.Debug("No title dialog appeared, notebook created untitled")
		}

		if err := s.settle(ctx); err != nil {
			return err
		}
		s.logger.Info("Notebook created", zap.String("title", title))
		return nil
	})
}

// DeleteNotebook removes the notebook matching the identifier. The tile's
// overflow menu is opened via forced click; a confirmation dialog always
// follows.
func (o *Orchestrator) DeleteNotebook(ctx context.Context, notebook string) error {
	return o.run(ctx, notebook, func(ctx context.Context, s *Session) error {
		if err := s.openHome(ctx); err != nil {
			return err
		}

		// The delete entry lives behind the tile's overflow menu. Scope the
		// lookup to the tile matching the identifier so the wrong notebook
		// is never touched.
		lit := browser.XPathLiteral(notebook)
		tileMenu := browser.Chain{
			Name: "notebook_tile_menu",
			Probes: []browser.Probe{
				browser.XPath(
					fmt.Sprintf(`//project-button[contains(., %s)]//button[contains(@aria-label, "More") or contains(., "more_vert")]`, lit),
					"overflow menu inside the matching tile"),
				browser.XPath(
					fmt.Sprintf(`//a[contains(@href, "/notebook/") and contains(., %s)]/ancestor::*[position()<=2]//button[contains(@aria-label, "More") or contains(., "more_vert")]`, lit),
					"overflow menu next to the matching link"),
			},
		}

		if err := s.clickChain(ctx, tileMenu, true); err != nil {
			return fmt.Errorf("could not open the menu for %q: %w", notebook, err)
		}
		if err := s.drv.Sleep(ctx, time.Second); err != nil {
			return err
		}

		if err := s.clickChain(ctx, chainNotebookMenuDelete, true); err != nil {
			return fmt.Errorf("could not find the delete action for %q: %w", notebook, err)
		}
		if err := s.drv.Sleep(ctx, time.Second); err != nil {
			return err
		}

		if err := s.clickChain(ctx, chainDeleteConfirm, true); err != nil {
			s.logger.Debug("No delete confirmation dialog appeared", zap.Error(err))
		}

		if err := s.settle(ctx); err != nil {
			return err
		}
		s.logger.Info("Notebook deleted", zap.String("notebook", notebook))
		return nil
	})
}

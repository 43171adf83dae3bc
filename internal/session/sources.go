// File: internal/session/sources.go
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/nlm-cli/api/schemas"
	"github.com/xkilldash9x/nlm-cli/internal/browser"
)

// UploadSource adds a local file to the notebook's sources.
func (o *Orchestrator) UploadSource(ctx context.Context, notebook, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("source file %s: %w", path, err)
	}

	return o.run(ctx, notebook, func(ctx context.Context, s *Session) error {
		if err := s.openNotebook(ctx, notebook); err != nil {
			return err
		}

		// A hidden file input may already be present; otherwise the add
		// dialog must be opened first.
		if _, err := s.resolve(ctx, chainFileInput); err != nil {
			if err := s.clickChain(ctx, chainAddSource, false); err != nil {
				return fmt.Errorf("could not open the source upload dialog: %w", err)
			}
			if _, err := s.waitFor(ctx, chainFileInput, 10*time.Second); err != nil {
				return fmt.Errorf("no file input appeared: %w", err)
			}
		}

		if err := s.drv.UploadFiles(ctx, `input[type="file"]`, []string{abs}); err != nil {
			return fmt.Errorf("upload of %s failed: %w", filepath.Base(abs), err)
		}

		if err := s.settle(ctx); err != nil {
			return err
		}
		s.logger.Info("Source uploaded", zap.String("file", filepath.Base(abs)))
		return nil
	})
}

// ListSources returns the titles of the notebook's sources.
func (o *Orchestrator) ListSources(ctx context.Context, notebook string) ([]string, error) {
	var titles []string
	err := o.run(ctx, notebook, func(ctx context.Context, s *Session) error {
		if err := s.openNotebook(ctx, notebook); err != nil {
			return err
		}

		seen := make(map[string]struct{})
		for _, probe := range chainSourceItem.Probes {
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

// InspectSource opens a source and returns its metadata and preview text.
func (o *Orchestrator) InspectSource(ctx context.Context, notebook, source string) (*schemas.SourceInfo, error) {
	var info *schemas.SourceInfo
	err := o.run(ctx, notebook, func(ctx context.Context, s *Session) error {
		if err := s.openNotebook(ctx, notebook); err != nil {
			return err
		}

		el, err := s.findSource(ctx, source)
		if err != nil {
			return err
		}
		if err := s.drv.Click(ctx, el, false); err != nil {
			return err
		}
		if err := s.drv.Sleep(ctx, 2*time.Second); err != nil {
			return err
		}

		info = &schemas.SourceInfo{Title: source, Type: string(schemas.SourceLink)}
		if preview, err := s.readFirst(ctx, browser.Chain{
			Name: "source_preview",
			Probes: []browser.Probe{
				browser.CSS(`[class*="preview"]`, "preview pane"),
				browser.CSS(`[class*="summary"]`, "summary pane"),
			},
		}); err == nil {
			info.Preview = preview
		}
		if href, err := s.readFirst(ctx, browser.Chain{
			Name:   "source_url",
			Probes: []browser.Probe{browser.CSS(`a[href*="http"]`, "outbound link")},
		}); err == nil {
			info.URL = strings.TrimSpace(href)
		}
		return nil
	})
	return info, err
}

// DeleteSource removes a source from the notebook.
func (o *Orchestrator) DeleteSource(ctx context.Context, notebook, source string) error {
	return o.run(ctx, notebook, func(ctx context.Context, s *Session) error {
		if err := s.openNotebook(ctx, notebook); err != nil {
			return err
		}

		lit := browser.XPathLiteral(source)
		menu := browser.Chain{
			Name: "source_row_menu",
			Probes: []browser.Probe{
				browser.XPath(
					fmt.Sprintf(`//*[contains(@class, "source") and contains(., %s)]//button[contains(., "more_vert") or contains(@aria-label, "More")]`, lit),
					"overflow menu on the matching source row"),
			},
		}
		if err := s.clickChain(ctx, menu, true); err != nil {
			// Some layouts expose delete directly after selecting the row.
			row, ferr := s.findSource(ctx, source)
			if ferr != nil {
				return ferr
			}
			if cerr := s.drv.Click(ctx, row, true); cerr != nil {
				return cerr
			}
		}
		if err := s.drv.Sleep(ctx, time.Second); err != nil {
			return err
		}

		if err := s.clickChain(ctx, chainSourceDelete, true); err != nil {
			return fmt.Errorf("could not find the delete action for source %q: %w", source, err)
		}
		if err := s.drv.Sleep(ctx, time.Second); err != nil {
			return err
		}

		if err := s.clickChain(ctx, chainDeleteConfirm, true); err != nil {
			s.logger.Debug("No deletion confirmation dialog appeared", zap.Error(err))
		}

		if err := s.settle(ctx); err != nil {
			return err
		}
		s.logger.Info("Source deleted", zap.String("source", source))
		return nil
	})
}

// GenerateAudio triggers an Audio Overview and waits for the download
// control. With outputDir set, the finished file is downloaded there.
// Generation can take minutes; the chat budget bounds the wait.
func (o *Orchestrator) GenerateAudio(ctx context.Context, notebook, outputDir string) error {
	return o.run(ctx, notebook, func(ctx context.Context, s *Session) error {
		if err := s.openNotebook(ctx, notebook); err != nil {
			return err
		}

		if err := s.clickChain(ctx, chainAudioOverview, false); err != nil {
			return fmt.Errorf("could not find the Audio Overview control: %w", err)
		}
		if err := s.drv.Sleep(ctx, 2*time.Second); err != nil {
			return err
		}

		if err := s.clickChain(ctx, chainAudioGenerate, false); err != nil {
			s.logger.Debug("No explicit generate step, generation may auto-start", zap.Error(err))
		}

		s.logger.Info("Waiting for audio generation", zap.Duration("budget", s.cfg.Chat.MaxWait))
		download, err := s.waitFor(ctx, chainAudioDownload, s.cfg.Chat.MaxWait)
		if err != nil {
			return fmt.Errorf("%w: audio was not ready within %s", schemas.ErrCompletionTimeout, s.cfg.Chat.MaxWait)
		}
		s.logger.Info("Audio overview ready for download")

		if outputDir == "" {
			return nil
		}
		abs, err := filepath.Abs(outputDir)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return err
		}
		if err := s.drv.AllowDownloads(ctx, abs); err != nil {
			return err
		}
		if err := s.drv.Click(ctx, download, false); err != nil {
			return fmt.Errorf("could not start the download: %w", err)
		}
		// The download runs in the browser; give it time to land on disk.
		if err := s.drv.Sleep(ctx, 10*time.Second); err != nil {
			return err
		}
		s.logger.Info("Audio overview downloaded", zap.String("dir", abs))
		return nil
	})
}

// findSource locates a source row by title, exact first then substring.
func (s *Session) findSource(ctx context.Context, source string) (*browser.Element, error) {
	want := strings.ToLower(strings.TrimSpace(source))
	for _, probe := range chainSourceItem.Probes {
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
	return nil, fmt.Errorf("source %q not found in the panel", source)
}

// readFirst resolves the chain and returns its element's text.
func (s *Session) readFirst(ctx context.Context, chain browser.Chain) (string, error) {
	el, err := s.resolve(ctx, chain)
	if err != nil {
		return "", err
	}
	return s.drv.ReadText(ctx, el)
}

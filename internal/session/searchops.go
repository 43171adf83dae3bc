// File: internal/session/searchops.go
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/nlm-cli/api/schemas"
	"github.com/xkilldash9x/nlm-cli/internal/browser"
)

// collectResultsJS walks the discovery result checkboxes and extracts one
// record per result. Runs in the page so a single round-trip captures a
// consistent snapshot of the list.
const collectResultsJS = `
(() => {
	const out = [];
	document.querySelectorAll("mat-checkbox").forEach(cb => {
		const row = cb.closest("[class*='source']") || cb.parentElement;
		if (!row) return;
		const titleEl = row.querySelector(".shallow-research-title, [class*='source-info'], [class*='title']");
		const title = (titleEl ? titleEl.textContent : row.textContent || "").trim();
		if (!title) return;
		const rowText = (row.textContent || "").toLowerCase();
		out.push({
			title: title.split("\n")[0].trim(),
			row_text: rowText.slice(0, 200),
			checked: cb.classList.contains("mat-mdc-checkbox-checked"),
			can_import: !!row.querySelector("button[aria-label*='Add']"),
			can_remove: !!row.querySelector("button[aria-label*='Remove'], button[aria-label*='Delete']"),
		});
	});
	return out;
})()`

type rawResult struct {
	Title     string `json:"title"`
	RowText   string `json:"row_text"`
	Checked   bool   `json:"checked"`
	CanImport bool   `json:"can_import"`
	CanRemove bool   `json:"can_remove"`
}

// SearchSources runs a source-discovery query and waits for its results.
// The panel must be READY; pending results from an earlier query are
// cleared first when autoClear is set, and otherwise surface as a
// PreconditionError.
func (o *Orchestrator) SearchSources(ctx context.Context, notebook, query string, mode schemas.ResearchMode, srcType schemas.SourceType) ([]schemas.SearchResult, error) {
	var results []schemas.SearchResult
	err := o.run(ctx, notebook, func(ctx context.Context, s *Session) error {
		if err := s.openNotebook(ctx, notebook); err != nil {
			return err
		}

		if err := s.machine.EnsureReady(ctx, s.cfg.Search.AutoClear); err != nil {
			return err
		}

		// The panel remembers the last mode picked in this profile, so the
		// mode is selected explicitly on every query. Fast tolerates a
		// missing picker because it is also the panel default.
		modeOption := chainFastResearch
		if mode == schemas.ModeDeep {
			modeOption = chainDeepResearch
		}
		if err := s.selectResearchMode(ctx, modeOption); err != nil {
			if mode == schemas.ModeDeep {
				return err
			}
			s.logger.Debug("Mode picker unavailable, panel default applies", zap.Error(err))
		}
		// Web is the panel default; only non-defaults need a picker trip.
		if srcType != "" && srcType != schemas.SourceWeb {
			if err := s.selectSourceType(ctx, srcType); err != nil {
				return err
			}
		}

		input, err := s.resolve(ctx, chainDiscoverInput)
		if err != nil {
			return err
		}
		if err := s.drv.Fill(ctx, input, query); err != nil {
			return err
		}
		if err := s.drv.Sleep(ctx, time.Second); err != nil {
			return err
		}

		if err := s.clickChain(ctx, chainDiscoverSubmit, false); err != nil {
			// Enter submits when the arrow control is not rendered.
			if kerr := s.drv.PressKey(ctx, "\r"); kerr != nil {
				return fmt.Errorf("could not submit the query: %w", err)
			}
		}

		s.logger.Info("Query submitted",
			zap.String("query", query),
			zap.String("mode", string(mode)))

		if err := s.machine.WaitComplete(ctx, mode); err != nil {
			return err
		}

		results, err = s.collectResults(ctx)
		return err
	})
	return results, err
}

// ViewResults reopens pending discovery results and returns them.
func (o *Orchestrator) ViewResults(ctx context.Context, notebook string) ([]schemas.SearchResult, error) {
	var results []schemas.SearchResult
	err := o.run(ctx, notebook, func(ctx context.Context, s *Session) error {
		if err := s.openNotebook(ctx, notebook); err != nil {
			return err
		}

		state, err := s.machine.Detect(ctx)
		if err != nil {
			return err
		}
		if state != schemas.SearchPendingResults {
			return schemas.NewPreconditionError(schemas.SearchPendingResults, state)
		}

		if err := s.clickChain(ctx, chainViewResults, false); err != nil {
			return err
		}
		if err := s.drv.Sleep(ctx, 2*time.Second); err != nil {
			return err
		}

		results, err = s.collectResults(ctx)
		return err
	})
	return results, err
}

// ImportResult imports the discovery result whose title matches.
func (o *Orchestrator) ImportResult(ctx context.Context, notebook, title string) error {
	return o.resultAction(ctx, notebook, title, chainImportResult, "imported")
}

// RemoveResult discards the discovery result whose title matches.
func (o *Orchestrator) RemoveResult(ctx context.Context, notebook, title string) error {
	return o.resultAction(ctx, notebook, title, chainRemoveResult, "removed")
}

// resultAction opens pending results and applies the row-scoped action
// chain to the result matching the title.
func (o *Orchestrator) resultAction(ctx context.Context, notebook, title string, action browser.Chain, verb string) error {
	return o.run(ctx, notebook, func(ctx context.Context, s *Session) error {
		if err := s.openNotebook(ctx, notebook); err != nil {
			return err
		}

		if view, err := s.resolve(ctx, chainViewResults); err == nil {
			if err := s.drv.Click(ctx, view, false); err != nil {
				return err
			}
			if err := s.drv.Sleep(ctx, 2*time.Second); err != nil {
				return err
			}
		}

		lit := browser.XPathLiteral(truncate(title, 40))
		rowScoped := browser.Chain{Name: action.Name + "_scoped"}
		for _, p := range action.Probes {
			if p.Kind != browser.ProbeText {
				continue
			}
			tag, substr, _ := strings.Cut(p.Value, "|")
			rowScoped.Probes = append(rowScoped.Probes, browser.XPath(
				fmt.Sprintf(`//*[contains(., %s)][contains(@class, "source") or self::mat-checkbox or self::li]//%s[contains(normalize-space(.), %s)]`,
					lit, tag, browser.XPathLiteral(substr)),
				"row-scoped "+p.Desc))
		}
		rowScoped.Probes = append(rowScoped.Probes, action.Probes...)

		if err := s.clickChain(ctx, rowScoped, true); err != nil {
			return fmt.Errorf("result %q: %w", title, err)
		}
		if err := s.drv.Sleep(ctx, time.Second); err != nil {
			return err
		}
		s.logger.Info("Result "+verb, zap.String("title", title))
		return nil
	})
}

// ClearResults discards every pending discovery result.
func (o *Orchestrator) ClearResults(ctx context.Context, notebook string) error {
	return o.run(ctx, notebook, func(ctx context.Context, s *Session) error {
		if err := s.openNotebook(ctx, notebook); err != nil {
			return err
		}
		if err := s.machine.ClearPending(ctx); err != nil {
			return err
		}
		s.logger.Info("Pending results cleared")
		return nil
	})
}

// DetectSearchState reports the discovery panel's current state.
func (o *Orchestrator) DetectSearchState(ctx context.Context, notebook string) (schemas.SearchState, error) {
	state := schemas.SearchUnknown
	err := o.run(ctx, notebook, func(ctx context.Context, s *Session) error {
		if err := s.openNotebook(ctx, notebook); err != nil {
			return err
		}
		var derr error
		state, derr = s.machine.Detect(ctx)
		return derr
	})
	return state, err
}

// DetectMode reports which primary input the notebook page is showing.
func (o *Orchestrator) DetectMode(ctx context.Context, notebook string) (schemas.UIMode, error) {
	mode := schemas.ModeUnknownUI
	err := o.run(ctx, notebook, func(ctx context.Context, s *Session) error {
		if err := s.openNotebook(ctx, notebook); err != nil {
			return err
		}
		_, name, err := browser.ResolveAny(ctx, s.drv, []browser.Chain{chainDiscoverInput, chainChatInput}, s.logger)
		if err != nil {
			return ctx.Err()
		}
		switch name {
		case chainDiscoverInput.Name:
			mode = schemas.ModeSourceSearch
		case chainChatInput.Name:
			mode = schemas.ModeChat
		}
		return nil
	})
	return mode, err
}

// selectSourceType opens the type picker and chooses the filter. The picker
// menu closes itself on Escape when the option cannot be located.
func (s *Session) selectSourceType(ctx context.Context, t schemas.SourceType) error {
	if err := s.clickChain(ctx, chainSourceTypePicker, false); err != nil {
		return fmt.Errorf("could not open the source type picker: %w", err)
	}
	if err := s.drv.Sleep(ctx, time.Second); err != nil {
		return err
	}
	if err := s.clickChain(ctx, sourceTypeOption(t), true); err != nil {
		if kerr := s.drv.PressKey(ctx, "\x1b"); kerr != nil {
			return kerr
		}
		return fmt.Errorf("could not choose source type %q: %w", t, err)
	}
	return s.drv.Sleep(ctx, 500*time.Millisecond)
}

// selectResearchMode opens the mode picker and chooses an option.
func (s *Session) selectResearchMode(ctx context.Context, option browser.Chain) error {
	if err := s.clickChain(ctx, chainResearchMode, false); err != nil {
		return fmt.Errorf("could not open the research mode picker: %w", err)
	}
	if err := s.drv.Sleep(ctx, time.Second); err != nil {
		return err
	}
	if err := s.clickChain(ctx, option, true); err != nil {
		return fmt.Errorf("could not choose the research mode: %w", err)
	}
	return s.drv.Sleep(ctx, time.Second)
}

// collectResults snapshots the visible discovery results.
func (s *Session) collectResults(ctx context.Context) ([]schemas.SearchResult, error) {
	var raw []rawResult
	if err := s.drv.Evaluate(ctx, collectResultsJS, &raw); err != nil {
		return nil, fmt.Errorf("failed to read the results list: %w", err)
	}

	limit := s.cfg.Search.ResultLimit
	results := make([]schemas.SearchResult, 0, len(raw))
	for _, r := range raw {
		if limit > 0 && len(results) >= limit {
			break
		}
		results = append(results, schemas.SearchResult{
			Title:     r.Title,
			Type:      classifySource(r.RowText),
			Checked:   r.Checked,
			CanImport: r.CanImport,
			CanRemove: r.CanRemove,
		})
	}
	s.logger.Info("Results collected", zap.Int("count", len(results)))
	return results, nil
}

// classifySource guesses a result's source type from its row text.
func classifySource(rowText string) schemas.SourceType {
	switch {
	case strings.Contains(rowText, "youtube"):
		return schemas.SourceYouTube
	case strings.Contains(rowText, "drive"):
		return schemas.SourceDrive
	case strings.Contains(rowText, "http"), strings.Contains(rowText, "web"), strings.Contains(rowText, "language"):
		return schemas.SourceWeb
	default:
		return schemas.SourceLink
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// File: internal/session/chat.go
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/nlm-cli/api/schemas"
	"github.com/xkilldash9x/nlm-cli/internal/browser"
	"github.com/xkilldash9x/nlm-cli/internal/genwait"
)

// collectHistoryJS extracts the conversation transcript. Role detection
// leans on class names first and falls back to alternation.
const collectHistoryJS = `
(() => {
	const out = [];
	const nodes = document.querySelectorAll("[class*='chat-message'], [class*='conversation'] [class*='message']");
	nodes.forEach(n => {
		const text = (n.textContent || "").trim();
		if (!text) return;
		const cls = (n.className || "").toString().toLowerCase();
		let role = "";
		if (cls.includes("user") || cls.includes("query")) role = "user";
		else if (cls.includes("assistant") || cls.includes("response")) role = "assistant";
		out.push({ role: role, text: text });
	});
	return out;
})()`

type rawMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Chat sends a question to the notebook and waits for the complete answer.
// Completion is inferred by the stability detector; on budget expiry the
// partial answer is returned alongside the error.
func (o *Orchestrator) Chat(ctx context.Context, notebook, question string) (*schemas.ChatResult, error) {
	var result *schemas.ChatResult
	err := o.run(ctx, notebook, func(ctx context.Context, s *Session) error {
		if err := s.openNotebook(ctx, notebook); err != nil {
			return err
		}
		if err := s.ensureChatMode(ctx); err != nil {
			return err
		}

		input, err := s.resolve(ctx, chainChatInput)
		if err != nil {
			return fmt.Errorf("chat input not available: %w", err)
		}
		if err := s.drv.Fill(ctx, input, question); err != nil {
			return err
		}
		if err := s.drv.PressKey(ctx, "\r"); err != nil {
			return err
		}
		s.logger.Info("Question submitted", zap.Int("length", len(question)))

		detector := genwait.NewDetector(answerSignals{s: s}, s.cfg.Chat, s.logger)
		verdict, werr := detector.Wait(ctx)

		result = &schemas.ChatResult{
			Answer:   verdict.Text,
			Complete: verdict.Complete,
			Elapsed:  verdict.Elapsed,
		}
		return werr
	})
	if result != nil {
		// Partial answers survive a timeout; callers decide what to keep.
		return result, err
	}
	return nil, err
}

// ensureChatMode clears a lingering discovery panel so the chat input is
// reachable. Pending results from an earlier query cover the input until
// they are discarded.
func (s *Session) ensureChatMode(ctx context.Context) error {
	state, err := s.machine.Detect(ctx)
	if err != nil {
		return err
	}
	if state != schemas.SearchPendingResults {
		return nil
	}
	s.logger.Info("Pending discovery results block the chat input, clearing them")
	if err := s.machine.ClearPending(ctx); err != nil {
		return err
	}
	return s.settle(ctx)
}

// SaveNote saves the most recent answer as a notebook note.
func (o *Orchestrator) SaveNote(ctx context.Context, notebook string) error {
	return o.run(ctx, notebook, func(ctx context.Context, s *Session) error {
		if err := s.openNotebook(ctx, notebook); err != nil {
			return err
		}

		// Any rendered message will do; role-tagged answers resolve first.
		if _, _, err := browser.ResolveAny(ctx, s.drv, []browser.Chain{chainAssistantMessage, chainChatMessage}, s.logger); err != nil {
			return fmt.Errorf("no answer to save: %w", err)
		}

		if err := s.clickChain(ctx, chainSaveNote, false); err != nil {
			return fmt.Errorf("could not find the save-to-note control: %w", err)
		}
		if err := s.drv.Sleep(ctx, 2*time.Second); err != nil {
			return err
		}
		s.logger.Info("Answer saved as note")
		return nil
	})
}

// AddNote writes content into a new note in the notebook's notes area. A
// title, when given, becomes a markdown heading above the content.
func (o *Orchestrator) AddNote(ctx context.Context, notebook, content, title string) error {
	return o.run(ctx, notebook, func(ctx context.Context, s *Session) error {
		if err := s.openNotebook(ctx, notebook); err != nil {
			return err
		}

		// The editor may already be open; the add control is optional.
		if err := s.clickChain(ctx, chainAddNote, false); err == nil {
			if err := s.drv.Sleep(ctx, time.Second); err != nil {
				return err
			}
		}

		input, err := s.resolve(ctx, chainNoteInput)
		if err != nil {
			return fmt.Errorf("note editor not available: %w", err)
		}

		body := content
		if title != "" {
			body = fmt.Sprintf("# %s\n\n%s", title, content)
		}
		if err := s.drv.Fill(ctx, input, body); err != nil {
			return err
		}

		if err := s.clickChain(ctx, chainNoteSave, false); err != nil {
			// Some editor variants save on shortcut instead of a button.
			if kerr := s.drv.PressKey(ctx, "\r"); kerr != nil {
				return fmt.Errorf("could not save the note: %w", err)
			}
		}
		if err := s.drv.Sleep(ctx, 2*time.Second); err != nil {
			return err
		}
		s.logger.Info("Note saved", zap.String("title", title), zap.Int("length", len(content)))
		return nil
	})
}

// ChatHistory returns the notebook's visible conversation transcript. A
// positive limit keeps only the most recent messages.
func (o *Orchestrator) ChatHistory(ctx context.Context, notebook string, limit int) ([]schemas.ChatMessage, error) {
	var history []schemas.ChatMessage
	err := o.run(ctx, notebook, func(ctx context.Context, s *Session) error {
		if err := s.openNotebook(ctx, notebook); err != nil {
			return err
		}

		var raw []rawMessage
		if err := s.drv.Evaluate(ctx, collectHistoryJS, &raw); err != nil {
			return fmt.Errorf("failed to read the transcript: %w", err)
		}

		history = make([]schemas.ChatMessage, 0, len(raw))
		for i, m := range raw {
			text := strings.TrimSpace(m.Text)
			if text == "" {
				continue
			}
			role := schemas.ChatRole(m.Role)
			if role != schemas.RoleUser && role != schemas.RoleAssistant {
				// Transcripts alternate user, assistant, user, ...
				if i%2 == 0 {
					role = schemas.RoleUser
				} else {
					role = schemas.RoleAssistant
				}
			}
			history = append(history, schemas.ChatMessage{Role: role, Content: text})
		}
		if limit > 0 && len(history) > limit {
			history = history[len(history)-limit:]
		}
		s.logger.Debug("Transcript collected", zap.Int("messages", len(history)))
		return nil
	})
	return history, err
}

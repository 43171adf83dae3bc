// File: cmd/chat.go
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/nlm-cli/api/schemas"
)

var chatSaveNote bool

var chatCmd = &cobra.Command{
	Use:   "chat <notebook> <question>",
	Short: "Ask a notebook a question and print the answer.",
	Long: `Sends a question to the notebook's chat and waits until the answer
has finished streaming. When the wait budget expires the partial answer
is still printed, with a non-zero exit status.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := orch.Chat(cmd.Context(), args[0], args[1])
		if result != nil && result.Answer != "" {
			if outputFormat(cmd) == "json" {
				if jerr := emitJSON(result); jerr != nil {
					return jerr
				}
			} else {
				fmt.Println(result.Answer)
			}
		}
		if err != nil {
			if errors.Is(err, schemas.ErrCompletionTimeout) {
				return fmt.Errorf("answer incomplete: %w", err)
			}
			return err
		}

		if chatSaveNote {
			return orch.SaveNote(cmd.Context(), args[0])
		}
		return nil
	},
}

var saveNoteTitle string

var saveNoteCmd = &cobra.Command{
	Use:   "save-note <notebook> [content]",
	Short: "Save a note in the notebook.",
	Long: `Without content, saves the latest chat answer as a note. With
content, writes a new note; --title adds a heading above it.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 2 {
			if err := orch.AddNote(cmd.Context(), args[0], args[1], saveNoteTitle); err != nil {
				return err
			}
			fmt.Println("Note saved.")
			return nil
		}
		if err := orch.SaveNote(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("Saved the latest answer as a note.")
		return nil
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <notebook>",
	Short: "Print the notebook's chat transcript.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		history, err := orch.ChatHistory(cmd.Context(), args[0], historyLimit)
		if err != nil {
			return err
		}
		if outputFormat(cmd) == "json" {
			return emitJSON(history)
		}
		if len(history) == 0 {
			fmt.Println("No messages.")
			return nil
		}
		for _, m := range history {
			fmt.Printf("[%s] %s\n\n", m.Role, m.Content)
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().BoolVar(&chatSaveNote, "save", false, "save the answer as a note after printing it")
	saveNoteCmd.Flags().StringVar(&saveNoteTitle, "title", "", "heading for the new note")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "keep only the most recent N messages (0 = all)")
	rootCmd.AddCommand(chatCmd, saveNoteCmd, historyCmd)
}

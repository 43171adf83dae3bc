// File: cmd/notebooks.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Open a browser window and sign in to NotebookLM.",
	Long: `Opens a visible browser so you can complete Google sign-in.
The session cookies persist in the managed profile, so subsequent
commands (including headless ones) stay authenticated.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return orch.Login(cmd.Context())
	},
}

var notebooksCmd = &cobra.Command{
	Use:     "notebooks",
	Short:   "Manage notebooks.",
	Aliases: []string{"nb"},
}

var notebooksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all notebooks.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		titles, err := orch.ListNotebooks(cmd.Context())
		if err != nil {
			return err
		}
		if outputFormat(cmd) == "json" {
			return emitJSON(titles)
		}
		if len(titles) == 0 {
			fmt.Println("No notebooks found.")
			return nil
		}
		emitLines(titles)
		return nil
	},
}

var notebooksCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new notebook.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := orch.CreateNotebook(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Created notebook %q\n", args[0])
		return nil
	},
}

var notebooksDeleteCmd = &cobra.Command{
	Use:   "delete <notebook>",
	Short: "Delete a notebook.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := orch.DeleteNotebook(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted notebook %q\n", args[0])
		return nil
	},
}

func init() {
	notebooksCmd.AddCommand(notebooksListCmd, notebooksCreateCmd, notebooksDeleteCmd)
	rootCmd.AddCommand(loginCmd, notebooksCmd)
}

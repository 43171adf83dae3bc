// File: cmd/search.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/nlm-cli/api/schemas"
)

var (
	searchDeep       bool
	searchSourceType string
)

var searchCmd = &cobra.Command{
	Use:   "search <notebook> <query>",
	Short: "Discover new sources for a notebook.",
	Long: `Runs a source-discovery query and waits for its results. The panel
must be ready; pending results from an earlier query are cleared
automatically unless search.auto_clear is disabled, in which case the
command fails with a precondition error instead.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := schemas.ModeFast
		if searchDeep {
			mode = schemas.ModeDeep
		}
		srcType := schemas.SourceType(searchSourceType)
		switch srcType {
		case schemas.SourceWeb, schemas.SourceDrive, schemas.SourceYouTube, schemas.SourceLink:
		default:
			return fmt.Errorf("invalid source type %q (want web, drive, youtube or link)", searchSourceType)
		}
		results, err := orch.SearchSources(cmd.Context(), args[0], args[1], mode, srcType)
		if err != nil {
			return err
		}
		return emitResults(cmd, results)
	},
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Work with pending discovery results.",
}

var resultsViewCmd = &cobra.Command{
	Use:   "view <notebook>",
	Short: "Show pending discovery results.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := orch.ViewResults(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return emitResults(cmd, results)
	},
}

var resultsImportCmd = &cobra.Command{
	Use:   "import <notebook> <title>",
	Short: "Import a discovery result as a source.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := orch.ImportResult(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Imported %q\n", args[1])
		return nil
	},
}

var resultsRemoveCmd = &cobra.Command{
	Use:   "remove <notebook> <title>",
	Short: "Discard a single discovery result.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := orch.RemoveResult(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Removed %q\n", args[1])
		return nil
	},
}

var resultsClearCmd = &cobra.Command{
	Use:   "clear <notebook>",
	Short: "Discard all pending discovery results.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := orch.ClearResults(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("Pending results cleared.")
		return nil
	},
}

var stateCmd = &cobra.Command{
	Use:   "state <notebook>",
	Short: "Report the discovery panel's state.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := orch.DetectSearchState(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(state)
		return nil
	},
}

var modeCmd = &cobra.Command{
	Use:   "mode <notebook>",
	Short: "Report which input mode the notebook page is showing.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := orch.DetectMode(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(mode)
		return nil
	},
}

// emitResults prints discovery results in the selected format.
func emitResults(cmd *cobra.Command, results []schemas.SearchResult) error {
	if outputFormat(cmd) == "json" {
		return emitJSON(results)
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, r := range results {
		marker := " "
		if r.Checked {
			marker = "x"
		}
		fmt.Printf("%2d. [%s] (%s) %s\n", i+1, marker, r.Type, r.Title)
	}
	return nil
}

func init() {
	searchCmd.Flags().BoolVar(&searchDeep, "deep", false, "use Deep Research (longer, more thorough)")
	searchCmd.Flags().StringVar(&searchSourceType, "source-type", "web", "where to search (web, drive, youtube, link)")
	resultsCmd.AddCommand(resultsViewCmd, resultsImportCmd, resultsRemoveCmd, resultsClearCmd)
	rootCmd.AddCommand(searchCmd, resultsCmd, stateCmd, modeCmd)
}

// File: cmd/sources.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:     "sources",
	Short:   "Manage a notebook's sources.",
	Aliases: []string{"src"},
}

var sourcesListCmd = &cobra.Command{
	Use:   "list <notebook>",
	Short: "List the sources in a notebook.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		titles, err := orch.ListSources(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if outputFormat(cmd) == "json" {
			return emitJSON(titles)
		}
		if len(titles) == 0 {
			fmt.Println("No sources found.")
			return nil
		}
		emitLines(titles)
		return nil
	},
}

var sourcesUploadCmd = &cobra.Command{
	Use:   "upload <notebook> <file>",
	Short: "Upload a local file as a source.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := orch.UploadSource(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Uploaded %s to %q\n", args[1], args[0])
		return nil
	},
}

var sourcesInspectCmd = &cobra.Command{
	Use:   "inspect <notebook> <source>",
	Short: "Show a source's metadata and preview.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := orch.InspectSource(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if outputFormat(cmd) == "json" {
			return emitJSON(info)
		}
		fmt.Printf("Title: %s\nType:  %s\n", info.Title, info.Type)
		if info.URL != "" {
			fmt.Printf("URL:   %s\n", info.URL)
		}
		if info.Preview != "" {
			fmt.Printf("\n%s\n", info.Preview)
		}
		return nil
	},
}

var sourcesDeleteCmd = &cobra.Command{
	Use:   "delete <notebook> <source>",
	Short: "Delete a source from a notebook.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := orch.DeleteSource(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Deleted source %q from %q\n", args[1], args[0])
		return nil
	},
}

var audioOutputDir string

var audioCmd = &cobra.Command{
	Use:   "audio <notebook>",
	Short: "Generate an Audio Overview for a notebook.",
	Long: `Triggers Audio Overview generation and waits until the download
control appears. With --output, the finished audio is downloaded into
that directory. Generation regularly takes several minutes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := orch.GenerateAudio(cmd.Context(), args[0], audioOutputDir); err != nil {
			return err
		}
		if audioOutputDir != "" {
			fmt.Printf("Audio overview downloaded to %s.\n", audioOutputDir)
		} else {
			fmt.Println("Audio overview is ready for download.")
		}
		return nil
	},
}

func init() {
	audioCmd.Flags().StringVar(&audioOutputDir, "output", "", "download the finished audio into this directory")
	sourcesCmd.AddCommand(sourcesListCmd, sourcesUploadCmd, sourcesInspectCmd, sourcesDeleteCmd)
	rootCmd.AddCommand(sourcesCmd, audioCmd)
}

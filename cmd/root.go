// File: cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/nlm-cli/internal/config"
	"github.com/xkilldash9x/nlm-cli/internal/observability"
	"github.com/xkilldash9x/nlm-cli/internal/session"
)

var (
	cfgFile string

	// cfg and orch are built in PersistentPreRunE and shared by every
	// subcommand.
	cfg  *config.Config
	orch *session.Orchestrator
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nlm-cli",
	Short: "Drive NotebookLM from the command line.",
	Long: `nlm-cli automates NotebookLM through a real browser session.

Each notebook gets its own isolated browser profile, so sessions against
different notebooks never share login state. A host-wide lock keeps
concurrent invocations from fighting over the browser.`,
	// Version is dynamically set at build time. See cmd/version.go.
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// rootPersistentPreRunE is attached to rootCmd in init; assigning it there
// instead of in the struct literal avoids an initialization cycle between
// rootCmd and initializeConfig.
func rootPersistentPreRunE(cmd *cobra.Command, args []string) error {
	// This function runs before any command, setting up config and logging.
	if err := initializeConfig(); err != nil {
		return err
	}

	var err error
	cfg, err = config.NewConfigFromViper(viper.GetViper())
	if err != nil {
		// Initialize a fallback logger if config loading fails.
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "nlm-cli"})
		return err
	}

	observability.InitializeLogger(cfg.Logger)
	observability.GetLogger().Debug("Starting nlm-cli", zap.String("version", Version))

	orch = session.New(cfg, observability.GetLogger())
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// An interrupt cancels the command context so locks and browsers are
// released before exit.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// GetLogger hands back a nop before initialization, which drops
		// the record; stderr still carries the error either way.
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentPreRunE = rootPersistentPreRunE

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	pf.Bool("headless", false, "run the browser without a visible window")
	pf.String("browser", "chrome", "browser engine (chrome, chromium, webkit, firefox)")
	pf.String("instance", "", "use a fixed profile instance instead of deriving one per notebook")
	pf.Bool("no-auto-instance", false, "disable per-notebook profile isolation")
	pf.String("cdp-url", "", "attach to a running browser over CDP instead of launching one")
	pf.Bool("user-profile", false, "use the system browser profile instead of managed instances")
	pf.Duration("timeout", 0, "override the answer wait budget")
	pf.StringP("format", "f", "text", "output format (text, json)")

	mustBind := func(key, flag string) {
		if err := viper.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(err)
		}
	}
	mustBind("browser.headless", "headless")
	mustBind("browser.engine", "browser")
	mustBind("browser.instance", "instance")
	mustBind("browser.cdp_url", "cdp-url")
	mustBind("browser.use_user_profile", "user-profile")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// initializeConfig reads in config file and ENV variables if set.
func initializeConfig() error {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.nlm-cli")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("NLM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars
	}

	// The inverted flag reads better on the command line but stores as the
	// positive setting.
	if f := rootCmd.PersistentFlags().Lookup("no-auto-instance"); f != nil && f.Changed {
		v.Set("browser.auto_instance", false)
	}
	if f := rootCmd.PersistentFlags().Lookup("timeout"); f != nil && f.Changed {
		v.Set("chat.max_wait", f.Value.String())
	}
	return nil
}

// outputFormat returns the selected output format.
func outputFormat(cmd *cobra.Command) string {
	format, _ := cmd.Flags().GetString("format")
	return format
}

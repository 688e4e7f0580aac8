package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/loom/internal/cli"
	"github.com/aretw0/loom/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Loom builds typed collaborative documents from seeds",
	Long: `Loom materializes tagged seed documents into Text, List and Map containers,
checks them against a record schema, and serves them over HTTP or MCP.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", "", "Loam repository holding seed documents (arguments become document ids)")
	rootCmd.PersistentFlags().String("config", cli.DefaultConfigFile, "Configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides LOOM_LOG_LEVEL)")
}

// loadConfig reads the config file, then the environment, then the --log-level flag.
func loadConfig(cmd *cobra.Command) (cli.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cli.LoadConfig(path, cmd.Flags().Changed("config"))
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, cfg.Validate()
}

// newLogger writes to Stderr so Stdout stays free for JSON and MCP stdio.
func newLogger(cmd *cobra.Command) *slog.Logger {
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		if l, err := logging.ParseLevel(level); err == nil {
			return logging.New(l)
		}
	}
	return logging.New(logging.LevelFromEnv(slog.LevelWarn))
}

// source resolves the positional argument against --dir and --schema.
func source(cmd *cobra.Command, ref string) cli.Source {
	dir, _ := cmd.Flags().GetString("dir")
	var rec string
	if f := cmd.Flags().Lookup("schema"); f != nil {
		rec = f.Value.String()
	}
	return cli.Source{Dir: dir, Ref: ref, Schema: rec}
}

package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"goa.design/clue/log"
)

var (
	dataDirFlag string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:           "photon",
	Short:         "Run user-authored Go modules as Model Context Protocol servers",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	// A missing .env is not an error; it simply means no local overrides.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", defaultDataDir(), "directory for configuration, install records, and compile cache")
	rootCmd.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(sourcesCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "photon")
	}
	return ".photon"
}

func newContext() context.Context {
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	// Logs go to stderr: on the stdio transport, stdout carries the protocol.
	ctx := log.Context(context.Background(), log.WithFormat(format), log.WithOutput(os.Stderr))
	if verboseFlag {
		ctx = log.Context(ctx, log.WithDebug())
	}
	return ctx
}

package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/photon-run/photon/internal/config"
	"github.com/photon-run/photon/internal/marketplace"
	"github.com/photon-run/photon/internal/telemetry"
)

var forceInstallFlag bool

var installCmd = &cobra.Command{
	Use:   "install <name>",
	Short: "Resolve and install a photon from a configured marketplace source",
	Args:  cobra.ExactArgs(1),
	RunE:  runInstall,
}

func init() {
	installCmd.Flags().BoolVar(&forceInstallFlag, "force", false, "overwrite an existing install of the same name")
}

// photonsDir is where installed photon source files are written, separate
// from the build cache under dataDirFlag/cache and dataDirFlag/build.
func photonsDir() string {
	return filepath.Join(dataDirFlag, "photons")
}

func newMarketplaceManager(store *config.Store, logger telemetry.Logger) *marketplace.Manager {
	fetcher := marketplace.NewHTTPFetcher(&http.Client{})
	return marketplace.NewManager(store, store, fetcher, logger)
}

func runInstall(cmd *cobra.Command, args []string) error {
	ctx := newContext()
	name := args[0]
	logger := telemetry.NewClueBundle().Log

	store, err := config.New(dataDirFlag)
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	market := newMarketplaceManager(store, logger)

	res, err := market.Resolve(ctx, name)
	if err != nil {
		return err
	}
	if !res.Unambiguous() {
		cmd.Printf("%q is offered by multiple sources; installing the recommended candidate from %q (%s)\n",
			res.Candidate.Entry.Name, res.Candidate.Source.Name, res.Candidate.Entry.Version)
		for _, c := range res.Conflicts {
			cmd.Printf("  %s:%s (%s)\n", c.Source.Name, c.Entry.Name, c.Entry.Version)
		}
	}

	if err := os.MkdirAll(photonsDir(), 0o755); err != nil {
		return fmt.Errorf("create photons directory: %w", err)
	}
	dest := filepath.Join(photonsDir(), res.Candidate.Entry.Name+".go")
	if _, err := os.Stat(dest); err == nil && !forceInstallFlag {
		return fmt.Errorf("%s is already installed at %s; use --force to overwrite", res.Candidate.Entry.Name, dest)
	}

	body, err := market.Install(ctx, res.Candidate)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return fmt.Errorf("write installed source: %w", err)
	}

	cmd.Printf("installed %s %s from %q -> %s\n", res.Candidate.Entry.Name, res.Candidate.Entry.Version, res.Candidate.Source.Name, dest)
	return nil
}

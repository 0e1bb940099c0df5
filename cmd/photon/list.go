package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/photon-run/photon/internal/config"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed photons",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := newContext()

	store, err := config.New(dataDirFlag)
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	installs, err := store.Installs(ctx)
	if err != nil {
		return fmt.Errorf("load installs: %w", err)
	}
	if len(installs) == 0 {
		cmd.Println("no photons installed")
		return nil
	}
	for _, rec := range installs {
		source := rec.SourceMarketplace
		if source == "" {
			source = "(local)"
		}
		cmd.Printf("%-24s %-12s %-16s installed %s\n", rec.PhotonName, rec.InstalledVersion, source, rec.InstalledAt.Format("2006-01-02 15:04"))
	}
	return nil
}

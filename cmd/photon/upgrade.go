package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/photon-run/photon/internal/config"
	"github.com/photon-run/photon/internal/marketplace"
	"github.com/photon-run/photon/internal/telemetry"
	"github.com/photon-run/photon/internal/versioncheck"
)

var forceUpgradeFlag bool

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [name]",
	Short: "Check for and apply marketplace updates to installed photons",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runUpgrade,
}

func init() {
	upgradeCmd.Flags().BoolVar(&forceUpgradeFlag, "force", false, "overwrite even if the installed source was modified locally")
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	ctx := newContext()
	logger := telemetry.NewClueBundle().Log

	store, err := config.New(dataDirFlag)
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	market := newMarketplaceManager(store, logger)
	checker := versioncheck.New(market)

	installs, err := store.Installs(ctx)
	if err != nil {
		return fmt.Errorf("load installs: %w", err)
	}
	if len(args) == 1 {
		installs = filterInstalls(installs, args[0])
		if len(installs) == 0 {
			return fmt.Errorf("%s is not installed", args[0])
		}
	}

	for _, rec := range installs {
		if err := upgradeOne(ctx, cmd, store, checker, rec); err != nil {
			cmd.PrintErrf("%s: %v\n", rec.PhotonName, err)
		}
	}
	return nil
}

func filterInstalls(installs []marketplace.InstallRecord, name string) []marketplace.InstallRecord {
	var out []marketplace.InstallRecord
	for _, rec := range installs {
		if rec.PhotonName == name {
			out = append(out, rec)
		}
	}
	return out
}

func upgradeOne(ctx context.Context, cmd *cobra.Command, store *config.Store, checker *versioncheck.Checker, rec marketplace.InstallRecord) error {
	sourcePath := filepath.Join(photonsDir(), rec.PhotonName+".go")

	status, err := checker.Check(ctx, rec, sourcePath)
	if err != nil {
		return err
	}
	if !status.HasUpdate {
		cmd.Printf("%s is up to date (%s)\n", rec.PhotonName, rec.InstalledVersion)
		return nil
	}

	updated, err := checker.Upgrade(ctx, status, sourcePath, forceUpgradeFlag)
	if err != nil {
		return err
	}
	if err := store.SaveInstall(ctx, updated); err != nil {
		return fmt.Errorf("save updated install record: %w", err)
	}
	cmd.Printf("upgraded %s %s -> %s\n", rec.PhotonName, rec.InstalledVersion, updated.InstalledVersion)
	return nil
}

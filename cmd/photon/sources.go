package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/photon-run/photon/internal/config"
	"github.com/photon-run/photon/internal/marketplace"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage configured marketplace sources",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured marketplace sources",
	Args:  cobra.NoArgs,
	RunE:  runSourcesList,
}

var sourcesAddCmd = &cobra.Command{
	Use:   "add <name> <origin>",
	Short: "Add a marketplace source",
	Args:  cobra.ExactArgs(2),
	RunE:  runSourcesAdd,
}

var sourcesRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a marketplace source",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourcesRemove,
}

var sourcesEnableFlag bool

func init() {
	sourcesCmd.AddCommand(sourcesListCmd, sourcesAddCmd, sourcesRemoveCmd)
	sourcesAddCmd.Flags().BoolVar(&sourcesEnableFlag, "enabled", true, "whether the new source is enabled")
}

func runSourcesList(cmd *cobra.Command, args []string) error {
	ctx := newContext()
	store, err := config.New(dataDirFlag)
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	sources, err := store.Sources(ctx)
	if err != nil {
		return fmt.Errorf("load sources: %w", err)
	}
	if len(sources) == 0 {
		cmd.Println("no marketplace sources configured")
		return nil
	}
	for _, s := range sources {
		state := "enabled"
		if !s.Enabled {
			state = "disabled"
		}
		cmd.Printf("%-16s %-8s %s (%d photons cached)\n", s.Name, state, s.Origin, len(s.Manifest))
	}
	return nil
}

func runSourcesAdd(cmd *cobra.Command, args []string) error {
	ctx := newContext()
	name, origin := args[0], args[1]

	store, err := config.New(dataDirFlag)
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	sources, err := store.Sources(ctx)
	if err != nil {
		return fmt.Errorf("load sources: %w", err)
	}
	for _, s := range sources {
		if s.Name == name {
			return fmt.Errorf("source %q already exists", name)
		}
	}
	sources = append(sources, marketplace.Source{Name: name, Origin: origin, Enabled: sourcesEnableFlag})
	if err := store.SaveSources(ctx, sources); err != nil {
		return fmt.Errorf("save sources: %w", err)
	}
	cmd.Printf("added source %q (%s)\n", name, origin)
	return nil
}

func runSourcesRemove(cmd *cobra.Command, args []string) error {
	ctx := newContext()
	name := args[0]

	store, err := config.New(dataDirFlag)
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	sources, err := store.Sources(ctx)
	if err != nil {
		return fmt.Errorf("load sources: %w", err)
	}
	var kept []marketplace.Source
	found := false
	for _, s := range sources {
		if s.Name == name {
			found = true
			continue
		}
		kept = append(kept, s)
	}
	if !found {
		return fmt.Errorf("no such source %q", name)
	}
	if err := store.SaveSources(ctx, kept); err != nil {
		return fmt.Errorf("save sources: %w", err)
	}
	cmd.Printf("removed source %q\n", name)
	return nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rehanbawakhan/vdetection/internal/config"
	"github.com/rehanbawakhan/vdetection/internal/database"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Maintain the detection history",
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete history entries older than a given age",
	Long: `Delete detection history entries (and their snapshots) older than
--older-than. Alerts are kept.`,
	Args: cobra.NoArgs,
	RunE: runHistoryPrune,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyPruneCmd)

	historyPruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "Minimum age of entries to delete (e.g. 720h)")
	historyPruneCmd.Flags().Bool("dry-run", false, "Only print the cutoff")
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	age := mustGetDuration(cmd, "older-than")
	if age <= 0 {
		return errors.New("--older-than must be positive")
	}
	cutoff := time.Now().Add(-age).UTC()

	if mustGetBool(cmd, "dry-run") {
		fmt.Printf("Would delete history older than %s (%s ago)\n", database.FormatTimestamp(cutoff), formatDuration(age))
		return nil
	}

	return withStore(func(ctx context.Context, _ *config.Config, store database.Store) error {
		removed, err := store.PruneHistory(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("failed to prune history: %w", err)
		}
		fmt.Printf("Deleted %d history entries older than %s\n", removed, database.FormatTimestamp(cutoff))
		return nil
	})
}

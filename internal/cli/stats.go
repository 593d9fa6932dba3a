package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/HydroRoll-Team/hydroroll-webhook/internal/config"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/feed"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/state"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/stats"
)

func init() {
	rootCmd.AddCommand(showStatsCmd)
}

var showStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the persisted request counters",
	RunE:  showStats,
}

func showStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	store, err := state.NewFileStore(cfg.State.Dir)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}

	collector := stats.NewCollector(stats.StateKey)
	if err := collector.LoadFrom(store); err != nil {
		return fmt.Errorf("loading stats: %w", err)
	}
	printCounters("Webhook requests", collector.Snapshot())

	feedStats := stats.NewCollector(feed.StatsKey)
	if err := feedStats.LoadFrom(store); err != nil {
		return fmt.Errorf("loading feed stats: %w", err)
	}
	if snap := feedStats.Snapshot(); snap.Total > 0 {
		fmt.Println()
		printCounters("Feed entries pushed", snap)
	}
	return nil
}

func printCounters(title string, snap stats.Stats) {
	fmt.Printf("%s: %d\n", title, snap.Total)
	kinds := make([]string, 0, len(snap.PerKind))
	for kind := range snap.PerKind {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	for _, kind := range kinds {
		fmt.Printf("  %-16s %d\n", kind, snap.PerKind[kind])
	}
}

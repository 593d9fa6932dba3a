package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HydroRoll-Team/hydroroll-webhook/internal/config"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/state"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/subscription"
)

func init() {
	rootCmd.AddCommand(listGroupsCmd)
}

var listGroupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Print the registered target groups",
	RunE:  listGroups,
}

// openTable loads the persisted subscription table the same way run does,
// so the offline commands show exactly what a running bridge would see.
func openTable() (*subscription.Table, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	store, err := state.NewFileStore(cfg.State.Dir)
	if err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}
	table, err := subscription.Load(store, subscription.Subscription{
		Groups: cfg.Webhook.Groups,
		Events: cfg.Webhook.Events,
	})
	if err != nil {
		return nil, fmt.Errorf("loading subscriptions: %w", err)
	}
	return table, nil
}

func listGroups(cmd *cobra.Command, args []string) error {
	table, err := openTable()
	if err != nil {
		return err
	}

	groups := table.Groups()
	if len(groups) == 0 {
		fmt.Println("No groups registered.")
		return nil
	}
	for _, g := range groups {
		fmt.Println(g)
	}
	return nil
}

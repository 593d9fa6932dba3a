package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listEventsCmd)
}

var listEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Print the enabled event kinds",
	RunE:  listEvents,
}

func listEvents(cmd *cobra.Command, args []string) error {
	table, err := openTable()
	if err != nil {
		return err
	}

	kinds := table.Events()
	if len(kinds) == 0 {
		fmt.Println("No events enabled.")
		return nil
	}
	for _, k := range kinds {
		fmt.Println(k)
	}
	return nil
}

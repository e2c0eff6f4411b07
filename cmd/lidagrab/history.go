package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent download outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(serverURL)

		records, err := client.History(historyLimit)
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(records)
			return nil
		}

		if len(records) == 0 {
			fmt.Println("No history")
			return nil
		}

		fmt.Printf("  %-6s %-44s %-10s %s\n", "ALBUM", "TITLE", "OUTCOME", "DETAIL")
		fmt.Printf("  %s\n", strings.Repeat("-", 76))
		for _, r := range records {
			title := fmt.Sprintf("%s - %s", r.Artist, r.Title)
			if len(title) > 44 {
				title = title[:41] + "..."
			}
			detail := r.Error
			if r.Degraded {
				detail = "imported without tags"
			}
			fmt.Printf("  %-6d %-44s %-10s %s\n", r.AlbumID, title, r.Outcome, detail)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum records to show")
	rootCmd.AddCommand(historyCmd)
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var missingCmd = &cobra.Command{
	Use:   "missing",
	Short: "List albums Lidarr wants that have no files yet",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(serverURL)

		m, err := client.Missing()
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(m)
			return nil
		}

		if len(m.Albums) == 0 {
			fmt.Println("No missing albums")
			return nil
		}

		fmt.Printf("Missing albums (%d):\n", len(m.Albums))
		fmt.Printf("  %-6s %-44s %-10s %-7s %s\n", "ID", "ALBUM", "RELEASED", "TRACKS", "QUEUED")
		fmt.Printf("  %s\n", strings.Repeat("-", 76))
		for _, a := range m.Albums {
			title := fmt.Sprintf("%s - %s", a.Artist, a.Title)
			if len(title) > 44 {
				title = title[:41] + "..."
			}
			released := a.ReleaseDate
			if len(released) > 10 {
				released = released[:10]
			}
			queued := ""
			if a.Queued {
				queued = "yes"
			}
			fmt.Printf("  %-6d %-44s %-10s %-7d %s\n", a.ID, title, released, a.MissingTracks, queued)
		}

		if m.LastSync != "" {
			fmt.Printf("\nLast sync: %s\n", m.LastSync)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(missingCmd)
}

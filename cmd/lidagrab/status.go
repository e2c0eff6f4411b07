package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and Lidarr connection status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(serverURL)

		s, err := client.Status()
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(s)
			return nil
		}

		fmt.Printf("lidagrabd %s\n", s.Version)
		fmt.Printf("  Lidarr: %s", s.Lidarr)
		if s.LidarrVersion != "" {
			fmt.Printf(" (v%s)", s.LidarrVersion)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

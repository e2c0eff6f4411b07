package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the download queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(serverURL)

		q, err := client.Queue()
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(q)
			return nil
		}

		if q.Active == nil && len(q.Pending) == 0 {
			fmt.Println("Queue is empty")
			return nil
		}

		if q.Active != nil {
			fmt.Println("Active:")
			printItem(q.Active, 0)
			fmt.Println()
		}

		if len(q.Pending) > 0 {
			fmt.Printf("Pending (%d):\n", len(q.Pending))
			for i, item := range q.Pending {
				printItem(&item, i+1)
			}
		}

		return nil
	},
}

func printItem(item *ItemResponse, position int) {
	title := fmt.Sprintf("%s - %s", item.Artist, item.Title)
	if len(title) > 44 {
		title = title[:41] + "..."
	}

	pos := "-"
	if position > 0 {
		pos = strconv.Itoa(position)
	}

	detail := ""
	if item.Status == "downloading" && item.Progress.Tracks > 0 {
		detail = fmt.Sprintf("track %d/%d %.0f%%", item.Progress.Track, item.Progress.Tracks, item.Progress.Percent)
		if item.Progress.Speed != "" {
			detail += " " + item.Progress.Speed
		}
	}

	fmt.Printf("  %-4s %-6d %-44s %-12s %s\n", pos, item.ID, title, item.Status, detail)
}

var queueAddCmd = &cobra.Command{
	Use:   "add <album-id>",
	Short: "Add an album to the download queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		albumID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid album ID: %s", args[0])
		}

		client := NewClient(serverURL)

		resp, err := client.Enqueue(albumID)
		if err != nil {
			if strings.Contains(err.Error(), "409") {
				fmt.Printf("Album %d is already queued or downloaded\n", albumID)
				return nil
			}
			return err
		}

		if jsonOutput {
			printJSON(resp)
			return nil
		}

		fmt.Printf("Queued: %s - %s (position %d)\n", resp.Artist, resp.Title, resp.Position)
		return nil
	},
}

var queueRemoveCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove"},
	Short:   "Remove a queue item, cancelling it if active",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid queue item ID: %s", args[0])
		}

		client := NewClient(serverURL)

		if err := client.Remove(id); err != nil {
			return err
		}

		fmt.Printf("Removed queue item %d\n", id)
		return nil
	},
}

var queueMoveCmd = &cobra.Command{
	Use:   "move <id> <position>",
	Short: "Move a pending item to a new queue position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid queue item ID: %s", args[0])
		}
		position, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid position: %s", args[1])
		}

		client := NewClient(serverURL)

		q, err := client.Move(id, position)
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(q)
			return nil
		}

		fmt.Printf("Pending (%d):\n", len(q.Pending))
		for i, item := range q.Pending {
			printItem(&item, i+1)
		}
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueAddCmd)
	queueCmd.AddCommand(queueRemoveCmd)
	queueCmd.AddCommand(queueMoveCmd)
	rootCmd.AddCommand(queueCmd)
}

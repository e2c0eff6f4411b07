package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	serverURL  string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "lidagrab",
	Short: "CLI client for the lidagrab download daemon",
	Long: `lidagrab - CLI client for the lidagrab download daemon

Inspect and control the album download queue, browse the wanted
list, and review download history.

Run 'lidagrabd' to start the server daemon.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8687", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("lidagrab {{.Version}}\n")
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type SettingsResponse struct {
	AutoDownload bool   `json:"auto_download"`
	Interval     string `json:"interval"`
}

// Settings returns the scheduler settings.
func (c *Client) Settings() (*SettingsResponse, error) {
	var s SettingsResponse
	if err := c.get("/api/v1/settings", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSettings changes the scheduler settings. Nil fields are left as is.
func (c *Client) UpdateSettings(autoDownload *bool, interval *string) (*SettingsResponse, error) {
	body := map[string]any{}
	if autoDownload != nil {
		body["auto_download"] = *autoDownload
	}
	if interval != nil {
		body["interval"] = *interval
	}
	var s SettingsResponse
	if err := c.put("/api/v1/settings", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

var (
	settingsAutoDownload string
	settingsInterval     string
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show scheduler settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(serverURL)

		s, err := client.Settings()
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(s)
			return nil
		}

		printSettings(s)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change scheduler settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		var autoDownload *bool
		switch settingsAutoDownload {
		case "":
		case "on":
			v := true
			autoDownload = &v
		case "off":
			v := false
			autoDownload = &v
		default:
			return fmt.Errorf("invalid --auto-download value: %s (want on or off)", settingsAutoDownload)
		}

		var interval *string
		if settingsInterval != "" {
			if _, err := time.ParseDuration(settingsInterval); err != nil {
				return fmt.Errorf("invalid --interval value: %s", settingsInterval)
			}
			interval = &settingsInterval
		}

		if autoDownload == nil && interval == nil {
			return fmt.Errorf("nothing to change, pass --auto-download or --interval")
		}

		client := NewClient(serverURL)

		s, err := client.UpdateSettings(autoDownload, interval)
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(s)
			return nil
		}

		printSettings(s)
		return nil
	},
}

func printSettings(s *SettingsResponse) {
	auto := "off"
	if s.AutoDownload {
		auto = "on"
	}
	fmt.Printf("  Auto-download: %s\n", auto)
	fmt.Printf("  Sync interval: %s\n", s.Interval)
}

func init() {
	settingsSetCmd.Flags().StringVar(&settingsAutoDownload, "auto-download", "", "Enable automatic downloads (on|off)")
	settingsSetCmd.Flags().StringVar(&settingsInterval, "interval", "", "Missing album sync interval (e.g. 30m, 1h)")
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

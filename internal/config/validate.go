package config

import (
	"fmt"
	"os"
	"strconv"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string

	// Server validation
	if c.Server.Port != 0 && (c.Server.Port < 1 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server.port: must be between 1 and 65535, got %d", c.Server.Port))
	}
	if !validLogLevels[c.Server.LogLevel] {
		errs = append(errs, fmt.Sprintf("server.log_level: must be one of debug, info, warn, error; got %q", c.Server.LogLevel))
	}

	// Lidarr is optional, but a URL without a key (or vice versa) is a mistake
	if c.Lidarr.URL != "" && c.Lidarr.APIKey == "" {
		errs = append(errs, "lidarr.api_key: required when lidarr.url is set")
	}
	if c.Lidarr.APIKey != "" && c.Lidarr.URL == "" {
		errs = append(errs, "lidarr.url: required when lidarr.api_key is set")
	}

	// Download path validation
	if _, err := c.FileMode(); err != nil {
		errs = append(errs, fmt.Sprintf("downloads.file_mode: %v", err))
	}
	if _, err := c.DirMode(); err != nil {
		errs = append(errs, fmt.Sprintf("downloads.dir_mode: %v", err))
	}
	if c.Downloads.Root != "" {
		if _, err := os.Stat(c.Downloads.Root); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("downloads.root: warning: directory %q does not exist", c.Downloads.Root))
		}
	}

	// Scheduler validation
	if c.Scheduler.Interval < 0 {
		errs = append(errs, fmt.Sprintf("scheduler.interval: must be positive, got %s", c.Scheduler.Interval))
	}

	// Telegram validation
	if t := c.Notifications.Telegram; t != nil && t.Enabled {
		if t.BotToken == "" {
			errs = append(errs, "notifications.telegram.bot_token: required when telegram is enabled")
		}
		if t.ChatID == "" {
			errs = append(errs, "notifications.telegram.chat_id: required when telegram is enabled")
		}
	}

	return errs
}

// FileMode parses the configured file mode (octal string).
func (c *Config) FileMode() (os.FileMode, error) {
	return parseMode(c.Downloads.FileMode)
}

// DirMode parses the configured directory mode (octal string).
func (c *Config) DirMode() (os.FileMode, error) {
	return parseMode(c.Downloads.DirMode)
}

func parseMode(s string) (os.FileMode, error) {
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid octal mode %q", s)
	}
	return os.FileMode(n), nil
}

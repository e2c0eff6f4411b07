// Package config handles TOML configuration loading with environment variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Server        ServerConfig        `toml:"server"`
	Database      DatabaseConfig      `toml:"database"`
	Lidarr        LidarrConfig        `toml:"lidarr"`
	Downloads     DownloadsConfig     `toml:"downloads"`
	Scheduler     SchedulerConfig     `toml:"scheduler"`
	Notifications NotificationsConfig `toml:"notifications"`
	Metadata      MetadataConfig      `toml:"metadata"`
}

type ServerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LidarrConfig struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

type DownloadsConfig struct {
	// Root overrides the Lidarr root folder as the final library path.
	// Empty means use the first root folder Lidarr reports.
	Root           string   `toml:"root"`
	ScratchDir     string   `toml:"scratch_dir"`
	Quality        string   `toml:"quality"`
	ForbiddenWords []string `toml:"forbidden_words"`
	FileMode       string   `toml:"file_mode"`
	DirMode        string   `toml:"dir_mode"`
}

type SchedulerConfig struct {
	Enabled      bool          `toml:"enabled"`
	Interval     time.Duration `toml:"interval"`
	AutoDownload bool          `toml:"auto_download"`
}

type NotificationsConfig struct {
	Telegram *TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type MetadataConfig struct {
	ITunes ITunesConfig `toml:"itunes"`
}

type ITunesConfig struct {
	// Disabled turns off iTunes artwork lookups; lookups are on by default.
	Disabled bool `toml:"disabled"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Substitute environment variables
	content := substituteEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8687
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/lidagrab.db"
	}
	if c.Downloads.ScratchDir == "" {
		c.Downloads.ScratchDir = os.TempDir()
	}
	if c.Downloads.Quality == "" {
		c.Downloads.Quality = "320K"
	}
	if c.Downloads.FileMode == "" {
		c.Downloads.FileMode = "0644"
	}
	if c.Downloads.DirMode == "" {
		c.Downloads.DirMode = "0755"
	}
	if c.Scheduler.Interval == 0 {
		c.Scheduler.Interval = 60 * time.Minute
	}
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1] // Strip ${ and }
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		return match // Leave unchanged if not found
	})
}

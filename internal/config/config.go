package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSourceURL is the Yahoo Finance history page scraped when no URL is configured.
const DefaultSourceURL = "https://finance.yahoo.com/quote/NVDA/history/?period1=917015400&period2=1746855116"

// Table merge policies for the SQLite store. PolicyOff disables the table
// store and keeps only the flat file.
const (
	PolicySkip    = "skip"
	PolicyReplace = "replace"
	PolicyOff     = "off"
)

// Config holds all application configuration.
type Config struct {
	Source struct {
		URL       string        `yaml:"url"`
		UserAgent string        `yaml:"user_agent"`
		Timeout   time.Duration `yaml:"timeout"`
		Proxy     string        `yaml:"proxy"`
		HTMLFile  string        `yaml:"html_file"`
	} `yaml:"source"`
	Storage struct {
		SQLitePath  string `yaml:"sqlite_path"`
		TablePolicy string `yaml:"table_policy"`
		MergedCSV   string `yaml:"merged_csv"`
		EnrichedCSV string `yaml:"enriched_csv"`
	} `yaml:"storage"`
	Model struct {
		Path        string `yaml:"path"`
		MetricsPath string `yaml:"metrics_path"`
	} `yaml:"model"`
	Logging struct {
		Dir     string `yaml:"dir"`
		Level   string `yaml:"level"`
		Format  string `yaml:"format"`
		Console bool   `yaml:"console"`
	} `yaml:"logging"`
	Schedule struct {
		Cron       string `yaml:"cron"`
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
		Polling  bool   `yaml:"polling"`
	} `yaml:"telegram"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error: defaults cover every field.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("SOURCE_URL"); v != "" {
		cfg.Source.URL = v
	}
	if v := os.Getenv("SOURCE_HTML_FILE"); v != "" {
		cfg.Source.HTMLFile = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Source.Proxy = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.SQLitePath = filepath.Join(v, "historical.db")
		cfg.Storage.MergedCSV = filepath.Join(v, "historical.csv")
		cfg.Storage.EnrichedCSV = filepath.Join(v, "enriched_data.csv")
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CRON_SCHEDULE"); v != "" {
		cfg.Schedule.Cron = v
	}
	if os.Getenv("RUN_ON_START") == "true" {
		cfg.Schedule.RunOnStart = true
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Source.URL == "" {
		c.Source.URL = DefaultSourceURL
	}
	if c.Source.UserAgent == "" {
		c.Source.UserAgent = "Mozilla/5.0"
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = 30 * time.Second
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/historical.db"
	}
	if c.Storage.TablePolicy == "" {
		c.Storage.TablePolicy = PolicySkip
	}
	if c.Storage.MergedCSV == "" {
		c.Storage.MergedCSV = "data/historical.csv"
	}
	if c.Storage.EnrichedCSV == "" {
		c.Storage.EnrichedCSV = "data/enriched_data.csv"
	}
	if c.Model.Path == "" {
		c.Model.Path = "models/model.json"
	}
	if c.Model.MetricsPath == "" {
		c.Model.MetricsPath = "models/metrics.csv"
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Schedule.Cron == "" {
		// 22:30 on weekdays, after the US close
		c.Schedule.Cron = "0 30 22 * * 1-5"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Source.URL == "" && c.Source.HTMLFile == "" {
		return fmt.Errorf("source.url or source.html_file is required")
	}
	if c.Source.Timeout < 0 {
		return fmt.Errorf("source.timeout must not be negative")
	}
	switch strings.ToLower(c.Storage.TablePolicy) {
	case PolicySkip, PolicyReplace, PolicyOff:
	default:
		return fmt.Errorf("storage.table_policy must be %q, %q or %q, got %q", PolicySkip, PolicyReplace, PolicyOff, c.Storage.TablePolicy)
	}
	paths := map[string]string{
		"storage.sqlite_path":  c.Storage.SQLitePath,
		"storage.merged_csv":   c.Storage.MergedCSV,
		"storage.enriched_csv": c.Storage.EnrichedCSV,
		"model.path":           c.Model.Path,
		"model.metrics_path":   c.Model.MetricsPath,
	}
	for name, p := range paths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if c.Storage.MergedCSV == c.Storage.EnrichedCSV {
		return fmt.Errorf("storage.merged_csv and storage.enriched_csv must differ")
	}
	return nil
}

// Package config assembles the broker's single immutable effective
// configuration from defaults, an optional YAML file, environment
// variables, and CLI flags, in that increasing priority order.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode selects which surfaces the supervisor starts.
type Mode string

const (
	ModeCombined Mode = "combined"
	ModeHTTPOnly Mode = "http-only"
	ModeACPOnly  Mode = "acp-only"
)

// Store selects the Store's persistence backing.
type Store string

const (
	StoreSQLite Store = "sqlite"
	StoreMemory Store = "memory"
)

// File is the optional on-disk YAML layer, matching the shape of the
// environment variables and flags it can be overridden by.
type File struct {
	Port                 int      `yaml:"port"`
	Store                string   `yaml:"store"`
	EventRetentionDays   int      `yaml:"event_retention_days"`
	WebhookURLs          []string `yaml:"webhook_urls"`
	APIKey               string   `yaml:"api_key"`
	DBPath               string   `yaml:"db_path"`
	LogLevel             string   `yaml:"log_level"`
	LogSink              string   `yaml:"log_sink"`
	RateLimitRPS         float64  `yaml:"rate_limit_rps"`
}

// Effective is the single immutable configuration value constructed at
// startup and passed down by explicit dependency; no component besides
// this package reads environment variables directly.
type Effective struct {
	Mode Mode

	Port     int
	HTTPBase string // base URL the ACP dispatcher calls (defaults to loopback:Port)
	APIKey   string

	Store  Store
	DBPath string

	EventRetentionDays int
	WebhookURLs        []string

	LogLevel string
	LogSink  string

	RateLimitRPS float64

	Version string
}

func defaultEffective() Effective {
	return Effective{
		Mode:               ModeCombined,
		Port:               4747,
		Store:              StoreSQLite,
		DBPath:             defaultDBPath(),
		EventRetentionDays: 7,
		LogLevel:           "info",
		LogSink:            "stdout",
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentation/store.db"
	}
	return filepath.Join(home, ".agentation", "store.db")
}

// Load builds the Effective config from flags, env vars, and an optional
// YAML file. args should be the process args after the subcommand (i.e.
// os.Args[2:] when main already consumed "server").
func Load(args []string, version string) (Effective, error) {
	eff := defaultEffective()
	eff.Version = version

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	port := fs.Int("port", 0, "HTTP listen port")
	mcpOnly := fs.Bool("mcp-only", false, "run only the ACP dispatcher")
	httpOnly := fs.Bool("http-only", false, "run only the HTTP surface")
	httpURL := fs.String("http-url", "", "base URL the ACP dispatcher calls")
	apiKey := fs.String("api-key", "", "shared bearer credential")
	cfgPath := fs.String("config", "", "path to an optional YAML config file")
	if err := fs.Parse(args); err != nil {
		return eff, err
	}

	if *cfgPath != "" {
		f, err := loadFile(*cfgPath)
		if err != nil {
			return eff, fmt.Errorf("load config file: %w", err)
		}
		applyFile(&eff, f)
	}

	applyEnv(&eff)

	if *port != 0 {
		eff.Port = *port
	}
	if *apiKey != "" {
		eff.APIKey = *apiKey
	}
	if *httpURL != "" {
		eff.HTTPBase = *httpURL
	}
	switch {
	case *mcpOnly:
		eff.Mode = ModeACPOnly
	case *httpOnly:
		eff.Mode = ModeHTTPOnly
	}

	if eff.HTTPBase == "" {
		eff.HTTPBase = fmt.Sprintf("http://127.0.0.1:%d", eff.Port)
	}

	return eff, nil
}

func loadFile(path string) (File, error) {
	var f File
	b, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(b, &f); err != nil {
		return f, err
	}
	return f, nil
}

func applyFile(eff *Effective, f File) {
	if f.Port != 0 {
		eff.Port = f.Port
	}
	if f.Store != "" {
		eff.Store = Store(f.Store)
	}
	if f.EventRetentionDays != 0 {
		eff.EventRetentionDays = f.EventRetentionDays
	}
	if len(f.WebhookURLs) > 0 {
		eff.WebhookURLs = f.WebhookURLs
	}
	if f.APIKey != "" {
		eff.APIKey = f.APIKey
	}
	if f.DBPath != "" {
		eff.DBPath = f.DBPath
	}
	if f.LogLevel != "" {
		eff.LogLevel = f.LogLevel
	}
	if f.LogSink != "" {
		eff.LogSink = f.LogSink
	}
	if f.RateLimitRPS != 0 {
		eff.RateLimitRPS = f.RateLimitRPS
	}
}

func applyEnv(eff *Effective) {
	if v := os.Getenv("AGENTATION_STORE"); v != "" {
		eff.Store = Store(v)
	}
	if v := os.Getenv("AGENTATION_EVENT_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			eff.EventRetentionDays = n
		}
	}
	if v := os.Getenv("AGENTATION_WEBHOOK_URL"); v != "" {
		eff.WebhookURLs = append(eff.WebhookURLs, v)
	}
	if v := os.Getenv("AGENTATION_WEBHOOKS"); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				eff.WebhookURLs = append(eff.WebhookURLs, s)
			}
		}
	}
	if v := os.Getenv("AGENTATION_API_KEY"); v != "" {
		eff.APIKey = v
	}
	if v := os.Getenv("AGENTATION_DB_PATH"); v != "" {
		eff.DBPath = v
	}
	if v := os.Getenv("AGENTATION_LOG_LEVEL"); v != "" {
		eff.LogLevel = v
	}
	if v := os.Getenv("AGENTATION_LOG_SINK"); v != "" {
		eff.LogSink = v
	}
	if v := os.Getenv("AGENTATION_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			eff.RateLimitRPS = f
		}
	}
	if v := os.Getenv("AGENTATION_PORT"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			eff.Port = n
		}
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// BackupConfig controls periodic copies of the sqlite database.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	StoragePath   string `yaml:"storage_path"`
	RetentionDays int    `yaml:"retention_days"`
}

type Config struct {
	// Storage selects where reference data lives: "memory" (catalog file only) or "sqlite".
	Storage string `yaml:"storage"`

	Catalog struct {
		Path                  string `yaml:"path"`
		ReloadIntervalSeconds int    `yaml:"reload_interval_seconds"`
	} `yaml:"catalog"`

	Engine struct {
		// Timezone anchors working periods; empty means the process timezone.
		Timezone          string `yaml:"timezone"`
		UseClinicTimezone bool   `yaml:"use_clinic_timezone"`
	} `yaml:"engine"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	API struct {
		Port         int     `yaml:"port"`
		APIKey       string  `yaml:"api_key"`
		RateLimitRPS float64 `yaml:"rate_limit_rps"`
		RateBurst    int     `yaml:"rate_limit_burst"`
	} `yaml:"api"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
		GRPCHealthPort    int  `yaml:"grpc_health_port"`
	} `yaml:"monitoring"`

	Telegram struct {
		BotToken     string  `yaml:"bot_token"`
		AlertChatIDs []int64 `yaml:"alert_chat_ids"`
	} `yaml:"telegram"`

	Sheets struct {
		Enabled         bool   `yaml:"enabled"`
		CredentialsFile string `yaml:"credentials_file"`
		SpreadsheetID   string `yaml:"spreadsheet_id"`
		SheetName       string `yaml:"sheet_name"`
		IntervalMinutes int    `yaml:"interval_minutes"`
	} `yaml:"sheets"`
}

// Load reads the service configuration. Values from a .env file next to the
// process are exported first so ${ENV_VAR} placeholders can use them.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	// .env is optional.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	switch cfg.Storage {
	case "memory":
	case "sqlite":
		if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown storage %q; expected memory or sqlite", cfg.Storage)
	}

	if _, err = cfg.EngineLocation(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage == "" {
		c.Storage = "memory"
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = "configs/clinics.yaml"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/medslots.db"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}
	if c.Backup.IntervalHours <= 0 {
		c.Backup.IntervalHours = 24
	}
	if c.Sheets.SheetName == "" {
		c.Sheets.SheetName = "Availability"
	}
}

// EngineLocation resolves engine.timezone, falling back to the process timezone.
func (c *Config) EngineLocation() (*time.Location, error) {
	if c.Engine.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return nil, fmt.Errorf("engine.timezone: %w", err)
	}
	return loc, nil
}

func (c *Config) CatalogReloadInterval() time.Duration {
	if c.Catalog.ReloadIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Catalog.ReloadIntervalSeconds) * time.Second
}

func (c *Config) SettingsCacheTTL() time.Duration {
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

func (c *Config) SheetsInterval() time.Duration {
	if c.Sheets.IntervalMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.Sheets.IntervalMinutes) * time.Minute
}

// LoadCatalog loads the clinics catalog referenced by this config and the
// file version it was read from.
func (c *Config) LoadCatalog() (*Catalog, time.Time, error) {
	return LoadCatalogVersion(c.Catalog.Path)
}

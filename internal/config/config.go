package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/automaton-audit/internal/domain/audit"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
		// RateLimit is the inbound token bucket per tenant+ip.
		RateLimit struct {
			Capacity   int `yaml:"capacity"`
			RefillRate int `yaml:"refillRate"`
		} `yaml:"rateLimit"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres | sqlite
		DSN      string `yaml:"dsn"`    // used as-is when set
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"database"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`

		// PresignMinutes > 0 hands out presigned urls instead of plain object urls.
		PresignMinutes int `yaml:"presignMinutes"`
	} `yaml:"minio"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`

		// CacheClauses moves the clause cache from the database to redis.
		CacheClauses   bool `yaml:"cacheClauses"`
		ClauseTTLHours int  `yaml:"clauseTTLHours"`
		LockTTLMinutes int  `yaml:"lockTTLMinutes"`
	} `yaml:"redis"`

	Completion struct {
		BaseURL        string `yaml:"baseURL"`
		APIKey         string `yaml:"apiKey"`
		Model          string `yaml:"model"`
		MaxTokens      int    `yaml:"maxTokens"`
		SpeedLevel     int    `yaml:"speedLevel"`
		TimeoutSeconds int    `yaml:"timeoutSeconds"`
	} `yaml:"completion"`

	Audit struct {
		Strategy               string             `yaml:"strategy"` // batch | per_item
		MaxRegulations         int                `yaml:"maxRegulations"`
		RegulationContentLimit int                `yaml:"regulationContentLimit"`
		CategoryKeywords       audit.KeywordTable `yaml:"categoryKeywords"`
		ExpansionKeywords      audit.KeywordTable `yaml:"expansionKeywords"`
	} `yaml:"audit"`

	// Auth maps tenant -> API key. Empty disables auth.
	Auth map[string]string `yaml:"auth"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // json | text
	} `yaml:"log"`
}

// Default returns a config usable for local development.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.RateLimit.Capacity = 60
	c.Server.RateLimit.RefillRate = 1
	c.Server.AllowedOrigins = []string{"*"}
	c.Database.Driver = "sqlite"
	c.Minio.Region = "us-east-1"
	c.Minio.BucketName = "audit-reports"
	c.Redis.Address = "localhost:6379"
	c.Redis.LockTTLMinutes = 30
	c.Completion.Model = "gpt-4o-mini"
	c.Completion.MaxTokens = 4096
	c.Completion.SpeedLevel = 3
	c.Completion.TimeoutSeconds = 180
	c.Audit.Strategy = "batch"
	c.Audit.MaxRegulations = 5
	c.Audit.RegulationContentLimit = 1500
	c.Audit.CategoryKeywords = append(audit.KeywordTable(nil), audit.DefaultCategoryTable...)
	c.Audit.ExpansionKeywords = append(audit.KeywordTable(nil), audit.DefaultExpansionTable...)
	c.Log.Level = "info"
	c.Log.Format = "json"
	return &c
}

// Load reads .env (if present), then the yaml file over the defaults, then env overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// defaults + env only
	default:
		return nil, err
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Completion.APIKey, "COMPLETION_API_KEY")
	set(&c.Completion.BaseURL, "COMPLETION_BASE_URL")
	set(&c.Database.Driver, "DATABASE_DRIVER")
	set(&c.Database.DSN, "DATABASE_DSN")
	set(&c.Database.Password, "DATABASE_PASSWORD")
	set(&c.Redis.Address, "REDIS_ADDRESS")
	set(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
}

// Validate checks required fields and clamps ranges.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be mysql, postgres or sqlite, got %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Completion.BaseURL) == "" {
		return errors.New("completion.baseURL is required")
	}
	if c.Completion.SpeedLevel < 1 {
		c.Completion.SpeedLevel = 1
	}
	if c.Completion.SpeedLevel > 5 {
		c.Completion.SpeedLevel = 5
	}
	switch c.Audit.Strategy {
	case "batch", "per_item":
	default:
		return fmt.Errorf("audit.strategy must be batch or per_item, got %q", c.Audit.Strategy)
	}
	if c.Audit.MaxRegulations <= 0 {
		c.Audit.MaxRegulations = 5
	}
	if c.Audit.RegulationContentLimit <= 0 {
		c.Audit.RegulationContentLimit = 1500
	}
	if len(c.Audit.CategoryKeywords) == 0 {
		c.Audit.CategoryKeywords = audit.DefaultCategoryTable
	}
	if len(c.Audit.ExpansionKeywords) == 0 {
		c.Audit.ExpansionKeywords = audit.DefaultExpansionTable
	}
	return nil
}

// DSN returns the driver DSN, building it from parts for mysql and postgres when not set.
func (c *Config) DSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	switch c.Database.Driver {
	case "mysql":
		return c.MySQLDSN()
	case "postgres":
		return c.PostgresDSN()
	}
	return "file:audit.db?_pragma=busy_timeout(5000)"
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC&clientFoundRows=true",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
	)
}

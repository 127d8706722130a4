package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PaperSize is a page size in inches.
type PaperSize struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// PostgresConfig describes the optional job ledger database.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// Config is the complete service configuration. It is built once in main and
// passed to every component that needs it.
type Config struct {
	Server struct {
		Host        string `yaml:"host"`
		Port        string `yaml:"port"`
		Prefork     bool   `yaml:"prefork"`
		CORSOrigin  string `yaml:"cors_origin"`
		BodyLimitMB int    `yaml:"body_limit_mb"`
	} `yaml:"server"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	PDF struct {
		DefaultPaper    string               `yaml:"default_paper"`
		PaperSizes      map[string]PaperSize `yaml:"paper_sizes"`
		TimeoutSecs     int                  `yaml:"timeout_secs"`
		ChromePath      string               `yaml:"chrome_path"`
		ChromeNoSandbox bool                 `yaml:"chrome_no_sandbox"`
		ChromePoolSize  int                  `yaml:"chrome_pool_size"`
		UserDataDir     string               `yaml:"user_data_dir"`
		ValidateInput   bool                 `yaml:"validate_input"`
	} `yaml:"pdf"`

	PDFServices struct {
		BaseURL      string        `yaml:"base_url"`
		ClientID     string        `yaml:"client_id"`
		ClientSecret string        `yaml:"client_secret"`
		PollInterval time.Duration `yaml:"poll_interval"`
		JobTimeout   time.Duration `yaml:"job_timeout"`
		HTTPTimeout  time.Duration `yaml:"http_timeout"`
	} `yaml:"pdf_services"`

	Reports struct {
		Dir string `yaml:"dir"`
	} `yaml:"reports"`

	Cache struct {
		RedisHost          string        `yaml:"redis_host"`
		ReportCacheEnabled bool          `yaml:"report_cache_enabled"`
		ReportCacheTTL     time.Duration `yaml:"report_cache_ttl"`
		ReportCacheDB      int           `yaml:"report_cache_db"`
		RateLimitDB        int           `yaml:"rate_limit_db"`
	} `yaml:"cache"`

	RateLimiter struct {
		UserLimit int           `yaml:"user_limit"`
		Interval  time.Duration `yaml:"interval"`
	} `yaml:"rate_limiter"`

	Ledger struct {
		Postgres PostgresConfig `yaml:"postgres"`
	} `yaml:"ledger"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = ":3000"
	cfg.Server.CORSOrigin = "http://localhost:4200"
	cfg.Server.BodyLimitMB = 50

	cfg.Logger.File = "logs/a11y-gateway.log"
	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 10
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 28

	cfg.PDF.DefaultPaper = "A4"
	cfg.PDF.PaperSizes = map[string]PaperSize{
		"A4":     {Width: 8.27, Height: 11.69},
		"LETTER": {Width: 8.5, Height: 11},
	}
	cfg.PDF.TimeoutSecs = 60
	cfg.PDF.ChromeNoSandbox = true

	cfg.PDFServices.BaseURL = "https://pdf-services.adobe.io"
	cfg.PDFServices.PollInterval = 2 * time.Second
	cfg.PDFServices.JobTimeout = 10 * time.Minute
	cfg.PDFServices.HTTPTimeout = 2 * time.Minute

	cfg.Reports.Dir = "reports"

	cfg.Cache.RedisHost = "127.0.0.1:6379"
	cfg.Cache.ReportCacheTTL = 24 * time.Hour
	cfg.Cache.RateLimitDB = 0
	cfg.Cache.ReportCacheDB = 1

	cfg.RateLimiter.Interval = time.Minute
	return cfg
}

// Load reads the config file named by CONFIG_PATH (default config.yaml).
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFrom(path)
}

// LoadFrom reads a YAML config on top of the defaults, applies environment
// overrides and panics on invalid values. A missing file is not an error.
func LoadFrom(path string) Config {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			panic(fmt.Sprintf("invalid config %s: %v", path, err))
		}
	case os.IsNotExist(err):
	default:
		panic(fmt.Sprintf("cannot read config %s: %v", path, err))
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		panic(err.Error())
	}
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ADOBE_CLIENT_ID"); v != "" {
		cfg.PDFServices.ClientID = v
	}
	if v := os.Getenv("ADOBE_CLIENT_SECRET"); v != "" {
		cfg.PDFServices.ClientSecret = v
	}
	if cfg.PDF.ChromePath == "" {
		cfg.PDF.ChromePath = os.Getenv("CHROME_BIN")
	}
}

// Validate checks value ranges. Missing credentials are deliberately not
// checked here; they surface as a remote authentication failure.
func (c Config) Validate() error {
	if c.Server.BodyLimitMB < 0 {
		return fmt.Errorf("server.body_limit_mb must not be negative")
	}
	if c.PDF.TimeoutSecs <= 0 {
		return fmt.Errorf("pdf.timeout_secs must be positive")
	}
	if c.PDF.ChromePoolSize < 0 {
		return fmt.Errorf("pdf.chrome_pool_size must not be negative")
	}
	if _, ok := c.PDF.PaperSizes[c.PDF.DefaultPaper]; !ok {
		return fmt.Errorf("pdf.default_paper %q is not in pdf.paper_sizes", c.PDF.DefaultPaper)
	}
	if c.PDFServices.BaseURL == "" {
		return fmt.Errorf("pdf_services.base_url is empty")
	}
	if c.PDFServices.PollInterval <= 0 {
		return fmt.Errorf("pdf_services.poll_interval must be positive")
	}
	if c.PDFServices.JobTimeout < 0 || c.PDFServices.HTTPTimeout < 0 {
		return fmt.Errorf("pdf_services timeouts must not be negative")
	}
	if c.Reports.Dir == "" {
		return fmt.Errorf("reports.dir is empty")
	}
	if c.RateLimiter.UserLimit < 0 {
		return fmt.Errorf("rate_limiter.user_limit must not be negative")
	}
	if c.RateLimiter.UserLimit > 0 && c.RateLimiter.Interval <= 0 {
		return fmt.Errorf("rate_limiter.interval must be positive")
	}
	return nil
}

// Paper returns the configured default paper size.
func (c Config) Paper() PaperSize {
	return c.PDF.PaperSizes[c.PDF.DefaultPaper]
}

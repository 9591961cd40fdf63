package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment
// variables and the sources file.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	StoreBackend      string
	DBConnectAttempts int

	SourcesFile string
	SourceName  string
	Sources     []Site

	FetchMode   string
	ChromeBin   string
	UserAgent   string
	WaitTimeout time.Duration
	PageTimeout time.Duration

	IdentityPolicy string

	EmailHost      string
	EmailPort      int
	EmailUser      string
	EmailPassword  string
	RecipientEmail string
	NotifyMode     string

	// ScrapingInterval is advisory for whatever schedules the runs.
	ScrapingInterval time.Duration
	CSVSnapshotPath  string

	LogLevel        string
	LogFormat       string
	FluentHost      string
	FluentPort      int
	FluentTagPrefix string
}

// Load reads the .env file, the environment and the sources file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "watcher"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "watcher123"),
		PostgresDB:       getEnv("POSTGRES_DB", "listings"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		StoreBackend:      strings.ToLower(getEnv("STORE_BACKEND", "postgres")),
		DBConnectAttempts: getEnvInt("DB_CONNECT_ATTEMPTS", 10),

		SourcesFile: getEnv("SOURCES_FILE", "./sources.yaml"),
		SourceName:  getEnv("SOURCE_NAME", ""),

		FetchMode:   strings.ToLower(getEnv("FETCH_MODE", "browser")),
		ChromeBin:   getEnv("CHROME_BIN", ""),
		UserAgent:   getEnv("USER_AGENT", defaultUserAgent),
		WaitTimeout: getEnvDuration("WAIT_TIMEOUT", 10*time.Second),
		PageTimeout: getEnvDuration("PAGE_TIMEOUT", 60*time.Second),

		IdentityPolicy: strings.ToLower(getEnv("IDENTITY_POLICY", "fields")),

		EmailHost:      getEnv("EMAIL_HOST", "smtp.gmail.com"),
		EmailPort:      getEnvInt("EMAIL_PORT", 465),
		EmailUser:      getEnv("EMAIL_USER", ""),
		EmailPassword:  getEnv("EMAIL_PASSWORD", ""),
		RecipientEmail: getEnv("RECIPIENT_EMAIL", ""),
		NotifyMode:     strings.ToLower(getEnv("NOTIFY_MODE", "smtp")),

		ScrapingInterval: getEnvDuration("SCRAPING_INTERVAL", time.Hour),
		CSVSnapshotPath:  os.Getenv("CSV_SNAPSHOT_PATH"),

		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "text")),
		FluentHost:      getEnv("FLUENT_HOST", ""),
		FluentPort:      getEnvInt("FLUENT_PORT", 24224),
		FluentTagPrefix: getEnv("FLUENT_TAG_PREFIX", "listing-watch"),
	}
	if _, set := os.LookupEnv("CSV_SNAPSHOT_PATH"); !set {
		cfg.CSVSnapshotPath = "./output/last_scrape.csv"
	}

	sites, err := LoadSites(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}
	cfg.Sources = sites

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that have a closed set of options.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: STORE_BACKEND must be postgres or memory, got %q", c.StoreBackend)
	}
	switch c.FetchMode {
	case "browser", "static":
	default:
		return fmt.Errorf("config: FETCH_MODE must be browser or static, got %q", c.FetchMode)
	}
	switch c.IdentityPolicy {
	case "fields", "url":
	default:
		return fmt.Errorf("config: IDENTITY_POLICY must be fields or url, got %q", c.IdentityPolicy)
	}
	switch c.NotifyMode {
	case "smtp", "log":
	default:
		return fmt.Errorf("config: NOTIFY_MODE must be smtp or log, got %q", c.NotifyMode)
	}
	if c.WaitTimeout <= 0 {
		return fmt.Errorf("config: WAIT_TIMEOUT must be positive")
	}
	if c.PageTimeout <= 0 {
		return fmt.Errorf("config: PAGE_TIMEOUT must be positive")
	}
	return nil
}

// Site returns the configured source to scrape this run: SOURCE_NAME when
// set, otherwise the first one.
func (c *Config) Site() (Site, error) {
	if len(c.Sources) == 0 {
		return Site{}, fmt.Errorf("config: no sources configured")
	}
	if c.SourceName == "" {
		return c.Sources[0], nil
	}
	for _, s := range c.Sources {
		if strings.EqualFold(s.Name, c.SourceName) {
			return s, nil
		}
	}
	return Site{}, fmt.Errorf("config: source %q not found in %s", c.SourceName, c.SourcesFile)
}

// SMTPConfigured reports whether credentials and a recipient are present.
func (c *Config) SMTPConfigured() bool {
	return c.EmailUser != "" && c.EmailPassword != "" && c.RecipientEmail != ""
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36"

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

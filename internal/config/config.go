// Package config loads runtime configuration from the environment, with
// optional .env support for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/rldls/doorlog/internal/errors"
)

// Server holds the configuration for the doorlogd server.
type Server struct {
	HTTPAddr           string
	RemoteBackend      string // "sheets" or "memory"
	SpreadsheetID      string
	GoogleCredentials  string // service-account JSON
	CORSAllowedOrigins []string
}

// Client holds the configuration for the field agent.
type Client struct {
	ServerURL       string
	DataDir         string
	User            string
	Latitude        float64
	Longitude       float64
	IntervalMinutes int
	DrainInterval   time.Duration
	ProbeInterval   time.Duration
	RequestTimeout  time.Duration
}

// LoadServer reads server configuration. Sheets credentials are only
// required when the sheets backend is selected; a missing value there is
// a configuration error, not a validation error, and is never retried.
func LoadServer() (Server, error) {
	_ = godotenv.Load()

	cfg := Server{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		RemoteBackend: getenv("REMOTE_BACKEND", "sheets"),
	}

	for _, o := range strings.Split(getenv("CORS_ALLOWED_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	if cfg.RemoteBackend == "sheets" {
		cfg.SpreadsheetID = strings.TrimSpace(os.Getenv("SPREADSHEET_ID"))
		cfg.GoogleCredentials = strings.TrimSpace(os.Getenv("GOOGLE_CREDENTIALS"))
		if cfg.SpreadsheetID == "" {
			return Server{}, errors.New(errors.ErrConfiguration, "SPREADSHEET_ID required")
		}
		if cfg.GoogleCredentials == "" {
			return Server{}, errors.New(errors.ErrConfiguration, "GOOGLE_CREDENTIALS required")
		}
	}

	return cfg, nil
}

// LoadClient reads field agent configuration.
func LoadClient() (Client, error) {
	_ = godotenv.Load()

	cfg := Client{
		ServerURL:       strings.TrimRight(getenv("DOORLOG_SERVER", "http://localhost:8080"), "/"),
		DataDir:         getenv("DOORLOG_DATA_DIR", defaultDataDir()),
		User:            getenv("DOORLOG_USER", "field"),
		IntervalMinutes: getenvInt("DOORLOG_INTERVAL_MINUTES", 60),
		DrainInterval:   getenvDuration("DOORLOG_DRAIN_INTERVAL", time.Minute),
		ProbeInterval:   getenvDuration("DOORLOG_PROBE_INTERVAL", 15*time.Second),
		RequestTimeout:  getenvDuration("DOORLOG_REQUEST_TIMEOUT", 10*time.Second),
	}

	cfg.Latitude = getenvFloat("DOORLOG_LAT", 59.91)
	cfg.Longitude = getenvFloat("DOORLOG_LON", 10.75)

	if cfg.IntervalMinutes <= 0 || cfg.IntervalMinutes > 24*60 {
		return Client{}, errors.New(errors.ErrConfiguration, "DOORLOG_INTERVAL_MINUTES out of range")
	}

	return cfg, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return home + "/.doorlog"
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v, err := strconv.Atoi(getenv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getenvFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(getenv(key, ""), 64)
	if err != nil {
		return def
	}
	return v
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(getenv(key, ""))
	if err != nil {
		return def
	}
	return v
}

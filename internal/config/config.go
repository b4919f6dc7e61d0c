package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

type Config struct {
	// MediaWiki endpoints
	APIURL    string
	RESTURL   string
	UserAgent string

	// Credentials file (TOML); empty means search the default locations.
	AuthFile string

	// HTTP behaviour
	HTTPTimeout   time.Duration
	EditDelay     time.Duration
	MaxRetryDelay time.Duration

	// Pages
	ListingPage   string
	ArchivePrefix string
	SkipPages     []string

	LogLevel slog.Level
}

func Load() Config {
	cfg := Config{
		APIURL:    envOr("MW_API_URL", "https://en.wikipedia.org/w/api.php"),
		RESTURL:   envOr("MW_REST_URL", "https://en.wikipedia.org/w/rest.php"),
		UserAgent: envOr("MW_USER_AGENT", "https://en.wikipedia.org/wiki/User:Legobot mfdarchiver-go"),

		AuthFile: os.Getenv("MW_AUTH_FILE"),

		HTTPTimeout:   envDuration("MW_HTTP_TIMEOUT", 30*time.Second),
		EditDelay:     envDuration("MW_EDIT_DELAY", 10*time.Second),
		MaxRetryDelay: envDuration("MW_MAX_RETRY", 30*time.Second),

		ListingPage:   envOr("LISTING_PAGE", "Wikipedia:Miscellany for deletion"),
		ArchivePrefix: envOr("ARCHIVE_PREFIX", "Wikipedia:Miscellany for deletion/Archived debates/"),
		SkipPages:     envList("SKIP_PAGES", []string{"Wikipedia:Miscellany for deletion/Front matter"}),

		LogLevel: envLevel("LOG_LEVEL", slog.LevelInfo),
	}

	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.EditDelay < 0 {
		cfg.EditDelay = 10 * time.Second
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = 30 * time.Second
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("MW_API_URL is required")
	}
	if c.RESTURL == "" {
		return fmt.Errorf("MW_REST_URL is required")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("MW_USER_AGENT is required")
	}
	if c.ListingPage == "" {
		return fmt.Errorf("LISTING_PAGE is required")
	}
	if c.ArchivePrefix == "" {
		return fmt.Errorf("ARCHIVE_PREFIX is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envLevel(key string, fallback slog.Level) slog.Level {
	if v := os.Getenv(key); v != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(v)); err == nil {
			return l
		}
	}
	return fallback
}

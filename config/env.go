package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable the crawler reads.
const EnvPrefix = "SCRAPER_"

// LoadDotEnv loads variables from the given files into the process environment without
// overriding values that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// EnvString returns the value of key or def when unset or blank.
func EnvString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// EnvInt returns key parsed as an int, or def when unset or malformed.
func EnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring malformed env value", slog.String("key", key), slog.String("value", v))
		return def
	}
	return n
}

// EnvFloat returns key parsed as a float64, or def when unset or malformed.
func EnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("ignoring malformed env value", slog.String("key", key), slog.String("value", v))
		return def
	}
	return f
}

// EnvBool returns key parsed as a bool, or def when unset or malformed.
func EnvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("ignoring malformed env value", slog.String("key", key), slog.String("value", v))
		return def
	}
	return b
}

// EnvDuration returns key parsed with time.ParseDuration, or def when unset or malformed.
func EnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("ignoring malformed env value", slog.String("key", key), slog.String("value", v))
		return def
	}
	return d
}

// ApplyEnv overrides c with SCRAPER_* environment variables.
func (c *Config) ApplyEnv() {
	c.BaseURL = EnvString(EnvPrefix+"BASE_URL", c.BaseURL)
	c.ReviewsEndpoint = EnvString(EnvPrefix+"REVIEWS_ENDPOINT", c.ReviewsEndpoint)
	c.QuestionsEndpoint = EnvString(EnvPrefix+"QUESTIONS_ENDPOINT", c.QuestionsEndpoint)
	c.Concurrency = EnvInt(EnvPrefix+"CONCURRENCY", c.Concurrency)
	c.RequestsPerSecond = EnvFloat(EnvPrefix+"RPS", c.RequestsPerSecond)
	c.Burst = EnvInt(EnvPrefix+"BURST", c.Burst)
	c.RandomDelay = EnvDuration(EnvPrefix+"RANDOM_DELAY", c.RandomDelay)
	c.Timeout = EnvDuration(EnvPrefix+"TIMEOUT", c.Timeout)
	c.MaxRetries = EnvInt(EnvPrefix+"MAX_RETRIES", c.MaxRetries)
	c.RetryBackoff = EnvDuration(EnvPrefix+"RETRY_BACKOFF", c.RetryBackoff)
	c.RetryBackoffMax = EnvDuration(EnvPrefix+"RETRY_BACKOFF_MAX", c.RetryBackoffMax)
	c.RetryJitter = EnvFloat(EnvPrefix+"RETRY_JITTER", c.RetryJitter)
	c.BreakerThreshold = EnvInt(EnvPrefix+"BREAKER_THRESHOLD", c.BreakerThreshold)
	c.CacheSize = EnvInt(EnvPrefix+"CACHE_SIZE", c.CacheSize)
	c.ReviewPageCap = EnvInt(EnvPrefix+"REVIEW_PAGE_CAP", c.ReviewPageCap)
	c.QuestionPageCap = EnvInt(EnvPrefix+"QUESTION_PAGE_CAP", c.QuestionPageCap)
	c.CategoryPageCap = EnvInt(EnvPrefix+"CATEGORY_PAGE_CAP", c.CategoryPageCap)
	c.ReviewPageSize = EnvInt(EnvPrefix+"REVIEW_PAGE_SIZE", c.ReviewPageSize)
	c.QuestionPageSize = EnvInt(EnvPrefix+"QUESTION_PAGE_SIZE", c.QuestionPageSize)
	c.MaxExpansionDepth = EnvInt(EnvPrefix+"MAX_EXPANSION_DEPTH", c.MaxExpansionDepth)
	c.OutputFile = EnvString(EnvPrefix+"OUTPUT", c.OutputFile)
	c.OutputFormat = EnvString(EnvPrefix+"FORMAT", c.OutputFormat)
	c.MetricsAddr = EnvString(EnvPrefix+"METRICS_ADDR", c.MetricsAddr)
	c.UserAgent = EnvString(EnvPrefix+"USER_AGENT", c.UserAgent)
	c.RespectRobotsTxt = EnvBool(EnvPrefix+"RESPECT_ROBOTS", c.RespectRobotsTxt)
}

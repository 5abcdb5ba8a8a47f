package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Output formats accepted by Validate.
const (
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatXLSX  = "xlsx"
	FormatHTML  = "html"
	FormatDual  = "dual"
	FormatAll   = "all"
)

// Config holds crawler configuration.
type Config struct {
	BaseURL string
	// Endpoint templates. {id}, {offset}, {limit} and {page} are substituted.
	ReviewsEndpoint   string
	QuestionsEndpoint string

	Concurrency       int
	RequestsPerSecond float64
	Burst             int
	RandomDelay       time.Duration
	Timeout           time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	RetryBackoffMax   time.Duration
	RetryJitter       float64
	BreakerThreshold  int
	CacheSize         int

	ReviewPageCap    int
	QuestionPageCap  int
	CategoryPageCap  int
	ReviewPageSize   int
	QuestionPageSize int
	// MaxReviews and MaxQuestions cap items per product; 0 means unlimited.
	MaxReviews   int
	MaxQuestions int

	IncludeSimilar    bool
	MaxExpansionDepth int

	InputFile        string
	OutputFile       string
	OutputFormat     string
	MetricsAddr      string
	UserAgent        string
	Verbose          bool
	RespectRobotsTxt bool
}

// DefaultConfig returns conservative defaults for a single catalog site.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "https://www.sephora.com",
		ReviewsEndpoint:   "{base}/api/catalog/reviews?productId={id}&offset={offset}&limit={limit}",
		QuestionsEndpoint: "{base}/api/catalog/questions?productId={id}&offset={offset}&limit={limit}",
		Concurrency:       4,
		RequestsPerSecond: 2,
		Burst:             2,
		RandomDelay:       0,
		Timeout:           20 * time.Second,
		MaxRetries:        3,
		RetryBackoff:      500 * time.Millisecond,
		RetryBackoffMax:   8 * time.Second,
		RetryJitter:       0.2,
		BreakerThreshold:  8,
		CacheSize:         256,
		ReviewPageCap:     50,
		QuestionPageCap:   20,
		CategoryPageCap:   25,
		ReviewPageSize:    30,
		QuestionPageSize:  30,
		MaxExpansionDepth: 1,
		OutputFile:        "output/products.jsonl",
		OutputFormat:      FormatJSONL,
		UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
	}
}

// AllowedHost returns the host of BaseURL.
func (c *Config) AllowedHost() string {
	parsed, err := url.Parse(c.BaseURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	for name, tmpl := range map[string]string{"reviews": c.ReviewsEndpoint, "questions": c.QuestionsEndpoint} {
		if !strings.Contains(tmpl, "{id}") {
			return fmt.Errorf("%s endpoint must contain {id}", name)
		}
	}

	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if c.Burst <= 0 {
		return fmt.Errorf("burst must be positive")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.RetryJitter < 0 || c.RetryJitter > 1 {
		return fmt.Errorf("retry jitter must be within [0, 1]")
	}
	if c.BreakerThreshold <= 0 {
		return fmt.Errorf("breaker threshold must be positive")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative")
	}

	if c.ReviewPageCap <= 0 || c.QuestionPageCap <= 0 || c.CategoryPageCap <= 0 {
		return fmt.Errorf("page caps must be positive")
	}
	if c.ReviewPageSize <= 0 || c.QuestionPageSize <= 0 {
		return fmt.Errorf("page sizes must be positive")
	}
	if c.MaxReviews < 0 || c.MaxQuestions < 0 {
		return fmt.Errorf("item caps cannot be negative")
	}
	if c.MaxExpansionDepth < 0 {
		return fmt.Errorf("expansion depth cannot be negative")
	}

	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	switch c.OutputFormat {
	case FormatJSONL, FormatCSV, FormatXLSX, FormatHTML, FormatDual, FormatAll:
	default:
		return fmt.Errorf("output format must be jsonl, csv, xlsx, html, dual, or all")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// ErrNoSeeds is returned when an input lists no product or category locators.
var ErrNoSeeds = errors.New("input must list at least one product or category")

// Input describes the seed targets of a crawl session.
type Input struct {
	ProductURLs    []string `json:"product_urls"`
	CategoryURLs   []string `json:"category_urls"`
	IncludeSimilar bool     `json:"include_similar"`
	MaxReviews     int      `json:"max_reviews"`
	MaxQuestions   int      `json:"max_questions"`
}

// inputFile accepts the field aliases older input files use.
type inputFile struct {
	Input
	Products               []string `json:"products"`
	Categories             []string `json:"categories"`
	IncludeSimilarProducts *bool    `json:"include_similar_products"`
}

// LoadInput reads and normalises a JSON input file.
func LoadInput(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input %s: %w", path, err)
	}
	return ParseInput(data)
}

// ParseInput decodes a JSON input document.
func ParseInput(data []byte) (*Input, error) {
	var raw inputFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	in := raw.Input
	in.ProductURLs = append(in.ProductURLs, raw.Products...)
	in.CategoryURLs = append(in.CategoryURLs, raw.Categories...)
	if raw.IncludeSimilarProducts != nil && *raw.IncludeSimilarProducts {
		in.IncludeSimilar = true
	}
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &in, nil
}

func (in *Input) normalize() {
	in.ProductURLs = uniqueTrimmed(in.ProductURLs)
	in.CategoryURLs = uniqueTrimmed(in.CategoryURLs)
}

// AddSeeds appends seeds given outside the input file, such as on the command line.
func (in *Input) AddSeeds(products, categories []string) {
	in.ProductURLs = append(in.ProductURLs, products...)
	in.CategoryURLs = append(in.CategoryURLs, categories...)
	in.normalize()
}

// Validate checks that the input is usable.
func (in *Input) Validate() error {
	if len(in.ProductURLs) == 0 && len(in.CategoryURLs) == 0 {
		return ErrNoSeeds
	}
	if in.MaxReviews < 0 || in.MaxQuestions < 0 {
		return fmt.Errorf("max_reviews and max_questions cannot be negative")
	}
	return nil
}

// Apply copies per-session options from the input onto cfg.
func (in *Input) Apply(cfg *Config) {
	if in.IncludeSimilar {
		cfg.IncludeSimilar = true
	}
	if in.MaxReviews > 0 {
		cfg.MaxReviews = in.MaxReviews
	}
	if in.MaxQuestions > 0 {
		cfg.MaxQuestions = in.MaxQuestions
	}
}

// Targets converts the seeds into crawl targets, products first.
func (in *Input) Targets() []models.Target {
	out := make([]models.Target, 0, len(in.ProductURLs)+len(in.CategoryURLs))
	for _, u := range in.ProductURLs {
		out = append(out, models.Target{
			Kind:      models.KindProduct,
			Locator:   u,
			ProductID: parser.ProductIDFromURL(u),
		})
	}
	for _, u := range in.CategoryURLs {
		out = append(out, models.Target{Kind: models.KindCategory, Locator: u})
	}
	return out
}

func uniqueTrimmed(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

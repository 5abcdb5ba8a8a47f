// Package parser adapts raw fetch responses into typed payloads and normalises the loose
// text values found in them.
package parser

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	numberPattern     = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	countPattern      = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s*([kKmM])?`)
	isoCurrency       = regexp.MustCompile(`\b([A-Z]{3})\b`)
	productIDPattern  = regexp.MustCompile(`\b(P\d{3,})\b`)
	decimalCommaPrice = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})*,\d{2}$`)
	decimalCommaToken = regexp.MustCompile(`\d[\d.]*,\d{2}\b`)
)

var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"US$", "USD"},
	{"C$", "CAD"},
	{"A$", "AUD"},
	{"$", "USD"},
	{"£", "GBP"},
	{"€", "EUR"},
	{"¥", "JPY"},
	{"₹", "INR"},
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2006-01-02",
	"01/02/2006",
}

// CleanText collapses runs of whitespace and trims the result.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Optional returns nil for blank text and a pointer to the cleaned text otherwise.
func Optional(s string) *string {
	s = CleanText(s)
	if s == "" {
		return nil
	}
	return &s
}

// ParsePrice extracts the numeric amount and currency code from a display price such as
// "$25.00", "£51.77", "25 USD" or "$20.00 - $30.00" (the low end of a range wins).
func ParsePrice(display string) (float64, string, bool) {
	s := CleanText(display)
	if s == "" {
		return 0, "", false
	}
	for _, sep := range []string{" - ", " – ", "-"} {
		if before, _, ok := strings.Cut(s, sep); ok && numberPattern.MatchString(before) {
			s = strings.TrimSpace(before)
			break
		}
	}

	currency := ""
	if m := isoCurrency.FindStringSubmatch(s); m != nil {
		currency = m[1]
	} else {
		for _, cs := range currencySymbols {
			if strings.Contains(s, cs.symbol) {
				currency = cs.code
				break
			}
		}
	}

	var raw string
	if m := decimalCommaToken.FindString(s); m != "" && decimalCommaPrice.MatchString(m) {
		raw = strings.ReplaceAll(strings.ReplaceAll(m, ".", ""), ",", ".")
	} else {
		raw = strings.ReplaceAll(numberPattern.FindString(s), ",", "")
	}
	if raw == "" {
		return 0, currency, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, currency, false
	}
	return value, currency, true
}

// ParseCount parses counters such as "1,234", "12.5K loves" or "2M".
func ParseCount(text string) (int64, bool) {
	m := countPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "k":
		value *= 1_000
	case "m":
		value *= 1_000_000
	}
	return int64(math.Round(value)), true
}

// ParseNumber returns the first decimal number in text, e.g. 4.6 from "4.6 out of 5".
func ParseNumber(text string) (float64, bool) {
	raw := numberPattern.FindString(text)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	return value, err == nil
}

// ParseRating converts a textual or numeric rating into an integer. Fractional ratings
// are rejected.
func ParseRating(text string) (int, bool) {
	s := strings.TrimSpace(text)
	switch strings.ToLower(s) {
	case "zero":
		return 0, true
	case "one":
		return 1, true
	case "two":
		return 2, true
	case "three":
		return 3, true
	case "four":
		return 4, true
	case "five":
		return 5, true
	}
	value, ok := ParseNumber(s)
	if !ok || value != math.Trunc(value) {
		return 0, false
	}
	return int(value), true
}

// ParseTime parses the timestamp formats seen in review and Q&A payloads and returns
// the instant in UTC. Layouts without an offset are read as UTC.
func ParseTime(text string) (time.Time, bool) {
	s := CleanText(text)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseAvailability maps schema.org availability values and stock phrases to a bool.
func ParseAvailability(text string) (bool, bool) {
	s := strings.ToLower(CleanText(text))
	if s == "" {
		return false, false
	}
	for _, marker := range []string{"outofstock", "out of stock", "soldout", "sold out", "discontinued", "unavailable"} {
		if strings.Contains(s, marker) {
			return false, true
		}
	}
	for _, marker := range []string{"instock", "in stock", "limitedavailability", "limited availability", "onlineonly", "preorder", "available"} {
		if strings.Contains(s, marker) {
			return true, true
		}
	}
	return false, false
}

// ProductIDFromURL derives a catalog product id from a locator. It understands the
// "productId" query parameter and "P123456" style tokens in the path, and accepts a
// bare id.
func ProductIDFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if u, err := url.Parse(raw); err == nil {
		if id := u.Query().Get("productId"); id != "" {
			return id
		}
		if m := productIDPattern.FindStringSubmatch(u.Path); m != nil {
			return m[1]
		}
		if u.Host != "" {
			return ""
		}
	}
	if m := productIDPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

// NormalizeURL returns a canonical form of rawURL for duplicate detection.
func NormalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	parsed.Fragment = ""
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)

	if (parsed.Port() == "80" && parsed.Scheme == "http") || (parsed.Port() == "443" && parsed.Scheme == "https") {
		parsed.Host = parsed.Hostname()
	}
	if parsed.Path != "/" {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}
	return parsed.String(), nil
}

// ResolveURL resolves href against base. It returns "" when either side is unusable.
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == "" {
		if !ref.IsAbs() {
			return ""
		}
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}

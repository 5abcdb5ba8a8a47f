// Package extract maps adapted payloads onto catalog entities. Every function here is
// pure: missing optional fields become nil, and items lacking required fields are
// skipped and reported back to the caller instead of failing the page.
package extract

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// Required-field failures. They are wrapped in an *ItemError.
var (
	ErrMissingID       = errors.New("missing identifier")
	ErrMissingRating   = errors.New("missing rating")
	ErrRatingScale     = errors.New("rating outside scale")
	ErrMissingQuestion = errors.New("missing question text")
	ErrMissingAnswer   = errors.New("missing answer text")
	ErrUnparsedTime    = errors.New("unparseable submission time")
)

// Rating scale enforced on reviews.
const (
	MinRating = 1
	MaxRating = 5
)

// ItemError describes one item that was skipped or degraded during extraction.
type ItemError struct {
	Kind  string
	Index int
	ID    string
	Field string
	Err   error
}

func (e *ItemError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s: field %s: %v", e.Kind, e.ID, e.Field, e.Err)
	}
	return fmt.Sprintf("%s #%d: field %s: %v", e.Kind, e.Index, e.Field, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// Page is the result of extracting one page of a paginated collection.
type Page[T any] struct {
	Items []T
	// Skipped items lacked a required field.
	Skipped []error
	// Warnings are optional fields that could not be normalised.
	Warnings []error
	// Total is the collection size reported by the payload, when present.
	Total *int
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = parser.CleanText(v); v != "" {
			return v
		}
	}
	return ""
}

// stableID derives a deterministic identifier for items without one.
func stableID(parts ...string) string {
	h := sha1.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return "h-" + hex.EncodeToString(h.Sum(nil))[:16]
}

func intPtr(n parser.Node) *int {
	v, ok := n.Int()
	if !ok {
		return nil
	}
	i := int(v)
	return &i
}

func count(n parser.Node) int {
	v, ok := n.Int()
	if !ok || v < 0 {
		return 0
	}
	return int(v)
}

func boolPtr(v bool) *bool {
	return &v
}

// imageOf reads schema.org image values: a URL string, a list of them or ImageObjects.
func imageOf(n parser.Node, base string) string {
	for _, item := range n.List() {
		src := item.String()
		if src == "" {
			src = item.First("url", "contentUrl").String()
		}
		if resolved := parser.ResolveURL(base, src); resolved != "" {
			return resolved
		}
	}
	return ""
}

func containsAny(s string, markers ...string) bool {
	s = strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

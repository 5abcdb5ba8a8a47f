// Package models defines data structures shared by the crawler, the aggregator and the
// export writers.
package models

// TargetKind distinguishes product pages from category listings.
type TargetKind string

const (
	KindProduct  TargetKind = "product"
	KindCategory TargetKind = "category"
)

// Target is one unit of crawl work. Targets are values and are never mutated after
// creation.
type Target struct {
	Kind    TargetKind `json:"kind"`
	Locator string     `json:"locator"`
	// ProductID is filled in when the identifier can be derived from the locator.
	ProductID      string `json:"product_id,omitempty"`
	DiscoveredFrom string `json:"discovered_from,omitempty"`
	// Depth counts similar-product hops from the seed that produced this target.
	Depth int `json:"depth"`
}

// Key is the session-wide deduplication key.
func (t Target) Key() string {
	if t.Kind == KindProduct && t.ProductID != "" {
		return "product:" + t.ProductID
	}
	return string(t.Kind) + ":" + t.Locator
}

package crawl

import (
	"context"
	"errors"
	"iter"

	"github.com/aluiziolira/go-scrape-catalog/extract"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// PageFetcher returns the payload of the zero-based page.
type PageFetcher func(ctx context.Context, page int) (*parser.Payload, error)

// Pager walks a paginated collection lazily. Nothing is fetched until the sequence is
// ranged over, and ranging stops fetching as soon as the consumer breaks.
type Pager struct {
	Fetch    PageFetcher
	MaxPages int
}

// Pages yields page payloads in order, at most MaxPages of them. A fetch error or a
// cancelled context is yielded once as the final element.
func (p Pager) Pages(ctx context.Context) iter.Seq2[*parser.Payload, error] {
	return func(yield func(*parser.Payload, error) bool) {
		for page := 0; page < p.MaxPages; page++ {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			payload, err := p.Fetch(ctx, page)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(payload, nil) {
				return
			}
		}
	}
}

// Collection is the merged result of a paginated crawl.
type Collection[T any] struct {
	Items []T
	State models.CollectionState
	// Issues are the skipped items and warnings reported by the extractor.
	Issues []error
}

// Collect drains pager, extracting each page as it arrives and merging items in page
// order. Items are deduplicated by id with the first occurrence winning. Collection
// stops at the first empty page (exhausted), once the unique and skipped items reach
// the reported total, on a fetch error or cancellation, or when the pager runs out of
// pages (page cap). Duplicates never count toward the reported total.
//
// maxItems (0 = unlimited) truncates only when a further unique item exists: a
// collection holding exactly maxItems items is still followed to its end, so it is
// not reported as capped. Items collected before an error are kept.
func Collect[T any](ctx context.Context, pager Pager, extractPage func(*parser.Payload) extract.Page[T], id func(T) string, maxItems int) Collection[T] {
	var c Collection[T]
	seen := make(map[string]struct{})

	for payload, err := range pager.Pages(ctx) {
		if err != nil {
			c.State.StopReason = models.StopFetchError
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.State.StopReason = models.StopCanceled
			}
			c.State.Error = err.Error()
			return c
		}

		c.State.PagesFetched++
		page := extractPage(payload)
		if page.Total != nil && c.State.ReportedTotal == nil {
			total := *page.Total
			c.State.ReportedTotal = &total
		}
		c.State.ItemsSkipped += len(page.Skipped)
		c.Issues = append(c.Issues, page.Skipped...)
		c.Issues = append(c.Issues, page.Warnings...)

		if len(page.Items) == 0 && len(page.Skipped) == 0 {
			c.State.StopReason = models.StopExhausted
			return c
		}

		for _, item := range page.Items {
			key := id(item)
			if _, dup := seen[key]; dup {
				c.State.DuplicatesDropped++
				continue
			}
			if maxItems > 0 && len(c.Items) >= maxItems {
				c.State.StopReason = models.StopItemCap
				return c
			}
			seen[key] = struct{}{}
			c.Items = append(c.Items, item)
		}

		if total := c.State.ReportedTotal; total != nil && len(c.Items)+c.State.ItemsSkipped >= *total {
			c.State.StopReason = models.StopExhausted
			return c
		}
	}

	c.State.StopReason = models.StopPageCap
	if maxItems > 0 && len(c.Items) >= maxItems {
		c.State.StopReason = models.StopItemCap
	}
	return c
}

package crawl

import (
	"context"
	"errors"

	"github.com/aluiziolira/go-scrape-catalog/extract"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

// discover walks the listing pages of a category and returns its products in listing
// order, deduplicated by product id. It stops at the first page that adds no new
// product or at the category page cap. The returned error is set when the walk ended
// on a fetch failure or cancellation.
func (c *crawler) discover(ctx context.Context, t models.Target) ([]models.Target, models.CollectionState, error) {
	pager := Pager{
		MaxPages: c.cfg.CategoryPageCap,
		Fetch: func(ctx context.Context, n int) (*parser.Payload, error) {
			return c.fetch.fetch(ctx, scraper.Request{URL: c.endpoints.CategoryPageURL(t.Locator, n+1), Kind: scraper.KindCategory})
		},
	}

	var (
		state   models.CollectionState
		targets []models.Target
		seen    = make(map[string]struct{})
	)
	for page, err := range pager.Pages(ctx) {
		if err != nil {
			err = abandoned(ctx, err)
			state.StopReason = models.StopFetchError
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				state.StopReason = models.StopCanceled
			}
			state.Error = err.Error()
			return targets, state, err
		}

		state.PagesFetched++
		added := 0
		for _, link := range extract.ProductLinks(page) {
			key := link.ProductID
			if key == "" {
				key = link.URL
			}
			if _, dup := seen[key]; dup {
				state.DuplicatesDropped++
				continue
			}
			seen[key] = struct{}{}
			added++
			targets = append(targets, models.Target{
				Kind:           models.KindProduct,
				Locator:        link.URL,
				ProductID:      link.ProductID,
				DiscoveredFrom: t.Locator,
			})
		}
		if added == 0 {
			state.StopReason = models.StopExhausted
			return targets, state, nil
		}
	}
	state.StopReason = models.StopPageCap
	return targets, state, nil
}

package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/extract"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

// crawler runs the per-target work of one session. It is shared by all workers and holds
// no mutable state of its own beyond the fetch stack.
type crawler struct {
	cfg       *config.Config
	endpoints scraper.Endpoints
	fetch     *fetchStack
	metrics   *scraper.Metrics
	log       *slog.Logger
}

// crawlProduct runs the product pipeline: product page, info, variants, similar links,
// reviews, questions and finally statistics. It returns the similar-product targets to
// enqueue. An abandoned target returns the session's cancellation cause and no record.
func (c *crawler) crawlProduct(ctx context.Context, t models.Target) (*models.ProductRecord, []models.Target, error) {
	productURL := c.endpoints.ProductURL(t.Locator, t.ProductID)
	page, err := c.fetch.fetch(ctx, scraper.Request{URL: productURL, Kind: scraper.KindProduct})
	if err != nil {
		return nil, nil, abandoned(ctx, err)
	}

	info, err := extract.ProductInfo(page, t.ProductID)
	if err != nil {
		return nil, nil, scraper.ErrMalformedPayload{Err: err}
	}
	log := c.log.With(slog.String("product_id", info.ID))

	variants := extract.Variants(page)
	c.metrics.AddItems("variant", len(variants))

	var similar []models.Target
	if c.cfg.IncludeSimilar && t.Depth < c.cfg.MaxExpansionDepth {
		for _, link := range extract.SimilarProductLinks(page, info.ID) {
			similar = append(similar, models.Target{
				Kind:           models.KindProduct,
				Locator:        link.URL,
				ProductID:      link.ProductID,
				DiscoveredFrom: t.Key(),
				Depth:          t.Depth + 1,
			})
		}
	}

	reviews := Collect(ctx,
		Pager{MaxPages: c.cfg.ReviewPageCap, Fetch: func(ctx context.Context, n int) (*parser.Payload, error) {
			return c.fetch.fetch(ctx, scraper.Request{URL: c.endpoints.ReviewsPageURL(info.ID, n, c.cfg.ReviewPageSize), Kind: scraper.KindReviews})
		}},
		extract.Reviews,
		func(r models.Review) string { return r.ReviewID },
		c.cfg.MaxReviews,
	)
	c.logIssues(log, "review", reviews.Issues)
	c.metrics.AddItems("review", len(reviews.Items))

	questions := Collect(ctx,
		Pager{MaxPages: c.cfg.QuestionPageCap, Fetch: func(ctx context.Context, n int) (*parser.Payload, error) {
			return c.fetch.fetch(ctx, scraper.Request{URL: c.endpoints.QuestionsPageURL(info.ID, n, c.cfg.QuestionPageSize), Kind: scraper.KindQuestions})
		}},
		func(p *parser.Payload) extract.Page[models.Question] { return extract.Questions(p, info.ID) },
		func(q models.Question) string { return q.QuestionID },
		c.cfg.MaxQuestions,
	)
	c.logIssues(log, "question", questions.Issues)
	c.metrics.AddItems("question", len(questions.Items))

	if err := ctx.Err(); err != nil {
		return nil, nil, context.Cause(ctx)
	}

	record := &models.ProductRecord{
		Info:           info,
		Variants:       nonNil(variants),
		Statistics:     extract.Statistics(reviews.Items, len(variants), extract.ReportedSummary(page)),
		Reviews:        nonNil(reviews.Items),
		Questions:      nonNil(questions.Items),
		ReviewsCrawl:   reviews.State,
		QuestionsCrawl: questions.State,
		Source: models.Source{
			URL:            productURL,
			DiscoveredFrom: t.DiscoveredFrom,
			Depth:          t.Depth,
		},
	}
	record.Partial = !reviews.State.Complete() || !questions.State.Complete()
	if record.Partial {
		log.Info("product collections truncated",
			slog.String("reviews_stop", string(reviews.State.StopReason)),
			slog.Int("reviews_pages", reviews.State.PagesFetched),
			slog.String("questions_stop", string(questions.State.StopReason)),
			slog.Int("questions_pages", questions.State.PagesFetched),
		)
	}
	return record, similar, nil
}

func (c *crawler) logIssues(log *slog.Logger, kind string, issues []error) {
	skipped := 0
	for _, issue := range issues {
		log.Warn("item degraded",
			slog.String("kind", kind),
			slog.Any("error", scraper.ErrMalformedPayload{Err: issue}),
		)
		if !errors.Is(issue, extract.ErrUnparsedTime) {
			skipped++
		}
	}
	c.metrics.AddSkipped(kind, skipped)
}

// abandoned prefers the session cancellation cause over the error of an interrupted
// fetch, so a cancelled target is not reported as a network failure.
func abandoned(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		if cause := context.Cause(ctx); cause != nil {
			return cause
		}
	}
	return err
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func targetError(t models.Target, err error) error {
	return fmt.Errorf("%s %s: %w", t.Kind, t.Locator, err)
}

package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// Request names one payload to fetch.
type Request struct {
	URL  string
	Kind string
}

// Fetcher is the fetch capability consumed by the crawler. Failures are returned as
// the typed errors of this package.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (parser.Raw, error)
}

// CollyFetcher fetches payloads through a synchronous colly collector. It is safe for
// concurrent use; each call carries its own colly context.
type CollyFetcher struct {
	collector *colly.Collector
	metrics   *Metrics
}

// NewCollyFetcher builds a fetcher configured from cfg.
func NewCollyFetcher(cfg *config.Config, metrics *Metrics) (*CollyFetcher, error) {
	hosts, err := allowedHosts(cfg)
	if err != nil {
		return nil, err
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(hosts...),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Concurrency,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	f := &CollyFetcher{collector: collector, metrics: metrics}
	f.configureHandlers()
	return f, nil
}

// allowedHosts lists the site host and the hosts of the API endpoints.
func allowedHosts(cfg *config.Config) ([]string, error) {
	endpoints := NewEndpoints(cfg)
	seen := make(map[string]struct{})
	var hosts []string
	for _, raw := range []string{endpoints.Base, endpoints.Reviews, endpoints.Questions} {
		parsed, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint %q: %w", raw, err)
		}
		if parsed.Host == "" {
			return nil, fmt.Errorf("endpoint %q must include a host", raw)
		}
		host := parsed.Hostname()
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		hosts = append(hosts, host)
	}
	return hosts, nil
}

func (f *CollyFetcher) configureHandlers() {
	f.collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put("status", r.StatusCode)
		r.Ctx.Put("body", r.Body)
		r.Ctx.Put("url", r.Request.URL.String())
		if r.Headers != nil {
			r.Ctx.Put("content_type", r.Headers.Get("Content-Type"))
		}
	})

	f.collector.OnError(func(r *colly.Response, err error) {
		if r == nil {
			return
		}
		r.Ctx.Put("status", r.StatusCode)
	})
}

// Fetch issues a GET for req. The collector has no cancellation hook, so ctx is checked
// before and after the request.
func (f *CollyFetcher) Fetch(ctx context.Context, req Request) (parser.Raw, error) {
	if err := ctx.Err(); err != nil {
		return parser.Raw{}, err
	}

	rctx := colly.NewContext()
	hdr := http.Header{}
	hdr.Set("Accept", acceptFor(req.Kind))

	f.metrics.IncRequest(req.Kind)
	start := time.Now()
	err := f.collector.Request(http.MethodGet, req.URL, nil, rctx, hdr)
	f.metrics.ObserveDuration(time.Since(start))

	if ctxErr := ctx.Err(); ctxErr != nil {
		return parser.Raw{}, ctxErr
	}

	status, _ := rctx.GetAny("status").(int)
	if err != nil || status >= http.StatusBadRequest {
		classified := ClassifyError(err, status)
		if classified == nil {
			classified = fmt.Errorf("http status %d", status)
		}
		label := errorTypeLabel(classified)
		f.metrics.IncError(label)
		slog.Debug("fetch failed",
			slog.String("url", req.URL),
			slog.String("kind", req.Kind),
			slog.Int("status", status),
			slog.String("category", label),
		)
		return parser.Raw{URL: req.URL, StatusCode: status}, fmt.Errorf("fetch %s %s: %w", req.Kind, req.URL, classified)
	}

	raw := parser.Raw{URL: req.URL, StatusCode: status}
	if final, ok := rctx.GetAny("url").(string); ok && final != "" {
		raw.URL = final
	}
	raw.Body, _ = rctx.GetAny("body").([]byte)
	raw.ContentType, _ = rctx.GetAny("content_type").(string)
	return raw, nil
}

func acceptFor(kind string) string {
	switch kind {
	case KindReviews, KindQuestions:
		return "application/json"
	}
	return "text/html,application/xhtml+xml"
}

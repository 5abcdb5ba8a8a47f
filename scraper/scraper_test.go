package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

func TestRetryPolicyRespectsLimit(t *testing.T) {
	var retries int
	policy := RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		OnRetry:     func(int, time.Duration, error) { retries++ },
	}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return ErrTimeout{Err: errors.New("slow")}
	})

	var timeout ErrTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("Do() error = %v, want ErrTimeout", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if retries != 2 {
		t.Fatalf("retries = %d, want 2", retries)
	}
}

func TestRetryPolicyPermanentFailsFast(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return ErrNotFound{Err: errors.New("gone")}
	})
	if err == nil || calls != 1 {
		t.Fatalf("calls = %d, err = %v; want 1 call and an error", calls, err)
	}
}

func TestRetryPolicyRecovers(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return ErrServer{Err: errors.New("503")}
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("calls = %d, err = %v; want 3 calls and success", calls, err)
	}
}

func TestRetryPolicyStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{
		MaxAttempts: 10,
		BaseDelay:   time.Hour,
		OnRetry:     func(int, time.Duration, error) { cancel() },
	}

	err := policy.Do(ctx, func(context.Context) error {
		return ErrRateLimited{Err: errors.New("429")}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() error = %v, want context.Canceled", err)
	}
}

func TestRetryPolicyBackoffCapped(t *testing.T) {
	policy := RetryPolicy{BaseDelay: 200 * time.Millisecond, MaxDelay: 500 * time.Millisecond}

	if got := policy.Backoff(1); got != 200*time.Millisecond {
		t.Fatalf("Backoff(1) = %v, want 200ms", got)
	}
	if got := policy.Backoff(2); got != 400*time.Millisecond {
		t.Fatalf("Backoff(2) = %v, want 400ms", got)
	}
	if got := policy.Backoff(40); got != policy.MaxDelay {
		t.Fatalf("Backoff(40) = %v, want %v", got, policy.MaxDelay)
	}

	jittered := RetryPolicy{BaseDelay: time.Second, Jitter: 0.2}
	for i := 0; i < 50; i++ {
		d := jittered.jittered(time.Second)
		if d < 800*time.Millisecond || d > 1200*time.Millisecond {
			t.Fatalf("jittered delay %v outside ±20%%", d)
		}
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
		class      string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown", class: ""},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout", class: ClassTransient},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout", class: ClassTransient},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection", class: ClassTransient},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "shop.example"}, statusCode: 0, expected: "connection", class: ClassTransient},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden", class: ClassPermanent},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found", class: ClassPermanent},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited", class: ClassTransient},
		{name: "server", err: errors.New("Bad Gateway"), statusCode: http.StatusBadGateway, expected: "server", class: ClassTransient},
		{name: "other 4xx", err: nil, statusCode: http.StatusBadRequest, expected: "other", class: ClassPermanent},
		{name: "canceled", err: context.Canceled, statusCode: 0, expected: "canceled", class: ClassCanceled},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other", class: ClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := ClassifyError(tt.err, tt.statusCode)
			if got := errorTypeLabel(classified); got != tt.expected {
				t.Fatalf("ClassifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
			if got := FailureClass(classified); got != tt.class {
				t.Fatalf("FailureClass() = %q, want %q", got, tt.class)
			}
		})
	}
}

func TestFailureClassSpecialCases(t *testing.T) {
	if got := FailureClass(fmt.Errorf("breaker: %w", ErrFetchUnavailable)); got != ClassFatal {
		t.Fatalf("FailureClass(unavailable) = %q, want fatal", got)
	}
	if got := FailureClass(ErrMalformedPayload{Err: errors.New("bad json")}); got != ClassMalformed {
		t.Fatalf("FailureClass(malformed) = %q, want malformed", got)
	}
	if IsConnectionFailure(ErrServer{Err: errors.New("500")}) {
		t.Fatal("5xx must not count as a connection failure")
	}
	if !IsConnectionFailure(ErrConnection{Err: errors.New("refused")}) {
		t.Fatal("connection errors count as connection failures")
	}
}

func newTestFetcher(t *testing.T) (*CollyFetcher, *httpmock.MockTransport) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test"
	cfg.ReviewsEndpoint = "http://api.example.test/reviews/{id}/{page}"
	cfg.QuestionsEndpoint = "http://api.example.test/questions/{id}/{page}"
	cfg.Concurrency = 2

	f, err := NewCollyFetcher(cfg, NewMetrics())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	transport := httpmock.NewMockTransport()
	f.collector.WithTransport(transport)
	return f, transport
}

func TestFetcherHTTPStatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{status: http.StatusTooManyRequests, expected: "rate_limited"},
		{status: http.StatusForbidden, expected: "forbidden"},
		{status: http.StatusNotFound, expected: "not_found"},
		{status: http.StatusServiceUnavailable, expected: "server"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			f, transport := newTestFetcher(t)
			url := "http://example.test/product/p-P1001"
			transport.RegisterResponder("GET", url, httpmock.NewStringResponder(tt.status, ""))

			_, err := f.Fetch(context.Background(), Request{URL: url, Kind: KindProduct})
			if err == nil {
				t.Fatalf("expected error for status %d", tt.status)
			}
			if got := errorTypeLabel(err); got != tt.expected {
				t.Fatalf("label = %q, want %q (err %v)", got, tt.expected, err)
			}
		})
	}
}

func TestFetcherReturnsPayload(t *testing.T) {
	f, transport := newTestFetcher(t)
	url := "http://api.example.test/reviews/P1001/1"
	resp := httpmock.NewStringResponse(200, `{"Results": []}`)
	resp.Header.Set("Content-Type", "application/json")
	transport.RegisterResponder("GET", url, httpmock.ResponderFromResponse(resp))

	raw, err := f.Fetch(context.Background(), Request{URL: url, Kind: KindReviews})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if raw.StatusCode != 200 || string(raw.Body) != `{"Results": []}` {
		t.Fatalf("raw = %d %q", raw.StatusCode, raw.Body)
	}
	if raw.ContentType != "application/json" {
		t.Fatalf("content type = %q", raw.ContentType)
	}
}

func TestFetcherRejectsForeignHost(t *testing.T) {
	f, _ := newTestFetcher(t)
	_, err := f.Fetch(context.Background(), Request{URL: "http://elsewhere.test/x", Kind: KindProduct})
	if err == nil || IsTransient(err) {
		t.Fatalf("foreign host should fail permanently, got %v", err)
	}
}

func TestFetcherCanceledContext(t *testing.T) {
	f, _ := newTestFetcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Fetch(ctx, Request{URL: "http://example.test/", Kind: KindProduct}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Fetch() error = %v, want context.Canceled", err)
	}
}

type countingFetcher struct {
	calls atomic.Int32
	fail  bool
}

func (c *countingFetcher) Fetch(_ context.Context, req Request) (parser.Raw, error) {
	c.calls.Add(1)
	if c.fail {
		return parser.Raw{}, ErrServer{Err: errors.New("500")}
	}
	return parser.Raw{URL: req.URL, StatusCode: 200, Body: []byte("<html></html>")}, nil
}

func TestCachedFetcher(t *testing.T) {
	next := &countingFetcher{}
	f, err := NewCachedFetcher(next, 8, NewMetrics())
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}

	req := Request{URL: "http://example.test/product/a", Kind: KindProduct}
	for i := 0; i < 3; i++ {
		if _, err := f.Fetch(context.Background(), req); err != nil {
			t.Fatalf("fetch: %v", err)
		}
	}
	if got := next.calls.Load(); got != 1 {
		t.Fatalf("underlying calls = %d, want 1", got)
	}

	failing := &countingFetcher{fail: true}
	f, _ = NewCachedFetcher(failing, 8, nil)
	f.Fetch(context.Background(), req)
	f.Fetch(context.Background(), req)
	if got := failing.calls.Load(); got != 2 {
		t.Fatalf("errors must not be cached, calls = %d", got)
	}

	plain, _ := NewCachedFetcher(next, 0, nil)
	if plain != Fetcher(next) {
		t.Fatal("size 0 should return the wrapped fetcher")
	}
}

func TestEndpoints(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "https://shop.example/"
	e := NewEndpoints(cfg)

	if got := e.ReviewsPageURL("P1", 2, 30); got != "https://shop.example/api/catalog/reviews?productId=P1&offset=60&limit=30" {
		t.Errorf("ReviewsPageURL() = %q", got)
	}
	if got := e.ProductURL("P1", "P1"); got != "https://shop.example/product/P1" {
		t.Errorf("ProductURL(id) = %q", got)
	}
	if got := e.ProductURL("https://shop.example/product/x-P1", "P1"); got != "https://shop.example/product/x-P1" {
		t.Errorf("ProductURL(url) = %q", got)
	}
	if got := e.CategoryPageURL("/shop/serums?sortBy=new", 3); got != "https://shop.example/shop/serums?currentPage=3&sortBy=new" {
		t.Errorf("CategoryPageURL() = %q", got)
	}
}

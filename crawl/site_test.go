package crawl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

const siteBase = "http://shop.test"

// fakeSite is a deterministic in-memory fetch capability. Exact URL routes win over
// prefix routes; anything else is a 404.
type fakeSite struct {
	mu       sync.Mutex
	exact    map[string]parser.Raw
	prefix   map[string]parser.Raw
	errs     map[string]error
	failOnce map[string]int
	block    map[string]chan struct{}
	calls    map[string]int
	times    []time.Time
}

func newFakeSite() *fakeSite {
	s := &fakeSite{
		exact:    make(map[string]parser.Raw),
		prefix:   make(map[string]parser.Raw),
		errs:     make(map[string]error),
		failOnce: make(map[string]int),
		block:    make(map[string]chan struct{}),
		calls:    make(map[string]int),
	}
	empty := jsonRaw(`{"Results": []}`)
	s.prefix[siteBase+"/reviews/"] = empty
	s.prefix[siteBase+"/questions/"] = empty
	return s
}

func (s *fakeSite) Fetch(ctx context.Context, req scraper.Request) (parser.Raw, error) {
	s.mu.Lock()
	s.calls[req.URL]++
	s.times = append(s.times, time.Now())
	started, blocked := s.block[req.URL]
	s.mu.Unlock()

	if blocked {
		close(started)
		<-ctx.Done()
		return parser.Raw{}, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.failOnce[req.URL]; n > 0 {
		s.failOnce[req.URL] = n - 1
		return parser.Raw{}, scraper.ErrServer{Err: errors.New("http status 503")}
	}
	if err, ok := s.errs[req.URL]; ok {
		return parser.Raw{}, err
	}
	if raw, ok := s.exact[req.URL]; ok {
		raw.URL = req.URL
		return raw, nil
	}
	best := ""
	for p := range s.prefix {
		if strings.HasPrefix(req.URL, p) && len(p) > len(best) {
			best = p
		}
	}
	if best != "" {
		raw := s.prefix[best]
		raw.URL = req.URL
		return raw, nil
	}
	return parser.Raw{}, scraper.ErrNotFound{Err: fmt.Errorf("http status 404: %s", req.URL)}
}

func (s *fakeSite) callsTo(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[url]
}

// callTimes returns when each fetch arrived, in arrival order.
func (s *fakeSite) callTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.times...)
}

func productURL(id string) string {
	return siteBase + "/product/p-" + id
}

// addProduct serves a product page linking to the given similar products.
func (s *fakeSite) addProduct(id string, similar ...string) {
	var links strings.Builder
	for _, sid := range similar {
		fmt.Fprintf(&links, `<a href="/product/p-%s">%s</a>`, sid, sid)
	}
	body := fmt.Sprintf(`<html><head><script type="application/ld+json">
{"@type": "Product", "productID": %q, "name": "Product %s",
 "offers": [{"sku": "%s-1", "name": "Default", "price": "10.00", "priceCurrency": "USD", "availability": "http://schema.org/InStock"}]}
</script></head><body><span data-at="price">$10.00</span>
<section><h2>You may also like</h2>%s</section></body></html>`, id, id, id, links.String())
	s.exact[productURL(id)] = htmlRaw(body)
}

// addReviews serves one page per entry of pages; each int is a rating.
func (s *fakeSite) addReviews(id string, pages ...[]int) {
	for i, ratings := range pages {
		s.exact[fmt.Sprintf("%s/reviews/%s/%d", siteBase, id, i+1)] = jsonRaw(reviewsBody(id, i, ratings))
	}
}

func (s *fakeSite) addQuestions(id string, body string) {
	s.exact[fmt.Sprintf("%s/questions/%s/1", siteBase, id)] = jsonRaw(body)
}

// addCategory serves listing pages; each inner slice lists product ids.
func (s *fakeSite) addCategory(path string, pages ...[]string) {
	for i, ids := range pages {
		var b strings.Builder
		b.WriteString("<html><body>")
		for _, id := range ids {
			fmt.Fprintf(&b, `<a href="/product/p-%s">%s</a>`, id, id)
		}
		b.WriteString(`<a href="/shop/other">other</a></body></html>`)
		s.exact[fmt.Sprintf("%s%s?currentPage=%d", siteBase, path, i+1)] = htmlRaw(b.String())
	}
	s.exact[fmt.Sprintf("%s%s?currentPage=%d", siteBase, path, len(pages)+1)] = htmlRaw("<html><body></body></html>")
}

func reviewsBody(id string, page int, ratings []int) string {
	type item struct {
		ID             string `json:"Id"`
		Rating         int    `json:"Rating"`
		ReviewText     string `json:"ReviewText"`
		SubmissionTime string `json:"SubmissionTime"`
		Helpful        int    `json:"TotalPositiveFeedbackCount"`
	}
	items := make([]item, 0, len(ratings))
	for j, r := range ratings {
		items = append(items, item{
			ID:             fmt.Sprintf("%s-r%d-%d", id, page, j),
			Rating:         r,
			ReviewText:     "review text",
			SubmissionTime: "2024-03-05T10:00:00Z",
			Helpful:        1,
		})
	}
	data, _ := json.Marshal(map[string]any{"Results": items})
	return string(data)
}

func htmlRaw(body string) parser.Raw {
	return parser.Raw{StatusCode: 200, ContentType: "text/html; charset=utf-8", Body: []byte(body)}
}

func jsonRaw(body string) parser.Raw {
	return parser.Raw{StatusCode: 200, ContentType: "application/json", Body: []byte(body)}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = siteBase
	cfg.ReviewsEndpoint = "{base}/reviews/{id}/{page}"
	cfg.QuestionsEndpoint = "{base}/questions/{id}/{page}"
	cfg.Concurrency = 3
	cfg.RequestsPerSecond = 10000
	cfg.Burst = 10000
	cfg.MaxRetries = 2
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryBackoffMax = 2 * time.Millisecond
	cfg.RetryJitter = 0
	cfg.ReviewPageCap = 5
	cfg.QuestionPageCap = 5
	cfg.CategoryPageCap = 5
	return cfg
}

func productTarget(id string) models.Target {
	return models.Target{Kind: models.KindProduct, Locator: productURL(id), ProductID: id}
}

// collectSink records outcomes in arrival order.
type collectSink struct {
	mu       sync.Mutex
	outcomes []models.Outcome
}

func (c *collectSink) Add(o models.Outcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, o)
	return nil
}

func (c *collectSink) records() map[string]*models.ProductRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*models.ProductRecord)
	for _, o := range c.outcomes {
		if o.Record != nil {
			out[o.Record.Info.ID] = o.Record
		}
	}
	return out
}

func (c *collectSink) byKey() map[string]models.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]models.Outcome)
	for _, o := range c.outcomes {
		out[o.Target.Key()] = o
	}
	return out
}

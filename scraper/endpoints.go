package scraper

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-catalog/config"
)

// Payload kinds, used for request metrics and cache keys.
const (
	KindProduct   = "product"
	KindCategory  = "category"
	KindReviews   = "reviews"
	KindQuestions = "questions"
)

// CategoryPageParam is the query parameter that selects a listing page.
const CategoryPageParam = "currentPage"

// Endpoints builds the URLs a session fetches.
type Endpoints struct {
	Base      string
	Reviews   string
	Questions string
}

// NewEndpoints resolves the endpoint templates in cfg against its base URL.
func NewEndpoints(cfg *config.Config) Endpoints {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	return Endpoints{
		Base:      base,
		Reviews:   strings.ReplaceAll(cfg.ReviewsEndpoint, "{base}", base),
		Questions: strings.ReplaceAll(cfg.QuestionsEndpoint, "{base}", base),
	}
}

// ProductURL turns a locator (URL or bare id) into a product page URL.
func (e Endpoints) ProductURL(locator, productID string) string {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		return locator
	}
	if strings.HasPrefix(locator, "/") {
		return e.Base + locator
	}
	id := productID
	if id == "" {
		id = locator
	}
	return e.Base + "/product/" + url.PathEscape(id)
}

// ReviewsPageURL returns the URL of the zero-based review page.
func (e Endpoints) ReviewsPageURL(productID string, page, size int) string {
	return expand(e.Reviews, productID, page, size)
}

// QuestionsPageURL returns the URL of the zero-based question page.
func (e Endpoints) QuestionsPageURL(productID string, page, size int) string {
	return expand(e.Questions, productID, page, size)
}

// CategoryPageURL sets the listing page number (1-based) on a category URL.
func (e Endpoints) CategoryPageURL(locator string, page int) string {
	raw := locator
	if strings.HasPrefix(raw, "/") {
		raw = e.Base + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(CategoryPageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

func expand(tmpl, productID string, page, size int) string {
	return strings.NewReplacer(
		"{id}", url.QueryEscape(productID),
		"{offset}", strconv.Itoa(page*size),
		"{limit}", strconv.Itoa(size),
		"{page}", strconv.Itoa(page+1),
	).Replace(tmpl)
}

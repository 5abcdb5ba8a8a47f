package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// ProductPathMarker identifies product detail URLs in listing and recommendation links.
const ProductPathMarker = "/product/"

var similarHeadings = []string{"you may also like", "similar", "recommended", "more like this"}

// ProductLink is a product URL found on a page.
type ProductLink struct {
	URL       string
	ProductID string
}

// key deduplicates by product id, falling back to the normalised URL.
func (l ProductLink) key() string {
	if l.ProductID != "" {
		return l.ProductID
	}
	return l.URL
}

// ProductLinks returns every product link on a listing page in document order,
// deduplicated by product id.
func ProductLinks(p *parser.Payload) []ProductLink {
	return collectLinks(p, p.Find("a[href]"), "")
}

// SimilarProductLinks returns links from recommendation sections of a product page,
// excluding the product itself.
func SimilarProductLinks(p *parser.Payload, selfID string) []ProductLink {
	sections := p.Find(`[data-comp*="Recommend"], [data-comp*="Similar"]`)
	p.Find("section, aside, div").Each(func(_ int, s *goquery.Selection) {
		heading := s.ChildrenFiltered("h2, h3, h4").First().Text()
		if heading != "" && containsAny(heading, similarHeadings...) {
			sections = sections.AddSelection(s)
		}
	})
	return collectLinks(p, sections.Find("a[href]"), selfID)
}

func collectLinks(p *parser.Payload, anchors *goquery.Selection, excludeID string) []ProductLink {
	seen := make(map[string]struct{})
	var out []ProductLink
	anchors.Each(func(_ int, a *goquery.Selection) {
		resolved := parser.ResolveURL(p.URL, a.AttrOr("href", ""))
		if resolved == "" || !strings.Contains(resolved, ProductPathMarker) {
			return
		}
		normalized, err := parser.NormalizeURL(resolved)
		if err != nil {
			return
		}
		link := ProductLink{URL: normalized, ProductID: parser.ProductIDFromURL(normalized)}
		if excludeID != "" && link.ProductID == excludeID {
			return
		}
		if _, dup := seen[link.key()]; dup {
			return
		}
		seen[link.key()] = struct{}{}
		out = append(out, link)
	})
	return out
}

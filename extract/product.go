package extract

import (
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// Summary is the rating summary a product page reports about itself. It is only used to
// cross-check the statistics aggregated from reviews.
type Summary struct {
	AverageRating *float64
	ReviewCount   *int
}

// ProductInfo reads the core product fields from a detail page. fallbackID is used when
// the page carries no identifier of its own; ErrMissingID is returned when neither does.
func ProductInfo(p *parser.Payload, fallbackID string) (models.Info, error) {
	ld, _ := p.LinkedDataOfType("Product")
	offer := firstOffer(ld)

	info := models.Info{URL: p.URL}
	info.ID = firstNonEmpty(
		ld.First("productID", "sku").String(),
		parser.ProductIDFromURL(p.URL),
		fallbackID,
	)
	if info.ID == "" {
		return info, &ItemError{Kind: "product", Field: "id", Err: ErrMissingID}
	}

	info.Name = parser.Optional(firstNonEmpty(
		ld.Get("name").String(),
		p.DataAt("product_name").First().Text(),
		p.Meta("og:title"),
		p.Find("title").First().Text(),
	))
	info.Description = parser.Optional(firstNonEmpty(
		ld.Get("description").String(),
		p.Meta("og:description"),
		p.Meta("description"),
	))
	info.Image = parser.Optional(firstNonEmpty(
		imageOf(ld.Get("image"), p.URL),
		parser.ResolveURL(p.URL, p.Meta("og:image")),
	))
	info.Brand = parser.Optional(firstNonEmpty(
		ld.Get("brand.name").String(),
		ld.Get("brand").String(),
		p.DataAt("brand_name").First().Text(),
	))

	readPrice(p, ld, offer, &info)

	if avail, ok := parser.ParseAvailability(offer.Get("availability").String()); ok {
		info.IsAvailable = boolPtr(avail)
	} else if p.DataAt("out_of_stock").Length() > 0 {
		info.IsAvailable = boolPtr(false)
	} else if p.DataAt("add_to_basket_btn").Length() > 0 {
		info.IsAvailable = boolPtr(true)
	}

	loves := firstNonEmpty(p.DataAt("loves").First().Text(), p.Meta("twitter:data2"))
	if n, ok := parser.ParseCount(loves); ok {
		info.LoveCount = &n
	}
	return info, nil
}

// readPrice keeps the display string verbatim and stores the parsed amount and currency
// beside it.
func readPrice(p *parser.Payload, ld, offer parser.Node, info *models.Info) {
	ldPrice := offer.First("price", "lowPrice").String()
	display := firstNonEmpty(p.DataAt("price").First().Text(), ldPrice)
	info.Price = parser.Optional(display)

	value, currency, ok := parser.ParsePrice(display)
	if !ok && ldPrice != "" {
		value, currency, ok = parser.ParsePrice(ldPrice)
	}
	if ok {
		info.PriceValue = &value
	}
	if c := firstNonEmpty(offer.Get("priceCurrency").String(), ld.Get("priceCurrency").String(), currency); c != "" {
		info.Currency = &c
	}
}

// ReportedSummary reads the site's own rating summary.
func ReportedSummary(p *parser.Payload) Summary {
	ld, _ := p.LinkedDataOfType("Product")
	agg := ld.Get("aggregateRating")

	var s Summary
	if avg, ok := agg.Get("ratingValue").Float(); ok {
		s.AverageRating = &avg
	} else if avg, ok := parser.ParseNumber(p.DataAt("overall_rating").First().Text()); ok {
		s.AverageRating = &avg
	}

	if n := intPtr(agg.First("reviewCount", "ratingCount")); n != nil {
		s.ReviewCount = n
	} else if n, ok := parser.ParseCount(p.DataAt("total_reviews").First().Text()); ok {
		c := int(n)
		s.ReviewCount = &c
	}
	return s
}

// firstOffer returns the first concrete offer, unwrapping AggregateOffer.
func firstOffer(ld parser.Node) parser.Node {
	offers := ld.Get("offers")
	if inner := offers.Get("offers"); !inner.IsZero() {
		offers = inner
	}
	if list := offers.List(); len(list) > 0 {
		return list[0]
	}
	return parser.Node{}
}

package extract

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// Variants reads purchasable variants from the JSON-LD offers (or hasVariant list) and
// falls back to variant tiles in the DOM. Variants are deduplicated by id; the first
// occurrence wins.
func Variants(p *parser.Payload) []models.Variant {
	ld, _ := p.LinkedDataOfType("Product")
	if group, ok := p.LinkedDataOfType("ProductGroup"); ok && ld.IsZero() {
		ld = group
	}

	offers := ld.Get("offers")
	if inner := offers.Get("offers"); !inner.IsZero() {
		offers = inner
	}
	nodes := offers.List()
	nodes = append(nodes, ld.Get("hasVariant").List()...)

	seen := make(map[string]struct{})
	out := make([]models.Variant, 0, len(nodes))
	add := func(v models.Variant) {
		if _, dup := seen[v.VariantID]; dup {
			return
		}
		seen[v.VariantID] = struct{}{}
		out = append(out, v)
	}

	for i, n := range nodes {
		add(variantFromNode(n, i, p.URL))
	}
	if len(out) > 0 {
		return out
	}

	p.Find(`[data-comp*="ProductVariant"]`).Each(func(i int, s *goquery.Selection) {
		add(variantFromTile(s, i, p.URL))
	})
	return out
}

func variantFromNode(n parser.Node, i int, base string) models.Variant {
	v := models.Variant{
		VariantID:          firstNonEmpty(n.First("sku", "productID", "@id").String(), fmt.Sprintf("variant-%d", i+1)),
		VariantName:        parser.Optional(n.Get("name").String()),
		VariantDescription: parser.Optional(n.First("description", "name").String()),
		VariantImage:       parser.Optional(imageOf(n.Get("image"), base)),
	}
	if avail, ok := parser.ParseAvailability(n.Get("availability").String()); ok {
		v.IsVariantAvailable = boolPtr(avail)
	}
	return v
}

func variantFromTile(s *goquery.Selection, i int, base string) models.Variant {
	id := firstNonEmpty(s.AttrOr("data-sku-id", ""), s.AttrOr("data-sku", ""), fmt.Sprintf("variant-%d", i+1))
	name := firstNonEmpty(s.AttrOr("aria-label", ""), s.Find("img").First().AttrOr("alt", ""), s.Text())

	v := models.Variant{
		VariantID:          id,
		VariantName:        parser.Optional(name),
		VariantDescription: parser.Optional(firstNonEmpty(s.AttrOr("data-description", ""), name)),
		VariantImage:       parser.Optional(parser.ResolveURL(base, s.Find("img").First().AttrOr("src", ""))),
	}
	switch {
	case s.Find(`[data-at="out_of_stock"]`).Length() > 0, containsAny(s.AttrOr("class", ""), "out-of-stock", "soldout"):
		v.IsVariantAvailable = boolPtr(false)
	case s.AttrOr("data-available", "") != "":
		avail := s.AttrOr("data-available", "") == "true"
		v.IsVariantAvailable = &avail
	}
	return v
}

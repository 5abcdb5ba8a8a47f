package parser

import (
	"errors"
	"testing"
)

const productHTML = `<html><head>
<meta property="og:title" content="Glow Serum">
<meta name="description" content="  A light   serum ">
<script type="application/ld+json">{"@context":"https://schema.org","@type":"BreadcrumbList"}</script>
<script type="application/ld+json">{"@graph":[{"@type":["Product"],"name":"Glow Serum","sku":"P455369"}]}</script>
<script type="application/ld+json">not json</script>
</head><body><span data-at="brand_name">Acme</span></body></html>`

func TestAdaptHTML(t *testing.T) {
	p, err := Adapt(Raw{URL: "https://shop.example/product/glow-P455369", ContentType: "text/html; charset=utf-8", Body: []byte(productHTML)})
	if err != nil {
		t.Fatalf("Adapt() error = %v", err)
	}
	if p.Format != FormatHTML {
		t.Fatalf("Format = %q, want html", p.Format)
	}
	if len(p.LinkedData) != 2 {
		t.Fatalf("LinkedData len = %d, want 2", len(p.LinkedData))
	}
	product, ok := p.LinkedDataOfType("Product")
	if !ok {
		t.Fatal("LinkedDataOfType(Product) not found")
	}
	if got := product.Get("sku").String(); got != "P455369" {
		t.Errorf("sku = %q", got)
	}
	if got := p.Meta("og:title"); got != "Glow Serum" {
		t.Errorf("Meta(og:title) = %q", got)
	}
	if got := p.Meta("description"); got != "A light serum" {
		t.Errorf("Meta(description) = %q", got)
	}
	if got := CleanText(p.DataAt("brand_name").Text()); got != "Acme" {
		t.Errorf("DataAt(brand_name) = %q", got)
	}
	if p.Doc.Url == nil || p.Doc.Url.Host != "shop.example" {
		t.Errorf("document url not set: %v", p.Doc.Url)
	}
}

func TestAdaptJSONSniffed(t *testing.T) {
	p, err := Adapt(Raw{URL: "u", Body: []byte(` {"TotalResults": 12, "Results": [{"Id": "r1", "Rating": 5}]}`)})
	if err != nil {
		t.Fatalf("Adapt() error = %v", err)
	}
	if p.Format != FormatJSON {
		t.Fatalf("Format = %q, want json", p.Format)
	}
	total, ok := p.Data.Get("TotalResults").Int()
	if !ok || total != 12 {
		t.Errorf("TotalResults = %d, %v", total, ok)
	}
	if got := p.Data.Get("Results.0.Id").String(); got != "r1" {
		t.Errorf("Results.0.Id = %q", got)
	}
}

func TestAdaptErrors(t *testing.T) {
	if _, err := Adapt(Raw{URL: "u", ContentType: "application/json", Body: []byte(`{"broken"`)}); err == nil {
		t.Error("expected error for truncated json")
	}
	_, err := Adapt(Raw{URL: "u", Body: []byte("plain text")})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Adapt(plain) error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestNodeAccessors(t *testing.T) {
	p, err := Adapt(Raw{URL: "u", ContentType: "application/json", Body: []byte(`{
		"a": {"b": [{"c": "x"}, {"c": "  "}]},
		"n": 4.0, "f": 4.5, "s": "7", "t": "true", "flag": false,
		"single": {"id": 1}
	}`)})
	if err != nil {
		t.Fatalf("Adapt() error = %v", err)
	}
	root := p.Data

	if got := root.First("missing", "a.b.1.c", "a.b.0.c").String(); got != "x" {
		t.Errorf("First() = %q, want x", got)
	}
	if !root.Get("a.b.9.c").IsZero() {
		t.Error("out of range index should be zero")
	}
	if n, ok := root.Get("n").Int(); !ok || n != 4 {
		t.Errorf("Int(n) = %d, %v", n, ok)
	}
	if _, ok := root.Get("f").Int(); ok {
		t.Error("Int(f) should reject fractional values")
	}
	if n, ok := root.Get("s").Int(); !ok || n != 7 {
		t.Errorf("Int(s) = %d, %v", n, ok)
	}
	if b, ok := root.Get("t").Bool(); !ok || !b {
		t.Errorf("Bool(t) = %v, %v", b, ok)
	}
	if b, ok := root.Get("flag").Bool(); !ok || b {
		t.Errorf("Bool(flag) = %v, %v", b, ok)
	}
	if got := len(root.Get("single").List()); got != 1 {
		t.Errorf("List(single) len = %d, want 1", got)
	}
	if got := len(root.Get("a.b").List()); got != 2 {
		t.Errorf("List(a.b) len = %d, want 2", got)
	}
	if root.Get("missing").List() != nil {
		t.Error("List(missing) should be nil")
	}
	if fields := root.Get("a").Fields(); len(fields) != 1 {
		t.Errorf("Fields(a) = %v", fields)
	}
}

package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Format is the detected shape of a response body.
type Format string

const (
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// ErrUnsupportedFormat is returned when a body is neither JSON nor HTML.
var ErrUnsupportedFormat = errors.New("unsupported payload format")

// Raw is a response exactly as the fetch layer produced it.
type Raw struct {
	URL         string
	ContentType string
	StatusCode  int
	Body        []byte
}

// Payload is a Raw response adapted for extraction. JSON bodies are exposed through
// Data, HTML bodies through Doc and the JSON-LD blocks found in them.
type Payload struct {
	Raw
	Format     Format
	Data       Node
	Doc        *goquery.Document
	LinkedData []Node
}

// Adapt detects the body format and parses it once.
func Adapt(raw Raw) (*Payload, error) {
	p := &Payload{Raw: raw, Format: detectFormat(raw)}

	switch p.Format {
	case FormatJSON:
		data, err := decodeJSON(raw.Body)
		if err != nil {
			return nil, fmt.Errorf("decode json from %s: %w", raw.URL, err)
		}
		p.Data = data
	case FormatHTML:
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Body))
		if err != nil {
			return nil, fmt.Errorf("parse html from %s: %w", raw.URL, err)
		}
		if u, err := url.Parse(raw.URL); err == nil {
			doc.Url = u
		}
		p.Doc = doc
		p.LinkedData = linkedData(doc)
	default:
		return nil, fmt.Errorf("%s: %w", raw.URL, ErrUnsupportedFormat)
	}
	return p, nil
}

func detectFormat(raw Raw) Format {
	ct := strings.ToLower(raw.ContentType)
	switch {
	case strings.Contains(ct, "json"):
		return FormatJSON
	case strings.Contains(ct, "html"):
		return FormatHTML
	}
	trimmed := bytes.TrimSpace(raw.Body)
	if len(trimmed) == 0 {
		return ""
	}
	switch trimmed[0] {
	case '{', '[':
		return FormatJSON
	case '<':
		return FormatHTML
	}
	return ""
}

func decodeJSON(body []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Node{}, err
	}
	return NewNode(v), nil
}

// linkedData collects JSON-LD objects, flattening top-level arrays and @graph lists.
// Blocks that fail to decode are ignored.
func linkedData(doc *goquery.Document) []Node {
	var out []Node
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		node, err := decodeJSON([]byte(text))
		if err != nil {
			// Some sites emit several objects separated by commas without brackets.
			node, err = decodeJSON([]byte("[" + text + "]"))
			if err != nil {
				return
			}
		}
		for _, item := range node.List() {
			if graph := item.Get("@graph"); !graph.IsZero() {
				out = append(out, graph.List()...)
				continue
			}
			out = append(out, item)
		}
	})
	return out
}

// LinkedDataOfType returns the first JSON-LD object whose @type matches typ.
func (p *Payload) LinkedDataOfType(typ string) (Node, bool) {
	for _, n := range p.LinkedData {
		for _, t := range n.Get("@type").List() {
			if s, ok := t.Text(); ok && strings.EqualFold(s, typ) {
				return n, true
			}
		}
	}
	return Node{}, false
}

// Meta returns the content of the first <meta> whose property or name equals key.
func (p *Payload) Meta(key string) string {
	if p.Doc == nil {
		return ""
	}
	for _, attr := range []string{"property", "name", "itemprop"} {
		sel := p.Doc.Find(fmt.Sprintf(`meta[%s=%q]`, attr, key)).First()
		if content, ok := sel.Attr("content"); ok {
			if c := CleanText(content); c != "" {
				return c
			}
		}
	}
	return ""
}

// DataAt selects elements by their data-at test hook.
func (p *Payload) DataAt(name string) *goquery.Selection {
	if p.Doc == nil {
		return &goquery.Selection{}
	}
	return p.Doc.Find(fmt.Sprintf(`[data-at=%q]`, name))
}

// Find runs a CSS selector against the HTML document.
func (p *Payload) Find(selector string) *goquery.Selection {
	if p.Doc == nil {
		return &goquery.Selection{}
	}
	return p.Doc.Find(selector)
}

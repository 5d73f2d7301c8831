// Package extract turns the HTML of an open business detail panel into a
// lead record. It works on captured HTML rather than live DOM handles, so
// the selector logic is testable against fixtures without a browser.
package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mapforge/mapleads/leads"
)

// Extractor applies a selector chain set to detail panel HTML.
type Extractor struct {
	chains  Chains
	capture bool
	md      *markdownCapture
}

// New builds an Extractor. When capture is true, a sanitized markdown
// rendition of the detail panel is stored in Lead.Details.
func New(chains Chains, capture bool) *Extractor {
	chains.ApplyDefaults()
	e := &Extractor{chains: chains, capture: capture}
	if capture {
		e.md = newMarkdownCapture()
	}
	return e
}

// Extract parses htmlSrc and pulls out every field it can find. Missing
// fields stay empty; Extract never fails. pageURL becomes the lead's maps
// link.
func (e *Extractor) Extract(htmlSrc, pageURL string) leads.Lead {
	lead := leads.Lead{MapsLink: pageURL}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlSrc))
	if err != nil {
		return lead
	}

	var visible string
	if len(doc.Nodes) > 0 {
		visible = VisibleText(doc.Nodes[0])
	}

	lead.Name = e.firstText(doc, e.chains.Name)

	if v := e.firstTextOrLabel(doc, e.chains.Address); v != "" {
		lead.Address = strings.TrimSpace(strings.TrimPrefix(v, "Address: "))
	}

	if v := e.firstTextOrLabel(doc, e.chains.Phone); v != "" {
		lead.Phone = strings.TrimSpace(strings.TrimPrefix(v, "Phone: "))
	} else {
		// The phone button is the least stable selector; fall back to a
		// number-shaped run in the rendered text.
		lead.Phone = FindPhone(visible)
	}
	if lead.Phone != "" {
		lead.WhatsApp = leads.WhatsAppLink(lead.Phone)
	}

	for _, sel := range e.chains.Website {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		href := s.AttrOr("href", "")
		if href != "" && !isMapsHost(href) {
			lead.Website = href
			break
		}
	}

	if s := doc.Find(e.chains.Rating).First(); s.Length() > 0 {
		lead.Rating = strings.TrimSpace(s.Text())
	}
	if s := doc.Find(e.chains.Reviews).First(); s.Length() > 0 {
		lead.Reviews = strings.TrimSpace(s.AttrOr("aria-label", ""))
	}

	if visible != "" {
		lead.Email = FindEmail(visible)
	}

	if e.capture {
		if panel := doc.Find(e.chains.Detail).First(); panel.Length() > 0 {
			if inner, err := panel.Html(); err == nil {
				lead.Details = e.md.render(inner, pageURL)
			}
		}
	}

	return lead
}

// firstText returns the trimmed text of the first selector that matches an
// element with non-empty text.
func (e *Extractor) firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if t := strings.TrimSpace(s.Text()); t != "" {
			return t
		}
	}
	return ""
}

// firstTextOrLabel is firstText with an aria-label fallback for elements
// that render their value as an accessibility label only.
func (e *Extractor) firstTextOrLabel(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if t := strings.TrimSpace(s.Text()); t != "" {
			return t
		}
		if t := strings.TrimSpace(s.AttrOr("aria-label", "")); t != "" {
			return t
		}
	}
	return ""
}

// isMapsHost reports whether href points back at the mapping service itself,
// which happens when the website anchor holds an internal link.
func isMapsHost(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return strings.HasPrefix(href, "https://www.google.com")
	}
	host := strings.ToLower(u.Hostname())
	return host == "google.com" || strings.HasSuffix(host, ".google.com")
}

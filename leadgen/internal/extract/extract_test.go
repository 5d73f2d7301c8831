package extract

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func mustParse(t *testing.T, s string) *html.Node {
	t.Helper()
	n, err := html.Parse(strings.NewReader(s))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return n
}

const detailPanel = `<html><body>
<div role="main">
  <div class="lMbq3e"><h1 class="DUwDvf">Trattoria Roma</h1></div>
  <div class="F7nice">
    <span aria-hidden="true">4,5</span>
    <span aria-label="1.234 reviews">(1.234)</span>
  </div>
  <button data-item-id="address"><div class="fontBodyMedium">Via Nazionale 1, 50123 Firenze</div></button>
  <button data-item-id="phone:tel:+39055123456"><div class="fontBodyMedium">+39 055 123 456</div></button>
  <a data-item-id="authority" href="https://trattoriaroma.example"><div>trattoriaroma.example</div></a>
  <div>Contact: info@trattoriaroma.example</div>
  <span style="display:none">spamtrap@hidden.example</span>
</div>
<script>var tracking = "noise@script.example";</script>
</body></html>`

func TestExtractFullPanel(t *testing.T) {
	e := New(Chains{}, false)
	lead := e.Extract(detailPanel, "https://www.google.com/maps/place/x")

	if lead.Name != "Trattoria Roma" {
		t.Errorf("Name = %q", lead.Name)
	}
	if lead.Address != "Via Nazionale 1, 50123 Firenze" {
		t.Errorf("Address = %q", lead.Address)
	}
	if lead.Phone != "+39 055 123 456" {
		t.Errorf("Phone = %q", lead.Phone)
	}
	if lead.WhatsApp != "https://wa.me/+39055123456" {
		t.Errorf("WhatsApp = %q", lead.WhatsApp)
	}
	if lead.Website != "https://trattoriaroma.example" {
		t.Errorf("Website = %q", lead.Website)
	}
	if lead.Email != "info@trattoriaroma.example" {
		t.Errorf("Email = %q", lead.Email)
	}
	if lead.Rating != "4,5" {
		t.Errorf("Rating = %q", lead.Rating)
	}
	if lead.Reviews != "1.234 reviews" {
		t.Errorf("Reviews = %q", lead.Reviews)
	}
	if lead.MapsLink != "https://www.google.com/maps/place/x" {
		t.Errorf("MapsLink = %q", lead.MapsLink)
	}
	if lead.Details != "" {
		t.Errorf("Details captured without capture mode: %q", lead.Details)
	}
}

func TestExtractNameFallback(t *testing.T) {
	e := New(Chains{}, false)
	lead := e.Extract(`<html><body><h1>Plain Heading Name</h1></body></html>`, "")
	if lead.Name != "Plain Heading Name" {
		t.Errorf("Name = %q, want fallback h1 text", lead.Name)
	}
}

func TestExtractAddressAriaLabelFallback(t *testing.T) {
	e := New(Chains{}, false)
	html := `<html><body><button data-item-id="address" aria-label="Address: Kongens gate 1, Oslo"></button></body></html>`
	lead := e.Extract(html, "")
	if lead.Address != "Kongens gate 1, Oslo" {
		t.Errorf("Address = %q", lead.Address)
	}
}

func TestExtractRejectsInternalWebsiteLink(t *testing.T) {
	e := New(Chains{}, false)
	html := `<html><body>
<a data-item-id="authority" href="https://www.google.com/maps/something">internal</a>
<a data-tooltip="Open website" href="https://real.example">site</a>
</body></html>`
	lead := e.Extract(html, "")
	if lead.Website != "https://real.example" {
		t.Errorf("Website = %q, want the non-maps link", lead.Website)
	}
}

func TestExtractSkipsHiddenAndScriptText(t *testing.T) {
	e := New(Chains{}, false)
	html := `<html><body>
<span style="display:none">hidden@trap.example</span>
<script>var x = "script@trap.example";</script>
<div>no address here</div>
</body></html>`
	lead := e.Extract(html, "")
	if lead.Email != "" {
		t.Errorf("Email = %q, want empty (only hidden/script emails present)", lead.Email)
	}
}

func TestExtractEmptyInput(t *testing.T) {
	e := New(Chains{}, false)
	lead := e.Extract("", "https://maps.example/place")
	if lead.Name != "" || lead.Phone != "" {
		t.Errorf("fields set from empty input: %+v", lead)
	}
	if lead.MapsLink != "https://maps.example/place" {
		t.Errorf("MapsLink = %q", lead.MapsLink)
	}
}

func TestExtractCapturesDetails(t *testing.T) {
	e := New(Chains{}, true)
	lead := e.Extract(detailPanel, "https://www.google.com/maps/place/x")
	if lead.Details == "" {
		t.Fatal("Details empty in capture mode")
	}
	if !strings.Contains(lead.Details, "Trattoria Roma") {
		t.Errorf("Details missing panel content: %q", lead.Details)
	}
	if strings.Contains(lead.Details, "<script") || strings.Contains(lead.Details, "tracking") {
		t.Errorf("Details not sanitized: %q", lead.Details)
	}
}

func TestVisibleText(t *testing.T) {
	doc := mustParse(t, `<html><body><p>one</p><span style="visibility: hidden">two</span><p> three </p></body></html>`)
	got := VisibleText(doc)
	if got != "one three" {
		t.Errorf("VisibleText = %q, want %q", got, "one three")
	}
}

func TestExtractPhoneTextFallback(t *testing.T) {
	// No phone button in the panel; the number only appears as plain text.
	e := New(Chains{}, false)
	html := `<html><body><div role="main">
<h1 class="DUwDvf">No Button Bar</h1>
<div>Phone: (212) 555-0134</div>
</div></body></html>`
	lead := e.Extract(html, "")
	if lead.Phone != "(212) 555-0134" {
		t.Errorf("Phone = %q, want the text fallback match", lead.Phone)
	}
	if lead.WhatsApp == "" {
		t.Error("WhatsApp not derived from fallback phone")
	}
}

func TestFindPhone(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Call us: 055 123 4567 today", "055 123 4567"},
		{"+39 055 123 456 is the line", "+39 055 123 456"},
		{"(212) 555-0134", "(212) 555-0134"},
		{"opening hours 09:00 - 18:00", ""},
		{"no numbers here", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := FindPhone(c.in); got != c.want {
			t.Errorf("FindPhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFindEmail(t *testing.T) {
	cases := []struct{ in, want string }{
		{"mail us at x.y+tag@sub.example.co today", "x.y+tag@sub.example.co"},
		{"no email here", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := FindEmail(c.in); got != c.want {
			t.Errorf("FindEmail(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var hiddenStylePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)display\s*:\s*none`),
	regexp.MustCompile(`(?i)visibility\s*:\s*hidden`),
	regexp.MustCompile(`(?i)font-size\s*:\s*0[^1-9]`),
	regexp.MustCompile(`(?i)opacity\s*:\s*0[^.]`),
}

func hasHiddenStyle(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == "style" {
			for _, pat := range hiddenStylePatterns {
				if pat.MatchString(a.Val) {
					return true
				}
			}
		}
	}
	return false
}

// VisibleText collects the rendered text of a parsed document, skipping
// script/style subtrees and elements hidden via inline styles. Text nodes
// are joined with single spaces.
func VisibleText(root *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
			if hasHiddenStyle(n) {
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return b.String()
}

var emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// FindEmail returns the first email address in text, or "".
func FindEmail(text string) string {
	return emailRe.FindString(text)
}

var phoneRes = []*regexp.Regexp{
	regexp.MustCompile(`\+?[\d\s\-()]{10,}`),
	regexp.MustCompile(`\d{3}[\s\-]?\d{3}[\s\-]?\d{4}`),
	regexp.MustCompile(`\(\d{3}\)\s?\d{3}[\s\-]?\d{4}`),
}

// FindPhone returns the first phone-number-shaped run in text, or "".
// A match must contain enough digits to be a dialable number.
func FindPhone(text string) string {
	for _, re := range phoneRes {
		for _, m := range re.FindAllString(text, -1) {
			m = strings.Trim(m, " -")
			n := 0
			for _, r := range m {
				if r >= '0' && r <= '9' {
					n++
				}
			}
			if n >= 9 {
				return m
			}
		}
	}
	return ""
}

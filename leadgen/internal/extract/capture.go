package extract

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
)

// markdownCapture renders a detail panel's HTML as markdown for storage
// alongside the structured fields. The HTML is sanitized first so captured
// payloads carry no scripts or event handlers.
type markdownCapture struct {
	policy    *bluemonday.Policy
	converter *converter.Converter
}

func newMarkdownCapture() *markdownCapture {
	return &markdownCapture{
		policy: bluemonday.UGCPolicy(),
		converter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// render converts html to markdown. If conversion fails or produces empty
// output it falls back to the sanitized plain text.
func (m *markdownCapture) render(html, sourceURL string) string {
	if html == "" {
		return ""
	}
	clean := m.policy.Sanitize(html)
	result, err := m.converter.ConvertString(clean, converter.WithDomain(sourceURL))
	if err != nil || strings.TrimSpace(result) == "" {
		return strings.TrimSpace(m.policy.Sanitize(stripTags(clean)))
	}
	return strings.TrimSpace(result)
}

func stripTags(s string) string {
	return bluemonday.StrictPolicy().Sanitize(s)
}

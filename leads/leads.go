// Package leads holds the business lead record produced by a search run and
// the pure post-processing that operates on batches of them: deduplication,
// predicate filtering and CSV export. Nothing in this package touches a
// browser or a database.
package leads

import (
	"regexp"
	"strings"
)

// Lead is one extracted business listing. All fields are plain strings as
// read from the page; Rating and Reviews keep their display form so locale
// variants ("4,5") survive round-trips through storage.
type Lead struct {
	Name        string `json:"name"`
	Address     string `json:"address,omitempty"`
	Phone       string `json:"phone,omitempty"`
	WhatsApp    string `json:"whatsapp,omitempty"`
	Website     string `json:"website,omitempty"`
	Email       string `json:"email,omitempty"`
	MapsLink    string `json:"maps_link,omitempty"`
	Rating      string `json:"rating,omitempty"`
	Reviews     string `json:"reviews,omitempty"`
	SearchQuery string `json:"search_query,omitempty"`
	Details     string `json:"details,omitempty"`
}

var nonPhoneRunes = regexp.MustCompile(`[^\d+]`)

// WhatsAppLink builds a wa.me deep link from a display phone number,
// stripping everything except digits and '+'. Empty input yields "".
func WhatsAppLink(phone string) string {
	clean := nonPhoneRunes.ReplaceAllString(phone, "")
	if clean == "" {
		return ""
	}
	return "https://wa.me/" + clean
}

// Dedup removes duplicate leads, keeping the first occurrence. Two leads are
// duplicates when both their normalized names and normalized addresses match
// (lowercased, whitespace-trimmed). Leads whose normalized name is empty are
// dropped entirely.
func Dedup(in []Lead) []Lead {
	type key struct{ name, addr string }
	seen := make(map[key]bool, len(in))
	out := make([]Lead, 0, len(in))
	for _, l := range in {
		k := key{
			name: strings.ToLower(strings.TrimSpace(l.Name)),
			addr: strings.ToLower(strings.TrimSpace(l.Address)),
		}
		if k.name == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, l)
	}
	return out
}

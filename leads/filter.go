package leads

import (
	"strconv"
	"strings"
)

// Filter selects leads by field presence and rating. Nil pointer fields mean
// "no constraint"; a non-nil false requires the field to be absent.
type Filter struct {
	HasPhone    *bool    `json:"has_phone,omitempty"`
	HasWebsite  *bool    `json:"has_website,omitempty"`
	HasEmail    *bool    `json:"has_email,omitempty"`
	HasWhatsApp *bool    `json:"has_whatsapp,omitempty"`
	MinRating   *float64 `json:"min_rating,omitempty"`
}

// Bool returns a pointer suitable for Filter fields.
func Bool(v bool) *bool { return &v }

// Float returns a pointer suitable for Filter fields.
func Float(v float64) *float64 { return &v }

// Apply returns the leads matching every set constraint, preserving order.
func (f Filter) Apply(in []Lead) []Lead {
	out := make([]Lead, 0, len(in))
	for _, l := range in {
		if f.matches(l) {
			out = append(out, l)
		}
	}
	return out
}

func (f Filter) matches(l Lead) bool {
	if f.HasPhone != nil && *f.HasPhone != (l.Phone != "") {
		return false
	}
	if f.HasWebsite != nil && *f.HasWebsite != (l.Website != "") {
		return false
	}
	if f.HasEmail != nil && *f.HasEmail != (l.Email != "") {
		return false
	}
	if f.HasWhatsApp != nil && *f.HasWhatsApp != (l.WhatsApp != "") {
		return false
	}
	if f.MinRating != nil && ParseRating(l.Rating) < *f.MinRating {
		return false
	}
	return true
}

// ParseRating converts a display rating to a float, accepting a decimal comma
// ("4,5"). Unparseable or empty values count as 0.
func ParseRating(s string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}

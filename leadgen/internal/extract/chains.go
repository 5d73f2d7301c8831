package extract

// Chains holds the ordered CSS selector fallbacks for each field of a
// business detail panel. The page's class names churn with frontend
// releases, so every field tries several selectors in order and takes the
// first that yields a value.
type Chains struct {
	Name    []string `yaml:"name"`
	Address []string `yaml:"address"`
	Phone   []string `yaml:"phone"`
	Website []string `yaml:"website"`
	Rating  string   `yaml:"rating"`
	Reviews string   `yaml:"reviews"`
	Detail  string   `yaml:"detail"`
}

// DefaultChains returns the selector set known to work against the current
// Google Maps markup.
func DefaultChains() Chains {
	return Chains{
		Name: []string{
			"h1.DUwDvf",
			"h1.fontHeadlineLarge",
			"div.lMbq3e h1",
			"h1",
		},
		Address: []string{
			"button[data-item-id='address'] div.fontBodyMedium",
			"button[data-item-id='address']",
			"button[data-tooltip='Copy address'] div.fontBodyMedium",
			"div[data-item-id='address']",
		},
		Phone: []string{
			"button[data-item-id^='phone:tel'] div.fontBodyMedium",
			"button[data-item-id^='phone'] div.fontBodyMedium",
			"button[data-tooltip='Copy phone number'] div.fontBodyMedium",
			"a[data-item-id^='phone']",
		},
		Website: []string{
			"a[data-item-id='authority']",
			"a[data-tooltip='Open website']",
			"a[aria-label*='website']",
		},
		Rating:  "div.F7nice span[aria-hidden='true']",
		Reviews: "div.F7nice span[aria-label*='review']",
		Detail:  "div[role='main']",
	}
}

// ApplyDefaults fills any unset selector with the defaults.
func (c *Chains) ApplyDefaults() {
	d := DefaultChains()
	if len(c.Name) == 0 {
		c.Name = d.Name
	}
	if len(c.Address) == 0 {
		c.Address = d.Address
	}
	if len(c.Phone) == 0 {
		c.Phone = d.Phone
	}
	if len(c.Website) == 0 {
		c.Website = d.Website
	}
	if c.Rating == "" {
		c.Rating = d.Rating
	}
	if c.Reviews == "" {
		c.Reviews = d.Reviews
	}
	if c.Detail == "" {
		c.Detail = d.Detail
	}
}

package leadgen

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mapforge/mapleads/leadgen/internal/extract"
)

// Config holds all scraper configuration.
type Config struct {
	BaseURL        string         `yaml:"base_url"`
	MaxResults     int            `yaml:"max_results"`
	StallCap       int            `yaml:"stall_cap"`
	CardInterval   time.Duration  `yaml:"card_interval"`
	CaptureDetails bool           `yaml:"capture_details"`
	Browser        BrowserConfig  `yaml:"browser"`
	Selectors      Selectors      `yaml:"selectors"`
	Chains         extract.Chains `yaml:"chains"`
	Waits          Waits          `yaml:"waits"`
}

// BrowserConfig controls the headless Chrome instance.
type BrowserConfig struct {
	Headless     bool     `yaml:"headless"`
	UserAgent    string   `yaml:"user_agent"`
	WindowWidth  int      `yaml:"window_width"`
	WindowHeight int      `yaml:"window_height"`
	BlockedTypes []string `yaml:"blocked_types"`
}

// Selectors locates the structural parts of the results page. Each list is
// tried in order, newest known markup first.
type Selectors struct {
	Container    []string `yaml:"container"`
	Card         string   `yaml:"card"`
	CardLink     string   `yaml:"card_link"`
	BackButton   string   `yaml:"back_button"`
	ConsentWords []string `yaml:"consent_words"`
}

// Waits bounds the polling loops. Every wait is a deadline on a condition,
// not a fixed sleep; loops exit as soon as the condition holds.
type Waits struct {
	PageSettle   time.Duration `yaml:"page_settle"`
	Container    time.Duration `yaml:"container"`
	ScrollGrowth time.Duration `yaml:"scroll_growth"`
	DetailPanel  time.Duration `yaml:"detail_panel"`
	BackNav      time.Duration `yaml:"back_nav"`
	Poll         time.Duration `yaml:"poll"`
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://www.google.com/maps/search/"
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 20
	}
	if c.StallCap <= 0 {
		c.StallCap = 20
	}
	if c.CardInterval <= 0 {
		c.CardInterval = 500 * time.Millisecond
	}
	if c.Browser.UserAgent == "" {
		c.Browser.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	if c.Browser.WindowWidth <= 0 {
		c.Browser.WindowWidth = 1920
	}
	if c.Browser.WindowHeight <= 0 {
		c.Browser.WindowHeight = 1080
	}
	if len(c.Selectors.Container) == 0 {
		c.Selectors.Container = []string{
			"div[role='feed']",
			"div.m6QErb.DxyBCb.kA9KIf.dS8AEf",
			"div.m6QErb",
		}
	}
	if c.Selectors.Card == "" {
		c.Selectors.Card = "div.Nv2PK"
	}
	if c.Selectors.CardLink == "" {
		c.Selectors.CardLink = "a.hfpxzc"
	}
	if c.Selectors.BackButton == "" {
		c.Selectors.BackButton = "button[aria-label='Back']"
	}
	if len(c.Selectors.ConsentWords) == 0 {
		c.Selectors.ConsentWords = []string{"accept all", "i agree", "accept", "agree"}
	}
	if c.Waits.PageSettle <= 0 {
		c.Waits.PageSettle = 4 * time.Second
	}
	if c.Waits.Container <= 0 {
		c.Waits.Container = 10 * time.Second
	}
	if c.Waits.ScrollGrowth <= 0 {
		c.Waits.ScrollGrowth = 1500 * time.Millisecond
	}
	if c.Waits.DetailPanel <= 0 {
		c.Waits.DetailPanel = 5 * time.Second
	}
	if c.Waits.BackNav <= 0 {
		c.Waits.BackNav = 3 * time.Second
	}
	if c.Waits.Poll <= 0 {
		c.Waits.Poll = 100 * time.Millisecond
	}
	c.Chains.ApplyDefaults()
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// clampResults bounds a requested result count to the accepted range.
// Zero picks the configured default.
func (c *Config) clampResults(n int) int {
	if n <= 0 {
		n = c.MaxResults
	}
	if n < 10 {
		n = 10
	}
	if n > 100 {
		n = 100
	}
	return n
}

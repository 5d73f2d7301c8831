package leadgen

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// testConfig returns a Config with waits short enough for unit tests.
func testConfig() *Config {
	cfg := &Config{
		StallCap:     3,
		CardInterval: time.Millisecond,
		Waits: Waits{
			PageSettle:   5 * time.Millisecond,
			Container:    30 * time.Millisecond,
			ScrollGrowth: 10 * time.Millisecond,
			DetailPanel:  10 * time.Millisecond,
			BackNav:      20 * time.Millisecond,
			Poll:         time.Millisecond,
		},
	}
	return cfg
}

type fakeCard struct {
	name string // aria-label on the card link
	html string // detail panel html served when this card is open
}

func detailHTML(name, address, phone string) string {
	return fmt.Sprintf(`<html><body><div role="main">
<h1 class="DUwDvf">%s</h1>
<button data-item-id="address"><div class="fontBodyMedium">%s</div></button>
<button data-item-id="phone:tel"><div class="fontBodyMedium">%s</div></button>
</div></body></html>`, name, address, phone)
}

// fakeSession scripts a result feed: a fixed card list, a growth schedule
// for the virtualized scrolling, and optional per-card failures.
type fakeSession struct {
	mu sync.Mutex

	cards     []fakeCard
	growth    []int // visible card count after the n-th scroll; last sticks
	container bool  // results container present

	htmlErrFor     map[string]int // card name -> remaining HTML read failures
	dropAfterReads int            // feed vanishes after this many detail reads; 0 = never
	dropOnHTMLErr  bool           // feed vanishes together with an HTML read failure

	reads    int
	scrolls  int
	navs     []string
	detail   int // open card index, -1 = results view
	closed   bool
	consents int
}

func newFakeSession(cards []fakeCard, growth []int) *fakeSession {
	return &fakeSession{cards: cards, growth: growth, container: true, detail: -1}
}

func (f *fakeSession) visible() int {
	n := len(f.cards)
	if len(f.growth) > 0 {
		idx := f.scrolls
		if idx >= len(f.growth) {
			idx = len(f.growth) - 1
		}
		if f.growth[idx] < n {
			n = f.growth[idx]
		}
	}
	return n
}

func (f *fakeSession) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navs = append(f.navs, url)
	f.detail = -1
	return nil
}

func (f *fakeSession) URL(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detail >= 0 {
		return "https://www.google.com/maps/place/" + strings.ReplaceAll(f.cards[f.detail].name, " ", "+"), nil
	}
	return "https://www.google.com/maps/search/results", nil
}

func (f *fakeSession) First(ctx context.Context, selectors ...string) (Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sel := range selectors {
		switch {
		case strings.Contains(sel, "role='feed'") || strings.HasPrefix(sel, "div.m6QErb"):
			if f.container && f.detail == -1 {
				return &fakeContainer{s: f}, nil
			}
		case strings.Contains(sel, "aria-label='Back'"):
			if f.detail >= 0 {
				return &fakeBackButton{s: f}, nil
			}
		case strings.HasPrefix(sel, "h1"), strings.HasPrefix(sel, "div.lMbq3e"):
			if f.detail >= 0 {
				return &fakeStatic{}, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (f *fakeSession) All(ctx context.Context, selector string) ([]Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detail != -1 || !f.container {
		return nil, nil
	}
	out := make([]Element, f.visible())
	for i := range out {
		out[i] = &fakeCardEl{s: f, idx: i}
	}
	return out, nil
}

func (f *fakeSession) ClickButtonWithText(ctx context.Context, words []string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consents++
	return false, nil
}

func (f *fakeSession) HTML(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detail < 0 {
		return "<html><body>results</body></html>", nil
	}
	name := f.cards[f.detail].name
	if f.htmlErrFor[name] > 0 {
		f.htmlErrFor[name]--
		if f.dropOnHTMLErr {
			f.container = false
		}
		return "", fmt.Errorf("fake: html read failed")
	}
	f.reads++
	if f.dropAfterReads > 0 && f.reads >= f.dropAfterReads {
		f.container = false
	}
	return f.cards[f.detail].html, nil
}

func (f *fakeSession) Back(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detail = -1
	return nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeContainer struct{ s *fakeSession }

func (c *fakeContainer) Text(context.Context) (string, error)              { return "", nil }
func (c *fakeContainer) Attribute(context.Context, string) (string, error) { return "", nil }
func (c *fakeContainer) First(ctx context.Context, selectors ...string) (Element, error) {
	return nil, ErrNotFound
}
func (c *fakeContainer) ScrollIntoView(context.Context) error { return nil }
func (c *fakeContainer) ScrollToBottom(context.Context) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.scrolls++
	return nil
}
func (c *fakeContainer) Click(context.Context) error { return nil }

type fakeCardEl struct {
	s   *fakeSession
	idx int
}

func (c *fakeCardEl) Text(context.Context) (string, error)              { return "", nil }
func (c *fakeCardEl) Attribute(context.Context, string) (string, error) { return "", nil }
func (c *fakeCardEl) First(ctx context.Context, selectors ...string) (Element, error) {
	for _, sel := range selectors {
		if strings.HasPrefix(sel, "a.") {
			return &fakeLink{s: c.s, idx: c.idx}, nil
		}
	}
	return nil, ErrNotFound
}
func (c *fakeCardEl) ScrollIntoView(context.Context) error { return nil }
func (c *fakeCardEl) ScrollToBottom(context.Context) error { return nil }
func (c *fakeCardEl) Click(context.Context) error          { return nil }

type fakeLink struct {
	s   *fakeSession
	idx int
}

func (l *fakeLink) Text(context.Context) (string, error) { return "", nil }
func (l *fakeLink) Attribute(ctx context.Context, name string) (string, error) {
	if name == "aria-label" {
		l.s.mu.Lock()
		defer l.s.mu.Unlock()
		return l.s.cards[l.idx].name, nil
	}
	return "", nil
}
func (l *fakeLink) First(ctx context.Context, selectors ...string) (Element, error) {
	return nil, ErrNotFound
}
func (l *fakeLink) ScrollIntoView(context.Context) error { return nil }
func (l *fakeLink) ScrollToBottom(context.Context) error { return nil }
func (l *fakeLink) Click(ctx context.Context) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	l.s.detail = l.idx
	return nil
}

type fakeBackButton struct{ s *fakeSession }

func (b *fakeBackButton) Text(context.Context) (string, error)              { return "Back", nil }
func (b *fakeBackButton) Attribute(context.Context, string) (string, error) { return "", nil }
func (b *fakeBackButton) First(ctx context.Context, selectors ...string) (Element, error) {
	return nil, ErrNotFound
}
func (b *fakeBackButton) ScrollIntoView(context.Context) error { return nil }
func (b *fakeBackButton) ScrollToBottom(context.Context) error { return nil }
func (b *fakeBackButton) Click(ctx context.Context) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	b.s.detail = -1
	return nil
}

// fakeStatic is a plain element with no behaviour, used for detail-panel
// presence checks.
type fakeStatic struct{}

func (fakeStatic) Text(context.Context) (string, error)              { return "", nil }
func (fakeStatic) Attribute(context.Context, string) (string, error) { return "", nil }
func (fakeStatic) First(ctx context.Context, selectors ...string) (Element, error) {
	return nil, ErrNotFound
}
func (fakeStatic) ScrollIntoView(context.Context) error { return nil }
func (fakeStatic) ScrollToBottom(context.Context) error { return nil }
func (fakeStatic) Click(context.Context) error          { return nil }

// fakeBrowser hands out pre-built sessions in order.
type fakeBrowser struct {
	mu       sync.Mutex
	sessions []*fakeSession
	next     int
	err      error
}

func (b *fakeBrowser) NewSession(ctx context.Context) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	if b.next >= len(b.sessions) {
		return nil, fmt.Errorf("fake: no more sessions scripted")
	}
	s := b.sessions[b.next]
	b.next++
	return s, nil
}

func (b *fakeBrowser) Close() error { return nil }

// progressRecorder captures Report calls for assertions.
type progressRecorder struct {
	mu      sync.Mutex
	percent []int
	message []string
}

func (r *progressRecorder) Report(percent int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.percent = append(r.percent, percent)
	r.message = append(r.message, message)
}

func (r *progressRecorder) last() (int, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.percent) == 0 {
		return -1, ""
	}
	return r.percent[len(r.percent)-1], r.message[len(r.message)-1]
}

func (r *progressRecorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.message...)
}

package leadgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mapforge/mapleads/leads"
)

// Query is one search: a business keyword scoped to a city and country.
type Query struct {
	Keyword string `json:"keyword" yaml:"keyword"`
	City    string `json:"city" yaml:"city"`
	Country string `json:"country" yaml:"country"`
}

// ErrInvalidQuery is returned when a query is missing a field.
var ErrInvalidQuery = errors.New("leadgen: keyword, city and country are required")

// Validate checks that every field is non-blank.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Keyword) == "" ||
		strings.TrimSpace(q.City) == "" ||
		strings.TrimSpace(q.Country) == "" {
		return ErrInvalidQuery
	}
	return nil
}

// String renders the query as typed into the search box.
func (q Query) String() string {
	return fmt.Sprintf("%s in %s, %s", q.Keyword, q.City, q.Country)
}

// SearchURL builds the maps search URL for the query.
func (q Query) SearchURL(base string) string {
	return base + strings.ReplaceAll(q.String(), " ", "+")
}

// card-loop control errors. skip moves to the next card; noMoreCards ends
// the loop because the feed shrank under us.
var (
	errSkipCard    = errors.New("leadgen: skip card")
	errNoMoreCards = errors.New("leadgen: no more cards")
)

// Run performs one search and returns the extracted leads. maxResults
// outside [10,100] is clamped; 0 picks the configured default. p may be nil.
// Returns ErrBusy when another search is in flight.
func (s *Service) Run(ctx context.Context, q Query, maxResults int, p Progress) ([]leads.Lead, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if !s.tryAcquire() {
		return nil, ErrBusy
	}
	defer s.release()
	return s.runOne(ctx, q, maxResults, p)
}

func (s *Service) runOne(ctx context.Context, q Query, maxResults int, p Progress) ([]leads.Lead, error) {
	p = orNop(p)
	maxResults = s.cfg.clampResults(maxResults)
	start := time.Now()
	log := s.logger.With("run_id", s.newID(), "query", q.String())

	p.Report(0, "Starting browser...")
	sess, err := s.browser.NewSession(ctx)
	if err != nil {
		p.Report(0, "Error: "+err.Error())
		return nil, fmt.Errorf("leadgen: new session: %w", err)
	}
	defer sess.Close()

	out, err := s.scrape(ctx, sess, q, maxResults, p, log)
	if err != nil {
		p.Report(0, "Error: "+err.Error())
		log.Error("search failed", "err", err, "elapsed", time.Since(start))
		return out, err
	}
	log.Info("search finished", "leads", len(out), "elapsed", time.Since(start))
	return out, nil
}

func (s *Service) scrape(ctx context.Context, sess Session, q Query, maxResults int, p Progress, log *slog.Logger) ([]leads.Lead, error) {
	target := q.SearchURL(s.cfg.BaseURL)
	if err := sess.Navigate(ctx, target); err != nil {
		return nil, fmt.Errorf("leadgen: navigate: %w", err)
	}
	if err := sleep(ctx, s.cfg.Waits.PageSettle); err != nil {
		return nil, err
	}
	p.Report(5, "Loading search results...")

	if clicked, err := sess.ClickButtonWithText(ctx, s.cfg.Selectors.ConsentWords); err == nil && clicked {
		log.Debug("consent banner dismissed")
	}

	container, err := s.waitFirst(ctx, sess, s.cfg.Waits.Container, s.cfg.Selectors.Container...)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		p.Report(0, "Could not find results container. Try different search terms.")
		return []leads.Lead{}, nil
	}

	p.Report(10, "Scrolling to load more results...")
	if err := s.scrollResults(ctx, sess, container, maxResults, p); err != nil {
		return nil, err
	}

	p.Report(40, "Extracting business details...")
	cards, err := sess.All(ctx, s.cfg.Selectors.Card)
	if err != nil {
		return nil, fmt.Errorf("leadgen: list cards: %w", err)
	}
	total := min(len(cards), maxResults)
	if total == 0 {
		p.Report(0, "No businesses found. Try different search terms.")
		return []leads.Lead{}, nil
	}

	out := make([]leads.Lead, 0, total)
	processed := make(map[string]bool)

	for idx := 0; idx < total; idx++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		p.Report(40+idx*55/total, fmt.Sprintf("Extracting lead %d of %d...", idx+1, total))

		lead, err := s.extractCard(ctx, sess, idx, processed)
		if err != nil {
			if errors.Is(err, errNoMoreCards) {
				break
			}
			if errors.Is(err, errSkipCard) {
				continue
			}
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			log.Warn("card extraction failed, reloading results", "card", idx, "err", err)
			if rerr := s.reload(ctx, sess, target); rerr != nil {
				if ctx.Err() != nil {
					return out, ctx.Err()
				}
				log.Warn("results feed lost, keeping partial results", "card", idx, "err", rerr)
				break
			}
			continue
		}

		processed[lead.Name] = true
		out = append(out, lead)

		if err := s.backToResults(ctx, sess, target); err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			log.Warn("results feed lost, keeping partial results", "card", idx, "err", err)
			break
		}
	}

	p.Report(100, fmt.Sprintf("Completed! Found %d leads.", len(out)))
	return out, nil
}

// extractCard opens the idx-th result card and extracts its detail panel.
func (s *Service) extractCard(ctx context.Context, sess Session, idx int, processed map[string]bool) (leads.Lead, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return leads.Lead{}, err
	}

	// The feed re-renders as the page mutates, so stale handles are useless:
	// re-query the cards every iteration.
	cards, err := sess.All(ctx, s.cfg.Selectors.Card)
	if err != nil {
		return leads.Lead{}, fmt.Errorf("leadgen: list cards: %w", err)
	}
	if idx >= len(cards) {
		return leads.Lead{}, errNoMoreCards
	}
	card := cards[idx]

	link, err := card.First(ctx, s.cfg.Selectors.CardLink)
	if err != nil {
		return leads.Lead{}, errSkipCard
	}
	cardName, _ := link.Attribute(ctx, "aria-label")
	if cardName != "" && processed[cardName] {
		return leads.Lead{}, errSkipCard
	}

	if err := card.ScrollIntoView(ctx); err != nil {
		return leads.Lead{}, errSkipCard
	}
	if err := link.Click(ctx); err != nil {
		return leads.Lead{}, errSkipCard
	}
	if _, err := s.waitFirst(ctx, sess, s.cfg.Waits.DetailPanel, s.cfg.Chains.Name...); err != nil && !errors.Is(err, ErrNotFound) {
		return leads.Lead{}, err
	}

	html, err := sess.HTML(ctx)
	if err != nil {
		return leads.Lead{}, fmt.Errorf("leadgen: read page: %w", err)
	}
	pageURL, _ := sess.URL(ctx)

	lead := s.ex.Extract(html, pageURL)
	if lead.Name == "" {
		lead.Name = cardName
	}
	if lead.Name == "" {
		return leads.Lead{}, errSkipCard
	}
	return lead, nil
}

// backToResults returns from a detail panel to the result feed, preferring
// the in-page back button, then history navigation, then a full reload.
func (s *Service) backToResults(ctx context.Context, sess Session, target string) error {
	if btn, err := sess.First(ctx, s.cfg.Selectors.BackButton); err == nil {
		if err := btn.Click(ctx); err == nil {
			if _, err := s.waitFirst(ctx, sess, s.cfg.Waits.BackNav, s.cfg.Selectors.Container...); err == nil {
				return nil
			}
		}
	} else if err := sess.Back(ctx); err == nil {
		if _, err := s.waitFirst(ctx, sess, s.cfg.Waits.BackNav, s.cfg.Selectors.Container...); err == nil {
			return nil
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return s.reload(ctx, sess, target)
}

// reload re-navigates to the search URL and waits for the result feed.
func (s *Service) reload(ctx context.Context, sess Session, target string) error {
	if err := sess.Navigate(ctx, target); err != nil {
		return fmt.Errorf("leadgen: reload results: %w", err)
	}
	if _, err := s.waitFirst(ctx, sess, s.cfg.Waits.Container, s.cfg.Selectors.Container...); err != nil {
		return fmt.Errorf("leadgen: results container missing after reload: %w", err)
	}
	return nil
}

// waitFirst polls First until a selector matches or the deadline passes.
func (s *Service) waitFirst(ctx context.Context, sess Session, d time.Duration, selectors ...string) (Element, error) {
	deadline := time.Now().Add(d)
	for {
		el, err := sess.First(ctx, selectors...)
		if err == nil {
			return el, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, ErrNotFound
		}
		if err := sleep(ctx, s.cfg.Waits.Poll); err != nil {
			return nil, err
		}
	}
}

package leadgen

import (
	"context"
	"fmt"
	"time"
)

// scrollResults drives the virtualized result feed until it holds target
// cards or the feed stops growing. Each pass scrolls the container to its
// bottom, then waits (bounded) for the card count to grow. StallCap
// consecutive passes without growth means the feed is exhausted.
func (s *Service) scrollResults(ctx context.Context, sess Session, container Element, target int, p Progress) error {
	stalls := 0
	last := 0
	for stalls < s.cfg.StallCap {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := container.ScrollToBottom(ctx); err != nil {
			return fmt.Errorf("leadgen: scroll results: %w", err)
		}

		count, err := s.waitCardGrowth(ctx, sess, last)
		if err != nil {
			return err
		}
		if count >= target {
			break
		}
		if count == last {
			stalls++
		} else {
			stalls = 0
			last = count
		}

		pct := 10 + stalls*2
		if pct > 35 {
			pct = 35
		}
		p.Report(pct, fmt.Sprintf("Loading results... Found %d businesses", count))
	}
	return nil
}

// waitCardGrowth polls the card count until it exceeds last or the growth
// window expires, returning the latest count either way.
func (s *Service) waitCardGrowth(ctx context.Context, sess Session, last int) (int, error) {
	deadline := time.Now().Add(s.cfg.Waits.ScrollGrowth)
	for {
		cards, err := sess.All(ctx, s.cfg.Selectors.Card)
		if err != nil {
			return 0, fmt.Errorf("leadgen: count cards: %w", err)
		}
		if len(cards) > last || time.Now().After(deadline) {
			return len(cards), nil
		}
		if err := sleep(ctx, s.cfg.Waits.Poll); err != nil {
			return 0, err
		}
	}
}

package leadgen

import (
	"context"
	"errors"
	"fmt"

	"github.com/mapforge/mapleads/leads"
)

// ErrNoQueries is returned by RunBulk when the query list is empty.
var ErrNoQueries = errors.New("leadgen: no queries")

// RunBulk runs the queries sequentially and returns every lead found,
// tagged with its originating query. A failing search is logged and
// skipped; it never aborts the remaining ones. Progress is rescaled so the
// whole bulk run spans 0-100.
func (s *Service) RunBulk(ctx context.Context, queries []Query, maxResults int, p Progress) ([]leads.Lead, error) {
	if len(queries) == 0 {
		return nil, ErrNoQueries
	}
	if !s.tryAcquire() {
		return nil, ErrBusy
	}
	defer s.release()
	p = orNop(p)

	var all []leads.Lead
	total := len(queries)
	for idx, q := range queries {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		sub := subProgress(p, idx, total)

		if err := q.Validate(); err != nil {
			sub.Report(0, "Error: "+err.Error())
			continue
		}
		batch, err := s.runOne(ctx, q, maxResults, sub)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			s.logger.Warn("bulk search failed", "query", q.String(), "err", err)
			p.Report(idx*100/total, fmt.Sprintf("Error in search %d: %v", idx+1, err))
			continue
		}

		tag := q.String()
		for i := range batch {
			batch[i].SearchQuery = tag
		}
		all = append(all, batch...)
	}

	p.Report(100, fmt.Sprintf("Bulk search completed! Found %d total leads.", len(all)))
	return all, nil
}

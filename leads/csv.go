package leads

import (
	"encoding/csv"
	"fmt"
	"io"
)

// csvColumns are the export columns in order. SearchQuery is appended only
// when at least one lead carries it, so single-search exports keep the
// narrow layout.
var csvColumns = []string{
	"Business Name", "Address", "Phone", "WhatsApp Link",
	"Website", "Email", "Google Maps Link", "Rating", "Reviews",
}

// Table renders the leads as rows under a header row, using the same columns
// and conditional Search Query handling as the CSV export.
func Table(in []Lead) [][]string {
	withQuery := false
	for _, l := range in {
		if l.SearchQuery != "" {
			withQuery = true
			break
		}
	}

	header := csvColumns
	if withQuery {
		header = append(append([]string{}, csvColumns...), "Search Query")
	}

	rows := make([][]string, 0, len(in)+1)
	rows = append(rows, header)
	for _, l := range in {
		row := []string{
			l.Name, l.Address, l.Phone, l.WhatsApp,
			l.Website, l.Email, l.MapsLink, l.Rating, l.Reviews,
		}
		if withQuery {
			row = append(row, l.SearchQuery)
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteCSV writes the leads as CSV with a header row. An empty slice writes
// just the header.
func WriteCSV(w io.Writer, in []Lead) error {
	cw := csv.NewWriter(w)
	for _, row := range Table(in) {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("leads: write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("leads: flush csv: %w", err)
	}
	return nil
}

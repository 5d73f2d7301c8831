package leadgen

import "fmt"

// Progress receives percent/message updates during a run. Implementations
// must not block; slow consumers should buffer or drop.
type Progress interface {
	Report(percent int, message string)
}

// ProgressFunc adapts a function to the Progress interface.
type ProgressFunc func(percent int, message string)

func (f ProgressFunc) Report(percent int, message string) { f(percent, message) }

type nopProgress struct{}

func (nopProgress) Report(int, string) {}

func orNop(p Progress) Progress {
	if p == nil {
		return nopProgress{}
	}
	return p
}

// subProgress rescales one search's 0-100 progress into its slice of a bulk
// run and prefixes messages with the search position.
func subProgress(p Progress, idx, total int) Progress {
	label := fmt.Sprintf("[Search %d/%d] ", idx+1, total)
	return ProgressFunc(func(percent int, message string) {
		overall := idx*100/total + percent/total
		p.Report(overall, label+message)
	})
}

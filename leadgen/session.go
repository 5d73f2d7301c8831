package leadgen

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Session.First and Element.First when no
// selector matches.
var ErrNotFound = errors.New("leadgen: element not found")

// ErrBusy is returned by Run and RunBulk when a search is already in
// progress. Runs hold a live browser, so the service admits one at a time.
var ErrBusy = errors.New("leadgen: a search is already running")

// Browser creates sessions. The production implementation drives headless
// Chrome; tests substitute scripted fakes.
type Browser interface {
	NewSession(ctx context.Context) (Session, error)
	Close() error
}

// Session is one live page. Lookup methods return the current state of the
// DOM without waiting; callers that need an element to appear poll with a
// deadline.
type Session interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// URL returns the current page URL.
	URL(ctx context.Context) (string, error)
	// First tries each selector in order and returns the first match.
	// Returns ErrNotFound when none match.
	First(ctx context.Context, selectors ...string) (Element, error)
	// All returns every element matching selector, possibly empty.
	All(ctx context.Context, selector string) ([]Element, error)
	// ClickButtonWithText clicks the first button whose visible text
	// contains any of words (case-insensitive). Reports whether a click
	// happened.
	ClickButtonWithText(ctx context.Context, words []string) (bool, error)
	// HTML returns the full page HTML.
	HTML(ctx context.Context) (string, error)
	// Back navigates one step back in history.
	Back(ctx context.Context) error
	Close() error
}

// Element is a handle to one DOM node inside a Session.
type Element interface {
	Text(ctx context.Context) (string, error)
	// Attribute returns the attribute value, or "" when absent.
	Attribute(ctx context.Context, name string) (string, error)
	// First tries each selector in order within this element's subtree.
	First(ctx context.Context, selectors ...string) (Element, error)
	ScrollIntoView(ctx context.Context) error
	// ScrollToBottom sets the element's scrollTop to its scrollHeight.
	ScrollToBottom(ctx context.Context) error
	Click(ctx context.Context) error
}

package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/mapforge/mapleads/leadgen"
)

// session wraps a rod page as a leadgen.Session. Lookups use the
// NotFoundSleeper so absence is an immediate error, never a hang; waiting
// is the orchestrator's job.
type session struct {
	page   *rod.Page
	logger *slog.Logger
}

func (s *session) Navigate(ctx context.Context, url string) error {
	if err := s.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := s.page.Context(ctx).WaitLoad(); err != nil {
		s.logger.Warn("browser: wait load", "url", url, "error", err)
	}
	return nil
}

func (s *session) URL(ctx context.Context) (string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("browser: page info: %w", err)
	}
	return info.URL, nil
}

func (s *session) First(ctx context.Context, selectors ...string) (leadgen.Element, error) {
	p := s.page.Context(ctx).Sleeper(rod.NotFoundSleeper)
	for _, sel := range selectors {
		el, err := p.Element(sel)
		if err == nil {
			return &element{el: el}, nil
		}
	}
	return nil, leadgen.ErrNotFound
}

func (s *session) All(ctx context.Context, selector string) ([]leadgen.Element, error) {
	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: elements %s: %w", selector, err)
	}
	out := make([]leadgen.Element, len(els))
	for i, el := range els {
		out[i] = &element{el: el}
	}
	return out, nil
}

func (s *session) ClickButtonWithText(ctx context.Context, words []string) (bool, error) {
	buttons, err := s.page.Context(ctx).Elements("button")
	if err != nil {
		return false, fmt.Errorf("browser: list buttons: %w", err)
	}
	for _, btn := range buttons {
		text, err := btn.Context(ctx).Text()
		if err != nil {
			continue
		}
		lower := strings.ToLower(text)
		for _, w := range words {
			if strings.Contains(lower, w) {
				if err := btn.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
					return false, fmt.Errorf("browser: click button: %w", err)
				}
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *session) HTML(ctx context.Context) (string, error) {
	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("browser: page html: %w", err)
	}
	return html, nil
}

func (s *session) Back(ctx context.Context) error {
	if err := s.page.Context(ctx).NavigateBack(); err != nil {
		return fmt.Errorf("browser: navigate back: %w", err)
	}
	return nil
}

func (s *session) Close() error {
	return s.page.Close()
}

type element struct {
	el *rod.Element
}

func (e *element) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

func (e *element) First(ctx context.Context, selectors ...string) (leadgen.Element, error) {
	el := e.el.Context(ctx).Sleeper(rod.NotFoundSleeper)
	for _, sel := range selectors {
		child, err := el.Element(sel)
		if err == nil {
			return &element{el: child}, nil
		}
	}
	return nil, leadgen.ErrNotFound
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	return e.el.Context(ctx).ScrollIntoView()
}

func (e *element) ScrollToBottom(ctx context.Context) error {
	_, err := e.el.Context(ctx).Eval(`() => { this.scrollTop = this.scrollHeight }`)
	return err
}

func (e *element) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

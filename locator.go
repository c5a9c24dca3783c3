package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Strategy is how a Locator value is interpreted.
type Strategy string

const (
	ByID    Strategy = "id"
	ByName  Strategy = "name"
	ByCSS   Strategy = "css"
	ByXPath Strategy = "xpath"
)

// Readiness is the state an element must reach before we interact with it.
type Readiness int

const (
	Present Readiness = iota
	Clickable
)

func (r Readiness) String() string {
	if r == Clickable {
		return "clickable"
	}
	return "present"
}

var (
	ErrLocatorTimeout  = errors.New("locator timeout")
	ErrElementNotFound = errors.New("element not found")
)

type Locator struct {
	By    Strategy `yaml:"by"`
	Value string   `yaml:"value"`
}

func ID(v string) Locator    { return Locator{By: ByID, Value: v} }
func Name(v string) Locator  { return Locator{By: ByName, Value: v} }
func CSS(v string) Locator   { return Locator{By: ByCSS, Value: v} }
func XPath(v string) Locator { return Locator{By: ByXPath, Value: v} }

func (l Locator) String() string {
	return string(l.By) + "=" + l.Value
}

// CSS returns the locator as a CSS selector. XPath locators have no CSS form.
func (l Locator) CSS() (string, bool) {
	switch l.By {
	case ByID:
		return `[id="` + cssQuote(l.Value) + `"]`, true
	case ByName:
		return `[name="` + cssQuote(l.Value) + `"]`, true
	case ByCSS:
		return l.Value, true
	}
	return "", false
}

func (l Locator) Validate() error {
	if strings.TrimSpace(l.Value) == "" {
		return fmt.Errorf("locator %q has an empty value", l.By)
	}
	switch l.By {
	case ByID, ByName, ByCSS, ByXPath:
		return nil
	}
	return fmt.Errorf("unknown locator strategy %q", l.By)
}

func cssQuote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// Chain is an ordered list of locators: the primary first, then fallbacks.
type Chain []Locator

func (c Chain) Validate() error {
	if len(c) == 0 {
		return errors.New("empty locator chain")
	}
	for _, l := range c {
		if err := l.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// LocatorError reports a chain where every locator timed out.
type LocatorError struct {
	Op    string
	Tried []Locator
	Err   error
}

func (e *LocatorError) Error() string {
	tried := make([]string, len(e.Tried))
	for i, l := range e.Tried {
		tried[i] = l.String()
	}
	return fmt.Sprintf("%s: %v (tried %s)", e.Op, e.Err, strings.Join(tried, ", "))
}

func (e *LocatorError) Unwrap() error { return e.Err }

func IsLocatorTimeout(err error) bool {
	return errors.Is(err, ErrLocatorTimeout)
}

// waitFor resolves the first locator of chain that reaches state. Each
// locator gets its own bounded wait; the next one is only tried after the
// previous timed out.
func waitFor(ctx context.Context, s Session, op string, chain Chain, state Readiness, timeout time.Duration) (Element, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("%s: empty locator chain", op)
	}

	tried := make([]Locator, 0, len(chain))
	for _, loc := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		el, err := s.WaitElement(ctx, loc, state, timeout)
		if err == nil {
			return el, nil
		}
		if !IsLocatorTimeout(err) {
			return nil, fmt.Errorf("%s: %s: %w", op, loc, err)
		}
		tried = append(tried, loc)
	}

	return nil, &LocatorError{Op: op, Tried: tried, Err: ErrLocatorTimeout}
}

// clickFirst waits for the first clickable locator of chain and clicks it.
func clickFirst(ctx context.Context, s Session, op string, chain Chain, timeout time.Duration) error {
	el, err := waitFor(ctx, s, op, chain, Clickable, timeout)
	if err != nil {
		return err
	}
	if err := el.Click(); err != nil {
		return fmt.Errorf("%s: click: %w", op, err)
	}
	return nil
}

// fillFirst waits for the first present locator of chain, clears it and types text.
func fillFirst(ctx context.Context, s Session, op string, chain Chain, text string, timeout time.Duration) (Element, error) {
	el, err := waitFor(ctx, s, op, chain, Present, timeout)
	if err != nil {
		return nil, err
	}
	if err := fill(el, text); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return el, nil
}

func fill(el Element, text string) error {
	if err := el.Clear(); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if err := el.Type(text); err != nil {
		return fmt.Errorf("type: %w", err)
	}
	return nil
}

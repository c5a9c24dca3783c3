package main

import (
	"context"
	"time"
)

// Session is the live browser the page objects share. Tabs are ordered from
// oldest to most recently opened.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// WaitElement polls for loc until it reaches state or timeout elapses,
	// in which case the error wraps ErrLocatorTimeout.
	WaitElement(ctx context.Context, loc Locator, state Readiness, timeout time.Duration) (Element, error)
	// FindElement looks loc up once without waiting; ErrElementNotFound when absent.
	FindElement(ctx context.Context, loc Locator) (Element, error)

	Tabs(ctx context.Context) (int, error)
	SwitchTab(ctx context.Context, index int) error

	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookie(ctx context.Context, c Cookie) error

	Screenshot(ctx context.Context) ([]byte, error)
	HTML(ctx context.Context) (string, error)

	Alive() bool
	Close() error
}

type Element interface {
	Click() error
	Clear() error
	Type(text string) error
	PressEnter() error
	Text() (string, error)
}

// Cookie is the persisted form of a browser cookie. SameSite is read for
// compatibility but always stripped before write and before injection.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expiry   float64 `json:"expiry,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

func (c Cookie) withoutSameSite() Cookie {
	c.SameSite = ""
	return c
}

func stripUnsupported(cookies []Cookie) []Cookie {
	out := make([]Cookie, len(cookies))
	for i, c := range cookies {
		out[i] = c.withoutSameSite()
	}
	return out
}

// sleepCtx pauses for d unless ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

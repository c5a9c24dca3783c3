package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

type LoginPage struct {
	session Session
	wait    time.Duration
	check   time.Duration
	pause   time.Duration
	sel     SelectorConfig
	log     *zap.Logger
}

func NewLoginPage(s Session, cfg *Config, log *zap.Logger) *LoginPage {
	return &LoginPage{
		session: s,
		wait:    seconds(cfg.Timeouts.Login),
		check:   seconds(cfg.Timeouts.AuthCheck),
		pause:   secondsF(cfg.SwitchPause),
		sel:     cfg.Selectors,
		log:     log.Named("login"),
	}
}

func (p *LoginPage) OpenHome(ctx context.Context, url string) error {
	if err := p.session.Navigate(ctx, url); err != nil {
		return fmt.Errorf("open home: %w", err)
	}
	return nil
}

// OpenLogin clicks the account link, falling back to any sign-in affordance.
func (p *LoginPage) OpenLogin(ctx context.Context) error {
	return clickFirst(ctx, p.session, "open login", p.sel.OpenLogin, p.wait)
}

func (p *LoginPage) Login(ctx context.Context, username, password string) error {
	if p.onCreateAccountPage(ctx) {
		if !p.switchToSignIn(ctx) {
			if err := sleepCtx(ctx, p.pause); err != nil {
				return err
			}
		}
	}

	email, err := waitFor(ctx, p.session, "email input", p.sel.EmailInput, Present, p.wait)
	if err != nil {
		if !IsLocatorTimeout(err) {
			return err
		}
		if !p.switchToSignIn(ctx) {
			var le *LocatorError
			if errors.As(err, &le) {
				le.Op = "could not find email/phone input on sign-in page"
			}
			return err
		}
		email, err = waitFor(ctx, p.session, "email input after switching to sign in", p.sel.EmailInput[:1], Present, p.wait)
		if err != nil {
			return err
		}
	}
	if err := fill(email, username); err != nil {
		return fmt.Errorf("email input: %w", err)
	}

	// Single-page sign-in forms have no continue step.
	if err := clickFirst(ctx, p.session, "continue", Chain{p.sel.ContinueButton}, p.wait); err != nil {
		if !IsLocatorTimeout(err) {
			return err
		}
		p.log.Debug("no continue button, assuming single-page sign-in")
	}

	if _, err := fillFirst(ctx, p.session, "password input", p.sel.PasswordInput, password, p.wait); err != nil {
		return err
	}

	return clickFirst(ctx, p.session, "sign-in submit", p.sel.SignInSubmit, p.wait)
}

// IsSignedIn reports whether the account greeting shows a signed-in user.
// A missing greeting counts as signed out.
func (p *LoginPage) IsSignedIn(ctx context.Context) (bool, error) {
	el, err := p.session.WaitElement(ctx, p.sel.AccountGreeting, Present, p.check)
	if err != nil {
		if IsLocatorTimeout(err) {
			return false, nil
		}
		return false, err
	}

	text, err := el.Text()
	if err != nil {
		return false, err
	}
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return false, nil
	}
	for _, marker := range p.sel.SignedOutMarkers {
		if strings.Contains(text, strings.ToLower(marker)) {
			return false, nil
		}
	}
	return true, nil
}

func (p *LoginPage) onCreateAccountPage(ctx context.Context) bool {
	h1, err := p.session.FindElement(ctx, p.sel.Heading)
	if err != nil {
		return false
	}
	heading, err := h1.Text()
	if err != nil {
		return false
	}
	heading = strings.ToLower(heading)
	for _, marker := range p.sel.CreateAccountMarkers {
		if strings.Contains(heading, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// switchToSignIn follows the "already a customer" link from the create
// account view. Best effort: false means the link was absent or the sign-in
// form never appeared.
func (p *LoginPage) switchToSignIn(ctx context.Context) bool {
	link, err := p.session.FindElement(ctx, p.sel.SwitchToSignIn)
	if err != nil {
		p.log.Debug("no switch-to-sign-in link", zap.Error(err))
		return false
	}
	if err := link.Click(); err != nil {
		p.log.Debug("switch-to-sign-in click failed", zap.Error(err))
		return false
	}
	if _, err := p.session.WaitElement(ctx, p.sel.EmailInput[0], Present, p.wait); err != nil {
		p.log.Debug("sign-in form did not appear after switching", zap.Error(err))
		return false
	}
	return true
}

package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestLoginPageOpenLoginFallback(t *testing.T) {
	cfg := testConfig(t)
	sess := newFakeSession()
	link := sess.add(cfg.Selectors.OpenLogin[1], "Hello, sign in")
	p := NewLoginPage(sess, cfg, zaptest.NewLogger(t))

	if err := p.OpenLogin(context.Background()); err != nil {
		t.Fatalf("OpenLogin failed: %v", err)
	}
	if link.clicks != 1 {
		t.Errorf("Expected the fallback link to be clicked once, got %d", link.clicks)
	}
	if !sess.attempted(cfg.Selectors.OpenLogin[0]) {
		t.Error("primary account link was not tried first")
	}
}

func TestLoginPageLogin(t *testing.T) {
	cfg := testConfig(t)
	sel := cfg.Selectors

	testCases := []struct {
		name     string
		setup    func(s *fakeSession)
		emailLoc Locator
		passLoc  Locator
		submit   Locator
	}{
		{
			name: "primary locators",
			setup: func(s *fakeSession) {
				s.add(sel.EmailInput[0], "")
				s.add(sel.ContinueButton, "")
				s.add(sel.PasswordInput[0], "")
				s.add(sel.SignInSubmit[0], "")
			},
			emailLoc: sel.EmailInput[0],
			passLoc:  sel.PasswordInput[0],
			submit:   sel.SignInSubmit[0],
		},
		{
			name: "fallback locators without a continue step",
			setup: func(s *fakeSession) {
				s.add(sel.EmailInput[2], "")
				s.add(sel.PasswordInput[1], "")
				s.add(sel.SignInSubmit[1], "")
			},
			emailLoc: sel.EmailInput[2],
			passLoc:  sel.PasswordInput[1],
			submit:   sel.SignInSubmit[1],
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sess := newFakeSession()
			tc.setup(sess)
			p := NewLoginPage(sess, cfg, zaptest.NewLogger(t))

			if err := p.Login(context.Background(), "buyer@example.com", "s3cret"); err != nil {
				t.Fatalf("Login failed: %v", err)
			}

			email := sess.present[tc.emailLoc]
			if strings.Join(email.typed, "") != "buyer@example.com" {
				t.Errorf("email typed %v", email.typed)
			}
			pass := sess.present[tc.passLoc]
			if strings.Join(pass.typed, "") != "s3cret" {
				t.Errorf("password typed %v", pass.typed)
			}
			if sess.present[tc.submit].clicks != 1 {
				t.Errorf("submit clicked %d times", sess.present[tc.submit].clicks)
			}
		})
	}
}

func TestLoginPageSwitchesFromCreateAccount(t *testing.T) {
	cfg := testConfig(t)
	sel := cfg.Selectors
	sess := newFakeSession()
	sess.add(sel.Heading, "Create Account")
	sess.add(sel.SwitchToSignIn, "Sign in")
	sess.add(sel.PasswordInput[0], "")
	sess.add(sel.SignInSubmit[0], "")
	sess.onClick = func(l Locator) {
		if l == sel.SwitchToSignIn {
			sess.add(sel.EmailInput[0], "")
		}
	}
	p := NewLoginPage(sess, cfg, zaptest.NewLogger(t))

	if err := p.Login(context.Background(), "buyer@example.com", "s3cret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if sess.present[sel.SwitchToSignIn].clicks != 1 {
		t.Error("switch-to-sign-in link was not followed")
	}
	if strings.Join(sess.present[sel.EmailInput[0]].typed, "") != "buyer@example.com" {
		t.Error("email not typed after switching")
	}
}

func TestLoginPageRetriesAfterSwitch(t *testing.T) {
	cfg := testConfig(t)
	sel := cfg.Selectors
	sess := newFakeSession()
	sess.add(sel.SwitchToSignIn, "Already a customer? Sign in")
	sess.add(sel.PasswordInput[0], "")
	sess.add(sel.SignInSubmit[0], "")
	sess.onClick = func(l Locator) {
		if l == sel.SwitchToSignIn {
			sess.add(sel.EmailInput[0], "")
		}
	}
	p := NewLoginPage(sess, cfg, zaptest.NewLogger(t))

	if err := p.Login(context.Background(), "buyer@example.com", "s3cret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	for _, l := range sel.EmailInput {
		if !sess.attempted(l) {
			t.Errorf("email locator %s was not tried before switching", l)
		}
	}
}

func TestLoginPageNoEmailInput(t *testing.T) {
	cfg := testConfig(t)
	sess := newFakeSession()
	p := NewLoginPage(sess, cfg, zaptest.NewLogger(t))

	err := p.Login(context.Background(), "buyer@example.com", "s3cret")
	if err == nil {
		t.Fatal("Expected an error without an email input")
	}
	if !IsLocatorTimeout(err) {
		t.Errorf("Expected a locator timeout, got %v", err)
	}
	if !strings.Contains(err.Error(), "could not find email/phone input on sign-in page") {
		t.Errorf("Unexpected message %q", err)
	}
}

func TestLoginPageMissingSubmit(t *testing.T) {
	cfg := testConfig(t)
	sel := cfg.Selectors
	sess := newFakeSession()
	sess.add(sel.EmailInput[0], "")
	sess.add(sel.PasswordInput[0], "")
	p := NewLoginPage(sess, cfg, zaptest.NewLogger(t))

	err := p.Login(context.Background(), "buyer@example.com", "s3cret")
	if !IsLocatorTimeout(err) {
		t.Fatalf("Expected a locator timeout, got %v", err)
	}
	for _, l := range sel.SignInSubmit {
		if !sess.attempted(l) {
			t.Errorf("submit locator %s was not tried", l)
		}
	}
}

func TestLoginPageIsSignedIn(t *testing.T) {
	cfg := testConfig(t)

	testCases := []struct {
		name     string
		present  bool
		text     string
		err      error
		expected bool
		wantErr  bool
	}{
		{name: "greeting missing", expected: false},
		{name: "signed out greeting", present: true, text: "Hello, sign in", expected: false},
		{name: "empty greeting", present: true, text: "  ", expected: false},
		{name: "signed in", present: true, text: "Hello, Priya", expected: true},
		{name: "driver error", present: true, err: errors.New("target closed"), wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sess := newFakeSession()
			if tc.present {
				sess.add(cfg.Selectors.AccountGreeting, tc.text).err = tc.err
			}
			p := NewLoginPage(sess, cfg, zaptest.NewLogger(t))

			ok, err := p.IsSignedIn(context.Background())
			if (err != nil) != tc.wantErr {
				t.Fatalf("IsSignedIn error = %v, wantErr %v", err, tc.wantErr)
			}
			if ok != tc.expected {
				t.Errorf("IsSignedIn = %v, expected %v", ok, tc.expected)
			}
		})
	}
}

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StageError wraps the failure that aborted a run at a given stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

var ErrPaymentNotReached = errors.New("payment section not found")

// Report summarizes one run.
type Report struct {
	RunID            string
	RestoredSession  bool
	SessionVerified  bool
	InteractiveLogin bool
	AutoLogin        bool
	OperatorPrompts  int
	Stages           []string
	Artifacts        []Artifact
	PaymentReached   bool
}

// Flow drives sign-in through to the payment step. It never places an order.
type Flow struct {
	cfg      *Config
	session  Session
	store    *SessionStore
	capture  *DebugCapture
	operator Operator
	progress Progress
	log      *zap.Logger

	login   *LoginPage
	search  *SearchPage
	product *ProductPage
	cart    *CartPage
	payment *PaymentPage
}

func NewFlow(cfg *Config, session Session, store *SessionStore, capture *DebugCapture, operator Operator, log *zap.Logger) *Flow {
	return &Flow{
		cfg:      cfg,
		session:  session,
		store:    store,
		capture:  capture,
		operator: operator,
		progress: noProgress{},
		log:      log.Named("flow"),
		login:    NewLoginPage(session, cfg, log),
		search:   NewSearchPage(session, cfg),
		product:  NewProductPage(session, cfg, log),
		cart:     NewCartPage(session, cfg),
		payment:  NewPaymentPage(session, cfg),
	}
}

func (f *Flow) WithProgress(p Progress) *Flow {
	f.progress = p
	return f
}

// Run executes the whole journey. The caller owns the session and closes it.
func (f *Flow) Run(ctx context.Context) (*Report, error) {
	rep := &Report{RunID: uuid.NewString()}
	f.log = f.log.With(zap.String("run", rep.RunID))

	if err := f.run(ctx, rep); err != nil {
		f.progress.Abort()
		return rep, err
	}
	f.progress.Done()

	fmt.Println(T("payment_reached"))
	return rep, nil
}

func (f *Flow) run(ctx context.Context, rep *Report) error {
	signedIn, err := f.resume(ctx, rep)
	if err != nil {
		return err
	}
	if !signedIn {
		if err := f.signIn(ctx, rep); err != nil {
			return err
		}
	}

	if err := sleepCtx(ctx, secondsF(f.cfg.SettleDelay)); err != nil {
		return err
	}
	return f.checkout(ctx, rep)
}

// SignIn runs only the interactive login and saves the resulting session.
func (f *Flow) SignIn(ctx context.Context) (*Report, error) {
	rep := &Report{RunID: uuid.NewString()}
	f.log = f.log.With(zap.String("run", rep.RunID))
	return rep, f.signIn(ctx, rep)
}

// resume replays the saved session and reports whether it is signed in.
func (f *Flow) resume(ctx context.Context, rep *Report) (bool, error) {
	if f.store.Exists() {
		fmt.Println(T("session_restoring", f.store.Path()))
	}

	res := f.store.Restore(ctx, f.session)
	f.log.Debug("session restore", zap.Stringer("outcome", res.Outcome),
		zap.Int("injected", res.Injected), zap.Int("rejected", res.Rejected), zap.Error(res.Err))

	if err := ctx.Err(); err != nil {
		return false, err
	}

	switch res.Outcome {
	case RestoreNoFile:
		fmt.Println(T("session_not_found"))
		return false, nil
	case RestoreCorrupt, RestoreFailed:
		fmt.Println(T("session_corrupt"))
		return false, nil
	}

	rep.RestoredSession = true
	fmt.Println(T("session_restored", res.Injected, res.Rejected))

	if err := f.session.Navigate(ctx, f.cfg.BaseURL); err != nil {
		f.log.Warn("could not navigate home after loading cookies", zap.Error(err))
	}
	if err := sleepCtx(ctx, secondsF(f.cfg.RestoredSettleDelay)); err != nil {
		return false, err
	}

	if !f.cfg.VerifySession {
		return true, nil
	}

	ok, err := f.login.IsSignedIn(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		f.log.Warn("could not verify restored session", zap.Error(err))
		ok = false
	}
	if !ok {
		fmt.Println(T("session_signed_out"))
		return false, nil
	}
	rep.SessionVerified = true
	return true, nil
}

func (f *Flow) signIn(ctx context.Context, rep *Report) error {
	rep.InteractiveLogin = true
	fmt.Println(T("login_opening"))

	if err := f.login.OpenHome(ctx, f.cfg.BaseURL); err != nil {
		return &StageError{Stage: "open_home", Err: err}
	}
	if err := f.stage(ctx, rep, "open_login", false, f.login.OpenLogin); err != nil {
		return err
	}

	signedIn := false
	if f.cfg.AutoLogin && f.cfg.Username != "" && f.cfg.Password != "" {
		rep.AutoLogin = true
		fmt.Println(T("login_auto_attempt"))
		err := f.stage(ctx, rep, "login", false, func(ctx context.Context) error {
			return f.login.Login(ctx, f.cfg.Username, f.cfg.Password)
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// The operator can still finish the sign-in by hand.
			fmt.Println(T("login_auto_failed"))
			f.log.Warn("automatic sign-in failed", zap.Error(err))
		} else if ok, err := f.login.IsSignedIn(ctx); err == nil && ok {
			signedIn = true
		}
	}

	if !signedIn {
		rep.OperatorPrompts++
		if err := f.operator.WaitForConfirmation(ctx); err != nil {
			return &StageError{Stage: "manual_login", Err: err}
		}
	}

	if err := f.store.Save(ctx, f.session); err != nil {
		fmt.Println(T("session_save_failed", err))
		f.log.Warn("could not save cookies", zap.Error(err))
	} else {
		fmt.Println(T("session_saved", f.store.Path()))
	}
	return nil
}

func (f *Flow) checkout(ctx context.Context, rep *Report) error {
	stages := []struct {
		name       string
		message    string
		captureAny bool
		run        func(context.Context) error
	}{
		{"search", T("stage_search", f.cfg.SearchItem), false, func(ctx context.Context) error {
			return f.search.SearchFor(ctx, f.cfg.SearchItem)
		}},
		{"open_first_result", T("stage_open_result"), false, f.search.OpenFirstResult},
		{"add_to_cart", T("stage_add_to_cart"), false, f.product.AddToCart},
		{"goto_cart", T("stage_open_cart"), true, func(ctx context.Context) error {
			return f.cart.Open(ctx, f.cfg.CartPageURL())
		}},
		{"proceed_to_checkout", T("stage_checkout"), false, f.cart.ProceedToCheckout},
		{"payment_section", T("stage_payment"), false, func(ctx context.Context) error {
			ok, err := f.payment.ReachPaymentSection(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return ErrPaymentNotReached
			}
			rep.PaymentReached = true
			return nil
		}},
	}

	for _, s := range stages {
		f.progress.Stage(s.name, s.message)
		f.log.Debug("stage started", zap.String("stage", s.name))
		if err := f.stage(ctx, rep, s.name, s.captureAny, s.run); err != nil {
			return err
		}
	}
	return nil
}

// stage runs one step. A locator timeout, or any error when captureAny is
// set, leaves a debug capture behind before the error is returned.
func (f *Flow) stage(ctx context.Context, rep *Report, name string, captureAny bool, run func(context.Context) error) error {
	err := run(ctx)
	if err == nil {
		rep.Stages = append(rep.Stages, name)
		return nil
	}

	f.log.Error("stage failed", zap.String("stage", name), zap.Error(err))
	if ctx.Err() == nil && (captureAny || IsLocatorTimeout(err)) {
		f.snapshot(ctx, rep, name)
	}
	return &StageError{Stage: name, Err: err}
}

func (f *Flow) snapshot(ctx context.Context, rep *Report, stage string) {
	if !f.session.Alive() {
		f.log.Warn("browser is gone, skipping debug capture", zap.String("stage", stage))
		return
	}

	label := stage + "_timeout"
	if stage == "goto_cart" {
		label = "goto_cart_failed"
	}

	art, err := f.capture.Capture(ctx, f.session, label)
	if art.Screenshot != "" || art.Markup != "" {
		rep.Artifacts = append(rep.Artifacts, art)
	}
	if err != nil {
		f.log.Warn("debug capture incomplete", zap.String("stage", stage), zap.Error(err))
	}
}

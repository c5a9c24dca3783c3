package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

var ErrDriverMissing = errors.New("browser binary not found")

// RodSession is the Chrome session behind every page object.
type RodSession struct {
	cfg      *Config
	log      *zap.Logger
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	pageLoad time.Duration
	launched bool

	// profileDir is a per-run profile removed on Close.
	profileDir string

	// tabs holds page target ids from oldest to newest.
	tabs []proto.TargetTargetID

	closeOnce sync.Once
}

// OpenRodSession launches Chrome and opens a stealth page. A configured
// browser binary that does not exist is a fatal startup error.
func OpenRodSession(ctx context.Context, cfg *Config, log *zap.Logger) (*RodSession, error) {
	s := &RodSession{
		cfg:      cfg,
		log:      log.Named("browser"),
		pageLoad: seconds(cfg.Timeouts.PageLoad),
	}
	if err := s.launch(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *RodSession) launch(ctx context.Context) error {
	fmt.Println(T("browser_launching"))

	// Disable leakless mode on Windows to prevent deadlock
	// See: https://github.com/go-rod/rod/issues/853
	useLeakless := runtime.GOOS != "windows"

	s.launcher = launcher.New().
		Context(ctx).
		Leakless(useLeakless).
		Headless(s.cfg.Headless)

	// Must be set before Bin()
	profile := s.cfg.BrowserProfilePath
	if profile == "" {
		dir, err := throwawayProfile(getUserDataDir())
		if err != nil {
			return fmt.Errorf("failed to create browser profile: %w", err)
		}
		s.profileDir = dir
		profile = dir
	}
	s.launcher = s.launcher.UserDataDir(profile)
	s.log.Debug("browser profile", zap.String("path", profile), zap.Bool("throwaway", s.profileDir != ""))

	if s.cfg.ViewportWidth > 0 && s.cfg.ViewportHeight > 0 {
		s.launcher = s.launcher.Set("window-size", fmt.Sprintf("%d,%d", s.cfg.ViewportWidth, s.cfg.ViewportHeight))
	}
	if !s.cfg.Headless {
		s.launcher = s.launcher.Set("start-maximized")
	}

	if s.cfg.BrowserBin != "" {
		if _, err := os.Stat(s.cfg.BrowserBin); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrDriverMissing, s.cfg.BrowserBin, err)
		}
		s.launcher = s.launcher.Bin(s.cfg.BrowserBin)
		fmt.Println(T("browser_using_configured_bin", s.cfg.BrowserBin))
	} else if chromePath, ok := launcher.LookPath(); ok {
		s.launcher = s.launcher.Bin(chromePath)
		fmt.Println(T("browser_using_system_chrome"))
		s.log.Debug("chrome path", zap.String("path", chromePath))
	} else {
		fmt.Println(T("browser_chrome_not_found"))
	}

	if runtime.GOOS == "windows" {
		fmt.Println(T("windows_leakless_disabled"))
	}

	url, err := s.launcher.Launch()
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "Opening in existing browser session") ||
			strings.Contains(errMsg, "ProcessSingleton") ||
			strings.Contains(errMsg, "SingletonLock") {
			fmt.Println(T("error_chrome_already_running_header"))
			fmt.Println(T("error_chrome_fix_instructions"))
			fmt.Println(T("error_chrome_close_all"))
			fmt.Println(T("error_chrome_try_again"))
			return errors.New(T("error_chrome_already_running"))
		}
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	s.launched = true

	browser := rod.New().ControlURL(url).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	s.browser = browser

	s.page, err = stealth.Page(s.browser)
	if err != nil {
		return fmt.Errorf("failed to create stealth page: %w", err)
	}
	s.tabs = []proto.TargetTargetID{s.page.TargetID}

	fmt.Println(T("browser_launched"))
	return nil
}

func (s *RodSession) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := p.Timeout(s.pageLoad).WaitLoad(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn("page load wait failed", zap.String("url", url), zap.Error(err))
	}
	return nil
}

func (s *RodSession) WaitElement(ctx context.Context, loc Locator, state Readiness, timeout time.Duration) (Element, error) {
	var el *rod.Element
	err := withWaitTimeout(ctx, timeout, func(wctx context.Context) error {
		var err error
		if el, err = s.lookup(s.page.Context(wctx), loc); err != nil {
			return err
		}
		if state != Clickable {
			return nil
		}
		if err = el.WaitVisible(); err != nil {
			return err
		}
		return el.WaitEnabled()
	})
	if errors.Is(err, ErrLocatorTimeout) {
		return nil, fmt.Errorf("%s not %s within %s: %w", loc, state, timeout, err)
	}
	if err != nil {
		return nil, err
	}

	s.log.Debug("element ready", zap.Stringer("locator", loc), zap.Stringer("state", state))
	return &rodElement{el: el.Context(ctx)}, nil
}

// withWaitTimeout runs wait under a deadline that is always released. Running
// out of time is reported as ErrLocatorTimeout; cancellation of ctx wins.
func withWaitTimeout(ctx context.Context, d time.Duration, wait func(context.Context) error) error {
	wctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	err := wait(wctx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrLocatorTimeout
	}
	return err
}

func (s *RodSession) lookup(p *rod.Page, loc Locator) (*rod.Element, error) {
	if css, ok := loc.CSS(); ok {
		return p.Element(css)
	}
	return p.ElementX(loc.Value)
}

func (s *RodSession) FindElement(ctx context.Context, loc Locator) (Element, error) {
	p := s.page.Context(ctx)

	var (
		found bool
		el    *rod.Element
		err   error
	)
	if css, ok := loc.CSS(); ok {
		found, el, err = p.Has(css)
	} else {
		found, el, err = p.HasX(loc.Value)
	}
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", loc, ErrElementNotFound)
	}
	return &rodElement{el: el}, nil
}

func (s *RodSession) syncTabs() (map[proto.TargetTargetID]*rod.Page, error) {
	pages, err := s.browser.Pages()
	if err != nil {
		return nil, err
	}

	live := make(map[proto.TargetTargetID]*rod.Page, len(pages))
	ids := make([]proto.TargetTargetID, 0, len(pages))
	for _, p := range pages {
		live[p.TargetID] = p
		ids = append(ids, p.TargetID)
	}
	s.tabs = reconcileTabs(s.tabs, ids)
	return live, nil
}

// reconcileTabs keeps the known tabs that are still open and appends unseen
// ones oldest first. live is in Chrome's order, newest first.
func reconcileTabs(prev, live []proto.TargetTargetID) []proto.TargetTargetID {
	open := make(map[proto.TargetTargetID]bool, len(live))
	for _, id := range live {
		open[id] = true
	}

	tabs := make([]proto.TargetTargetID, 0, len(live))
	seen := make(map[proto.TargetTargetID]bool, len(live))
	for _, id := range prev {
		if open[id] && !seen[id] {
			tabs = append(tabs, id)
			seen[id] = true
		}
	}
	for i := len(live) - 1; i >= 0; i-- {
		if id := live[i]; !seen[id] {
			tabs = append(tabs, id)
			seen[id] = true
		}
	}
	return tabs
}

func (s *RodSession) Tabs(ctx context.Context) (int, error) {
	if _, err := s.syncTabs(); err != nil {
		return 0, err
	}
	return len(s.tabs), nil
}

func (s *RodSession) SwitchTab(ctx context.Context, index int) error {
	live, err := s.syncTabs()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(s.tabs) {
		return fmt.Errorf("tab %d out of range (%d open)", index, len(s.tabs))
	}

	page, err := live[s.tabs[index]].Context(ctx).Activate()
	if err != nil {
		return fmt.Errorf("activate tab: %w", err)
	}
	s.page = page.Context(s.browser.GetContext())
	return nil
}

func (s *RodSession) Cookies(ctx context.Context) ([]Cookie, error) {
	raw, err := s.page.Context(ctx).Cookies(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get cookies: %w", err)
	}

	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expiry:   float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return cookies, nil
}

func (s *RodSession) SetCookie(ctx context.Context, c Cookie) error {
	param := &proto.NetworkCookieParam{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
	}
	if c.Domain == "" {
		param.URL = s.cfg.BaseURL
	}
	if c.Expiry > 0 {
		param.Expires = proto.TimeSinceEpoch(c.Expiry)
	}
	return s.page.Context(ctx).SetCookies([]*proto.NetworkCookieParam{param})
}

func (s *RodSession) Screenshot(ctx context.Context) ([]byte, error) {
	return s.page.Context(ctx).Screenshot(false, nil)
}

func (s *RodSession) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

func (s *RodSession) Title(ctx context.Context) (string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (s *RodSession) Alive() bool {
	if s.browser == nil {
		return false
	}

	if _, err := s.browser.Version(); err != nil {
		s.log.Debug("browser version check failed", zap.Error(err))
		return false
	}

	if s.page != nil {
		if _, err := s.page.Info(); err != nil {
			s.log.Debug("page info check failed", zap.Error(err))
			return false
		}
	}

	return true
}

func (s *RodSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		fmt.Println(T("cleaning_up"))

		if s.browser != nil {
			err = s.browser.Close()
		}

		// Cleanup waits for Chrome to exit and removes the user data dir,
		// so it only runs for a throwaway profile.
		switch {
		case !s.launched:
		case s.browser == nil:
			s.launcher.Kill()
		case s.profileDir != "":
			s.launcher.Cleanup()
		}
		if s.profileDir != "" {
			if rmErr := os.RemoveAll(s.profileDir); rmErr != nil {
				s.log.Warn("failed to remove browser profile", zap.String("path", s.profileDir), zap.Error(rmErr))
			}
		}

		fmt.Println(T("browser_destroyed"))
	})
	return err
}

// throwawayProfile creates a fresh Chrome user data dir under parent.
func throwawayProfile(parent string) (string, error) {
	if err := os.MkdirAll(parent, 0755); err != nil {
		return "", err
	}
	return os.MkdirTemp(parent, "profile-*")
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Click() error {
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Clear() error {
	if err := e.el.SelectAllText(); err != nil {
		return err
	}
	return e.el.Input("")
}

func (e *rodElement) Type(text string) error {
	return e.el.Input(text)
}

func (e *rodElement) PressEnter() error {
	return e.el.Type(input.Enter)
}

func (e *rodElement) Text() (string, error) {
	return e.el.Text()
}

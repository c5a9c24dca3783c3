package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	BaseURL    string `yaml:"base_url"`
	CartURL    string `yaml:"cart_url"`
	SearchItem string `yaml:"search_item"`

	Username  string `yaml:"username"`
	Password  string `yaml:"-"`
	AutoLogin bool   `yaml:"auto_login"`

	SessionPath   string `yaml:"session_path"`
	DebugDir      string `yaml:"debug_dir"`
	VerifySession bool   `yaml:"verify_session"`

	// Empty launches each run in a throwaway profile.
	BrowserProfilePath string `yaml:"browser_profile_path"`
	BrowserBin         string `yaml:"browser_bin"`

	ViewportWidth  int `yaml:"viewport_width"`
	ViewportHeight int `yaml:"viewport_height"`

	// Seconds to let the page settle after navigation steps.
	SettleDelay         float64 `yaml:"settle_delay"`
	RestoredSettleDelay float64 `yaml:"restored_settle_delay"`
	SwitchPause         float64 `yaml:"switch_pause"`

	Timeouts TimeoutConfig `yaml:"timeouts"`

	Headless        bool `yaml:"headless"`
	KeepBrowserOpen bool `yaml:"keep_browser_open"`
	ShowProgress    bool `yaml:"show_progress"`
	DebugMode       bool `yaml:"debug_mode"`

	Selectors SelectorConfig `yaml:"selectors"`
}

// TimeoutConfig holds per-page wait ceilings in seconds. Operator 0 waits forever.
type TimeoutConfig struct {
	Login     int `yaml:"login"`
	Search    int `yaml:"search"`
	Product   int `yaml:"product"`
	Cart      int `yaml:"cart"`
	Payment   int `yaml:"payment"`
	AuthCheck int `yaml:"auth_check"`
	PageLoad  int `yaml:"page_load"`
	Operator  int `yaml:"operator"`
}

type SelectorConfig struct {
	OpenLogin            Chain    `yaml:"open_login"`
	Heading              Locator  `yaml:"heading"`
	CreateAccountMarkers []string `yaml:"create_account_markers"`
	SwitchToSignIn       Locator  `yaml:"switch_to_sign_in"`
	EmailInput           Chain    `yaml:"email_input"`
	ContinueButton       Locator  `yaml:"continue_button"`
	PasswordInput        Chain    `yaml:"password_input"`
	SignInSubmit         Chain    `yaml:"sign_in_submit"`
	AccountGreeting      Locator  `yaml:"account_greeting"`
	SignedOutMarkers     []string `yaml:"signed_out_markers"`

	SearchBox    Chain `yaml:"search_box"`
	SearchResult Chain `yaml:"search_result"`

	AddToCart Chain `yaml:"add_to_cart"`
	CartCount Chain `yaml:"cart_count"`

	Checkout Chain `yaml:"checkout"`

	PaymentSection Chain `yaml:"payment_section"`
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL:             "https://www.amazon.in",
		SearchItem:          "mobile phone",
		AutoLogin:           false,
		SessionPath:         "cookies.json",
		DebugDir:            "debug",
		VerifySession:       true,
		ViewportWidth:       1920,
		ViewportHeight:      1080,
		SettleDelay:         1.0,
		RestoredSettleDelay: 2.0,
		SwitchPause:         1.0,
		Timeouts: TimeoutConfig{
			Login:     25,
			Search:    20,
			Product:   20,
			Cart:      20,
			Payment:   25,
			AuthCheck: 10,
			PageLoad:  30,
			Operator:  0,
		},
		Headless:        false,
		KeepBrowserOpen: false,
		ShowProgress:    true,
		DebugMode:       false,
		Selectors:       DefaultSelectors(),
	}
}

func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		OpenLogin: Chain{
			ID("nav-link-accountList"),
			XPath("//*[contains(@href,'/gp/sign-in') or contains(text(),'Sign in') or contains(text(),'Hello, sign in') or contains(text(),'Sign-In')]"),
		},
		Heading:              CSS("h1"),
		CreateAccountMarkers: []string{"create account", "new customer", "create your amazon account"},
		SwitchToSignIn:       XPath("//a[contains(text(),'Sign in') or contains(text(),'Sign-In') or contains(text(),'Already a customer') or contains(@href,'/ap/signin')]"),
		EmailInput: Chain{
			ID("ap_email"),
			Name("email"),
			Name("emailOrPhone"),
		},
		ContinueButton: ID("continue"),
		PasswordInput: Chain{
			ID("ap_password"),
			Name("password"),
		},
		SignInSubmit: Chain{
			ID("signInSubmit"),
			XPath("//input[@type='submit' and (contains(@value,'Sign in') or contains(@value,'Sign-In'))] | //button[contains(text(),'Sign in') or contains(text(),'Sign-In')]"),
		},
		AccountGreeting:  ID("nav-link-accountList-nav-line-1"),
		SignedOutMarkers: []string{"sign in"},
		SearchBox:        Chain{ID("twotabsearchtextbox")},
		SearchResult: Chain{
			CSS("div.s-main-slot div[data-component-type='s-search-result'] a.a-link-normal.s-no-outline, div.s-main-slot h2 a"),
		},
		AddToCart: Chain{ID("add-to-cart-button")},
		CartCount: Chain{ID("nav-cart-count")},
		Checkout: Chain{
			Name("proceedToRetailCheckout"),
			ID("sc-buy-box-ptc-button"),
		},
		PaymentSection: Chain{
			XPath("//*[contains(text(),'Payment') or contains(text(),'payment method') or contains(.,'Add a credit or debit card') or contains(.,'Choose a payment method')]"),
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(path); err != nil {
			return nil, err
		}
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if config.BrowserProfilePath != "" {
		if err := os.MkdirAll(config.BrowserProfilePath, 0755); err != nil {
			return nil, err
		}
	}

	return config, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// LoadEnv overlays environment settings on c. envFile is an optional local
// override file; variables already set in the process take precedence.
func (c *Config) LoadEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	overrides := []struct {
		key string
		dst *string
	}{
		{"BASE_URL", &c.BaseURL},
		{"CART_URL", &c.CartURL},
		{"USERNAME", &c.Username},
		{"PASSWORD", &c.Password},
		{"SEARCH_ITEM", &c.SearchItem},
		{"BROWSER_BIN", &c.BrowserBin},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok && v != "" {
			*o.dst = v
		}
	}
	return nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url %q must be an absolute URL", c.BaseURL)
	}
	if c.CartURL != "" {
		if u, err := url.Parse(c.CartURL); err != nil || u.Host == "" {
			return fmt.Errorf("cart_url %q must be an absolute URL", c.CartURL)
		}
	}
	if strings.TrimSpace(c.SearchItem) == "" {
		return errors.New("search_item is empty")
	}

	waits := map[string]int{
		"login":      c.Timeouts.Login,
		"search":     c.Timeouts.Search,
		"product":    c.Timeouts.Product,
		"cart":       c.Timeouts.Cart,
		"payment":    c.Timeouts.Payment,
		"auth_check": c.Timeouts.AuthCheck,
		"page_load":  c.Timeouts.PageLoad,
	}
	for name, v := range waits {
		if v <= 0 {
			return fmt.Errorf("timeouts.%s must be positive, got %d", name, v)
		}
	}
	if c.Timeouts.Operator < 0 {
		return fmt.Errorf("timeouts.operator must not be negative, got %d", c.Timeouts.Operator)
	}

	s := c.Selectors
	chains := map[string]Chain{
		"open_login":      s.OpenLogin,
		"email_input":     s.EmailInput,
		"password_input":  s.PasswordInput,
		"sign_in_submit":  s.SignInSubmit,
		"search_box":      s.SearchBox,
		"search_result":   s.SearchResult,
		"add_to_cart":     s.AddToCart,
		"cart_count":      s.CartCount,
		"checkout":        s.Checkout,
		"payment_section": s.PaymentSection,
	}
	for name, chain := range chains {
		if err := chain.Validate(); err != nil {
			return fmt.Errorf("selectors.%s: %w", name, err)
		}
	}
	singles := map[string]Locator{
		"heading":           s.Heading,
		"switch_to_sign_in": s.SwitchToSignIn,
		"continue_button":   s.ContinueButton,
		"account_greeting":  s.AccountGreeting,
	}
	for name, l := range singles {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("selectors.%s: %w", name, err)
		}
	}

	// An empty marker matches every greeting.
	if len(s.SignedOutMarkers) == 0 {
		return errors.New("selectors.signed_out_markers is empty")
	}
	for i, m := range s.SignedOutMarkers {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("selectors.signed_out_markers[%d] is blank", i)
		}
	}
	return nil
}

// CartPageURL is the direct cart view, derived from the base URL unless set.
func (c *Config) CartPageURL() string {
	if c.CartURL != "" {
		return c.CartURL
	}
	return strings.TrimRight(c.BaseURL, "/") + "/gp/cart/view.html"
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func secondsF(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

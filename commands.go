package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var rootCmd = &cobra.Command{
	Use:           "shopflow",
	Short:         "Drive a storefront purchase flow up to the payment step",
	Long:          "shopflow signs in to a storefront (reusing saved cookies when it can), searches for an item, adds the first result to the cart and stops once the payment step is visible.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagConfig   string
	flagEnv      string
	flagDebug    bool
	flagHeadless bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", ".env", "Optional environment override file")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable detailed debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagHeadless, "headless", false, "Run the browser without a window")

	runCmd.Flags().String("search", "", "Search query (overrides SEARCH_ITEM)")
	runCmd.Flags().String("base-url", "", "Storefront origin (overrides BASE_URL)")
	runCmd.Flags().Bool("fresh", false, "Ignore the saved session and sign in again")
	runCmd.Flags().Bool("no-progress", false, "Print stage lines instead of a progress bar")

	checkDriverCmd.Flags().Bool("window", false, "Show the browser window")

	sessionCmd.AddCommand(sessionShowCmd, sessionClearCmd)
	passwordCmd.AddCommand(passwordSetCmd, passwordDeleteCmd)
	rootCmd.AddCommand(runCmd, loginCmd, checkDriverCmd, sessionCmd, passwordCmd)

	rootCmd.SetErr(os.Stderr)
}

// app is everything a command needs, built once from flags and config.
type app struct {
	cfg *Config
	log *zap.Logger
	fs  afero.Fs
}

func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, err := LoadConfig(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.LoadEnv(flagEnv); err != nil {
		return nil, err
	}
	if flagDebug {
		cfg.DebugMode = true
	}
	if flagHeadless {
		cfg.Headless = true
	}

	log, err := newLogger(cfg.DebugMode)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if err := resolvePassword(cfg); err != nil {
		log.Warn("password lookup failed", zap.Error(err))
	}

	return &app{cfg: cfg, log: log, fs: afero.NewOsFs()}, nil
}

func (a *app) sessionStore() *SessionStore {
	return NewSessionStore(a.fs, a.cfg.SessionPath, a.cfg.BaseURL, secondsF(a.cfg.SettleDelay), a.log)
}

func (a *app) flow(session Session) *Flow {
	operator := NewConsoleOperator(os.Stdin, os.Stdout, seconds(a.cfg.Timeouts.Operator))
	return NewFlow(a.cfg, session, a.sessionStore(), NewDebugCapture(a.fs, a.cfg.DebugDir, a.log), operator, a.log)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printBanner(cfg *Config) {
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║ %-57s ║\n", T("banner_title"))
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Println(T("target_site", cfg.BaseURL))
	fmt.Println(T("search_item", cfg.SearchItem))
	if cfg.BrowserProfilePath != "" {
		fmt.Println(T("browser_profile", cfg.BrowserProfilePath))
	}
	if cfg.DebugMode {
		fmt.Println(T("debug_mode_enabled"))
	}
	if cfg.Headless {
		fmt.Println(T("headless_mode_enabled"))
	}
	fmt.Println()
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full flow: sign in, search, add to cart, reach payment",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.log.Sync()

		if v, _ := cmd.Flags().GetString("search"); v != "" {
			a.cfg.SearchItem = v
		}
		if v, _ := cmd.Flags().GetString("base-url"); v != "" {
			a.cfg.BaseURL = v
		}
		if err := a.cfg.Validate(); err != nil {
			return err
		}

		if fresh, _ := cmd.Flags().GetBool("fresh"); fresh {
			if err := a.sessionStore().Clear(); err != nil {
				return fmt.Errorf("clear saved session: %w", err)
			}
		}

		printBanner(a.cfg)

		ctx, stop := signalContext()
		defer stop()

		session, err := OpenRodSession(ctx, a.cfg, a.log)
		if err != nil {
			return err
		}
		defer session.Close()

		flow := a.flow(session)
		noBar, _ := cmd.Flags().GetBool("no-progress")
		if a.cfg.ShowProgress && !noBar && !a.cfg.DebugMode {
			flow.WithProgress(newStageProgress(os.Stdout, 6))
		} else {
			flow.WithProgress(consoleProgress{out: os.Stdout})
		}

		report, err := flow.Run(ctx)
		if err != nil {
			for _, art := range report.Artifacts {
				a.log.Warn("debug artifact", zap.String("label", art.Label),
					zap.String("screenshot", art.Screenshot), zap.String("markup", art.Markup))
			}
			return err
		}

		fmt.Println()
		fmt.Println(T("run_succeeded"))

		if a.cfg.KeepBrowserOpen {
			fmt.Println(T("keep_browser_open"))
			_ = sleepCtx(ctx, 30*time.Second)
		}
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in interactively and save the session cookies",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.log.Sync()
		if err := a.cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		session, err := OpenRodSession(ctx, a.cfg, a.log)
		if err != nil {
			return err
		}
		defer session.Close()

		_, err = a.flow(session).SignIn(ctx)
		return err
	},
}

var checkDriverCmd = &cobra.Command{
	Use:   "check-driver [url]",
	Short: "Launch the browser, open a page and print its title",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.log.Sync()

		target := "https://www.google.com"
		if len(args) == 1 {
			target = args[0]
		}
		if window, _ := cmd.Flags().GetBool("window"); !window {
			a.cfg.Headless = true
		}

		ctx, stop := signalContext()
		defer stop()

		session, err := OpenRodSession(ctx, a.cfg, a.log)
		if err != nil {
			return err
		}
		defer session.Close()

		if err := session.Navigate(ctx, target); err != nil {
			return err
		}
		title, err := session.Title(ctx)
		if err != nil {
			return err
		}
		fmt.Println(T("driver_check_title", title))
		return nil
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or remove the saved session",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Summarize the saved cookies",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		store := a.sessionStore()
		cookies, err := store.Load()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Println(T("session_not_found"))
				return nil
			}
			return err
		}

		fmt.Println(T("session_summary", len(cookies), store.Path()))
		for domain, n := range cookiesByDomain(cookies) {
			fmt.Printf("  %-40s %d\n", domain, n)
		}
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		store := a.sessionStore()
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Println(T("session_cleared", store.Path()))
		return nil
	},
}

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Manage the account password in the system keyring",
}

var passwordSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Read a password from stdin and store it for USERNAME",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		fmt.Print(T("password_prompt", a.cfg.Username))
		password, err := readPassword(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		if err := storePassword(a.cfg.Username, password); err != nil {
			return err
		}
		fmt.Println(T("password_stored", a.cfg.Username))
		return nil
	},
}

var passwordDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored password for USERNAME",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		if err := deletePassword(a.cfg.Username); err != nil {
			return err
		}
		fmt.Println(T("password_deleted", a.cfg.Username))
		return nil
	},
}

// readPassword reads one line from in without echo when in is a terminal.
func readPassword(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Println()
		return string(b), err
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func cookiesByDomain(cookies []Cookie) map[string]int {
	out := make(map[string]int)
	for _, c := range cookies {
		d := c.Domain
		if d == "" {
			d = "(host-only)"
		}
		out[d]++
	}
	return out
}

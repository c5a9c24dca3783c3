package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type SearchPage struct {
	session Session
	wait    time.Duration
	sel     SelectorConfig
}

func NewSearchPage(s Session, cfg *Config) *SearchPage {
	return &SearchPage{session: s, wait: seconds(cfg.Timeouts.Search), sel: cfg.Selectors}
}

// SearchFor types keyword into the search box and submits it with Enter.
func (p *SearchPage) SearchFor(ctx context.Context, keyword string) error {
	box, err := fillFirst(ctx, p.session, "search box", p.sel.SearchBox, keyword, p.wait)
	if err != nil {
		return err
	}
	if err := box.PressEnter(); err != nil {
		return fmt.Errorf("search box: submit: %w", err)
	}
	return nil
}

func (p *SearchPage) OpenFirstResult(ctx context.Context) error {
	return clickFirst(ctx, p.session, "first search result", p.sel.SearchResult, p.wait)
}

type ProductPage struct {
	session Session
	wait    time.Duration
	sel     SelectorConfig
	log     *zap.Logger
}

func NewProductPage(s Session, cfg *Config, log *zap.Logger) *ProductPage {
	return &ProductPage{session: s, wait: seconds(cfg.Timeouts.Product), sel: cfg.Selectors, log: log.Named("product")}
}

// SwitchToProductTab moves to the newest tab when the result opened one.
func (p *ProductPage) SwitchToProductTab(ctx context.Context) error {
	n, err := p.session.Tabs(ctx)
	if err != nil {
		return fmt.Errorf("list tabs: %w", err)
	}
	if n <= 1 {
		return nil
	}
	p.log.Debug("switching to newest tab", zap.Int("tabs", n))
	if err := p.session.SwitchTab(ctx, n-1); err != nil {
		return fmt.Errorf("switch to tab %d: %w", n-1, err)
	}
	return nil
}

func (p *ProductPage) AddToCart(ctx context.Context) error {
	if err := p.SwitchToProductTab(ctx); err != nil {
		return err
	}
	return clickFirst(ctx, p.session, "add to cart", p.sel.AddToCart, p.wait)
}

func (p *ProductPage) GoToCart(ctx context.Context) error {
	return clickFirst(ctx, p.session, "cart count", p.sel.CartCount, p.wait)
}

type CartPage struct {
	session Session
	wait    time.Duration
	settle  time.Duration
	sel     SelectorConfig
}

func NewCartPage(s Session, cfg *Config) *CartPage {
	return &CartPage{session: s, wait: seconds(cfg.Timeouts.Cart), settle: secondsF(cfg.SettleDelay), sel: cfg.Selectors}
}

func (p *CartPage) Open(ctx context.Context, cartURL string) error {
	if err := p.session.Navigate(ctx, cartURL); err != nil {
		return fmt.Errorf("open cart: %w", err)
	}
	return sleepCtx(ctx, p.settle)
}

func (p *CartPage) ProceedToCheckout(ctx context.Context) error {
	return clickFirst(ctx, p.session, "proceed to checkout", p.sel.Checkout, p.wait)
}

type PaymentPage struct {
	session Session
	wait    time.Duration
	sel     SelectorConfig
}

func NewPaymentPage(s Session, cfg *Config) *PaymentPage {
	return &PaymentPage{session: s, wait: seconds(cfg.Timeouts.Payment), sel: cfg.Selectors}
}

// ReachPaymentSection waits for payment wording. It never submits anything.
func (p *PaymentPage) ReachPaymentSection(ctx context.Context) (bool, error) {
	if _, err := waitFor(ctx, p.session, "payment section", p.sel.PaymentSection, Present, p.wait); err != nil {
		return false, err
	}
	return true, nil
}

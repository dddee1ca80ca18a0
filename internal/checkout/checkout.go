// Package checkout drives a product page from add-to-cart to the start of
// checkout and classifies how far automation got. It never submits payment,
// so the best outcome it reports is a cart that is ready for a human.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"giftflow/internal/browser"
	"giftflow/internal/config"
	"giftflow/internal/types"

	"go.uber.org/zap"
)

// Outcome messages. Callers surface them verbatim to the operator.
const (
	MsgWall          = "Login or verification required. Please complete purchase manually."
	MsgNoAddToCart   = "Could not automate purchase. Please buy manually: %s"
	MsgNoCheckout    = "Added to cart but could not proceed to checkout automatically."
	MsgAuthRequired  = "Checkout requires authentication or payment details. Please complete manually."
	MsgCartReady     = "Cart ready for checkout. Please complete payment manually."
	msgFailedPattern = "Checkout failed: %s"
)

// Result is the classified outcome of one attempt.
type Result struct {
	Success bool             `json:"success"`
	Status  types.OrderState `json:"status"`
	Message string           `json:"message"`
}

func manual(msg string) Result {
	return Result{Status: types.OrderManualRequired, Message: msg}
}

func failed(err error) Result {
	return Result{Status: types.OrderFailed, Message: fmt.Sprintf(msgFailedPattern, err)}
}

// Probes holds the element strategies and page-text markers the automaton
// uses. Markers are matched case-sensitively against the raw page content.
type Probes struct {
	AddToCart   browser.ProbeSet
	Checkout    browser.ProbeSet
	WallMarkers []string
	AuthMarkers []string
}

// DefaultProbes covers the common storefront layouts.
func DefaultProbes() Probes {
	return Probes{
		AddToCart: browser.ParseProbes([]string{
			`button[id*="add-to-cart"]`,
			`button[name*="add-to-cart"]`,
			`button:has-text("Add to Cart")`,
			`button:has-text("Add to Bag")`,
			`input[value*="Add to Cart"]`,
			`[data-action="add-to-cart"]`,
			`.add-to-cart-button`,
			`#add-to-cart-button`,
		}),
		Checkout: browser.ParseProbes([]string{
			`a[href*="checkout"]`,
			`button:has-text("Checkout")`,
			`button:has-text("Proceed to Checkout")`,
			`#proceed-to-checkout`,
			`.checkout-button`,
		}),
		WallMarkers: []string{"sign in", "Sign In", "log in", "Log In", "captcha", "CAPTCHA"},
		AuthMarkers: []string{"sign in", "Sign In", "password", "Payment"},
	}
}

// Options configures an Automaton.
type Options struct {
	NavigationTimeout time.Duration
	CartSettle        time.Duration
	AuthSettle        time.Duration
	Probes            Probes
}

// DefaultOptions returns the stock timings and probes.
func DefaultOptions() Options {
	return Options{
		NavigationTimeout: 30 * time.Second,
		CartSettle:        2 * time.Second,
		AuthSettle:        3 * time.Second,
		Probes:            DefaultProbes(),
	}
}

// OptionsFrom builds options from the application config.
func OptionsFrom(cfg *config.Config) Options {
	def := DefaultProbes()
	def.AddToCart = browser.OrDefault(cfg.Checkout.AddToCartSelectors, def.AddToCart)
	def.Checkout = browser.OrDefault(cfg.Checkout.CheckoutSelectors, def.Checkout)
	return Options{
		NavigationTimeout: cfg.GetNavigationTimeout(),
		CartSettle:        cfg.GetCartSettle(),
		AuthSettle:        cfg.GetAuthSettle(),
		Probes:            def,
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
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

// Automaton runs checkout attempts. Each attempt uses its own session.
type Automaton struct {
	factory browser.Factory
	opts    Options
	logger  *zap.Logger
	sleep   SleepFunc
}

// Option customizes an Automaton.
type Option func(*Automaton)

// WithSleep replaces the settle-delay implementation.
func WithSleep(fn SleepFunc) Option {
	return func(a *Automaton) {
		if fn != nil {
			a.sleep = fn
		}
	}
}

// NewAutomaton creates a checkout automaton.
func NewAutomaton(factory browser.Factory, opts Options, logger *zap.Logger, options ...Option) *Automaton {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	if len(opts.Probes.AddToCart) == 0 && len(opts.Probes.Checkout) == 0 {
		opts.Probes = DefaultProbes()
	}
	a := &Automaton{factory: factory, opts: opts, logger: logger, sleep: Sleep}
	for _, o := range options {
		o(a)
	}
	return a
}

// Attempt walks productURL through add-to-cart and checkout. It never
// returns Ordered and never fails outright: every error becomes a Failed
// result. The session is closed exactly once on every path.
func (a *Automaton) Attempt(ctx context.Context, productURL string) (res Result) {
	log := a.logger.With(zap.String("url", productURL))

	s, err := a.factory.Acquire(ctx)
	if err != nil {
		log.Error("could not acquire session", zap.Error(err))
		return failed(err)
	}

	defer func() {
		if cerr := s.Close(); cerr != nil {
			log.Warn("session close failed", zap.Error(cerr))
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			log.Error("checkout panicked", zap.Any("panic", r))
			res = failed(fmt.Errorf("%v", r))
		}
	}()

	res, err = a.run(ctx, s, productURL, log)
	if err != nil {
		log.Warn("checkout failed", zap.Error(err))
		return failed(err)
	}
	log.Info("checkout finished", zap.String("status", string(res.Status)), zap.String("message", res.Message))
	return res
}

func (a *Automaton) run(ctx context.Context, s browser.Session, productURL string, log *zap.Logger) (Result, error) {
	p := a.opts.Probes

	// Navigate
	if err := s.Navigate(ctx, productURL, a.opts.NavigationTimeout); err != nil {
		return Result{}, err
	}
	landed := s.URL()
	if landed == "" {
		landed = productURL
	}

	// Wall check
	wall, err := a.contentHas(ctx, s, p.WallMarkers)
	if err != nil {
		return Result{}, err
	}
	if wall {
		log.Info("login wall or captcha detected")
		return manual(MsgWall), nil
	}

	// Add to cart
	clicked, err := clickFirst(ctx, s, p.AddToCart, log)
	if err != nil {
		return Result{}, err
	}
	if !clicked {
		return manual(fmt.Sprintf(MsgNoAddToCart, landed)), nil
	}

	if err := a.sleep(ctx, a.opts.CartSettle); err != nil {
		return Result{}, err
	}

	// Proceed to checkout
	clicked, err = clickFirst(ctx, s, p.Checkout, log)
	if err != nil {
		return Result{}, err
	}
	if !clicked {
		return manual(MsgNoCheckout), nil
	}

	if err := a.sleep(ctx, a.opts.AuthSettle); err != nil {
		return Result{}, err
	}

	// Auth check
	auth, err := a.contentHas(ctx, s, p.AuthMarkers)
	if err != nil {
		return Result{}, err
	}
	if auth {
		return manual(MsgAuthRequired), nil
	}
	return manual(MsgCartReady), nil
}

func (a *Automaton) contentHas(ctx context.Context, s browser.Session, markers []string) (bool, error) {
	content, err := s.Content(ctx)
	if err != nil {
		return false, fmt.Errorf("read page content: %w", err)
	}
	return ContainsAny(content, markers), nil
}

// clickFirst tries each probe in priority order and clicks the first element
// found. A probe whose lookup or click fails is skipped; only cancellation
// aborts the walk.
func clickFirst(ctx context.Context, s browser.Session, probes browser.ProbeSet, log *zap.Logger) (bool, error) {
	for _, probe := range probes {
		el, _, err := s.QueryFirst(ctx, browser.ProbeSet{probe})
		if err == nil && el != nil {
			err = el.Click(ctx)
			if err == nil {
				log.Debug("clicked", zap.Stringer("probe", probe))
				return true, nil
			}
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, ctxErr
			}
			log.Debug("probe skipped", zap.Stringer("probe", probe), zap.Error(err))
		}
	}
	return false, nil
}

// ContainsAny reports whether content contains any marker verbatim.
func ContainsAny(content string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(content, m) {
			return true
		}
	}
	return false
}

package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"giftflow/internal/config"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Config holds browser configuration.
type Config struct {
	DebuggerURL         string   `json:"debugger_url"`
	Launch              []string `json:"launch"`
	Headless            bool     `json:"headless"`
	NoSandbox           bool     `json:"no_sandbox"`
	ViewportWidth       int      `json:"viewport_width"`
	ViewportHeight      int      `json:"viewport_height"`
	UserAgent           string   `json:"user_agent"`
	AcceptLanguage      string   `json:"accept_language"`
	NavigationTimeoutMs int      `json:"navigation_timeout_ms"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            true,
		ViewportWidth:       1920,
		ViewportHeight:      1080,
		NavigationTimeoutMs: 30000,
	}
}

// ConfigFrom maps the application config onto a browser Config.
func ConfigFrom(c *config.Config) Config {
	return Config{
		DebuggerURL:         c.Browser.DebuggerURL,
		Launch:              c.Browser.Launch,
		Headless:            c.Browser.Headless,
		NoSandbox:           c.Browser.NoSandbox,
		ViewportWidth:       c.Browser.ViewportWidth,
		ViewportHeight:      c.Browser.ViewportHeight,
		UserAgent:           c.Browser.UserAgent,
		AcceptLanguage:      c.Browser.AcceptLanguage,
		NavigationTimeoutMs: int(c.GetNavigationTimeout() / time.Millisecond),
	}
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1920
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 1080
	}
	return c.ViewportHeight
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// RodFactory owns a Chrome instance, launched lazily on first Acquire, and
// tracks every page it hands out so Shutdown can reclaim orphans.
type RodFactory struct {
	cfg     Config
	logger  *zap.Logger
	mu      sync.Mutex
	browser *rod.Browser
	launch  *launcher.Launcher // nil when attached to an existing Chrome
	open    map[*rodSession]struct{}
}

// NewRodFactory creates a factory. No browser is started until Acquire.
func NewRodFactory(cfg Config, logger *zap.Logger) *RodFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RodFactory{
		cfg:    cfg,
		logger: logger,
		open:   make(map[*rodSession]struct{}),
	}
}

func (f *RodFactory) startLocked(ctx context.Context) error {
	// If we already have a browser, verify it's still alive
	if f.browser != nil {
		if _, err := f.browser.Version(); err == nil {
			return nil
		}
		f.logger.Warn("stale browser connection detected, reconnecting")
		f.teardownLocked()
	}

	controlURL := f.cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(f.cfg.Headless).NoSandbox(f.cfg.NoSandbox)
		if len(f.cfg.Launch) > 0 {
			l = l.Bin(f.cfg.Launch[0])
			for _, rawFlag := range f.cfg.Launch[1:] {
				flagStr := strings.TrimLeft(rawFlag, "-")
				name, val, hasVal := strings.Cut(flagStr, "=")
				if hasVal {
					l = l.Set(flags.Flag(name), val)
				} else {
					l = l.Set(flags.Flag(name))
				}
			}
		}
		url, err := l.Context(ctx).Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
		f.launch = l
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		if f.launch != nil {
			f.launch.Kill()
			f.launch = nil
		}
		return fmt.Errorf("connect to chrome: %w", err)
	}

	f.browser = b
	f.logger.Debug("browser connected", zap.String("control_url", controlURL))
	return nil
}

// OpenSessions returns how many acquired pages have not been closed.
func (f *RodFactory) OpenSessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.open)
}

// Acquire opens a new page with the configured viewport and user agent.
func (f *RodFactory) Acquire(ctx context.Context) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser == nil {
		if err := f.startLocked(ctx); err != nil {
			return nil, err
		}
	}

	page, err := f.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             f.cfg.GetViewportWidth(),
		Height:            f.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}); err != nil {
		f.logger.Debug("failed to set viewport", zap.Error(err))
	}
	if f.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      f.cfg.UserAgent,
			AcceptLanguage: f.cfg.AcceptLanguage,
		}); err != nil {
			f.logger.Debug("failed to set user agent", zap.Error(err))
		}
	}
	if f.cfg.AcceptLanguage != "" {
		if _, err := page.SetExtraHeaders([]string{"Accept-Language", f.cfg.AcceptLanguage}); err != nil {
			f.logger.Debug("failed to set extra headers", zap.Error(err))
		}
	}

	s := &rodSession{page: page, factory: f}
	f.open[s] = struct{}{}
	return s, nil
}

// Shutdown closes tracked pages and the browser. The factory can be used
// again afterwards; the next Acquire launches a fresh browser.
func (f *RodFactory) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	orphans := len(f.open)
	err := f.teardownLocked()
	if orphans > 0 {
		f.logger.Warn("reclaimed orphaned browser sessions", zap.Int("count", orphans))
	}
	return err
}

func (f *RodFactory) teardownLocked() error {
	for s := range f.open {
		s.closeOnce.Do(func() { _ = s.page.Close() })
		delete(f.open, s)
	}

	var err error
	if f.browser != nil {
		err = f.browser.Close()
		f.browser = nil
	}
	if f.launch != nil {
		f.launch.Kill()
		f.launch.Cleanup()
		f.launch = nil
	}
	return err
}

func (f *RodFactory) release(s *rodSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.open, s)
}

// =============================================================================
// SESSION / ELEMENT
// =============================================================================

type rodSession struct {
	page      *rod.Page
	factory   *RodFactory
	closeOnce sync.Once
}

func (s *rodSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := s.page.Context(tctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

func (s *rodSession) WaitFor(ctx context.Context, probes ProbeSet, timeout time.Duration) error {
	union := probes.Union()
	if union == "" {
		return nil
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := s.page.Context(tctx).Element(union)
	return err
}

func (s *rodSession) URL() string {
	info, err := s.page.Info()
	if err != nil || info == nil {
		return ""
	}
	return info.URL
}

func (s *rodSession) Content(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

func (s *rodSession) QueryFirst(ctx context.Context, probes ProbeSet) (Element, *Probe, error) {
	p := s.page.Context(ctx)
	return queryFirst(ctx, probes, func(pr Probe) (bool, *rod.Element, error) {
		if pr.Text != "" {
			return p.HasR(pr.Selector, pr.TextPattern())
		}
		return p.Has(pr.Selector)
	})
}

func (s *rodSession) QueryAll(ctx context.Context, probes ProbeSet) ([]Element, error) {
	union := probes.Union()
	if union == "" {
		return nil, nil
	}
	els, err := s.page.Context(ctx).Elements(union)
	if err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

func (s *rodSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.page.Close()
	})
	s.factory.release(s)
	return err
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *rodElement) Property(ctx context.Context, name string) (string, error) {
	v, err := e.el.Context(ctx).Property(name)
	if err != nil {
		return "", err
	}
	if v.Nil() {
		return "", nil
	}
	return v.Str(), nil
}

func (e *rodElement) QueryFirst(ctx context.Context, probes ProbeSet) (Element, *Probe, error) {
	el := e.el.Context(ctx)
	return queryFirst(ctx, probes, func(pr Probe) (bool, *rod.Element, error) {
		if pr.Text != "" {
			return el.HasR(pr.Selector, pr.TextPattern())
		}
		return el.Has(pr.Selector)
	})
}

// queryFirst runs has for each probe in order. A probe whose query errors is
// skipped like a miss; only context cancellation aborts the scan.
func queryFirst(ctx context.Context, probes ProbeSet, has func(Probe) (bool, *rod.Element, error)) (Element, *Probe, error) {
	for i := range probes {
		found, el, err := has(probes[i])
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, nil, err
			}
			continue
		}
		if found && el != nil {
			pr := probes[i]
			return &rodElement{el: el}, &pr, nil
		}
	}
	return nil, nil, nil
}

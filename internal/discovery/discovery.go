// Package discovery finds a budget-fitting product for a gift idea by
// scraping a shopping search through a renderer session, and keeps the
// runner-up candidates for alternative cycling.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"giftflow/internal/browser"
	"giftflow/internal/config"
	"giftflow/internal/logging"
	"giftflow/internal/types"

	"go.uber.org/zap"
)

// Probes are the per-field element strategies used to read result cards.
type Probes struct {
	Cards browser.ProbeSet
	Title browser.ProbeSet
	Price browser.ProbeSet
	Link  browser.ProbeSet
	Image browser.ProbeSet
}

// DefaultProbes matches the Google Shopping result layouts seen so far.
func DefaultProbes() Probes {
	return Probes{
		Cards: browser.ProbeSet{
			{Selector: ".sh-dgr__gr-auto"},
			{Selector: ".sh-dgr__content"},
			{Selector: "[data-docid]"},
		},
		Title: browser.ProbeSet{
			{Selector: "h3"},
			{Selector: ".tAxDx"},
			{Selector: "[data-name]"},
			{Selector: ".Xjkr3b"},
		},
		Price: browser.ProbeSet{
			{Selector: ".a8Pemb"},
			{Selector: ".kHxwFf"},
			{Selector: "[data-price]"},
			{Selector: ".XrAfOe"},
		},
		Link: browser.ProbeSet{
			{Selector: "a[href*='url=']"},
			{Selector: "a[href]"},
		},
		Image: browser.ProbeSet{
			{Selector: "img"},
		},
	}
}

// Options configures an Engine.
type Options struct {
	// SearchURL is a fmt template receiving the query-escaped search terms.
	SearchURL         string
	Source            string
	NavigationTimeout time.Duration
	ResultWait        time.Duration
	PlaceholderImage  string
	Probes            Probes
}

// DefaultOptions returns options for Google Shopping.
func DefaultOptions() Options {
	return Options{
		SearchURL:         "https://www.google.com/search?q=%s&tbm=shop",
		Source:            "google_shopping",
		NavigationTimeout: 30 * time.Second,
		ResultWait:        10 * time.Second,
		PlaceholderImage:  "https://via.placeholder.com/200",
		Probes:            DefaultProbes(),
	}
}

// OptionsFrom builds options from the application config.
func OptionsFrom(cfg *config.Config) Options {
	def := DefaultProbes()
	return Options{
		SearchURL:         cfg.Discovery.SearchURL,
		Source:            cfg.Discovery.Source,
		NavigationTimeout: cfg.GetNavigationTimeout(),
		ResultWait:        cfg.GetResultWait(),
		PlaceholderImage:  cfg.Discovery.PlaceholderImage,
		Probes: Probes{
			Cards: browser.OrDefault(cfg.Discovery.CardSelectors, def.Cards),
			Title: browser.OrDefault(cfg.Discovery.TitleSelectors, def.Title),
			Price: browser.OrDefault(cfg.Discovery.PriceSelectors, def.Price),
			Link:  browser.OrDefault(cfg.Discovery.LinkSelectors, def.Link),
			Image: def.Image,
		},
	}
}

// Result is the outcome of one search.
type Result struct {
	Query        string                   `json:"query"`
	Budget       float64                  `json:"budget"`
	Selected     *types.ProductCandidate  `json:"selected"`
	Alternatives []types.ProductCandidate `json:"alternatives"`
	// Scanned counts raw cards read before filtering.
	Scanned int `json:"scanned"`
	// Degraded is set when scraping failed and the empty result stands in
	// for an unknown one; Err holds the swallowed cause.
	Degraded bool  `json:"degraded,omitempty"`
	Err      error `json:"-"`
}

// Found reports whether a product was selected.
func (r Result) Found() bool {
	return r.Selected != nil
}

// Engine runs product searches. It holds no browser state between calls.
type Engine struct {
	factory browser.Factory
	opts    Options
	logger  *zap.Logger
}

// NewEngine creates a discovery engine.
func NewEngine(factory browser.Factory, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SearchURL == "" {
		opts.SearchURL = DefaultOptions().SearchURL
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	if len(opts.Probes.Cards) == 0 {
		opts.Probes = DefaultProbes()
	}
	return &Engine{factory: factory, opts: opts, logger: logger}
}

// SearchURL builds the search page address for query.
func (e *Engine) SearchURL(query string) string {
	return fmt.Sprintf(e.opts.SearchURL, url.QueryEscape(query))
}

// Discover searches for query and selects the most expensive candidate that
// fits budget. It never fails: scraping errors yield an empty, Degraded
// result.
func (e *Engine) Discover(ctx context.Context, query string, budget float64) (res Result) {
	res = Result{Query: query, Budget: budget, Alternatives: []types.ProductCandidate{}}
	log := e.logger.With(zap.String("query", query), zap.Float64("budget", budget))

	defer func() {
		if r := recover(); r != nil {
			res = Result{
				Query:        query,
				Budget:       budget,
				Alternatives: []types.ProductCandidate{},
				Degraded:     true,
				Err:          fmt.Errorf("discovery panic: %v", r),
			}
			log.Error("product search panicked", zap.Any("panic", r))
		}
	}()

	candidates, err := e.search(ctx, query)
	if err != nil {
		res.Degraded = true
		res.Err = err
		log.Warn("product search failed; treating as no match", zap.Error(err))
		return res
	}
	res.Scanned = len(candidates)

	res.Selected, res.Alternatives = Rank(candidates, budget)
	log.Info("product search complete",
		zap.Int("scanned", len(candidates)),
		zap.Bool("found", res.Found()),
		zap.Int("alternatives", len(res.Alternatives)))
	return res
}

func (e *Engine) search(ctx context.Context, query string) ([]types.ProductCandidate, error) {
	defer logging.StartTimer(logging.CategoryDiscovery, "search").StopWithThreshold(e.opts.NavigationTimeout + e.opts.ResultWait)

	s, err := e.factory.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}
	defer s.Close()

	target := e.SearchURL(query)
	if err := s.Navigate(ctx, target, e.opts.NavigationTimeout); err != nil {
		return nil, err
	}

	// Results render asynchronously; a missing container is not fatal.
	if e.opts.ResultWait > 0 {
		if err := s.WaitFor(ctx, e.opts.Probes.Cards, e.opts.ResultWait); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			e.logger.Debug("result container did not appear", zap.Error(err))
		}
	}

	cards, err := s.QueryAll(ctx, e.opts.Probes.Cards)
	if err != nil {
		return nil, fmt.Errorf("query result cards: %w", err)
	}

	seen := make(map[string]bool, len(cards))
	out := make([]types.ProductCandidate, 0, len(cards))
	for _, card := range cards {
		raw, err := e.extract(ctx, card)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			continue
		}
		if raw.title == "" || raw.price == "" || raw.url == "" || seen[raw.url] {
			continue
		}
		price, ok := ParsePrice(raw.price)
		if !ok || price <= 0 {
			continue
		}
		seen[raw.url] = true

		img := raw.imageURL
		if img == "" {
			img = e.opts.PlaceholderImage
		}
		out = append(out, types.ProductCandidate{
			Title:    raw.title,
			Price:    price,
			URL:      raw.url,
			ImageURL: img,
			Source:   e.opts.Source,
		})
	}
	return out, nil
}

type rawCard struct {
	title    string
	price    string
	url      string
	imageURL string
}

func (e *Engine) extract(ctx context.Context, card browser.Element) (rawCard, error) {
	var rc rawCard
	var err error

	if rc.title, err = firstText(ctx, card, e.opts.Probes.Title); err != nil {
		return rc, err
	}
	if rc.price, err = firstText(ctx, card, e.opts.Probes.Price); err != nil {
		return rc, err
	}

	link, _, err := card.QueryFirst(ctx, e.opts.Probes.Link)
	if err != nil {
		return rc, err
	}
	if link != nil {
		href, err := link.Property(ctx, "href")
		if err != nil {
			return rc, err
		}
		rc.url = unwrapRedirect(href)
	}

	img, _, err := card.QueryFirst(ctx, e.opts.Probes.Image)
	if err != nil {
		return rc, err
	}
	if img != nil {
		if rc.imageURL, err = img.Property(ctx, "src"); err != nil {
			return rc, err
		}
	}
	return rc, nil
}

func firstText(ctx context.Context, el browser.Element, probes browser.ProbeSet) (string, error) {
	found, _, err := el.QueryFirst(ctx, probes)
	if err != nil || found == nil {
		return "", err
	}
	text, err := found.Text(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

var redirectTarget = regexp.MustCompile(`url=([^&]+)`)

// unwrapRedirect returns the merchant URL hidden in a search-engine redirect
// link, or href unchanged.
func unwrapRedirect(href string) string {
	m := redirectTarget.FindStringSubmatch(href)
	if m == nil {
		return href
	}
	target, err := url.QueryUnescape(m[1])
	if err != nil {
		return href
	}
	return target
}

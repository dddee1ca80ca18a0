// Package browsertest provides an in-memory browser.Factory whose pages are
// described as data, so discovery and checkout can be exercised without Chrome.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"giftflow/internal/browser"
)

// Element is a scripted DOM node.
type Element struct {
	Selector string
	Text     string
	Props    map[string]string
	Children []*Element

	// ClickTo navigates the session to this URL when clicked.
	ClickTo string
	// ClickErr is returned from Click.
	ClickErr error
	// ClickPanic makes Click panic with this value.
	ClickPanic any

	mu     sync.Mutex
	clicks int
}

// Clicks returns how many times the element was clicked.
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Page is a scripted document served at one URL.
type Page struct {
	Content     string
	Elements    []*Element
	NavigateErr error
	ContentErr  error
	// QueryErr is returned from every QueryAll on the page.
	QueryErr error
}

// Factory serves Pages keyed by URL.
type Factory struct {
	mu         sync.Mutex
	pages      map[string]*Page
	sessions   []*Session
	shutdowns  int
	AcquireErr error
}

// NewFactory builds a factory serving pages.
func NewFactory(pages map[string]*Page) *Factory {
	if pages == nil {
		pages = make(map[string]*Page)
	}
	return &Factory{pages: pages}
}

// SetPage adds or replaces the page served at url.
func (f *Factory) SetPage(url string, p *Page) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = p
}

func (f *Factory) page(url string) (*Page, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pages[url]
	return p, ok
}

// Acquire implements browser.Factory.
func (f *Factory) Acquire(ctx context.Context) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AcquireErr != nil {
		return nil, f.AcquireErr
	}
	s := &Session{factory: f}
	f.sessions = append(f.sessions, s)
	return s, nil
}

// Shutdown implements browser.Factory.
func (f *Factory) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
	return nil
}

// Sessions returns every session handed out so far.
func (f *Factory) Sessions() []*Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Session(nil), f.sessions...)
}

// Shutdowns returns how many times Shutdown was called.
func (f *Factory) Shutdowns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdowns
}

// Open returns how many sessions have not been closed.
func (f *Factory) Open() int {
	n := 0
	for _, s := range f.Sessions() {
		if s.CloseCalls() == 0 {
			n++
		}
	}
	return n
}

// Session is a fake page session.
type Session struct {
	factory *Factory

	mu         sync.Mutex
	url        string
	page       *Page
	closeCalls int
	visited    []string
}

// CloseCalls returns how many times Close was called.
func (s *Session) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

// Visited returns every URL the session loaded, in order.
func (s *Session) Visited() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visited...)
}

func (s *Session) current() *Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

func (s *Session) load(url string) error {
	p, ok := s.factory.page(url)
	if !ok {
		return fmt.Errorf("navigate %s: net::ERR_NAME_NOT_RESOLVED", url)
	}
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = url
	s.page = p
	s.visited = append(s.visited, url)
	return nil
}

// Navigate implements browser.Session.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.load(url)
}

// WaitFor implements browser.Session.
func (s *Session) WaitFor(ctx context.Context, probes browser.ProbeSet, timeout time.Duration) error {
	els, err := s.QueryAll(ctx, probes)
	if err != nil {
		return err
	}
	if len(els) == 0 {
		return context.DeadlineExceeded
	}
	return nil
}

// URL implements browser.Session.
func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Content implements browser.Session.
func (s *Session) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p := s.current()
	if p == nil {
		return "", nil
	}
	if p.ContentErr != nil {
		return "", p.ContentErr
	}
	return p.Content, nil
}

// QueryFirst implements browser.Session.
func (s *Session) QueryFirst(ctx context.Context, probes browser.ProbeSet) (browser.Element, *browser.Probe, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	p := s.current()
	if p == nil {
		return nil, nil, nil
	}
	return s.first(p.Elements, probes)
}

// QueryAll implements browser.Session.
func (s *Session) QueryAll(ctx context.Context, probes browser.ProbeSet) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := s.current()
	if p == nil {
		return nil, nil
	}
	if p.QueryErr != nil {
		return nil, p.QueryErr
	}
	var out []browser.Element
	for _, el := range p.Elements {
		for _, pr := range probes {
			if pr.Selector == el.Selector {
				out = append(out, &handle{el: el, session: s})
				break
			}
		}
	}
	return out, nil
}

// Close implements browser.Session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	return nil
}

func (s *Session) first(els []*Element, probes browser.ProbeSet) (browser.Element, *browser.Probe, error) {
	for i := range probes {
		for _, el := range els {
			if probes[i].Matches(el.Selector, el.Text) {
				pr := probes[i]
				return &handle{el: el, session: s}, &pr, nil
			}
		}
	}
	return nil, nil, nil
}

type handle struct {
	el      *Element
	session *Session
}

func (h *handle) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.el.mu.Lock()
	h.el.clicks++
	h.el.mu.Unlock()
	if h.el.ClickPanic != nil {
		panic(h.el.ClickPanic)
	}
	if h.el.ClickErr != nil {
		return h.el.ClickErr
	}
	if h.el.ClickTo != "" {
		return h.session.load(h.el.ClickTo)
	}
	return nil
}

func (h *handle) Text(ctx context.Context) (string, error) {
	return h.el.Text, nil
}

func (h *handle) Property(ctx context.Context, name string) (string, error) {
	return h.el.Props[name], nil
}

func (h *handle) QueryFirst(ctx context.Context, probes browser.ProbeSet) (browser.Element, *browser.Probe, error) {
	return h.session.first(h.el.Children, probes)
}

package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"giftflow/internal/browser/browsertest"
	"giftflow/internal/checkout"
	"giftflow/internal/discovery"
	"giftflow/internal/store"
	"giftflow/internal/types"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeDiscovery struct {
	mu      sync.Mutex
	results map[string]discovery.Result
	panics  map[string]any
	calls   map[string]int
	gate    chan struct{}
	entered chan struct{}
}

func newFakeDiscovery() *fakeDiscovery {
	return &fakeDiscovery{
		results: make(map[string]discovery.Result),
		panics:  make(map[string]any),
		calls:   make(map[string]int),
	}
}

func (f *fakeDiscovery) Discover(ctx context.Context, query string, budget float64) discovery.Result {
	f.mu.Lock()
	f.calls[query]++
	res, ok := f.results[query]
	p := f.panics[query]
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if p != nil {
		panic(p)
	}
	if !ok {
		return discovery.Result{Query: query, Budget: budget, Alternatives: []types.ProductCandidate{}}
	}
	sel, alts := discovery.Rank(res.Alternatives, budget)
	return discovery.Result{Query: query, Budget: budget, Selected: sel, Alternatives: alts}
}

// offer registers raw search candidates for query; ranking happens per call.
func (f *fakeDiscovery) offer(query string, c ...types.ProductCandidate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[query] = discovery.Result{Alternatives: c}
}

func (f *fakeDiscovery) callCount(query string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[query]
}

type fakeCheckout struct {
	mu      sync.Mutex
	results map[string]checkout.Result
	panics  map[string]any
	urls    []string
}

func newFakeCheckout() *fakeCheckout {
	return &fakeCheckout{results: make(map[string]checkout.Result), panics: make(map[string]any)}
}

func (f *fakeCheckout) Attempt(ctx context.Context, url string) checkout.Result {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	res, ok := f.results[url]
	p := f.panics[url]
	f.mu.Unlock()
	if p != nil {
		panic(p)
	}
	if !ok {
		return checkout.Result{Status: types.OrderManualRequired, Message: checkout.MsgCartReady}
	}
	return res
}

type fakeRiddles struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (f *fakeRiddles) Generate(ctx context.Context, recipient, giftIdea string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recipient)
	if f.err != nil {
		return "", f.err
	}
	return "A riddle for " + recipient, nil
}

func (f *fakeRiddles) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeCards struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (f *fakeCards) Generate(ctx context.Context, recipient, riddle string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, riddle)
	if f.err != nil {
		return "", f.err
	}
	return "https://gamma.test/" + recipient, nil
}

func (f *fakeCards) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var errQuota = errors.New("quota exceeded")

type harness struct {
	engine    *Engine
	store     *store.MemoryStore
	factory   *browsertest.Factory
	discovery *fakeDiscovery
	checkout  *fakeCheckout
	riddles   *fakeRiddles
	cards     *fakeCards
}

func newHarness(t *testing.T, items ...*types.WorkItem) *harness {
	t.Helper()
	h := &harness{
		store:     store.NewMemoryStore(zaptest.NewLogger(t)),
		factory:   browsertest.NewFactory(nil),
		discovery: newFakeDiscovery(),
		checkout:  newFakeCheckout(),
		riddles:   &fakeRiddles{},
		cards:     &fakeCards{},
	}
	require.NoError(t, h.store.ReplaceAll(context.Background(), items))
	h.engine = New(Deps{
		Store:     h.store,
		Factory:   h.factory,
		Discovery: h.discovery,
		Checkout:  h.checkout,
		Riddles:   h.riddles,
		Cards:     h.cards,
		Logger:    zaptest.NewLogger(t),
	})
	return h
}

func (h *harness) get(t *testing.T, id string) *types.WorkItem {
	t.Helper()
	it, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return it
}

func item(id, name, idea string, budget float64) *types.WorkItem {
	return &types.WorkItem{ID: id, Name: name, GiftIdea: idea, Budget: budget}
}

func approved(id, name, url string) *types.WorkItem {
	return &types.WorkItem{
		ID: id, Name: name, GiftIdea: "gift for " + name, Budget: 50,
		Product:  &types.ProductRef{URL: url},
		Approval: types.ApprovalApproved,
	}
}

func product(url string, price float64) types.ProductCandidate {
	return types.ProductCandidate{Title: url, Price: price, URL: url, ImageURL: url + ".jpg", Source: "google_shopping"}
}

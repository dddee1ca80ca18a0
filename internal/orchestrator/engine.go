// Package orchestrator runs work items through the fulfillment stages in
// batches selected by mode, and handles product denials by cycling through
// the alternatives found at discovery time.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"giftflow/internal/browser"
	"giftflow/internal/card"
	"giftflow/internal/checkout"
	"giftflow/internal/discovery"
	"giftflow/internal/riddle"
	"giftflow/internal/store"
	"giftflow/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Discoverer finds a product for a query within budget.
type Discoverer interface {
	Discover(ctx context.Context, query string, budget float64) discovery.Result
}

// Checkouter attempts checkout for a product URL.
type Checkouter interface {
	Attempt(ctx context.Context, productURL string) checkout.Result
}

// Deps are the engine's collaborators. Riddles and Cards may be nil when
// their API keys are not configured; the matching steps then fail per item.
type Deps struct {
	Store        store.Store
	Factory      browser.Factory
	Discovery    Discoverer
	Checkout     Checkouter
	Riddles      riddle.Generator
	Cards        card.Generator
	Alternatives *discovery.AlternativeCache
	Logger       *zap.Logger
}

// Engine is the orchestration engine. It processes one batch or one item
// operation at a time.
type Engine struct {
	store     store.Store
	factory   browser.Factory
	discovery Discoverer
	checkout  Checkouter
	riddles   riddle.Generator
	cards     card.Generator
	alts      *discovery.AlternativeCache
	logger    *zap.Logger

	busy sync.Mutex
	now  func() time.Time

	// ShutdownTimeout bounds the end-of-run browser cleanup.
	ShutdownTimeout time.Duration
}

// New creates an engine.
func New(d Deps) *Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Alternatives == nil {
		d.Alternatives = discovery.NewAlternativeCache()
	}
	return &Engine{
		store:           d.Store,
		factory:         d.Factory,
		discovery:       d.Discovery,
		checkout:        d.Checkout,
		riddles:         d.Riddles,
		cards:           d.Cards,
		alts:            d.Alternatives,
		logger:          d.Logger,
		now:             time.Now,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Alternatives exposes the engine's alternative cache.
func (e *Engine) Alternatives() *discovery.AlternativeCache {
	return e.alts
}

func (e *Engine) acquire() error {
	if !e.busy.TryLock() {
		return ErrRunInProgress
	}
	return nil
}

func (e *Engine) release() {
	e.busy.Unlock()
}

// shutdownBrowser reclaims every renderer session. It runs even when ctx is
// already cancelled.
func (e *Engine) shutdownBrowser(ctx context.Context) {
	if e.factory == nil {
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.ShutdownTimeout)
	defer cancel()
	if err := e.factory.Shutdown(sctx); err != nil {
		e.logger.Warn("browser shutdown failed", zap.Error(err))
	}
}

// =============================================================================
// BATCH RUNS
// =============================================================================

// Run processes every eligible item for mode, strictly one after another.
// Item failures are recorded in the report and never abort the batch. If
// ctx is cancelled the run stops before the next item and returns the
// partial report together with the context error.
func (e *Engine) Run(ctx context.Context, mode Mode) (*Report, error) {
	mode, err := ParseMode(string(mode))
	if err != nil {
		return nil, err
	}
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()
	defer e.shutdownBrowser(ctx)

	report := &Report{
		RunID:     uuid.NewString(),
		Mode:      mode,
		Outcomes:  []Outcome{},
		StartedAt: e.now(),
	}
	log := e.logger.With(zap.String("run_id", report.RunID), zap.String("mode", string(mode)))
	log.Info("run started")

	switch {
	case mode.runsDiscovery() || mode.runsOrders():
		if mode.runsDiscovery() {
			err = e.discoveryPass(ctx, report, log)
		}
		if err == nil && mode.runsOrders() {
			err = e.ordersPass(ctx, report, log)
		}
	case mode == ModeRiddles:
		err = e.riddlesPass(ctx, report, log)
	case mode == ModeCards:
		err = e.cardsPass(ctx, report, log)
	}

	report.FinishedAt = e.now()
	log.Info("run finished",
		zap.Int("processed", report.Processed),
		zap.Int("success", report.Count(StatusSuccess)),
		zap.Int("partial", report.Count(StatusPartial)),
		zap.Int("failed", report.Count(StatusFailed)),
		zap.Duration("took", report.Duration()),
		zap.Error(err))
	return report, err
}

// guard runs one item and converts panics into a failed outcome carrying
// base step flags.
func (e *Engine) guard(it *types.WorkItem, base Steps, fn func() Outcome) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("item panicked", zap.String("id", it.ID), zap.Any("panic", r), zap.Stack("stack"))
			out = Outcome{
				RowID:  it.ID,
				Name:   it.Name,
				Status: StatusFailed,
				Steps:  base,
				Error:  fmt.Sprintf("panic: %v", r),
			}
		}
	}()
	return fn()
}

func (e *Engine) list(ctx context.Context, pred store.Predicate) ([]*types.WorkItem, error) {
	items, err := e.store.List(ctx, pred)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	return items, nil
}

func (e *Engine) discoveryPass(ctx context.Context, report *Report, log *zap.Logger) error {
	items, err := e.list(ctx, store.AwaitingApproval)
	if err != nil {
		return err
	}
	log.Info("discovery pass", zap.Int("eligible", len(items)))

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if it.HasProduct() && it.Approval == types.ApprovalPending {
			log.Debug("skipping item awaiting decision", zap.String("id", it.ID), zap.String("name", it.Name))
			continue
		}
		report.add(e.guard(it, Steps{}, func() Outcome {
			r, err := e.discoverItem(ctx, it.ID)
			if err != nil {
				return Outcome{RowID: it.ID, Name: it.Name, Status: StatusFailed, Error: err.Error()}
			}
			return Outcome{
				RowID:  it.ID,
				Name:   it.Name,
				Status: classify(r.Success),
				Steps:  Steps{Discovery: r.Success},
				Error:  r.Error,
			}
		}))
	}
	return nil
}

func (e *Engine) ordersPass(ctx context.Context, report *Report, log *zap.Logger) error {
	items, err := e.list(ctx, store.ReadyToOrder)
	if err != nil {
		return err
	}
	log.Info("orders pass", zap.Int("eligible", len(items)))

	base := Steps{Discovery: true, Approval: true}
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.add(e.guard(it, base, func() Outcome {
			out := Outcome{RowID: it.ID, Name: it.Name, Steps: base}

			order, err := e.orderItem(ctx, it.ID)
			if err != nil {
				order = &StepResult{Error: err.Error()}
			}
			rid, err := e.riddleItem(ctx, it.ID)
			if err != nil {
				rid = &StepResult{Error: err.Error()}
			}
			crd := &StepResult{Error: ErrSkipped.Error()}
			if rid.Success {
				if crd, err = e.cardItem(ctx, it.ID); err != nil {
					crd = &StepResult{Error: err.Error()}
				}
			}

			out.Steps.Order = order.Success
			out.Steps.Riddle = rid.Success
			out.Steps.Card = crd.Success
			out.Status = classify(order.Success, rid.Success, crd.Success)
			out.Message = order.Message
			cardErr := crd.Error
			if !rid.Success {
				cardErr = ""
			}
			out.Error = joinErrors(order.Error, rid.Error, cardErr)
			return out
		}))
	}
	return nil
}

func (e *Engine) riddlesPass(ctx context.Context, report *Report, log *zap.Logger) error {
	items, err := e.list(ctx, store.ReadyToOrder)
	if err != nil {
		return err
	}
	log.Info("riddles pass", zap.Int("eligible", len(items)))

	base := Steps{Discovery: true, Approval: true}
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if it.Riddle != "" {
			continue
		}
		report.add(e.guard(it, base, func() Outcome {
			out := Outcome{RowID: it.ID, Name: it.Name, Steps: base}
			r, err := e.riddleItem(ctx, it.ID)
			if err != nil {
				r = &StepResult{Error: err.Error()}
			}
			out.Steps.Riddle = r.Success
			out.Status = classify(r.Success)
			out.Error = r.Error
			return out
		}))
	}
	return nil
}

func (e *Engine) cardsPass(ctx context.Context, report *Report, log *zap.Logger) error {
	items, err := e.list(ctx, store.ReadyToOrder)
	if err != nil {
		return err
	}
	log.Info("cards pass", zap.Int("eligible", len(items)))

	base := Steps{Discovery: true, Approval: true, Riddle: true}
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !it.CardReady() {
			continue
		}
		report.add(e.guard(it, base, func() Outcome {
			out := Outcome{RowID: it.ID, Name: it.Name, Steps: base}
			r, err := e.cardItem(ctx, it.ID)
			if err != nil {
				r = &StepResult{Error: err.Error()}
			}
			out.Steps.Card = r.Success
			out.Status = classify(r.Success)
			out.Error = r.Error
			return out
		}))
	}
	return nil
}

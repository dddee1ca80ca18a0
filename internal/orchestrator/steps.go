package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"giftflow/internal/types"

	"go.uber.org/zap"
)

// StepResult is the outcome of one stage applied to one item. Error holds
// the failure text shown to the operator; Message holds a non-error note.
type StepResult struct {
	Success bool             `json:"success"`
	Status  types.OrderState `json:"status,omitempty"`
	Message string           `json:"message,omitempty"`
	Error   string           `json:"error,omitempty"`
	Item    *types.WorkItem  `json:"gift,omitempty"`
	// Degraded is set when discovery could not read the search page.
	Degraded bool `json:"degraded,omitempty"`
}

func failure(err error) *StepResult {
	return &StepResult{Error: err.Error()}
}

// =============================================================================
// SINGLE-ITEM OPERATIONS
// =============================================================================

// Discover runs product discovery for one item.
func (e *Engine) Discover(ctx context.Context, id string) (*StepResult, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()
	defer e.shutdownBrowser(ctx)
	return e.discoverItem(ctx, id)
}

// Order runs checkout for one item. The item must carry a product and be
// approved.
func (e *Engine) Order(ctx context.Context, id string) (*StepResult, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()
	defer e.shutdownBrowser(ctx)

	it, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkoutBlocker(it); err != nil {
		return nil, err
	}
	return e.orderItem(ctx, id)
}

// checkoutBlocker explains why it may not enter checkout, or returns nil.
func checkoutBlocker(it *types.WorkItem) error {
	switch {
	case it.CheckoutReady():
		return nil
	case !it.HasProduct():
		return ErrNoProduct
	default:
		return ErrNotApproved
	}
}

// Riddle generates the riddle for one item.
func (e *Engine) Riddle(ctx context.Context, id string) (*StepResult, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()
	return e.riddleItem(ctx, id)
}

// Card generates the card for one item.
func (e *Engine) Card(ctx context.Context, id string) (*StepResult, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()
	return e.cardItem(ctx, id)
}

// =============================================================================
// STAGES
// =============================================================================

// discoverItem searches for a product, stores the pick with approval reset to
// Pending, and seeds the alternative pool.
func (e *Engine) discoverItem(ctx context.Context, id string) (*StepResult, error) {
	it, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	res := e.discovery.Discover(ctx, it.GiftIdea, it.Budget)
	if res.Selected == nil {
		r := failure(ErrNoMatch)
		r.Degraded = res.Degraded
		return r, nil
	}

	updated, err := e.store.Update(ctx, id, types.SuggestProduct(*res.Selected))
	if err != nil {
		return nil, fmt.Errorf("store suggestion: %w", err)
	}
	e.alts.MarkOffered(id, res.Selected.URL)
	e.alts.Put(id, res.Alternatives)

	e.logger.Info("product suggested",
		zap.String("id", id),
		zap.String("title", res.Selected.Title),
		zap.Float64("price", res.Selected.Price),
		zap.Int("alternatives", len(res.Alternatives)))
	return &StepResult{Success: true, Item: updated}, nil
}

// orderItem runs checkout and records the order state. Success mirrors the
// automaton's own flag; a manual-required result is acceptable and carries
// its hint in Message rather than Error.
func (e *Engine) orderItem(ctx context.Context, id string) (*StepResult, error) {
	it, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkoutBlocker(it); err != nil {
		return failure(err), nil
	}

	res := e.checkout.Attempt(ctx, it.ProductURL())
	updated, err := e.store.Update(ctx, id, types.SetOrder(res.Status))
	if err != nil {
		return nil, fmt.Errorf("store order status: %w", err)
	}

	out := &StepResult{Success: res.Success, Status: res.Status, Item: updated}
	if res.Success || res.Status == types.OrderManualRequired {
		out.Message = res.Message
	} else {
		out.Error = res.Message
	}
	return out, nil
}

// riddleItem generates and stores a riddle. An existing riddle is kept and
// counts as success.
func (e *Engine) riddleItem(ctx context.Context, id string) (*StepResult, error) {
	it, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.Riddle != "" {
		return &StepResult{Success: true, Item: it}, nil
	}
	if e.riddles == nil {
		return failure(ErrRiddleNotConfigured), nil
	}

	text, err := e.riddles.Generate(ctx, it.Name, it.GiftIdea)
	if err != nil {
		e.logger.Warn("riddle generation failed", zap.String("id", id), zap.Error(err))
		return failure(err), nil
	}
	updated, err := e.store.Update(ctx, id, types.SetRiddle(text))
	if err != nil {
		return nil, fmt.Errorf("store riddle: %w", err)
	}
	return &StepResult{Success: true, Item: updated}, nil
}

// cardItem generates and stores a card. It requires a riddle; an existing
// card is kept and counts as success.
func (e *Engine) cardItem(ctx context.Context, id string) (*StepResult, error) {
	it, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.Riddle == "" {
		return failure(ErrNoRiddle), nil
	}
	if it.CardURL != "" {
		return &StepResult{Success: true, Item: it}, nil
	}
	if e.cards == nil {
		return failure(ErrCardNotConfigured), nil
	}

	link, err := e.cards.Generate(ctx, it.Name, it.Riddle)
	if err != nil {
		e.logger.Warn("card generation failed", zap.String("id", id), zap.Error(err))
		return failure(err), nil
	}
	updated, err := e.store.Update(ctx, id, types.SetCard(link))
	if err != nil {
		return nil, fmt.Errorf("store card: %w", err)
	}
	return &StepResult{Success: true, Item: updated}, nil
}

// IsNotFound reports whether err means the work item does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

package orchestrator

import (
	"context"
	"fmt"

	"giftflow/internal/types"

	"go.uber.org/zap"
)

// MsgNoAlternatives is reported when a denied item has nothing left to offer.
const MsgNoAlternatives = "No more alternatives available within budget"

// DenialResult is the outcome of HandleDenial.
type DenialResult struct {
	Success   bool                    `json:"success"`
	Action    string                  `json:"action,omitempty"`
	Product   *types.ProductCandidate `json:"product,omitempty"`
	Remaining int                     `json:"remainingAlternatives"`
	Message   string                  `json:"message,omitempty"`
	Item      *types.WorkItem         `json:"gift,omitempty"`
}

// HandleDenial offers the next alternative for a denied item. The pool seeded
// by discovery is used first; when it is empty the item is searched again.
// The offered product replaces the current one and approval resets to
// Pending. With nothing left the item is marked Denied.
func (e *Engine) HandleDenial(ctx context.Context, id string) (*DenialResult, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()

	it, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	log := e.logger.With(zap.String("id", id), zap.String("name", it.Name))
	rejected := it.ProductURL()
	e.alts.MarkOffered(id, rejected)

	if e.alts.Len(id) == 0 {
		log.Info("alternative pool empty; searching again")
		res := e.discovery.Discover(ctx, it.GiftIdea, it.Budget)
		e.shutdownBrowser(ctx)
		if res.Degraded {
			log.Warn("re-discovery degraded", zap.Error(res.Err))
		}
		pool := res.Alternatives
		if res.Selected != nil {
			pool = append([]types.ProductCandidate{*res.Selected}, res.Alternatives...)
		}
		// Put drops the rejected product and anything offered before.
		e.alts.Put(id, pool)
	}

	next, remaining := e.alts.Take(id, rejected)
	if next == nil {
		if it.Approval != types.ApprovalDenied {
			if _, err := e.store.Update(ctx, id, types.SetApproval(types.ApprovalDenied)); err != nil {
				return nil, fmt.Errorf("store denial: %w", err)
			}
		}
		log.Info("no alternatives left")
		return &DenialResult{Message: MsgNoAlternatives}, nil
	}

	updated, err := e.store.Update(ctx, id, types.SuggestProduct(*next))
	if err != nil {
		return nil, fmt.Errorf("store alternative: %w", err)
	}
	log.Info("alternative suggested",
		zap.String("title", next.Title),
		zap.Float64("price", next.Price),
		zap.Int("remaining", remaining))
	return &DenialResult{
		Success:   true,
		Action:    "suggested_alternative",
		Product:   next,
		Remaining: remaining,
		Item:      updated,
	}, nil
}

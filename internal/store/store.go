// Package store holds work items for the lifetime of the process. Two
// backends share one contract: a map guarded by a mutex, and SQLite through
// the pure-Go modernc driver (in-memory by default).
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"giftflow/internal/config"
	"giftflow/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no work item has the requested id.
var ErrNotFound = errors.New("gift not found")

// Predicate selects work items in List. A nil predicate selects everything.
type Predicate func(*types.WorkItem) bool

// Store is the work-item repository. Implementations return copies, so
// callers may mutate what they receive without affecting stored state.
type Store interface {
	Get(ctx context.Context, id string) (*types.WorkItem, error)
	// List returns matching items in import order.
	List(ctx context.Context, pred Predicate) ([]*types.WorkItem, error)
	// Update applies patch and returns the updated item.
	Update(ctx context.Context, id string, patch types.Patch) (*types.WorkItem, error)
	// ReplaceAll drops every item and stores items in the given order.
	ReplaceAll(ctx context.Context, items []*types.WorkItem) error
	Clear(ctx context.Context) error
	Close() error
}

// NewID returns a fresh work-item id.
func NewID() string {
	return "gift_" + uuid.NewString()
}

// New opens the backend selected by cfg.
func New(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemoryStore(logger), nil
	case "sqlite":
		return OpenSQLite(ctx, cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// =============================================================================
// SELECTION PREDICATES
// =============================================================================

// AwaitingApproval selects items that have no approve/deny decision.
func AwaitingApproval(w *types.WorkItem) bool {
	return w.Approval.AwaitingDecision()
}

// ReadyToOrder selects approved items whose checkout has not started.
func ReadyToOrder(w *types.WorkItem) bool {
	return w.Approval == types.ApprovalApproved && w.Order.NotStarted()
}

func validateAll(items []*types.WorkItem) error {
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it == nil {
			return errors.New("nil work item")
		}
		if err := it.Validate(); err != nil {
			return err
		}
		if seen[it.ID] {
			return fmt.Errorf("duplicate work item id %s", it.ID)
		}
		seen[it.ID] = true
	}
	return nil
}

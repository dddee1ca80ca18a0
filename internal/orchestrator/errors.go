package orchestrator

import (
	"errors"

	"giftflow/internal/store"
)

var (
	// ErrInvalidMode is returned for an unknown mode token.
	ErrInvalidMode = errors.New("invalid mode")
	// ErrRunInProgress is returned when another run or item operation holds
	// the engine.
	ErrRunInProgress = errors.New("an orchestration run is already in progress")
	// ErrNotFound is returned when the referenced work item does not exist.
	ErrNotFound = store.ErrNotFound

	// Per-item step failures. Their text is reported verbatim in outcomes.
	ErrNoMatch             = errors.New("No products found within budget")
	ErrNoProduct           = errors.New("No product link")
	ErrNoRiddle            = errors.New("No riddle found")
	ErrSkipped             = errors.New("Skipped")
	ErrRiddleNotConfigured = errors.New("riddle generation is not configured")
	ErrCardNotConfigured   = errors.New("card generation is not configured")
)

// ErrNotApproved is returned when a single-item order targets an item that
// has not been approved.
var ErrNotApproved = errors.New("Gift is not approved for ordering")

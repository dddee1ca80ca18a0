// Package types defines the gift fulfillment domain model shared by every stage
// of the pipeline: work items, their stage states, and product candidates.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidState is wrapped by the Parse functions for unknown labels.
var ErrInvalidState = errors.New("invalid state")

// =============================================================================
// STAGE STATES
// =============================================================================

// ApprovalState is the human decision recorded against a suggested product.
// The zero value is "unset": nothing has been suggested yet.
type ApprovalState string

const (
	ApprovalUnset    ApprovalState = ""
	ApprovalPending  ApprovalState = "Pending"
	ApprovalApproved ApprovalState = "Approved"
	ApprovalDenied   ApprovalState = "Denied"
)

// AwaitingDecision reports whether no approve/deny decision has been made.
func (a ApprovalState) AwaitingDecision() bool {
	return a == ApprovalUnset || a == ApprovalPending
}

func (a ApprovalState) String() string { return string(a) }

// ParseApprovalState accepts the display labels case-insensitively.
func ParseApprovalState(s string) (ApprovalState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ApprovalUnset, nil
	case "pending":
		return ApprovalPending, nil
	case "approved":
		return ApprovalApproved, nil
	case "denied":
		return ApprovalDenied, nil
	}
	return ApprovalUnset, fmt.Errorf("%w: unknown approval status %q", ErrInvalidState, s)
}

// OrderState is the outcome of the checkout stage. The zero value is treated
// the same as OrderNotStarted.
type OrderState string

const (
	OrderUnset          OrderState = ""
	OrderNotStarted     OrderState = "Not started"
	OrderOrdered        OrderState = "Ordered"
	OrderManualRequired OrderState = "Manual purchase required"
	OrderFailed         OrderState = "Failed"
)

// NotStarted reports whether checkout has never produced an outcome.
func (o OrderState) NotStarted() bool {
	return o == OrderUnset || o == OrderNotStarted
}

func (o OrderState) String() string {
	if o == OrderUnset {
		return string(OrderNotStarted)
	}
	return string(o)
}

// ParseOrderState accepts the display labels and the short tokens used on the
// command line ("manual_required", "not_started").
func ParseOrderState(s string) (OrderState, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "_", " ")
	switch norm {
	case "":
		return OrderUnset, nil
	case "not started":
		return OrderNotStarted, nil
	case "ordered":
		return OrderOrdered, nil
	case "manual purchase required", "manual required", "manual":
		return OrderManualRequired, nil
	case "failed":
		return OrderFailed, nil
	}
	return OrderUnset, fmt.Errorf("%w: unknown order status %q", ErrInvalidState, s)
}

// =============================================================================
// PRODUCTS
// =============================================================================

// ProductCandidate is a single scraped search result. Candidates are never
// persisted; two candidates are the same product when their URLs match.
type ProductCandidate struct {
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	URL      string  `json:"url"`
	ImageURL string  `json:"imageUrl"`
	Source   string  `json:"source"`
}

// Ref converts the candidate into the reference stored on a work item.
func (c ProductCandidate) Ref() *ProductRef {
	return &ProductRef{
		URL:      c.URL,
		Title:    c.Title,
		Price:    c.Price,
		ImageURL: c.ImageURL,
		Source:   c.Source,
	}
}

// ProductRef is the product currently suggested for a work item.
type ProductRef struct {
	URL      string  `json:"url"`
	Title    string  `json:"title,omitempty"`
	Price    float64 `json:"price,omitempty"`
	ImageURL string  `json:"imageUrl,omitempty"`
	Source   string  `json:"source,omitempty"`
}

// =============================================================================
// WORK ITEMS
// =============================================================================

// WorkItem is one gift fulfillment record tracked through the pipeline.
type WorkItem struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	GiftIdea string        `json:"giftIdea"`
	Budget   float64       `json:"budget"`
	Product  *ProductRef   `json:"product,omitempty"`
	Approval ApprovalState `json:"approvalStatus,omitempty"`
	Order    OrderState    `json:"orderStatus,omitempty"`
	Riddle   string        `json:"riddle,omitempty"`
	CardURL  string        `json:"cardLink,omitempty"`
}

// ProductURL returns the suggested product link, or "" when none exists.
func (w *WorkItem) ProductURL() string {
	if w.Product == nil {
		return ""
	}
	return w.Product.URL
}

// HasProduct reports whether discovery has attached a product.
func (w *WorkItem) HasProduct() bool {
	return w.Product != nil && w.Product.URL != ""
}

// CheckoutReady reports whether the item may enter checkout: it must be
// approved and carry a product reference.
func (w *WorkItem) CheckoutReady() bool {
	return w.Approval == ApprovalApproved && w.HasProduct()
}

// CardReady reports whether a card can be generated: a riddle exists and no
// card has been produced yet.
func (w *WorkItem) CardReady() bool {
	return w.Riddle != "" && w.CardURL == ""
}

// Clone returns a deep copy so callers never share a ProductRef pointer with
// the store.
func (w *WorkItem) Clone() *WorkItem {
	if w == nil {
		return nil
	}
	c := *w
	if w.Product != nil {
		p := *w.Product
		c.Product = &p
	}
	return &c
}

// Validate checks the invariants that hold for every stored item.
func (w *WorkItem) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("work item id is required")
	}
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("work item %s: name is required", w.ID)
	}
	if strings.TrimSpace(w.GiftIdea) == "" {
		return fmt.Errorf("work item %s: gift idea is required", w.ID)
	}
	if w.Budget <= 0 {
		return fmt.Errorf("work item %s: budget must be positive, got %v", w.ID, w.Budget)
	}
	return nil
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Product  *ProductRef
	Approval *ApprovalState
	Order    *OrderState
	Riddle   *string
	CardURL  *string
}

// Apply merges the patch into w in place.
func (p Patch) Apply(w *WorkItem) {
	if p.Product != nil {
		prod := *p.Product
		w.Product = &prod
	}
	if p.Approval != nil {
		w.Approval = *p.Approval
	}
	if p.Order != nil {
		w.Order = *p.Order
	}
	if p.Riddle != nil {
		w.Riddle = *p.Riddle
	}
	if p.CardURL != nil {
		w.CardURL = *p.CardURL
	}
}

// SuggestProduct builds the patch applied when discovery (or alternative
// cycling) offers a product: the product is replaced and approval resets to
// Pending.
func SuggestProduct(c ProductCandidate) Patch {
	pending := ApprovalPending
	return Patch{Product: c.Ref(), Approval: &pending}
}

// SetOrder builds a patch that records a checkout outcome.
func SetOrder(o OrderState) Patch {
	return Patch{Order: &o}
}

// SetApproval builds a patch that records an approval decision.
func SetApproval(a ApprovalState) Patch {
	return Patch{Approval: &a}
}

// SetRiddle builds a patch that stores generated riddle text.
func SetRiddle(text string) Patch {
	return Patch{Riddle: &text}
}

// SetCard builds a patch that stores a generated card link.
func SetCard(url string) Patch {
	return Patch{CardURL: &url}
}

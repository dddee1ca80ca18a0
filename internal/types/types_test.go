package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApprovalState_AwaitingDecision(t *testing.T) {
	tests := []struct {
		state ApprovalState
		want  bool
	}{
		{ApprovalUnset, true},
		{ApprovalPending, true},
		{ApprovalApproved, false},
		{ApprovalDenied, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.AwaitingDecision())
		})
	}
}

func TestParseApprovalState(t *testing.T) {
	got, err := ParseApprovalState(" approved ")
	require.NoError(t, err)
	assert.Equal(t, ApprovalApproved, got)

	got, err = ParseApprovalState("")
	require.NoError(t, err)
	assert.Equal(t, ApprovalUnset, got)

	_, err = ParseApprovalState("maybe")
	assert.Error(t, err)
}

func TestParseOrderState(t *testing.T) {
	tests := []struct {
		in   string
		want OrderState
	}{
		{"Not started", OrderNotStarted},
		{"not_started", OrderNotStarted},
		{"Manual purchase required", OrderManualRequired},
		{"manual_required", OrderManualRequired},
		{"ORDERED", OrderOrdered},
		{"failed", OrderFailed},
		{"", OrderUnset},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOrderState(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseOrderState("shipped")
	assert.Error(t, err)
}

func TestOrderState_NotStarted(t *testing.T) {
	assert.True(t, OrderUnset.NotStarted())
	assert.True(t, OrderNotStarted.NotStarted())
	assert.False(t, OrderManualRequired.NotStarted())
	assert.False(t, OrderFailed.NotStarted())
}

func TestWorkItem_Eligibility(t *testing.T) {
	item := &WorkItem{ID: "gift_1", Name: "Ana", GiftIdea: "scarf", Budget: 40}
	assert.False(t, item.CheckoutReady(), "no approval, no product")

	item.Approval = ApprovalApproved
	assert.False(t, item.CheckoutReady(), "approved without product")

	item.Product = &ProductRef{URL: "https://shop.example/scarf"}
	assert.True(t, item.CheckoutReady())

	assert.False(t, item.CardReady(), "no riddle yet")
	item.Riddle = "soft and warm"
	assert.True(t, item.CardReady())
	item.CardURL = "https://cards.example/1"
	assert.False(t, item.CardReady(), "card already produced")
}

func TestWorkItem_Validate(t *testing.T) {
	item := WorkItem{ID: "gift_1", Name: "Ana", GiftIdea: "scarf", Budget: 40}
	require.NoError(t, item.Validate())

	item.Budget = 0
	assert.Error(t, item.Validate())
}

func TestPatch_Apply(t *testing.T) {
	item := &WorkItem{ID: "gift_1", Name: "Ana", GiftIdea: "scarf", Budget: 40, Approval: ApprovalDenied}

	SuggestProduct(ProductCandidate{Title: "Wool", Price: 35, URL: "u1"}).Apply(item)
	require.NotNil(t, item.Product)
	assert.Equal(t, "u1", item.Product.URL)
	assert.Equal(t, 35.0, item.Product.Price)
	assert.Equal(t, ApprovalPending, item.Approval)

	SetRiddle("riddle").Apply(item)
	SetCard("card").Apply(item)
	SetOrder(OrderManualRequired).Apply(item)
	assert.Equal(t, "riddle", item.Riddle)
	assert.Equal(t, "card", item.CardURL)
	assert.Equal(t, OrderManualRequired, item.Order)
}

func TestWorkItem_CloneIsDeep(t *testing.T) {
	item := &WorkItem{ID: "gift_1", Product: &ProductRef{URL: "u1"}}
	c := item.Clone()
	c.Product.URL = "u2"
	assert.Equal(t, "u1", item.Product.URL)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "Not started", OrderUnset.String())
	assert.Equal(t, "Manual purchase required", OrderManualRequired.String())
	assert.Equal(t, "", ApprovalUnset.String())
	assert.Equal(t, "Denied", ApprovalDenied.String())
}

func TestParseStates_UnknownLabel(t *testing.T) {
	_, err := ParseApprovalState("maybe")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = ParseOrderState("shipped")
	assert.ErrorIs(t, err, ErrInvalidState)
}

package orchestrator

import (
	"context"
	"testing"

	"giftflow/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleDenial_CyclesWithoutRepeats(t *testing.T) {
	h := newHarness(t, item("gift_1", "Alice", "scarf", 100))
	h.discovery.offer("scarf", product("s120", 120), product("s80", 80), product("s60", 60), product("s40", 40))
	ctx := context.Background()

	_, err := h.engine.Run(ctx, ModeDiscovery)
	require.NoError(t, err)
	require.Equal(t, "s80", h.get(t, "gift_1").ProductURL())

	seen := map[string]bool{"s80": true}
	var offered []string
	for {
		res, err := h.engine.HandleDenial(ctx, "gift_1")
		require.NoError(t, err)
		if !res.Success {
			assert.Equal(t, MsgNoAlternatives, res.Message)
			break
		}
		require.NotNil(t, res.Product)
		assert.False(t, seen[res.Product.URL], "re-offered %s", res.Product.URL)
		assert.LessOrEqual(t, res.Product.Price, 100.0)
		seen[res.Product.URL] = true
		offered = append(offered, res.Product.URL)

		it := h.get(t, "gift_1")
		assert.Equal(t, res.Product.URL, it.ProductURL())
		assert.Equal(t, types.ApprovalPending, it.Approval)
		require.Less(t, len(offered), 10, "cycling never terminated")
	}

	assert.Equal(t, []string{"s60", "s40"}, offered)
	assert.Equal(t, 2, h.discovery.callCount("scarf"), "one re-search once the pool ran dry")
	assert.Equal(t, types.ApprovalDenied, h.get(t, "gift_1").Approval)
}

func TestHandleDenial_RebuildsPoolWhenEmpty(t *testing.T) {
	it := item("gift_1", "Alice", "scarf", 100)
	it.Product = &types.ProductRef{URL: "s80"}
	it.Approval = types.ApprovalDenied
	h := newHarness(t, it)
	h.discovery.offer("scarf", product("s80", 80), product("s60", 60), product("s40", 40))

	res, err := h.engine.HandleDenial(context.Background(), "gift_1")
	require.NoError(t, err)

	require.True(t, res.Success)
	assert.Equal(t, "suggested_alternative", res.Action)
	assert.Equal(t, "s60", res.Product.URL)
	assert.Equal(t, 1, res.Remaining)
	assert.Equal(t, 1, h.discovery.callCount("scarf"))
	assert.Equal(t, 1, h.factory.Shutdowns())
}

func TestHandleDenial_RebuiltPoolKeepsNewTopProduct(t *testing.T) {
	h := newHarness(t, item("gift_1", "Alice", "scarf", 100))
	h.discovery.offer("scarf", product("a90", 90))
	ctx := context.Background()

	_, err := h.engine.Run(ctx, ModeDiscovery)
	require.NoError(t, err)
	require.Equal(t, "a90", h.get(t, "gift_1").ProductURL())
	require.Equal(t, 0, h.engine.Alternatives().Len("gift_1"))

	h.discovery.offer("scarf", product("c95", 95), product("a90", 90))

	res, err := h.engine.HandleDenial(ctx, "gift_1")
	require.NoError(t, err)

	require.True(t, res.Success, res.Message)
	assert.Equal(t, "c95", res.Product.URL)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, "c95", h.get(t, "gift_1").ProductURL())
	assert.Equal(t, types.ApprovalPending, h.get(t, "gift_1").Approval)
}

func TestHandleDenial_NotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.HandleDenial(context.Background(), "gift_missing")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsNotFound(err))
}

func TestSingleItemOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("discover", func(t *testing.T) {
		h := newHarness(t, item("gift_1", "Alice", "scarf", 100))
		h.discovery.offer("scarf", product("s80", 80))

		res, err := h.engine.Discover(ctx, "gift_1")
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "s80", res.Item.ProductURL())
		assert.Equal(t, 1, h.factory.Shutdowns())

		_, err = h.engine.Discover(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("order requires approval and product", func(t *testing.T) {
		pending := approved("gift_1", "Alice", "https://shop.test/a")
		pending.Approval = types.ApprovalPending
		noProduct := approved("gift_2", "Bob", "")
		noProduct.Product = nil
		h := newHarness(t, pending, noProduct, approved("gift_3", "Carol", "https://shop.test/c"))

		_, err := h.engine.Order(ctx, "gift_1")
		assert.ErrorIs(t, err, ErrNotApproved)
		_, err = h.engine.Order(ctx, "gift_2")
		assert.ErrorIs(t, err, ErrNoProduct)

		res, err := h.engine.Order(ctx, "gift_3")
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, types.OrderManualRequired, res.Status)
		assert.NotEmpty(t, res.Message)
		assert.Equal(t, types.OrderManualRequired, h.get(t, "gift_3").Order)
	})

	t.Run("riddle is not regenerated", func(t *testing.T) {
		h := newHarness(t, item("gift_1", "Alice", "scarf", 100))

		first, err := h.engine.Riddle(ctx, "gift_1")
		require.NoError(t, err)
		second, err := h.engine.Riddle(ctx, "gift_1")
		require.NoError(t, err)

		assert.Equal(t, first.Item.Riddle, second.Item.Riddle)
		assert.Equal(t, 1, h.riddles.count())
	})

	t.Run("card needs a riddle", func(t *testing.T) {
		h := newHarness(t, item("gift_1", "Alice", "scarf", 100))

		res, err := h.engine.Card(ctx, "gift_1")
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "No riddle found", res.Error)
		assert.Equal(t, 0, h.cards.count())
	})

	t.Run("generators not configured", func(t *testing.T) {
		h := newHarness(t, item("gift_1", "Alice", "scarf", 100))
		h.engine.riddles = nil

		res, err := h.engine.Riddle(ctx, "gift_1")
		require.NoError(t, err)
		assert.Equal(t, ErrRiddleNotConfigured.Error(), res.Error)
	})
}

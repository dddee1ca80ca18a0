package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"giftflow/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	in := `Name,Gift Idea,Budget
Alice,"Wool scarf, red",$1,250
Bob,Coffee mug,25

,Missing name,10
Dave,Free thing,0
Erin,Book,"$40"
`
	res, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)

	require.Len(t, res.Items, 3)
	assert.Equal(t, "Alice", res.Items[0].Name)
	assert.Equal(t, "Wool scarf, red", res.Items[0].GiftIdea)
	// Unquoted "$1,250" spills into a fourth column; only "$1" is the budget.
	assert.Equal(t, 1.0, res.Items[0].Budget)
	assert.Equal(t, 25.0, res.Items[1].Budget)
	assert.Equal(t, 40.0, res.Items[2].Budget)
	assert.Len(t, res.Skipped, 2)

	for _, it := range res.Items {
		assert.True(t, strings.HasPrefix(it.ID, "gift_"))
		assert.Equal(t, types.ApprovalUnset, it.Approval)
		assert.Nil(t, it.Product)
	}
}

func TestParseCSV_HeaderAliases(t *testing.T) {
	in := "NAME , gift , Max Budget\nAlice,scarf,\"$1,250.50\"\n"
	res, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, 1250.50, res.Items[0].Budget)
}

func TestParseCSV_Errors(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("Name,Gift Idea,Budget\n"))
	assert.ErrorIs(t, err, ErrEmptyCSV)

	_, err = ParseCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyCSV)

	_, err = ParseCSV(strings.NewReader("Name,Idea,Cost\nA,b,1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Found: name, idea, cost")
}

func TestParseCSV_BadStateLabelKeepsRow(t *testing.T) {
	in := "Name,Gift Idea,Budget,Approval Status,Order Status\n" +
		"Alice,scarf,50,Maybe,Shipped\n" +
		"Bob,mug,20,Approved,Ordered\n"
	res, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)

	require.Len(t, res.Items, 2)
	assert.Empty(t, res.Skipped)
	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0], "Row 2")
	assert.Contains(t, res.Warnings[0], "approval")
	assert.Contains(t, res.Warnings[1], "order")

	assert.Equal(t, types.ApprovalUnset, res.Items[0].Approval)
	assert.Equal(t, types.OrderUnset, res.Items[0].Order)
	assert.Equal(t, types.ApprovalApproved, res.Items[1].Approval)
	assert.Equal(t, types.OrderOrdered, res.Items[1].Order)
}

func TestParseBudget(t *testing.T) {
	assert.Equal(t, 1250.0, ParseBudget("$1,250"))
	assert.Equal(t, 50.0, ParseBudget("50 USD"))
	assert.Equal(t, 0.0, ParseBudget("n/a"))
	assert.Equal(t, 0.0, ParseBudget(""))
}

func TestCSV_RoundTrip(t *testing.T) {
	items := []*types.WorkItem{
		{ID: "gift_1", Name: "Alice", GiftIdea: "scarf", Budget: 100,
			Product:  &types.ProductRef{URL: "https://shop.test/scarf", ImageURL: "https://img.test/s.jpg"},
			Approval: types.ApprovalApproved, Order: types.OrderManualRequired,
			Riddle:  "I keep you warm, \"soft\" and red,\nwrapped round your neck instead of your head.",
			CardURL: "https://gamma.test/c/1"},
		{ID: "gift_2", Name: "Bob", GiftIdea: "mug", Budget: 25.5, Approval: types.ApprovalPending},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, items))
	assert.True(t, strings.HasPrefix(buf.String(), strings.Join(ExportHeader, ",")+"\n"))

	res, err := ParseCSV(&buf)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Empty(t, res.Skipped)

	got := res.Items[0]
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, items[0].Riddle, got.Riddle)
	assert.Equal(t, types.ApprovalApproved, got.Approval)
	assert.Equal(t, types.OrderManualRequired, got.Order)
	assert.Equal(t, "https://shop.test/scarf", got.ProductURL())
	assert.Equal(t, "https://gamma.test/c/1", got.CardURL)

	assert.Empty(t, res.Warnings)

	assert.Equal(t, 25.5, res.Items[1].Budget)
	assert.Equal(t, types.ApprovalPending, res.Items[1].Approval)
	assert.Nil(t, res.Items[1].Product)
}

func TestImportAndExportFile(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	res, err := Import(ctx, s, strings.NewReader("Name,Gift Idea,Budget\nAlice,scarf,100\nBob,mug,25\n"))
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)

	path := filepath.Join(t.TempDir(), "gifts.csv")
	n, err := ExportFile(ctx, s, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Alice,scarf,100,,,,,,", lines[1])

	// Re-import replaces.
	_, err = Import(ctx, s, strings.NewReader("Name,Gift Idea,Budget\nCarol,lamp,60\n"))
	require.NoError(t, err)
	all, err := s.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Carol", all[0].Name)
}

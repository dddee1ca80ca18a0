package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"giftflow/internal/orchestrator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestImportListExport(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GIFTFLOW_DB", "file:"+filepath.Join(dir, "gifts.db"))

	src := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(src, []byte("Name,Gift Idea,Budget\nAlice,scarf,$50\nBob,,20\n"), 0o644))

	out, err := execute(t, "import", src)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 gifts")
	assert.Contains(t, out, "Skipping row")

	out, err = execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "scarf")
	assert.Contains(t, out, "Not started")

	dst := filepath.Join(dir, "out.csv")
	out, err = execute(t, "export", dst)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 1 gifts")

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Name,Gift Idea,Budget"))
	assert.Contains(t, string(data), "Alice,scarf,50")
}

func TestRun_RejectsUnknownMode(t *testing.T) {
	t.Setenv("GIFTFLOW_DB", "")
	_, err := execute(t, "run", "--mode", "everything")
	require.Error(t, err)
	assert.ErrorIs(t, err, orchestrator.ErrInvalidMode)
	runMode = string(orchestrator.ModeDiscovery)
}

func TestModeList(t *testing.T) {
	assert.Equal(t, "discovery, orders, riddles, cards, full", modeList())
}

func TestRenderReport(t *testing.T) {
	start := time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)
	r := &orchestrator.Report{
		RunID:      "run-1",
		Mode:       orchestrator.ModeOrders,
		Processed:  2,
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Outcomes: []orchestrator.Outcome{
			{Name: "Alice", Status: orchestrator.StatusPartial, Message: "Cart ready",
				Steps: orchestrator.Steps{Discovery: true, Approval: true, Riddle: true, Card: true}},
			{Name: "Bob", Status: orchestrator.StatusFailed, Error: "Checkout failed: timeout"},
		},
	}

	var buf bytes.Buffer
	renderReport(&buf, r)
	out := buf.String()

	assert.Contains(t, out, "Run run-1 (orders)")
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "Cart ready")
	assert.Contains(t, out, "Checkout failed: timeout")
	assert.Contains(t, out, "2 processed")
	assert.Contains(t, out, "1 partial")
	assert.Contains(t, out, "1.5s")
}

func TestRenderGifts_Empty(t *testing.T) {
	var buf bytes.Buffer
	renderGifts(&buf, nil)
	assert.Contains(t, buf.String(), "No gifts stored")
}

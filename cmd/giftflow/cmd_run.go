package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"giftflow/internal/orchestrator"
	"giftflow/internal/store"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runMode   string
	runInput  string
	runOutput string
	runJSON   bool
)

// runCmd processes one batch
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one orchestration batch",
	Long: `Processes every eligible gift for the selected mode:
  discovery  find a product for gifts awaiting approval
  orders     checkout, riddle and card for approved gifts
  riddles    riddles only, for approved gifts
  cards      cards only, for approved gifts that have a riddle
  full       discovery followed by orders

With --input the CSV replaces the stored gifts first; with --output the
resulting table is exported when the batch ends.`,
	RunE: runBatch,
}

func init() {
	runCmd.Flags().StringVarP(&runMode, "mode", "m", string(orchestrator.ModeDiscovery), "Run mode: "+modeList())
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "CSV to import before the run")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "CSV path to export after the run")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the report as JSON")
}

func modeList() string {
	modes := orchestrator.Modes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

func runBatch(cmd *cobra.Command, args []string) error {
	mode, err := orchestrator.ParseMode(runMode)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(ctx); err != nil {
			logger.Warn("cleanup failed", zap.Error(err))
		}
	}()

	if runInput != "" {
		if err := importFile(ctx, a.store, runInput, cmd.OutOrStdout()); err != nil {
			return err
		}
	}

	report, runErr := a.engine.Run(ctx, mode)
	if report != nil {
		if runJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		} else {
			renderReport(cmd.OutOrStdout(), report)
		}
	}

	if runOutput != "" {
		n, err := store.ExportFile(ctx, a.store, runOutput)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d gifts to %s\n", n, runOutput)
	}
	return runErr
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	partialStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func statusStyle(s orchestrator.Status) lipgloss.Style {
	switch s {
	case orchestrator.StatusSuccess:
		return successStyle
	case orchestrator.StatusPartial:
		return partialStyle
	default:
		return failedStyle
	}
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "·"
}

// renderReport prints one line per outcome followed by a summary.
func renderReport(w io.Writer, r *orchestrator.Report) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Run %s (%s)", r.RunID, r.Mode)))

	nameCol := lipgloss.NewStyle().Width(20)
	statusCol := lipgloss.NewStyle().Width(9)
	for _, o := range r.Outcomes {
		steps := fmt.Sprintf("disc %s  appr %s  order %s  riddle %s  card %s",
			mark(o.Steps.Discovery), mark(o.Steps.Approval), mark(o.Steps.Order),
			mark(o.Steps.Riddle), mark(o.Steps.Card))
		line := lipgloss.JoinHorizontal(lipgloss.Top,
			nameCol.Render(o.Name),
			statusCol.Render(statusStyle(o.Status).Render(string(o.Status))),
			dimStyle.Render(steps))
		fmt.Fprintln(w, line)
		if o.Message != "" {
			fmt.Fprintln(w, dimStyle.Render("    "+o.Message))
		}
		if o.Error != "" {
			fmt.Fprintln(w, failedStyle.Render("    "+o.Error))
		}
	}

	fmt.Fprintf(w, "\n%d processed: %s, %s, %s in %s\n",
		r.Processed,
		successStyle.Render(fmt.Sprintf("%d success", r.Count(orchestrator.StatusSuccess))),
		partialStyle.Render(fmt.Sprintf("%d partial", r.Count(orchestrator.StatusPartial))),
		failedStyle.Render(fmt.Sprintf("%d failed", r.Count(orchestrator.StatusFailed))),
		r.Duration().Round(time.Millisecond))
}

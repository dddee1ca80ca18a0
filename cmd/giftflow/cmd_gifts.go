package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"giftflow/internal/logging"
	"giftflow/internal/store"
	"giftflow/internal/types"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// importCmd loads a CSV into the store
var importCmd = &cobra.Command{
	Use:   "import [csv]",
	Short: "Replace the stored gifts with a CSV file",
	Long: `Reads Name, Gift Idea and Budget columns (plus any export columns) and
replaces every stored gift. Only useful with a persistent store backend.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()
		return withStore(ctx, func(st store.Store) error {
			return importFile(ctx, st, args[0], cmd.OutOrStdout())
		})
	},
}

// exportCmd writes the store to a CSV file
var exportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "Export the stored gifts to a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()
		return withStore(ctx, func(st store.Store) error {
			n, err := store.ExportFile(ctx, st, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d gifts to %s\n", n, args[0])
			return nil
		})
	},
}

// listCmd prints the stored gifts
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored gifts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()
		return withStore(ctx, func(st store.Store) error {
			items, err := st.List(ctx, nil)
			if err != nil {
				return err
			}
			renderGifts(cmd.OutOrStdout(), items)
			return nil
		})
	},
}

// denyCmd rejects the current suggestion and offers the next alternative
var denyCmd = &cobra.Command{
	Use:   "deny [gift-id]",
	Short: "Deny the suggested product and offer the next alternative",
	Long: `Marks the gift's suggestion as denied and offers the next budget-fitting
alternative. Alternatives are kept in memory, so from the command line the
gift is searched again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		if _, err := a.store.Update(ctx, args[0], types.SetApproval(types.ApprovalDenied)); err != nil {
			return err
		}
		res, err := a.engine.HandleDenial(ctx, args[0])
		if err != nil {
			return err
		}
		if !res.Success {
			fmt.Fprintln(cmd.OutOrStdout(), failedStyle.Render(res.Message))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Suggested %s ($%.2f) %s, %d alternatives left\n",
			res.Product.Title, res.Product.Price, res.Product.URL, res.Remaining)
		return nil
	},
}

// withStore opens the configured store for commands that don't need the
// browser.
func withStore(ctx context.Context, fn func(store.Store) error) error {
	st, err := store.New(ctx, cfg.Store, logging.Get(logging.CategoryStore))
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func importFile(ctx context.Context, st store.Store, path string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	res, err := store.Import(ctx, st, f)
	if err != nil {
		return err
	}
	for _, reason := range res.Skipped {
		fmt.Fprintln(w, dimStyle.Render(reason))
	}
	for _, warning := range res.Warnings {
		fmt.Fprintln(w, partialStyle.Render(warning))
	}
	fmt.Fprintf(w, "Imported %d gifts from %s\n", len(res.Items), path)
	return nil
}

func renderGifts(w io.Writer, items []*types.WorkItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No gifts stored"))
		return
	}
	cols := []lipgloss.Style{
		lipgloss.NewStyle().Width(43),
		lipgloss.NewStyle().Width(18),
		lipgloss.NewStyle().Width(20),
		lipgloss.NewStyle().Width(10),
		lipgloss.NewStyle().Width(10),
		lipgloss.NewStyle().Width(26),
	}
	row := func(style lipgloss.Style, cells ...string) {
		parts := make([]string, len(cells))
		for i, c := range cells {
			parts[i] = cols[i].Render(style.Render(c))
		}
		fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, parts...))
	}

	row(headerStyle, "ID", "Name", "Gift Idea", "Budget", "Approval", "Order")
	for _, it := range items {
		approval := it.Approval.String()
		if approval == "" {
			approval = "-"
		}
		row(lipgloss.NewStyle(), it.ID, it.Name, it.GiftIdea,
			fmt.Sprintf("$%.2f", it.Budget), approval, it.Order.String())
	}
}

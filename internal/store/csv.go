package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"giftflow/internal/types"

	"github.com/natefinch/atomic"
)

// ErrEmptyCSV is returned when the input has no data rows.
var ErrEmptyCSV = errors.New("CSV must have a header row and at least one data row")

// ExportHeader is the column order written by WriteCSV.
var ExportHeader = []string{
	"Name", "Gift Idea", "Budget",
	"Product Link", "Product Image",
	"Approval Status", "Order Status",
	"Riddle", "Card Link",
}

type columns struct {
	name, idea, budget                        int
	link, image, approval, order, riddle, card int
}

func indexColumns(header []string) (columns, error) {
	c := columns{-1, -1, -1, -1, -1, -1, -1, -1, -1}
	norm := make([]string, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		norm[i] = h
		switch h {
		case "name":
			c.name = first(c.name, i)
		case "gift idea", "giftidea", "gift":
			c.idea = first(c.idea, i)
		case "budget", "max budget", "price":
			c.budget = first(c.budget, i)
		case "product link":
			c.link = first(c.link, i)
		case "product image":
			c.image = first(c.image, i)
		case "approval status":
			c.approval = first(c.approval, i)
		case "order status":
			c.order = first(c.order, i)
		case "riddle":
			c.riddle = first(c.riddle, i)
		case "card link":
			c.card = first(c.card, i)
		}
	}
	if c.name < 0 || c.idea < 0 || c.budget < 0 {
		return c, fmt.Errorf("CSV must have columns: Name, Gift Idea, Budget. Found: %s", strings.Join(norm, ", "))
	}
	return c, nil
}

func first(cur, i int) int {
	if cur >= 0 {
		return cur
	}
	return i
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)`)

// ParseBudget reads a budget cell such as "$1,250" or "80". Unparsable
// input yields 0.
func ParseBudget(s string) float64 {
	s = strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(s))
	m := leadingNumber.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}

// ImportResult is the outcome of parsing a CSV upload.
type ImportResult struct {
	Items []*types.WorkItem
	// Skipped holds one human-readable reason per dropped row.
	Skipped []string
	// Warnings notes fields that were ignored on rows that were kept.
	Warnings []string
}

// ParseCSV reads work items from CSV. A header row naming the Name, Gift
// Idea and Budget columns is required; the export columns are read back when
// present. Rows missing a name or gift idea, or with a non-positive budget,
// are skipped.
func ParseCSV(r io.Reader) (*ImportResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, ErrEmptyCSV
	}

	cols, err := indexColumns(records[0])
	if err != nil {
		return nil, err
	}

	res := &ImportResult{Items: make([]*types.WorkItem, 0, len(records)-1)}
	for i, rec := range records[1:] {
		row := i + 2
		name := field(rec, cols.name)
		idea := field(rec, cols.idea)
		budget := ParseBudget(field(rec, cols.budget))
		if name == "" || idea == "" || budget <= 0 {
			res.Skipped = append(res.Skipped, fmt.Sprintf("Skipping row %d: missing required fields", row))
			continue
		}

		it := &types.WorkItem{ID: NewID(), Name: name, GiftIdea: idea, Budget: budget}
		if link := field(rec, cols.link); link != "" {
			it.Product = &types.ProductRef{URL: link, ImageURL: field(rec, cols.image)}
		}
		if a, err := types.ParseApprovalState(field(rec, cols.approval)); err == nil {
			it.Approval = a
		} else {
			res.Warnings = append(res.Warnings, fmt.Sprintf("Row %d: %v; leaving approval unset", row, err))
		}
		if o, err := types.ParseOrderState(field(rec, cols.order)); err == nil {
			it.Order = o
		} else {
			res.Warnings = append(res.Warnings, fmt.Sprintf("Row %d: %v; leaving order unset", row, err))
		}
		it.Riddle = field(rec, cols.riddle)
		it.CardURL = field(rec, cols.card)
		res.Items = append(res.Items, it)
	}
	return res, nil
}

// Import parses r and replaces the store's contents with the result.
func Import(ctx context.Context, s Store, r io.Reader) (*ImportResult, error) {
	res, err := ParseCSV(r)
	if err != nil {
		return nil, err
	}
	if err := s.ReplaceAll(ctx, res.Items); err != nil {
		return nil, fmt.Errorf("store imported gifts: %w", err)
	}
	return res, nil
}

// WriteCSV writes items with ExportHeader columns.
func WriteCSV(w io.Writer, items []*types.WorkItem) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return err
	}
	for _, it := range items {
		var link, image string
		if it.Product != nil {
			link, image = it.Product.URL, it.Product.ImageURL
		}
		rec := []string{
			it.Name,
			it.GiftIdea,
			strconv.FormatFloat(it.Budget, 'f', -1, 64),
			link,
			image,
			string(it.Approval),
			string(it.Order),
			it.Riddle,
			it.CardURL,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Export lists every item in s as CSV.
func Export(ctx context.Context, s Store, w io.Writer) (int, error) {
	items, err := s.List(ctx, nil)
	if err != nil {
		return 0, err
	}
	return len(items), WriteCSV(w, items)
}

// ExportFile writes the store's CSV export to path, replacing any existing
// file atomically.
func ExportFile(ctx context.Context, s Store, path string) (int, error) {
	var buf bytes.Buffer
	n, err := Export(ctx, s, &buf)
	if err != nil {
		return 0, err
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return n, nil
}

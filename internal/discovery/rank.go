package discovery

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"giftflow/internal/types"
)

var (
	priceNoise  = regexp.MustCompile(`[^0-9.,]`)
	priceLeader = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)`)
)

// ParsePrice extracts an amount from display text such as "$1,299.99" or
// "USD 45". Currency symbols and letters are dropped and the first comma is
// treated as a thousands separator; parsing stops at the first character that
// can't continue the number.
func ParsePrice(s string) (float64, bool) {
	cleaned := priceNoise.ReplaceAllString(s, "")
	cleaned = strings.Replace(cleaned, ",", "", 1)
	m := priceLeader.FindString(cleaned)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Rank applies the selection policy: keep candidates with 0 < price <= budget
// and order them by price, most expensive first, so the pick spends as much
// of the budget as possible. Equal prices keep their scrape order. The head is
// the selection and the rest are alternatives.
func Rank(candidates []types.ProductCandidate, budget float64) (*types.ProductCandidate, []types.ProductCandidate) {
	within := make([]types.ProductCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Price > 0 && c.Price <= budget {
			within = append(within, c)
		}
	}
	if len(within) == 0 {
		return nil, []types.ProductCandidate{}
	}

	sort.SliceStable(within, func(i, j int) bool {
		return within[i].Price > within[j].Price
	})

	selected := within[0]
	return &selected, within[1:]
}

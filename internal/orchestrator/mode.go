package orchestrator

import (
	"fmt"
	"strings"
)

// Mode selects which items a run processes and which steps it invokes.
type Mode string

const (
	ModeDiscovery Mode = "discovery"
	ModeOrders    Mode = "orders"
	ModeRiddles   Mode = "riddles"
	ModeCards     Mode = "cards"
	ModeFull      Mode = "full"
)

// Modes lists every mode in documentation order.
func Modes() []Mode {
	return []Mode{ModeDiscovery, ModeOrders, ModeRiddles, ModeCards, ModeFull}
}

// ParseMode maps a token to a Mode. Matching is case-insensitive and the
// empty token means discovery.
func ParseMode(s string) (Mode, error) {
	tok := Mode(strings.ToLower(strings.TrimSpace(s)))
	if tok == "" {
		return ModeDiscovery, nil
	}
	for _, m := range Modes() {
		if tok == m {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q (valid: discovery, orders, riddles, cards, full)", ErrInvalidMode, s)
}

func (m Mode) runsDiscovery() bool { return m == ModeDiscovery || m == ModeFull }
func (m Mode) runsOrders() bool    { return m == ModeOrders || m == ModeFull }

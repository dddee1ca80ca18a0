// Package browser defines the renderer capability used by discovery and
// checkout: a factory of short-lived page sessions that can navigate, read
// content, and locate elements through ordered selector probes.
package browser

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Factory hands out renderer sessions. Callers close every session they
// acquire; Shutdown reclaims anything still open.
type Factory interface {
	Acquire(ctx context.Context) (Session, error)
	Shutdown(ctx context.Context) error
}

// Session is a single controllable page.
type Session interface {
	// Navigate loads url and waits for the load event, bounded by timeout.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// WaitFor blocks until any probe matches or timeout passes.
	WaitFor(ctx context.Context, probes ProbeSet, timeout time.Duration) error
	// URL is the page's current location, "" if unknown.
	URL() string
	// Content returns the serialized document.
	Content(ctx context.Context) (string, error)
	// QueryFirst evaluates probes in order and returns the first element
	// found together with the probe that matched. A nil element means no
	// probe matched.
	QueryFirst(ctx context.Context, probes ProbeSet) (Element, *Probe, error)
	// QueryAll returns every element matched by any probe selector, in
	// document order. Text constraints are ignored.
	QueryAll(ctx context.Context, probes ProbeSet) ([]Element, error)
	// Close releases the page. Calling it more than once is a no-op.
	Close() error
}

// Element is a handle to a node inside a Session.
type Element interface {
	Click(ctx context.Context) error
	Text(ctx context.Context) (string, error)
	// Property reads a DOM property (e.g. the resolved "href" or "src").
	// Missing properties yield "".
	Property(ctx context.Context, name string) (string, error)
	QueryFirst(ctx context.Context, probes ProbeSet) (Element, *Probe, error)
}

// =============================================================================
// PROBES
// =============================================================================

// Probe is one declarative element strategy: a CSS selector, optionally
// narrowed to elements whose text contains Text.
type Probe struct {
	Selector string `json:"selector" yaml:"selector"`
	Text     string `json:"text,omitempty" yaml:"text,omitempty"`
}

// TextPattern returns the JS regex rod uses to match the probe's text.
func (p Probe) TextPattern() string {
	return regexp.QuoteMeta(p.Text)
}

// String renders the probe in the `sel:has-text("...")` form ParseProbe reads.
func (p Probe) String() string {
	if p.Text == "" {
		return p.Selector
	}
	return p.Selector + `:has-text("` + p.Text + `")`
}

// Matches reports whether an element with the given selector and text
// satisfies the probe. Used by in-memory renderers.
func (p Probe) Matches(selector, text string) bool {
	if p.Selector != selector {
		return false
	}
	return p.Text == "" || strings.Contains(text, p.Text)
}

// ProbeSet is an ordered list of probes, highest priority first.
type ProbeSet []Probe

// Selectors returns the distinct CSS selectors of the set in order.
func (ps ProbeSet) Selectors() []string {
	seen := make(map[string]bool, len(ps))
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		if p.Selector == "" || seen[p.Selector] {
			continue
		}
		seen[p.Selector] = true
		out = append(out, p.Selector)
	}
	return out
}

// Union joins the set's selectors into one CSS selector list.
func (ps ProbeSet) Union() string {
	return strings.Join(ps.Selectors(), ", ")
}

var hasTextRe = regexp.MustCompile(`^(.*?):has-text\((?:"([^"]*)"|'([^']*)')\)$`)

// ParseProbe reads `selector` or `selector:has-text("text")`.
func ParseProbe(raw string) Probe {
	raw = strings.TrimSpace(raw)
	if m := hasTextRe.FindStringSubmatch(raw); m != nil {
		text := m[2]
		if text == "" {
			text = m[3]
		}
		sel := strings.TrimSpace(m[1])
		if sel == "" {
			sel = "*"
		}
		return Probe{Selector: sel, Text: text}
	}
	return Probe{Selector: raw}
}

// ParseProbes parses each entry with ParseProbe, skipping blanks.
func ParseProbes(raw []string) ProbeSet {
	out := make(ProbeSet, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		out = append(out, ParseProbe(r))
	}
	return out
}

// OrDefault returns override parsed as probes when non-empty, else def.
func OrDefault(override []string, def ProbeSet) ProbeSet {
	if ps := ParseProbes(override); len(ps) > 0 {
		return ps
	}
	return def
}

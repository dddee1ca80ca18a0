package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseProbe(t *testing.T) {
	tests := []struct {
		raw  string
		want Probe
	}{
		{`button[id*="add-to-cart"]`, Probe{Selector: `button[id*="add-to-cart"]`}},
		{`button:has-text("Add to Cart")`, Probe{Selector: "button", Text: "Add to Cart"}},
		{`a.cta:has-text('Checkout')`, Probe{Selector: "a.cta", Text: "Checkout"}},
		{`:has-text("Buy")`, Probe{Selector: "*", Text: "Buy"}},
		{`  #proceed-to-checkout  `, Probe{Selector: "#proceed-to-checkout"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseProbe(tt.raw))
		})
	}
}

func TestProbe_StringRoundTrip(t *testing.T) {
	p := Probe{Selector: "button", Text: "Add to Bag"}
	assert.Equal(t, p, ParseProbe(p.String()))
}

func TestProbe_Matches(t *testing.T) {
	p := Probe{Selector: "button", Text: "Checkout"}
	assert.True(t, p.Matches("button", "Proceed to Checkout"))
	assert.False(t, p.Matches("button", "checkout"), "text match is case-sensitive")
	assert.False(t, p.Matches("a", "Checkout"))

	assert.True(t, Probe{Selector: "a"}.Matches("a", "anything"))
}

func TestProbe_TextPatternEscapes(t *testing.T) {
	assert.Equal(t, `Add \(1\) to Cart`, Probe{Text: "Add (1) to Cart"}.TextPattern())
}

func TestProbeSet_Union(t *testing.T) {
	ps := ProbeSet{
		{Selector: ".a"},
		{Selector: "button", Text: "x"},
		{Selector: "button", Text: "y"},
		{Selector: ""},
	}
	assert.Equal(t, []string{".a", "button"}, ps.Selectors())
	assert.Equal(t, ".a, button", ps.Union())
}

func TestOrDefault(t *testing.T) {
	def := ProbeSet{{Selector: ".default"}}
	assert.Equal(t, def, OrDefault(nil, def))
	assert.Equal(t, def, OrDefault([]string{"  "}, def))
	assert.Equal(t, ProbeSet{{Selector: "#custom"}}, OrDefault([]string{"#custom"}, def))
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	assert.Equal(t, 1920, c.GetViewportWidth())
	assert.Equal(t, 1080, c.GetViewportHeight())
	assert.Equal(t, DefaultConfig().NavigationTimeout(), c.NavigationTimeout())
}

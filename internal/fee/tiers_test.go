package fee

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleTiers() []Tier {
	return []Tier{
		{ThresholdMax: 80, Fee: 15},
		{ThresholdMax: 150, Fee: 25},
	}
}

func TestResolve(t *testing.T) {
	tiers := sampleTiers()
	require.Equal(t, 15.0, Resolve(50, tiers))
	require.Equal(t, 15.0, Resolve(80, tiers))
	require.Equal(t, 25.0, Resolve(100, tiers))
	// Beyond every threshold the top tier still applies.
	require.Equal(t, 25.0, Resolve(200, tiers))
	require.Equal(t, 0.0, Resolve(50, nil))
}

func TestResolveUnsortedInput(t *testing.T) {
	tiers := []Tier{
		{ThresholdMax: 150, Fee: 25},
		{ThresholdMax: 80, Fee: 15},
	}
	require.Equal(t, 15.0, Resolve(50, tiers))
	// Caller order preserved: Resolve sorts a copy.
	require.Equal(t, 150.0, tiers[0].ThresholdMax)
}

func TestParse(t *testing.T) {
	tiers := Parse("80 - 15\n150 - 25")
	require.Equal(t, sampleTiers(), tiers)

	tiers = Parse("80:15\n\n  150 : 25  ")
	require.Equal(t, sampleTiers(), tiers)
}

func TestParseSkipsMalformedLines(t *testing.T) {
	tiers, skipped := ParseStrict("80 - 15\nabc\n150 - 25\n12 -\n- 9")
	require.Equal(t, sampleTiers(), tiers)
	require.Equal(t, []string{"abc", "12 -", "- 9"}, skipped)
}

func TestFormatRoundTrip(t *testing.T) {
	tiers := sampleTiers()
	text := Format(tiers)
	require.Equal(t, "80 - 15\n150 - 25", text)
	require.Equal(t, tiers, Parse(text))

	decimals := []Tier{{ThresholdMax: 99.9, Fee: 12.5}}
	require.Equal(t, decimals, Parse(Format(decimals)))

	require.Equal(t, "", Format(nil))
}

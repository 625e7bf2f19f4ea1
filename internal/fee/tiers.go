package fee

import (
	"sort"
	"strconv"
	"strings"

	"github.com/lumapratas/backend-luma/internal/pricing"
)

// Tier maps a subtotal bracket to a flat administrative fee: carts with a
// subtotal up to ThresholdMax pay Fee.
type Tier struct {
	ThresholdMax pricing.Money `json:"thresholdMax"`
	Fee          pricing.Money `json:"fee"`
}

// Resolve returns the flat fee for the given cart subtotal. Tiers are
// evaluated in ascending threshold order regardless of input order; the
// caller's slice is never mutated. Subtotals beyond every threshold clamp to
// the top tier so large carts always pay the highest configured fee.
func Resolve(subtotal pricing.Money, tiers []Tier) pricing.Money {
	if len(tiers) == 0 {
		return 0
	}
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ThresholdMax < sorted[j].ThresholdMax
	})
	for _, t := range sorted {
		if subtotal <= t.ThresholdMax {
			return t.Fee
		}
	}
	return sorted[len(sorted)-1].Fee
}

// Parse reads the admin-editable tier table text. Each non-blank line of the
// form "<threshold> - <fee>" (":" also accepted as separator) yields one
// tier; lines that do not match are skipped silently.
func Parse(text string) []Tier {
	tiers, _ := ParseStrict(text)
	return tiers
}

// ParseStrict behaves like Parse but also reports the raw lines it skipped,
// for admin-facing validation feedback.
func ParseStrict(text string) ([]Tier, []string) {
	var (
		tiers   []Tier
		skipped []string
	)
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		tier, ok := parseLine(trimmed)
		if !ok {
			skipped = append(skipped, trimmed)
			continue
		}
		tiers = append(tiers, tier)
	}
	return tiers, skipped
}

// Format renders tiers back into the editable text form, one "max - fee"
// line per tier in input order. It is the inverse of Parse for well-formed
// tables.
func Format(tiers []Tier) string {
	if len(tiers) == 0 {
		return ""
	}
	lines := make([]string, 0, len(tiers))
	for _, t := range tiers {
		lines = append(lines, formatNumber(t.ThresholdMax)+" - "+formatNumber(t.Fee))
	}
	return strings.Join(lines, "\n")
}

func parseLine(line string) (Tier, bool) {
	sep := strings.IndexAny(line, "-:")
	if sep <= 0 || sep >= len(line)-1 {
		return Tier{}, false
	}
	threshold, err := parseNumber(line[:sep])
	if err != nil {
		return Tier{}, false
	}
	feeValue, err := parseNumber(line[sep+1:])
	if err != nil {
		return Tier{}, false
	}
	return Tier{ThresholdMax: threshold, Fee: feeValue}, true
}

func parseNumber(raw string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(raw), 64)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package scoring

import (
	"strings"

	"golang.org/x/text/cases"
)

// fold trims s and applies Unicode case folding, so "COMPLEXIÓN" and
// "complexión" compare equal. A Caser keeps state, so one is built per call.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// present reports whether a free-text field carries a value.
func present(s string) bool {
	return strings.TrimSpace(s) != ""
}

// equalFold compares two present strings case-insensitively.
func equalFold(a, b string) bool {
	return present(a) && present(b) && fold(a) == fold(b)
}

// containsFold reports whether haystack contains needle case-insensitively.
// An empty needle never matches.
func containsFold(haystack, needle string) bool {
	if !present(needle) || !present(haystack) {
		return false
	}
	return strings.Contains(fold(haystack), fold(needle))
}

// positiveInt returns the value of p when it is present and positive.
func positiveInt(p *int) (int, bool) {
	if p == nil || *p <= 0 {
		return 0, false
	}
	return *p, true
}

// positiveFloat returns the value of p when it is present and positive.
// NaN is treated as absent.
func positiveFloat(p *float64) (float64, bool) {
	if p == nil || !(*p > 0) {
		return 0, false
	}
	return *p, true
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

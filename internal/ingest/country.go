package ingest

import (
	"strings"

	"golang.org/x/text/cases"
)

// CountryNormalizer maps country names to short codes, ignoring case.
// Not safe for concurrent use.
type CountryNormalizer struct {
	fold  cases.Caser
	codes map[string]string
}

// NewCountryNormalizer builds a normalizer from name → code pairs.
func NewCountryNormalizer(codes map[string]string) *CountryNormalizer {
	n := &CountryNormalizer{fold: cases.Fold(), codes: make(map[string]string, len(codes))}
	for name, code := range codes {
		n.codes[n.key(name)] = code
	}
	return n
}

func (n *CountryNormalizer) key(s string) string {
	return n.fold.String(strings.Join(strings.Fields(s), " "))
}

// Normalize returns the code for name, or the trimmed name when no code is known.
func (n *CountryNormalizer) Normalize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if code, ok := n.codes[n.key(name)]; ok {
		return code
	}
	return name
}

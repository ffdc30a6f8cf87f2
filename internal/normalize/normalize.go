// Package normalize converts raw source text into typed, schema-conformant
// values. Every function is pure and never returns an error: malformed
// input degrades to nil or passes through, it is not rejected.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/reactormap/reactorsync/internal/model"
)

// Capacity parses a gross-capacity cell. Thousands separators and embedded
// spaces are stripped; empty or non-numeric input yields nil.
func Capacity(raw string) *int {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// Coordinate parses a decimal latitude/longitude string. Malformed input
// yields nil.
func Coordinate(raw string) *float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// statusTable maps raw PRIS status text onto the canonical status set.
var statusTable = map[string]model.Status{
	"Operational":            model.StatusOperational,
	"Under Construction":     model.StatusUnderConstruction,
	"Permanent Shutdown":     model.StatusShutdown,
	"Suspended Operation":    model.StatusSuspendedOperation,
	"Suspended Construction": model.StatusSuspendedConstruction,
	"Long-term Shutdown":     model.StatusSuspendedOperation,
	"Planned":                model.StatusPlanned,
}

// MapStatus maps raw status text to the canonical status set. Text absent
// from the table passes through unchanged.
func MapStatus(raw string) model.Status {
	if mapped, ok := statusTable[strings.TrimSpace(raw)]; ok {
		return mapped
	}
	return model.Status(strings.TrimSpace(raw))
}

// foldTransformer strips combining marks so unaccented source spellings
// match accented canonical ones ("Asco" ~ "Ascó").
var foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// MatchKey derives the identity key for a name or country: diacritics
// folded, lower-cased, trimmed, inner whitespace collapsed.
func MatchKey(raw string) string {
	folded, _, err := transform.String(foldTransformer, raw)
	if err != nil {
		folded = raw
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// unitSuffix matches a trailing unit designator: optional dash/space
// separators, an optional "Unit" word, and digits at the end of the name.
var unitSuffix = regexp.MustCompile(`(?i)[-\s]*(unit\s*)?\d+$`)

// BasePlantName strips one trailing unit designator from a reactor name.
// Multi-unit plants share the resulting base name, which serves as the
// per-run lookup cache key.
func BasePlantName(name string) string {
	return strings.TrimSpace(unitSuffix.ReplaceAllString(name, ""))
}

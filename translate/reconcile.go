package translate

import (
	"regexp"
	"slices"
	"strings"
)

// placeholderPattern matches printf-style format specifiers as Apple
// platforms use them: %@, %d, %lld, %1$@, %.2f, %%, ...
var placeholderPattern = regexp.MustCompile(`%(?:\d+\$)?[-+#0']*(?:\d+|\*)?(?:\.(?:\d+|\*))?(?:hh|h|ll|l|q|z|t|j|L)?[@dDiuUxXoOfFeEgGcCsSpaA%]`)

// Reconcile maps a raw reply onto batch by line position. The result always
// has len(batch) entries; any position without a usable translation holds
// its source text.
func Reconcile(raw string, batch []string) []string {
	out, _ := ReconcileDetailed(raw, batch)
	return out
}

// ReconcileDetailed is Reconcile that also reports which positions fell
// back to the source text.
//
// Each non-blank reply line is "[index] SEP payload" with SEP either "|"
// or ". ", or just the payload. Markdown fence lines are skipped. The n-th
// remaining line pairs with the n-th key; the index in the line is not used.
// A position falls back to its source when the reply is too short, when the
// payload is empty, or when its placeholders differ from the source's.
func ReconcileDetailed(raw string, batch []string) ([]string, []bool) {
	var payloads []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		payloads = append(payloads, parseLine(line))
	}

	out := make([]string, len(batch))
	fell := make([]bool, len(batch))
	for i, src := range batch {
		if i >= len(payloads) {
			out[i], fell[i] = src, true
			continue
		}
		v := unescapeLike(payloads[i], src)
		if v == "" || !samePlaceholders(src, v) {
			out[i], fell[i] = src, true
			continue
		}
		out[i] = v
	}
	return out, fell
}

// parseLine returns the payload of one reply line. "|" is tried before
// ". "; the payload is whatever follows the first separator, trimmed.
func parseLine(line string) string {
	if _, after, ok := strings.Cut(line, "|"); ok {
		return strings.TrimSpace(after)
	}
	if _, after, ok := strings.Cut(line, ". "); ok {
		return strings.TrimSpace(after)
	}
	return strings.TrimSpace(line)
}

// unescapeLike turns the \n and \t escapes used in the prompt back into
// real characters, but only those the source actually contains.
func unescapeLike(s, src string) string {
	if strings.Contains(src, "\n") {
		s = strings.ReplaceAll(s, `\n`, "\n")
	}
	if strings.Contains(src, "\t") {
		s = strings.ReplaceAll(s, `\t`, "\t")
	}
	return s
}

// placeholders returns the sorted format specifiers of s.
func placeholders(s string) []string {
	ph := placeholderPattern.FindAllString(s, -1)
	slices.Sort(ph)
	return ph
}

// samePlaceholders reports whether a and b contain the same multiset of
// format specifiers. Positional ones may be reordered.
func samePlaceholders(a, b string) bool {
	return slices.Equal(placeholders(a), placeholders(b))
}

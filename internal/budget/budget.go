package budget

import (
	"strings"
	"unicode/utf8"
)

// Ellipsis is appended to text cut by TruncateWithEllipsis
const Ellipsis = "..."

// Len returns the length of text in units (Unicode code points)
func Len(text string) int {
	return utf8.RuneCountInString(text)
}

// Truncate cuts text to at most max units
func Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	if Len(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max])
}

// TruncateWithEllipsis cuts text to max units and marks the cut.
// Text that already fits is returned unchanged.
func TruncateWithEllipsis(text string, max int) string {
	if Len(text) <= max {
		return text
	}
	return Truncate(text, max) + Ellipsis
}

// FirstWords returns the first n whitespace-separated words joined by single spaces
func FirstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

// FirstTerms splits a comma separated list and keeps the first n non-empty terms
func FirstTerms(list string, n int) []string {
	var terms []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		terms = append(terms, part)
		if len(terms) == n {
			break
		}
	}
	return terms
}

// Budget tracks how many units of a fixed limit are in use
type Budget struct {
	Limit int
	Used  int
}

// New creates a budget with the given limit
func New(limit int) *Budget {
	return &Budget{Limit: limit}
}

// Available returns the remaining units
func (b *Budget) Available() int {
	return b.Limit - b.Used
}

// CanFit returns true if text fits in what remains
func (b *Budget) CanFit(text string) bool {
	return Len(text) <= b.Available()
}

// Take fits text into the budget, truncating it if needed
func (b *Budget) Take(text string) string {
	if b.Available() <= 0 {
		return ""
	}
	if !b.CanFit(text) {
		text = Truncate(text, b.Available())
	}
	b.Used += Len(text)
	return text
}

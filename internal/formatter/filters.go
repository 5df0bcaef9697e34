package formatter

import "regexp"

// Filter is a cosmetic transformation applied to a script body before it is
// saved.
type Filter func(string) string

var (
	reMultiSpace      = regexp.MustCompile(`\s\s+`)
	reSpaceSemicolon  = regexp.MustCompile(`(?m)[ \t]+;$`)
	reSemicolonBreaks = regexp.MustCompile(`;\s+`)
)

// CollapseWhitespace replaces every run of two or more whitespace characters
// with one space.
func CollapseWhitespace(s string) string {
	return reMultiSpace.ReplaceAllString(s, " ")
}

// TrimSpaceBeforeSemicolon removes blanks between a statement and its
// terminating semicolon.
func TrimSpaceBeforeSemicolon(s string) string {
	return reSpaceSemicolon.ReplaceAllString(s, ";")
}

// SemicolonNewline puts exactly one newline after every semicolon that is
// followed by whitespace.
func SemicolonNewline(s string) string {
	return reSemicolonBreaks.ReplaceAllString(s, ";\n")
}

// DefaultFilters are applied, in order, to every saved script.
var DefaultFilters = []Filter{CollapseWhitespace, TrimSpaceBeforeSemicolon, SemicolonNewline}

func applyFilters(s string, filters []Filter) string {
	for _, f := range filters {
		s = f(s)
	}
	return s
}

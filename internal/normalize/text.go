package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// PlaceholderDescription is the template text Hub portals publish for
// datasets without a description.
const PlaceholderDescription = "{{default.description}}"

var (
	reNewlines   = regexp.MustCompile(`[\r\n]+`)
	reWhitespace = regexp.MustCompile(`[\s\p{Z}]{2,}`)

	punctuation = strings.NewReplacer(
		"\u2019", "'",
		"\u201c", `"`,
		"\u201d", `"`,
		"\u00a0", "",
		"\u00b7", "",
		"\u2022", "",
		"\u2013", "-",
		"\u200b", "",
	)
)

// StripTags returns the text content of an HTML fragment with entities
// decoded. Plain text passes through unchanged.
func StripTags(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

// CleanText collapses line breaks and whitespace runs to single spaces and
// maps typographic punctuation to ASCII.
func CleanText(s string) string {
	s = reNewlines.ReplaceAllString(s, " ")
	s = reWhitespace.ReplaceAllString(s, " ")
	return punctuation.Replace(s)
}

// Description strips markup and cleans a description. The placeholder
// template becomes empty.
func Description(s string) string {
	s = StripTags(s)
	if s == PlaceholderDescription {
		return ""
	}
	return CleanText(s)
}

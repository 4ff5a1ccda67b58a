// Package htmlutil provides the three pure, regex-based HTML
// primitives the render pipeline uses wherever a full DOM is
// deliberately not built: entity decoding, tag stripping, and
// attribute-list parsing. No nesting is validated.
package htmlutil

import (
	"regexp"
	"strings"
)

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", "\"",
	"&#39;", "'",
	"&nbsp;", " ",
)

// DecodeEntities replaces the named HTML entities with their literal
// characters in a single pass. It does not re-scan its own output,
// so "&amp;lt;" becomes "&lt;", not "<".
func DecodeEntities(s string) string {
	return entityReplacer.Replace(s)
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)
var wsPattern = regexp.MustCompile(`\s+`)

// StripTags replaces every "<...>" with a single space, collapses
// runs of whitespace, and trims the result.
func StripTags(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = wsPattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

var attrPattern = regexp.MustCompile(`([a-zA-Z_:][-a-zA-Z0-9_:.]*)\s*=\s*("([^"]*)"|'([^']*)')`)

// ParseAttributes scans an attribute-list string (the text between a
// tag's name and its closing ">") for quoted name="value" or
// name='value' pairs, returning a mapping with lowercased keys.
// Unquoted or bare attributes are ignored.
func ParseAttributes(attrList string) map[string]string {
	attrs := make(map[string]string)
	matches := attrPattern.FindAllStringSubmatch(attrList, -1)
	for _, m := range matches {
		key := strings.ToLower(m[1])
		val := m[3]
		if m[2] != "" && m[2][0] == '\'' {
			val = m[4]
		}
		attrs[key] = val
	}
	return attrs
}

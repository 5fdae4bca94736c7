package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"html"
	"path"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	htmlTags   = regexp.MustCompile(`<[^>]*>`)
)

// CleanText strips HTML tags and entities and squeezes whitespace.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	stripped := htmlTags.ReplaceAllString(input, " ")
	decoded := html.UnescapeString(stripped)
	decoded = whitespace.ReplaceAllString(decoded, " ")
	return strings.TrimSpace(decoded)
}

// Excerpt returns the first maxWords words of the cleaned content.
// Returns empty string if content is empty.
func Excerpt(content string, maxWords int) string {
	words := strings.Fields(CleanText(content))
	if len(words) == 0 {
		return ""
	}
	if maxWords > 0 && len(words) > maxWords {
		return strings.Join(words[:maxWords], " ") + "..."
	}
	return strings.Join(words, " ")
}

// CapitalizeFirst upper-cases the first letter and leaves the rest untouched.
func CapitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// TrackTitle normalizes a track name the way titles of route records are built:
// directory and extension dropped, underscores become spaces, first letter capitalized.
func TrackTitle(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	if ext := path.Ext(name); strings.EqualFold(ext, ".gpx") {
		name = strings.TrimSuffix(name, ext)
	}
	name = strings.ReplaceAll(name, "_", " ")
	return CapitalizeFirst(name)
}

// SplitRelation parses a delimited list of titles, dropping empty items.
func SplitRelation(raw, sep string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, sep)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// BuildDocumentID hashes the identifying fields to form deterministic IDs.
func BuildDocumentID(parts ...string) string {
	s := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(s[:])
}

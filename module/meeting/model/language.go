package model

import "strings"

// NormalizeLanguage lower-cases and trims a language tag.
func NormalizeLanguage(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}

// BaseLanguage drops the region: "en-US" -> "en", "pt_BR" -> "pt".
// Source languages arrive as recognizer locales while targets are plain codes.
func BaseLanguage(lang string) string {
	lang = NormalizeLanguage(lang)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		return lang[:i]
	}
	return lang
}

// SameLanguage compares a recognizer locale with a target code.
func SameLanguage(source, target string) bool {
	return BaseLanguage(source) == BaseLanguage(target)
}

package travel

import "slices"

// fallbackLang is offered right after the active language.
const fallbackLang = "en"

// OrderLanguages puts active first and "en" second, keeping the remaining
// languages in their given order. Languages missing from langs are not added.
func OrderLanguages(langs []string, active string) []string {
	out := make([]string, 0, len(langs))
	if slices.Contains(langs, active) {
		out = append(out, active)
	}
	if active != fallbackLang && slices.Contains(langs, fallbackLang) {
		out = append(out, fallbackLang)
	}
	for _, l := range langs {
		if l != active && l != fallbackLang {
			out = append(out, l)
		}
	}
	return out
}

package local

import "strings"

// Stop words ignored when matching query terms
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "what": true, "how": true, "when": true,
}

// terms splits text into lowercased words with surrounding punctuation
// trimmed, dropping stop words.
func terms(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))
	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}
	return filtered
}

// score ranks a record against a query. A record matches when it contains
// the whole query as a case-insensitive substring, or every query term. The
// score counts query term occurrences, with a bonus for the whole phrase.
// Zero means no match.
func score(query string, queryTerms []string, title, content string) float64 {
	phrase := strings.ToLower(strings.TrimSpace(query))
	if phrase == "" {
		return 0
	}
	text := strings.ToLower(title + "\n" + content)

	counts := make(map[string]int)
	for _, w := range terms(text) {
		counts[w]++
	}

	var s float64
	all := len(queryTerms) > 0
	for _, q := range queryTerms {
		n := counts[q]
		if n == 0 {
			all = false
		}
		s += float64(n)
	}

	if n := strings.Count(text, phrase); n > 0 {
		return s + 10*float64(n)
	}
	if !all {
		return 0
	}
	return s
}

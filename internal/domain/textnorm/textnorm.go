// Package textnorm holds the pure text helpers shared by the ingestion pipeline:
// normalization, filler detection and token-set similarity.
package textnorm

import (
	"strings"
	"unicode"
)

// fillers are conversational tokens and short phrases that never make a topic.
var fillers = map[string]struct{}{
	"um": {}, "umm": {}, "uh": {}, "uhh": {}, "er": {}, "ah": {}, "oh": {}, "hmm": {}, "mm": {},
	"like": {}, "so": {}, "yeah": {}, "yes": {}, "no": {}, "okay": {}, "ok": {}, "right": {},
	"well": {}, "basically": {}, "actually": {}, "literally": {}, "anyway": {}, "just": {},
	"really": {}, "and": {}, "but": {}, "the": {}, "a": {}, "an": {}, "that": {}, "this": {},
	"you know": {}, "i mean": {}, "kind of": {}, "sort of": {}, "you see": {}, "i guess": {},
	"let me": {}, "lets see": {}, "thank you": {}, "thanks": {},
}

// Normalize lowercases text, strips everything that is not a letter, digit or
// whitespace, and collapses runs of whitespace into single spaces.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens returns the whitespace-separated tokens of the normalized text.
func Tokens(text string) []string {
	return strings.Fields(Normalize(text))
}

// WordCount counts whitespace-separated words without normalizing.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// IsFiller reports whether label is nothing but filler words.
// Two-word filler phrases ("you know") are matched before single tokens.
// An empty label counts as filler.
func IsFiller(label string) bool {
	norm := Normalize(label)
	if norm == "" {
		return true
	}
	if _, ok := fillers[norm]; ok {
		return true
	}

	tokens := strings.Fields(norm)
	for i := 0; i < len(tokens); {
		if i+1 < len(tokens) {
			if _, ok := fillers[tokens[i]+" "+tokens[i+1]]; ok {
				i += 2
				continue
			}
		}
		if _, ok := fillers[tokens[i]]; !ok {
			return false
		}
		i++
	}
	return true
}

// Similarity is the Jaccard index of the two texts' token sets.
// Returns 0 when either side is empty.
func Similarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// Truncate returns the first n runes of the normalized text, without a
// trailing partial space.
func Truncate(text string, n int) string {
	norm := Normalize(text)
	runes := []rune(norm)
	if len(runes) <= n {
		return norm
	}
	return strings.TrimSpace(string(runes[:n]))
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

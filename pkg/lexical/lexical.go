// Package lexical provides small, pure text-feature utilities used across the project.
package lexical

import (
	"strings"
	"unicode"
)

// SanitizeText removes control characters except tab/newline/CR and trims spaces.
func SanitizeText(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Words splits text into lowercase word tokens, stripping punctuation.
func Words(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '-'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "'-")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// WordCount returns the number of word tokens in s.
func WordCount(s string) int { return len(Words(s)) }

// UniqueWordRatio returns unique words divided by total words, or 0 for empty input.
func UniqueWordRatio(s string) float64 {
	ws := Words(s)
	if len(ws) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(ws))
	for _, w := range ws {
		seen[w] = struct{}{}
	}
	return float64(len(seen)) / float64(len(ws))
}

var fillerWords = map[string]struct{}{
	"um": {}, "uh": {}, "like": {}, "basically": {}, "actually": {},
	"literally": {}, "stuff": {}, "things": {}, "whatever": {}, "kinda": {},
	"sorta": {}, "y'know": {},
}

// FillerWordCount counts common filler words in s.
func FillerWordCount(s string) int {
	n := 0
	for _, w := range Words(s) {
		if _, ok := fillerWords[w]; ok {
			n++
		}
	}
	return n
}

// AvgSentenceLength returns the mean number of words per sentence. Sentences
// are split on ., ! and ?; text without terminators counts as one sentence.
func AvgSentenceLength(s string) float64 {
	total := WordCount(s)
	if total == 0 {
		return 0
	}
	sentences := 0
	for _, part := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		if strings.TrimSpace(part) != "" {
			sentences++
		}
	}
	if sentences == 0 {
		sentences = 1
	}
	return float64(total) / float64(sentences)
}

// ContainsAny reports whether s contains any of the needles, case-insensitively.
func ContainsAny(s string, needles []string) bool {
	low := strings.ToLower(s)
	for _, n := range needles {
		if n != "" && strings.Contains(low, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// HasNumericSpecific reports whether s contains a digit, a weak proxy for
// concrete quantitative detail in an answer.
func HasNumericSpecific(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// KeywordCoverage returns the fraction of keywords present in s (case-insensitive
// substring match). Returns 0 when keywords is empty.
func KeywordCoverage(s string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	low := strings.ToLower(s)
	hit := 0
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && strings.Contains(low, k) {
			hit++
		}
	}
	return float64(hit) / float64(len(keywords))
}

package trigram

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Size is the number of runes in a trigram.
const Size = 3

// Pad is the marker placed on each side of the normalized text.
const Pad = ' '

// Trigram is one window of a normalized string and its weight.
type Trigram struct {
	Text  string  `json:"trigram"`
	Score float64 `json:"score"`
}

// Normalize applies the package normalization to text.
// A blank input returns the empty string.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	// transform.Chain keeps state, so each call builds its own.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		// Invalid UTF-8 falls back to the raw text.
		folded = text
	}

	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// Extract returns the ordered trigrams of text.
//
// Blank text yields an empty, non-nil slice. Repeated windows are kept as
// separate entries.
func Extract(text string) []Trigram {
	normalized := Normalize(text)
	if normalized == "" {
		return []Trigram{}
	}

	padded := make([]rune, 0, len(normalized)+2)
	padded = append(padded, Pad)
	padded = append(padded, []rune(normalized)...)
	padded = append(padded, Pad)

	count := len(padded) - Size + 1
	score := 1.0 / float64(count)

	out := make([]Trigram, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, Trigram{
			Text:  string(padded[i : i+Size]),
			Score: score,
		})
	}
	return out
}

// Distinct returns the distinct trigram texts in first-seen order together
// with the summed score of each.
func Distinct(trigrams []Trigram) ([]string, map[string]float64) {
	weights := make(map[string]float64, len(trigrams))
	order := make([]string, 0, len(trigrams))
	for _, t := range trigrams {
		if _, seen := weights[t.Text]; !seen {
			order = append(order, t.Text)
		}
		weights[t.Text] += t.Score
	}
	return order, weights
}

// Texts returns the trigram strings in order.
func Texts(trigrams []Trigram) []string {
	out := make([]string, len(trigrams))
	for i, t := range trigrams {
		out[i] = t.Text
	}
	return out
}

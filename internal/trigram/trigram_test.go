package trigram

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_PadsAndSlides(t *testing.T) {
	// Given: a three letter word
	// When: extracting
	got := Extract("abc")

	// Then: both edges participate in a full window
	require.Len(t, got, 3)
	assert.Equal(t, []string{" ab", "abc", "bc "}, Texts(got))
}

func TestExtract_SingleRune(t *testing.T) {
	got := Extract("a")

	require.Len(t, got, 1)
	assert.Equal(t, " a ", got[0].Text)
	assert.InDelta(t, 1.0, got[0].Score, 1e-12)
}

func TestExtract_BlankInputIsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "spaces", input: "   "},
		{name: "mixed whitespace", input: "\t\n \r"},
		{name: "combining marks only", input: "\u0301\u0308"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.input)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestExtract_ScoresSumToOne(t *testing.T) {
	inputs := []string{"a", "hello", "hello world", "a much longer string with many words in it"}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			got := Extract(in)
			require.NotEmpty(t, got)

			var sum float64
			for _, tg := range got {
				sum += tg.Score
				assert.GreaterOrEqual(t, tg.Score, 0.0)
			}
			assert.InDelta(t, 1.0, sum, 1e-9)
		})
	}
}

func TestExtract_EveryTrigramHasThreeRunes(t *testing.T) {
	inputs := []string{"x", "héllo wörld", "日本語テキスト", "a-b_c.d", "  spaced   out  "}

	for _, in := range inputs {
		for _, tg := range Extract(in) {
			assert.Equal(t, Size, utf8.RuneCountInString(tg.Text), "input %q trigram %q", in, tg.Text)
		}
	}
}

func TestExtract_Deterministic(t *testing.T) {
	// Given: the same input twice
	first := Extract("The Quick Brown Fox")
	second := Extract("The Quick Brown Fox")

	// Then: identical ordered output
	assert.Equal(t, first, second)
}

func TestExtract_KeepsRepeatedTrigrams(t *testing.T) {
	// Given: "aaaa" produces "aaa" twice
	got := Extract("aaaa")

	// Then: both occurrences are kept
	assert.Equal(t, []string{" aa", "aaa", "aaa", "aa "}, Texts(got))
}

func TestExtract_HelloWorldCount(t *testing.T) {
	got := Extract("hello world")

	require.Len(t, got, 11)
	assert.InDelta(t, 1.0/11.0, got[0].Score, 1e-12)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{name: "lowercase", input: "HeLLo", expect: "hello"},
		{name: "accents removed", input: "Café Crème", expect: "cafe creme"},
		{name: "whitespace collapsed", input: "  a \t\n b  ", expect: "a b"},
		{name: "punctuation kept", input: "foo.bar!", expect: "foo.bar!"},
		{name: "compatibility forms folded", input: "ﬁne", expect: "fine"},
		{name: "blank", input: " \t ", expect: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, Normalize(tt.input))
		})
	}
}

func TestExtract_QueryAndIndexNormalizeAlike(t *testing.T) {
	assert.Equal(t, Extract("café"), Extract("CAFE"))
}

func TestDistinct(t *testing.T) {
	// Given: repeated trigrams
	tgs := Extract("aaaa")

	// When: collapsing
	order, weights := Distinct(tgs)

	// Then: first-seen order and summed weights
	assert.Equal(t, []string{" aa", "aaa", "aa "}, order)
	assert.InDelta(t, 0.5, weights["aaa"], 1e-12)
	assert.InDelta(t, 0.25, weights[" aa"], 1e-12)
}

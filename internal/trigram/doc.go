// Package trigram turns text into weighted trigrams.
//
// Normalization is fixed and applied identically to indexed text and query
// text:
//   - NFKD decomposition, combining marks (Unicode Mn) removed, NFC recomposition
//   - lowercase
//   - every run of Unicode whitespace collapsed into a single ASCII space
//   - leading and trailing whitespace trimmed
//
// Punctuation, digits and symbols are kept. The normalized string is padded
// with one space on each side and a three-rune window slides over it, so a
// string of n runes yields n trigrams. Every trigram of a string scores 1/n,
// which makes the scores of one string sum to 1.0 regardless of its length.
package trigram

// ═══════════════════════════════════════════════════════════════════════════════
// TERM NORMALIZATION
// ═══════════════════════════════════════════════════════════════════════════════
// Hit tables built by different tools spell the same concept differently:
//
//	"Breast Neoplasms", "breast neoplasm", "breast-neoplasms"
//
// Scored as-is, those are three separate terms that split one concept's
// documents between them. Normalization maps each label to a canonical key
// so the loader can merge them.
//
// PIPELINE:
// ---------
//  0. Accent fold  → "Sjögren" → "Sjogren" (optional, NFD + drop marks)
//  1. Tokenization → split on anything that is not a letter or digit
//  2. Lowercasing  → "Breast" → "breast"
//  3. Stemming     → "neoplasms" → "neoplasm" (optional, Snowball English)
//  4. Join         → tokens rejoined with single spaces
//
// EXAMPLE:
// --------
// Input:  "Breast-Neoplasms"
// Step 1: ["Breast", "Neoplasms"]
// Step 2: ["breast", "neoplasms"]
// Step 3: ["breast", "neoplasm"]
// Step 4: "breast neoplasm"
//
// No stop-word step: labels such as "vitamin a" or "hepatitis b" lose their
// meaning without the short token.
// ═══════════════════════════════════════════════════════════════════════════════

package cooccur

import (
	"strings"
	"unicode"

	snowballeng "github.com/kljensen/snowball/english"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizerConfig holds the term normalization switches
type NormalizerConfig struct {
	Lowercase   bool // Fold case (default: true)
	FoldAccents bool // Strip combining marks (default: true)
	Stem        bool // Apply the Snowball English stemmer (default: false)
}

// DefaultNormalizerConfig returns the standard normalizer configuration
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		Lowercase:   true,
		FoldAccents: true,
		Stem:        false,
	}
}

// NormalizeTerm maps a term label to its canonical key
//
// Example:
//
//	NormalizeTerm("Breast-Neoplasms", NormalizerConfig{Lowercase: true, Stem: true})
//	// Returns: "breast neoplasm"
func NormalizeTerm(term string, config NormalizerConfig) string {
	if config.FoldAccents {
		term = foldAccents(term)
	}
	tokens := tokenize(term)
	if config.Lowercase {
		tokens = lowercaseFilter(tokens)
	}
	if config.Stem {
		tokens = stemmerFilter(tokens)
	}
	return strings.Join(tokens, " ")
}

// foldAccents decomposes text and drops the combining marks
//
//	"Sjögren" → "Sjogren", "Ménière" → "Meniere"
func foldAccents(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return folded
}

// tokenize splits text on every rune that is neither a letter nor a digit
//
//	"hepatitis-b"   → ["hepatitis", "b"]
//	"IL-6 (human)"  → ["IL", "6", "human"]
func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func lowercaseFilter(tokens []string) []string {
	r := make([]string, len(tokens))
	for i, token := range tokens {
		r[i] = strings.ToLower(token)
	}
	return r
}

// stemmerFilter reduces each token to its Snowball root
//
//	["neoplasms", "infections"] → ["neoplasm", "infect"]
//
// Stop words pass through unstemmed. The stemmer lowercases its input, so
// stemming implies lowercasing.
func stemmerFilter(tokens []string) []string {
	r := make([]string, len(tokens))
	for i, token := range tokens {
		r[i] = snowballeng.Stem(token, false)
	}
	return r
}

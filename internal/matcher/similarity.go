package matcher

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/mozillazg/go-unidecode"
	"github.com/xrash/smetrics"

	"assisted-venue-dedup/internal/constants"
)

// Normalize prepares a venue name for comparison: transliterate to ASCII,
// lowercase, collapse runs of whitespace. Punctuation is kept; trigram
// scoring already tolerates it and stripping it hurts names like "B.B. King's".
func Normalize(name string) string {
	s := unidecode.Unidecode(name)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// Similarity scores two venue names in [0, 1]. The score is symmetric and
// reflexive: Similarity(a, b) == Similarity(b, a) and Similarity(a, a) == 1
// for any non-empty name.
//
// The base score is the better of trigram overlap and normalized edit
// distance. Two rules then lift obvious abbreviation/containment pairs that
// string metrics undervalue:
//   - one normalized name contains the other (both at least
//     SubstringMinLength runes), or
//   - Jaro-Winkler is high enough to suggest an abbreviated prefix form.
//
// In either case the score is floored at SubstringSimFloor so tier policy
// still sees the pair as a plausible duplicate.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	sim := trigramSimilarity(na, nb)
	if lr := levenshteinRatio(na, nb); lr > sim {
		sim = lr
	}
	if sim < constants.SubstringSimFloor && hasAbbreviationEvidence(na, nb) {
		sim = constants.SubstringSimFloor
	}
	return sim
}

// HasSubstringRelation reports whether one normalized name contains the
// other. Containment below SubstringMinLength runes is ignored; "be" inside
// "blue note" is noise, not evidence.
func HasSubstringRelation(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	return substringRelated(na, nb)
}

func substringRelated(na, nb string) bool {
	if len([]rune(na)) < constants.SubstringMinLength || len([]rune(nb)) < constants.SubstringMinLength {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

func hasAbbreviationEvidence(na, nb string) bool {
	if substringRelated(na, nb) {
		return true
	}
	return smetrics.JaroWinkler(na, nb, 0.7, 4) >= constants.AbbreviationJWFloor
}

// trigramSimilarity mirrors pg_trgm: pad each word with two leading and one
// trailing space, collect distinct trigrams, then score the overlap as
// shared / union.
func trigramSimilarity(a, b string) float64 {
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	return float64(shared) / float64(union)
}

func trigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(s) {
		padded := []rune("  " + word + " ")
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = struct{}{}
		}
	}
	return set
}

func levenshteinRatio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}

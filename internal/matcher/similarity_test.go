package matcher

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Café Wha?", "cafe wha?"},
		{"  The   Blue  Note ", "the blue note"},
		{"BLUE NOTE", "blue note"},
		{"Señor Frog's", "senor frog's"},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Fatalf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSimilarityReflexive(t *testing.T) {
	names := []string{"Blue Note", "Café Wha?", "Madison Square Garden", "x y z"}
	for _, n := range names {
		if got := Similarity(n, n); got != 1 {
			t.Fatalf("Similarity(%q, %q) = %v, want 1", n, n, got)
		}
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	pairs := [][2]string{
		{"Blue Note", "Blue Note Jazz Club"},
		{"Café Wha?", "Cafe Wha"},
		{"MSG", "Madison Square Garden"},
		{"Apollo Theater", "Apollo Theatre"},
	}
	for _, p := range pairs {
		ab := Similarity(p[0], p[1])
		ba := Similarity(p[1], p[0])
		if ab != ba {
			t.Fatalf("Similarity(%q, %q) = %v but reversed = %v", p[0], p[1], ab, ba)
		}
	}
}

func TestSimilarityBounds(t *testing.T) {
	pairs := [][2]string{
		{"Blue Note", "Blue Note Jazz Club"},
		{"Totally Different", "Nothing Alike Here"},
		{"a", "b"},
		{"", "Blue Note"},
	}
	for _, p := range pairs {
		got := Similarity(p[0], p[1])
		if got < 0 || got > 1 {
			t.Fatalf("Similarity(%q, %q) = %v, out of [0, 1]", p[0], p[1], got)
		}
	}
}

func TestSimilarityEmpty(t *testing.T) {
	if got := Similarity("", ""); got != 0 {
		t.Fatalf("Similarity of empty names = %v, want 0", got)
	}
	if got := Similarity("Blue Note", "   "); got != 0 {
		t.Fatalf("Similarity against blank name = %v, want 0", got)
	}
}

func TestSubstringRelationFloorsScore(t *testing.T) {
	// "Blue Note" is contained in the longer name, so the score may not
	// drop below the containment floor even though trigram overlap is low.
	got := Similarity("Blue Note", "Blue Note Jazz Club at the Village Underground NYC")
	if got < 0.5 {
		t.Fatalf("contained name scored %v, want >= 0.5", got)
	}
}

func TestSubstringRelationIgnoresShortNames(t *testing.T) {
	if HasSubstringRelation("Be", "Blue Note Bebop Bar") {
		t.Fatalf("two-rune name should not count as a substring relation")
	}
	if !HasSubstringRelation("Blue Note", "The Blue Note") {
		t.Fatalf("expected substring relation for contained name")
	}
}

func TestSubstringRelationIsCaseAndAccentInsensitive(t *testing.T) {
	if !HasSubstringRelation("CAFÉ WHA", "cafe wha west village") {
		t.Fatalf("substring relation should apply after normalization")
	}
}

func TestDissimilarNamesScoreLow(t *testing.T) {
	got := Similarity("Radio City Music Hall", "Brooklyn Bowl")
	if got >= 0.3 {
		t.Fatalf("unrelated names scored %v, want < 0.3", got)
	}
}

func TestVariantSpellingsScoreHigh(t *testing.T) {
	got := Similarity("Apollo Theater", "Apollo Theatre")
	if got < 0.7 {
		t.Fatalf("spelling variants scored %v, want >= 0.7", got)
	}
}

func TestTrigramMatchesPgTrgmShape(t *testing.T) {
	// Identical single words share every trigram.
	if got := trigramSimilarity("blue", "blue"); got != 1 {
		t.Fatalf("trigramSimilarity of identical strings = %v, want 1", got)
	}
	// Disjoint words share nothing.
	if got := trigramSimilarity("blue", "wxyz"); got != 0 {
		t.Fatalf("trigramSimilarity of disjoint strings = %v, want 0", got)
	}
}

func TestLevenshteinRatio(t *testing.T) {
	if got := levenshteinRatio("note", "note"); got != 1 {
		t.Fatalf("levenshteinRatio identical = %v, want 1", got)
	}
	got := levenshteinRatio("theater", "theatre")
	want := 1 - 2.0/7.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("levenshteinRatio(theater, theatre) = %v, want %v", got, want)
	}
}

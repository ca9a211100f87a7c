package normalize

import (
	"strings"
	"testing"
)

func TestNormalizeEmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\n\t"} {
		res := Normalize(input)
		if res.Cleaned != input {
			t.Errorf("Normalize(%q) changed blank input to %q", input, res.Cleaned)
		}
		if len(res.Corrections) != 0 {
			t.Errorf("Normalize(%q) reported corrections %v", input, res.Corrections)
		}
		if res.ImprovementScore != 0 {
			t.Errorf("Normalize(%q) score = %v, want 0", input, res.ImprovementScore)
		}
	}
}

func TestLigatureExpansion(t *testing.T) {
	res := Normalize("rapport con\ufb01dentiel sur le \ufb02ux")
	if !strings.Contains(res.Cleaned, "confidentiel") || !strings.Contains(res.Cleaned, "flux") {
		t.Errorf("ligatures not expanded: %q", res.Cleaned)
	}
}

func TestCharConfusions(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string
	}{
		{"zero in lowercase word", "c0ntrat", "contrat"},
		{"zero in uppercase word", "L0I", "LOI"},
		{"ell in number", "2l5", "215"},
		{"capital i in number", "4I7", "417"},
		{"capital o in number", "2O25", "2025"},
		{"lowercase o in number", "1o0", "100"},
		{"s in number", "1S3", "153"},
		{"b in number", "1B3", "183"},
		{"z in number", "1Z3", "123"},
		{"zero between digits untouched", "2025", "2025"},
		{"o at word start untouched", "Oui", "Oui"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fixCharConfusions(tt.in); got != tt.want {
				t.Errorf("fixCharConfusions(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCharConfusionNeverGlobal(t *testing.T) {
	// The same glyph must resolve differently depending on context, and a
	// glyph without qualifying neighbors must be left alone.
	in := "v0l 2O25 0k"
	got := fixCharConfusions(in)
	if got != "vol 2025 0k" {
		t.Errorf("fixCharConfusions(%q) = %q, want %q", in, got, "vol 2025 0k")
	}
}

func TestPhoneNumberReassembly(t *testing.T) {
	got := fixNumberGroups("02.38,;53.17 62")
	if got != "02.38.53.17.62" {
		t.Errorf("five-group phone = %q, want 02.38.53.17.62", got)
	}

	got = fixNumberGroups("01 22;33,44")
	if got != "01.22.33.44" {
		t.Errorf("four-group phone = %q, want 01.22.33.44", got)
	}
}

func TestSpacingRepair(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"space before punctuation", "clause ;", "clause;"},
		{"missing space after comma", "bail,locataire", "bail, locataire"},
		{"missing space after period", "fin.Le bail", "fin. Le bail"},
		{"comma before digit spaced", "montant de 1,5", "montant de 1, 5"},
		{"dotted number preserved", "02.38.53.17.62", "02.38.53.17.62"},
		{"multiple spaces", "le   bail", "le bail"},
		{"space inside parens", "( article 12 )", "(article 12)"},
		{"curly quotes", "\u201cle bail\u201d", `"le bail"`},
		{"guillemets", "\u00able bail\u00bb", `"le bail"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fixSpacing(tt.in); got != tt.want {
				t.Errorf("fixSpacing(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBrokenWordRejoin(t *testing.T) {
	t.Run("hyphen wrap", func(t *testing.T) {
		got := rejoinBrokenWords("ges-\ntionnaire")
		if got != "gestionnaire" {
			t.Errorf("got %q, want gestionnaire", got)
		}
	})

	t.Run("consecutive hyphen wraps", func(t *testing.T) {
		got := rejoinBrokenWords("pro-\nprié-\ntaire")
		if got != "propriétaire" {
			t.Errorf("got %q, want propriétaire", got)
		}
	})

	t.Run("short lowercase lines merge", func(t *testing.T) {
		got := rejoinBrokenWords("le loca\ntaire")
		if got != "le locataire" {
			t.Errorf("got %q, want %q", got, "le locataire")
		}
	})

	t.Run("long line not merged", func(t *testing.T) {
		long := strings.Repeat("x", 60)
		in := long + "\nsuite"
		if got := rejoinBrokenWords(in); got != in {
			t.Errorf("long line was merged: %q", got)
		}
	})

	t.Run("uppercase start not merged", func(t *testing.T) {
		in := "fin de clause\nLe bailleur"
		if got := rejoinBrokenWords(in); got != in {
			t.Errorf("sentence boundary was merged: %q", got)
		}
	})
}

func TestBlankLineCollapse(t *testing.T) {
	in := "a\n\n\n\n\nb"
	got := collapseBlankLines(in)
	if got != "a\n\n\nb" {
		t.Errorf("collapseBlankLines(%q) = %q", in, got)
	}
}

func TestImprovementScore(t *testing.T) {
	if s := improvementScore("same", "same"); s != 0 {
		t.Errorf("identical strings score = %v, want 0", s)
	}
	if s := improvementScore("abcd", "abce"); s != 25 {
		t.Errorf("one char of four score = %v, want 25", s)
	}
	if s := improvementScore("ab", "totally different and much longer"); s != 100 {
		t.Errorf("score not capped: %v", s)
	}
}

func TestNormalizeRecordsCorrections(t *testing.T) {
	res := Normalize("c0ntrat ,signé")
	if len(res.Corrections) == 0 {
		t.Fatal("expected corrections to be recorded")
	}
	if res.Original != "c0ntrat ,signé" {
		t.Errorf("original not retained: %q", res.Original)
	}
}

// Applying the normalizer to its own output must be a no-op.
func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"ges-\ntionnaire du c0ntrat , signé le 2O25",
		"ligne a\nligne b\nligne c",
		"Tel : 02.38,;53 17.62 pour contact",
		"une \u201cclause\u201d ( importante )avec des   espaces",
		"a\n\n\n\n\nb c\ufb01n",
		"le loca\ntaire doit\npayer",
		"Article 3.Le bail est conclu,pour une durée de 3 ans",
	}
	for _, in := range inputs {
		once := Normalize(in).Cleaned
		twice := Normalize(once).Cleaned
		if once != twice {
			t.Errorf("normalize not idempotent for %q:\n once: %q\ntwice: %q", in, once, twice)
		}
	}
}

func TestNormalizeEndToEnd(t *testing.T) {
	in := "Le pr0priétaire s'engage ,à maintenir le l0gement.\n\n\n\n\nTel : 02.38,;53 17.62"
	res := Normalize(in)

	if strings.Contains(res.Cleaned, "0priétaire") {
		t.Errorf("digit confusion not fixed: %q", res.Cleaned)
	}
	if !strings.Contains(res.Cleaned, "02.38.53.17.62") {
		t.Errorf("phone number not reassembled: %q", res.Cleaned)
	}
	if strings.Contains(res.Cleaned, " ,") {
		t.Errorf("space before comma not removed: %q", res.Cleaned)
	}
	if res.ImprovementScore <= 0 {
		t.Errorf("expected positive improvement score, got %v", res.ImprovementScore)
	}
}

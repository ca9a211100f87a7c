// Package normalize implements the deterministic OCR cleanup layer: an
// ordered pipeline of pure text transforms that repair common recognition
// artifacts without any model involvement. The pipeline is idempotent --
// every pattern matches only dirty forms, never forms a step produces --
// so running it over its own output is a no-op.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Result reports a cleanup run. Original is always retained; Cleaned is the
// pipeline output. Corrections lists, in application order, the steps that
// actually changed the text.
type Result struct {
	Original         string   `json:"original"`
	Cleaned          string   `json:"cleaned"`
	Corrections      []string `json:"corrections"`
	ImprovementScore float64  `json:"improvement_score"`
}

// step is one named transform in the pipeline. Order matters: each step
// consumes the previous step's output.
type step struct {
	name  string
	apply func(string) string
}

var pipeline = []step{
	{"unicode normalization", normalizeUnicode},
	{"ligature expansion", expandLigatures},
	{"character confusion repair", fixCharConfusions},
	{"merged glyph repair", fixMergedGlyphs},
	{"number grouping repair", fixNumberGroups},
	{"spacing and punctuation repair", fixSpacing},
	{"broken word rejoin", rejoinBrokenWords},
	{"blank line collapse", collapseBlankLines},
}

// Normalize runs the full cleanup pipeline over raw OCR text.
func Normalize(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Original: text, Cleaned: text, Corrections: []string{}}
	}

	cleaned := text
	corrections := []string{}
	for _, s := range pipeline {
		before := cleaned
		cleaned = s.apply(cleaned)
		if cleaned != before {
			corrections = append(corrections, s.name)
		}
	}
	cleaned = strings.TrimSpace(cleaned)

	return Result{
		Original:         text,
		Cleaned:          cleaned,
		Corrections:      corrections,
		ImprovementScore: improvementScore(text, cleaned),
	}
}

// normalizeUnicode applies NFKC (compatibility decomposition + canonical
// composition) and strips control characters except newline and tab.
func normalizeUnicode(text string) string {
	normalized := norm.NFKC.String(text)
	var b strings.Builder
	b.Grow(len(normalized))
	for _, r := range normalized {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var ligatures = strings.NewReplacer(
	"ﬁ", "fi",
	"ﬂ", "fl",
	"ﬀ", "ff",
	"ﬃ", "ffi",
	"ﬄ", "ffl",
	"ﬆ", "st",
)

func expandLigatures(text string) string {
	return ligatures.Replace(text)
}

// fixCharConfusions corrects glyphs that OCR engines swap between the digit
// and letter alphabets. The correction direction depends entirely on the
// neighboring characters: the same glyph resolves opposite ways in "c0de"
// and "2025". Decisions use the original neighbors on both sides, so the
// walk is a single pass and stable under re-application.
func fixCharConfusions(text string) string {
	runes := []rune(text)
	out := make([]rune, len(runes))
	copy(out, runes)

	for i, r := range runes {
		var prev, next rune
		if i > 0 {
			prev = runes[i-1]
		}
		if i < len(runes)-1 {
			next = runes[i+1]
		}

		switch {
		case r == '0' && unicode.IsLower(prev) && unicode.IsLower(next):
			out[i] = 'o'
		case r == '0' && unicode.IsUpper(prev) && unicode.IsUpper(next):
			out[i] = 'O'
		case (r == 'l' || r == 'I') && unicode.IsDigit(prev) && unicode.IsDigit(next):
			out[i] = '1'
		case (r == 'O' || r == 'o') && unicode.IsDigit(prev) && unicode.IsDigit(next):
			out[i] = '0'
		case r == 'S' && unicode.IsDigit(prev) && unicode.IsDigit(next):
			out[i] = '5'
		case r == 'B' && unicode.IsDigit(prev) && unicode.IsDigit(next):
			out[i] = '8'
		case r == 'Z' && unicode.IsDigit(prev) && unicode.IsDigit(next):
			out[i] = '2'
		}
	}
	return string(out)
}

// fixMergedGlyphs repairs multi-character artifacts where one glyph was
// recognized as a repeated letter.
var mergedGlyphs = strings.NewReplacer(
	"vv", "w",
	"VV", "W",
)

func fixMergedGlyphs(text string) string {
	return mergedGlyphs.Replace(text)
}

// Phone-shaped sequences: digit pairs split by stray punctuation are
// reassembled with a single dot separator (French phone format).
var (
	phoneFive = regexp.MustCompile(`(\d{2})[.,;:\s]+(\d{2})[.,;:\s]+(\d{2})[.,;:\s]+(\d{2})[.,;:\s]+(\d{2})`)
	phoneFour = regexp.MustCompile(`(\d{2})[.,;:\s]+(\d{2})[.,;:\s]+(\d{2})[.,;:\s]+(\d{2})`)
)

func fixNumberGroups(text string) string {
	text = phoneFive.ReplaceAllString(text, "${1}.${2}.${3}.${4}.${5}")
	text = phoneFour.ReplaceAllString(text, "${1}.${2}.${3}.${4}")
	return text
}

var (
	spaceBeforePunct = regexp.MustCompile(`[ \t]+([,;:!?.)])`)
	punctNoSpace     = regexp.MustCompile(`([,;:!?)])([A-Za-zÀ-ÿ0-9])`)
	periodNoSpace    = regexp.MustCompile(`(\.)([A-Za-zÀ-ÿ])`)
	multiSpace       = regexp.MustCompile(` {2,}`)
	openParenSpace   = regexp.MustCompile(`\([ \t]+`)
	singleQuotes     = regexp.MustCompile("[‘’`]")
	doubleQuotes     = regexp.MustCompile("[“”«»]")
	trailingSpace    = regexp.MustCompile(`(?m)[ \t]+$`)
)

// fixSpacing repairs punctuation spacing and straightens typographic quotes.
// The period rule deliberately excludes digits so decimal numbers and the
// dot-separated groups produced by fixNumberGroups stay intact.
func fixSpacing(text string) string {
	text = spaceBeforePunct.ReplaceAllString(text, "${1}")
	text = punctNoSpace.ReplaceAllString(text, "${1} ${2}")
	text = periodNoSpace.ReplaceAllString(text, "${1} ${2}")
	text = openParenSpace.ReplaceAllString(text, "(")
	text = multiSpace.ReplaceAllString(text, " ")
	text = singleQuotes.ReplaceAllString(text, "'")
	text = doubleQuotes.ReplaceAllString(text, `"`)
	text = trailingSpace.ReplaceAllString(text, "")
	return text
}

var hyphenBreak = regexp.MustCompile(`(\p{Ll})-[ \t]*\n[ \t]*(\p{Ll})`)

// shortLineLimit is the empirical cutoff below which a lowercase-ending line
// is treated as a wrapped word rather than an intentional break. The merge
// accepts some false positives; a split word is considered the worse error.
const shortLineLimit = 50

// rejoinBrokenWords merges words wrapped across line breaks. A trailing
// hyphen before a lowercase continuation always merges. A bare line break
// merges only when the ending line is short and both sides are lowercase.
// Merges cascade until a boundary no longer qualifies, so a second run
// finds nothing left to merge.
func rejoinBrokenWords(text string) string {
	for {
		merged := hyphenBreak.ReplaceAllString(text, "${1}${2}")
		if merged == text {
			break
		}
		text = merged
	}

	lines := strings.Split(text, "\n")
	result := make([]string, 0, len(lines))
	i := 0
	for i < len(lines) {
		current := strings.TrimRight(lines[i], " \t")
		for i < len(lines)-1 && shouldMergeLines(current, lines[i+1]) {
			current += strings.TrimLeft(lines[i+1], " \t")
			i++
		}
		result = append(result, current)
		i++
	}
	return strings.Join(result, "\n")
}

func shouldMergeLines(current, next string) bool {
	if current == "" || len([]rune(current)) >= shortLineLimit {
		return false
	}
	cr := []rune(current)
	nr := []rune(strings.TrimLeft(next, " \t"))
	if len(nr) == 0 {
		return false
	}
	return unicode.IsLower(cr[len(cr)-1]) && unicode.IsLower(nr[0])
}

// collapseBlankLines limits runs of blank lines to two.
func collapseBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blanks := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blanks++
			if blanks <= 2 {
				out = append(out, line)
			}
			continue
		}
		blanks = 0
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// improvementScore measures how much the pipeline changed the text:
// positional character differences plus the length delta, as a percentage
// of the input length, capped at 100. Diagnostic only.
func improvementScore(original, cleaned string) float64 {
	if original == cleaned || len(original) == 0 {
		return 0
	}

	or := []rune(original)
	cr := []rune(cleaned)
	minLen := len(or)
	if len(cr) < minLen {
		minLen = len(cr)
	}

	diff := 0
	for i := 0; i < minLen; i++ {
		if or[i] != cr[i] {
			diff++
		}
	}
	if len(or) > len(cr) {
		diff += len(or) - len(cr)
	} else {
		diff += len(cr) - len(or)
	}

	score := float64(diff) / float64(len(or)) * 100
	if score > 100 {
		score = 100
	}
	return float64(int(score*100+0.5)) / 100
}

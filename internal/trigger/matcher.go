package trigger

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Matcher scores fragments against an ordered, immutable phrase set.
type Matcher struct {
	phrases    []Phrase
	tokens     [][]string
	thresholds Thresholds
}

// NewMatcher normalizes phrases and drops the ones that end up empty.
// Configured order is kept; it decides ties.
func NewMatcher(phrases []Phrase, thresholds Thresholds) *Matcher {
	m := &Matcher{thresholds: thresholds}
	for _, phrase := range phrases {
		text := Normalize(phrase.Text)
		if text == "" {
			continue
		}
		m.phrases = append(m.phrases, Phrase{Text: text, Action: phrase.Action})
		m.tokens = append(m.tokens, runeTokens(text))
	}
	return m
}

// Phrases returns a copy of the normalized phrase set.
func (m *Matcher) Phrases() []Phrase {
	return append([]Phrase(nil), m.phrases...)
}

// Thresholds returns the acceptance bounds in use.
func (m *Matcher) Thresholds() Thresholds {
	return m.thresholds
}

// Match returns the best phrase when its score clears the threshold for the
// fragment's confidence level.
func (m *Matcher) Match(fragment Fragment) (MatchResult, bool) {
	best, ok := m.Best(fragment.Text)
	if !ok {
		return MatchResult{}, false
	}
	if best.Score < m.thresholds.For(fragment.Confidence) {
		return MatchResult{}, false
	}
	return best, true
}

// Best returns the highest-scoring phrase without applying any threshold.
func (m *Matcher) Best(text string) (MatchResult, bool) {
	text = Normalize(text)
	if text == "" || len(m.phrases) == 0 {
		return MatchResult{}, false
	}

	input := runeTokens(text)
	best := MatchResult{Score: -1}
	for i, phrase := range m.phrases {
		score := ratio(input, m.tokens[i])
		// Strictly greater: the first configured phrase wins ties.
		if score > best.Score {
			best = MatchResult{Action: phrase.Action, Phrase: phrase.Text, Score: score}
		}
	}
	return best, true
}

// Normalize folds case, applies NFKC, and collapses whitespace.
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	text = cases.Fold().String(text)
	return strings.Join(strings.Fields(text), " ")
}

// Similarity is the Ratcliff/Obershelp ratio (2*M/T) of the normalized inputs.
func Similarity(a, b string) float64 {
	a = Normalize(a)
	b = Normalize(b)
	if a == "" && b == "" {
		return 1
	}
	return ratio(runeTokens(a), runeTokens(b))
}

func ratio(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	return difflib.NewMatcher(a, b).Ratio()
}

// runeTokens splits s into one-rune elements for the sequence matcher.
func runeTokens(s string) []string {
	tokens := make([]string, 0, len(s))
	for _, r := range s {
		tokens = append(tokens, string(r))
	}
	return tokens
}

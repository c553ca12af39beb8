// Package grounding reconciles a generated reply with the candidates it was
// generated from. Keywords are pulled out of the reply with four heuristic
// passes, every candidate is scored against them, and only candidates with
// positive evidence are kept.
package grounding

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/dictionary"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/textnorm"
)

const (
	// minTokenRunes: extracted tokens must be strictly longer than this.
	minTokenRunes = 2
	// contextWindow is how many words before a trigger the context pass takes.
	contextWindow = 4
)

// Tokens containing these are storefront names, not products.
var storefrontMarkers = []string{"shop", "store", "bookstore"}

var clauseBreak = regexp.MustCompile(`[.,;:!?\n]+`)

// Matcher extracts reply keywords and grounds candidates against them.
// It is safe for concurrent use.
type Matcher struct {
	dict           *dictionary.Tables
	categoryAnchor *regexp.Regexp
	triggers       [][]string
}

// NewMatcher creates a Matcher over the given tables.
func NewMatcher(dict *dictionary.Tables) *Matcher {
	m := &Matcher{dict: dict}

	nouns := dict.CategoryNouns()
	if len(nouns) > 0 {
		alts := make([]string, len(nouns))
		for i, n := range nouns {
			alts[i] = strings.ReplaceAll(regexp.QuoteMeta(n), " ", `\s+`)
		}
		m.categoryAnchor = regexp.MustCompile(
			`(?i)(?:^|[^\p{L}])(` + strings.Join(alts, "|") + `)\s+([^.,;:!?\n]+)`)
	}

	for _, tr := range dict.ContextTriggers() {
		m.triggers = append(m.triggers, strings.Split(tr, " "))
	}
	return m
}

// ExtractKeywords pools the four passes into one ordered-unique token list,
// then drops extraction stopwords, pure numbers and storefront names. The
// storefront check runs here so that no pass can leak a shop name into the
// fallback query.
func (m *Matcher) ExtractKeywords(reply string) []string {
	pool := textnorm.NewOrderedSet()
	pool.AddAll(m.CategoryAnchors(reply)...)
	pool.AddAll(m.LexiconMatches(reply)...)
	pool.AddAll(m.CapitalizedPhrases(reply)...)
	pool.AddAll(m.ContextAnchors(reply)...)

	out := make([]string, 0, pool.Len())
	for _, tok := range pool.Items() {
		if m.dict.IsExtractionStopword(tok) || textnorm.IsNumeric(tok) || isStorefront(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// ImportantKeywords returns the keywords long enough to be trusted on their
// own and not ignored at scoring time.
func (m *Matcher) ImportantKeywords(keywords []string) []string {
	out := []string{}
	for _, kw := range keywords {
		if m.isImportant(kw) {
			out = append(out, kw)
		}
	}
	return out
}

func (m *Matcher) isImportant(kw string) bool {
	return textnorm.RuneLen(kw) >= ImportantMinRunes && !m.dict.IsScoringStopword(kw)
}

// CategoryAnchors returns the words that follow a category noun on the raw
// text, up to the next sentence-breaking punctuation.
func (m *Matcher) CategoryAnchors(text string) []string {
	out := textnorm.NewOrderedSet()
	if m.categoryAnchor == nil {
		return out.Items()
	}
	for _, match := range m.categoryAnchor.FindAllStringSubmatch(text, -1) {
		addTokens(out, match[2])
	}
	return out.Items()
}

// LexiconMatches returns whole-word matches against the brand/product
// lexicon, case-insensitively.
func (m *Matcher) LexiconMatches(text string) []string {
	out := textnorm.NewOrderedSet()
	words := textnorm.Words(textnorm.Normalize(text))
	maxLen := m.dict.MaxBrandWords()

	for i := 0; i < len(words); i++ {
		for l := min(maxLen, len(words)-i); l >= 1; l-- {
			phrase := strings.Join(words[i:i+l], " ")
			if m.dict.IsBrand(phrase) {
				addTokens(out, phrase)
				break
			}
		}
	}
	return out.Items()
}

// CapitalizedPhrases returns runs of two or more consecutive capitalized
// words on the raw text. Storefront-looking tokens break a run and are
// never returned.
func (m *Matcher) CapitalizedPhrases(text string) []string {
	out := textnorm.NewOrderedSet()
	var run []string

	flush := func() {
		if len(run) >= 2 {
			addTokens(out, strings.Join(run, " "))
		}
		run = run[:0]
	}

	for _, field := range strings.Fields(text) {
		tok := textnorm.TrimToken(field)
		if !isCapitalized(tok) || isStorefront(tok) {
			flush()
			continue
		}
		run = append(run, tok)
		if endsClause(field) {
			flush()
		}
	}
	flush()
	return out.Items()
}

// ContextAnchors returns, on the normalized text, up to four words that
// precede a context trigger such as "giá" or "đã bán" in the same clause.
func (m *Matcher) ContextAnchors(text string) []string {
	out := textnorm.NewOrderedSet()
	for _, clause := range clauseBreak.Split(textnorm.Normalize(text), -1) {
		words := textnorm.Words(clause)
		for i := range words {
			for _, tr := range m.triggers {
				if !hasPhraseAt(words, i, tr) {
					continue
				}
				start := max(0, i-contextWindow)
				addTokens(out, strings.Join(words[start:i], " "))
			}
		}
	}
	return out.Items()
}

// addTokens splits phrase on whitespace and adds every normalized token
// longer than minTokenRunes.
func addTokens(set *textnorm.OrderedSet, phrase string) {
	for _, f := range strings.Fields(textnorm.Normalize(phrase)) {
		tok := textnorm.TrimToken(f)
		if textnorm.RuneLen(tok) > minTokenRunes {
			set.Add(tok)
		}
	}
}

func hasPhraseAt(words []string, i int, phrase []string) bool {
	if i+len(phrase) > len(words) {
		return false
	}
	for j, w := range phrase {
		if words[i+j] != w {
			return false
		}
	}
	return true
}

func isCapitalized(tok string) bool {
	r, _ := utf8.DecodeRuneInString(tok)
	return r != utf8.RuneError && unicode.IsUpper(r)
}

func isStorefront(tok string) bool {
	lower := strings.ToLower(tok)
	for _, marker := range storefrontMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func endsClause(field string) bool {
	r, _ := utf8.DecodeLastRuneInString(field)
	return strings.ContainsRune(".,;:!?", r)
}

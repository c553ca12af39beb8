// Package nlp turns a free-text shopping message into catalog keywords and
// intent flags. Everything here is pure: no I/O and no shared mutable state.
package nlp

import (
	"strings"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/dictionary"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/textnorm"
)

// minKeywordRunes is the shortest free word kept as a keyword.
const minKeywordRunes = 2

// Translator maps a bilingual message to an ordered-unique keyword list.
type Translator struct {
	dict *dictionary.Tables
}

// NewTranslator creates a Translator over the given tables.
func NewTranslator(dict *dictionary.Tables) *Translator {
	return &Translator{dict: dict}
}

// keepSpan is a run of words that stopword filtering must not touch.
type keepSpan struct {
	words int
	term  string
}

// Keywords extracts the catalog keywords of message. Vietnamese terms are
// matched longest-first and translated, every resulting term is expanded
// with its synonyms, and stopwords are removed except where they overlap a
// dictionary or allowlisted term. The result is empty when nothing survives.
func (t *Translator) Keywords(message string) []string {
	words := textnorm.Words(textnorm.Normalize(message))
	if len(words) == 0 {
		return []string{}
	}

	spans, covered := t.keepSpans(words)
	out := textnorm.NewOrderedSet()

	for i := 0; i < len(words); {
		if s, ok := spans[i]; ok {
			t.emit(out, s.term)
			i += s.words
			continue
		}
		if n := t.stopPhraseAt(words, i, covered); n > 0 {
			i += n
			continue
		}
		w := words[i]
		if !t.dict.IsQueryStopword(w) && textnorm.RuneLen(w) >= minKeywordRunes {
			t.emit(out, w)
		}
		i++
	}
	return out.Items()
}

// keepSpans finds, left to right and longest first, every dictionary term and
// allowlisted term in words. On equal length a dictionary term wins.
func (t *Translator) keepSpans(words []string) (map[int]keepSpan, []bool) {
	spans := make(map[int]keepSpan)
	covered := make([]bool, len(words))
	maxLen := max(t.dict.MaxViWords(), t.dict.MaxProtectedWords())

	for i := 0; i < len(words); {
		span, ok := t.longestKeepAt(words, i, maxLen)
		if !ok {
			i++
			continue
		}
		spans[i] = span
		for j := i; j < i+span.words; j++ {
			covered[j] = true
		}
		i += span.words
	}
	return spans, covered
}

func (t *Translator) longestKeepAt(words []string, i, maxLen int) (keepSpan, bool) {
	for l := min(maxLen, len(words)-i); l >= 1; l-- {
		phrase := strings.Join(words[i:i+l], " ")
		if en, ok := t.dict.LookupViTerm(phrase); ok {
			return keepSpan{words: l, term: en}, true
		}
		if canonical, ok := t.dict.IsProtected(phrase); ok {
			return keepSpan{words: l, term: canonical}, true
		}
	}
	return keepSpan{}, false
}

// stopPhraseAt returns the length of the longest multi-word stopword phrase
// starting at i that does not overlap a kept span, or 0.
func (t *Translator) stopPhraseAt(words []string, i int, covered []bool) int {
	for l := min(t.dict.MaxStopwordWords(), len(words)-i); l >= 2; l-- {
		if overlaps(covered, i, l) {
			continue
		}
		if t.dict.IsQueryStopword(strings.Join(words[i:i+l], " ")) {
			return l
		}
	}
	return 0
}

func overlaps(covered []bool, from, n int) bool {
	for j := from; j < from+n; j++ {
		if covered[j] {
			return true
		}
	}
	return false
}

// emit adds term, its synonym variants and its Vietnamese category name.
func (t *Translator) emit(out *textnorm.OrderedSet, term string) {
	out.Add(term)
	out.AddAll(t.dict.Expand(term)...)
	if vi, ok := t.dict.CategoryVi(term); ok {
		out.Add(vi)
	}
}

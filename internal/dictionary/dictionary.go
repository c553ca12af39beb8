// Package dictionary holds the bilingual lookup tables used by the product
// pipeline. Tables are built once at startup and are read-only afterwards,
// so a single *Tables may be shared by every request goroutine.
package dictionary

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/textnorm"
)

//go:embed dictionaries.yaml
var embedded []byte

// IntentPhrases are the bilingual phrase lists behind the intent flags.
type IntentPhrases struct {
	Count   []string `yaml:"count"`
	Product []string `yaml:"product"`
	Store   []string `yaml:"store"`
}

// Source is the on-disk shape of the dictionaries document.
type Source struct {
	ViToEn              map[string]string   `yaml:"vi_to_en"`
	CategoryEnToVi      map[string]string   `yaml:"category_en_to_vi"`
	Expansions          map[string][]string `yaml:"expansions"`
	QueryStopwords      []string            `yaml:"query_stopwords"`
	ProtectedKeywords   []string            `yaml:"protected_keywords"`
	CategoryNouns       []string            `yaml:"category_nouns"`
	BrandLexicon        []string            `yaml:"brand_lexicon"`
	ContextTriggers     []string            `yaml:"context_triggers"`
	ExtractionStopwords []string            `yaml:"extraction_stopwords"`
	ScoringStopwords    []string            `yaml:"scoring_stopwords"`
	Intent              IntentPhrases       `yaml:"intent"`
}

// Tables is the immutable, process-wide view of a Source.
type Tables struct {
	viToEn    phraseIndex
	protected phraseIndex
	queryStop phraseIndex
	brands    phraseIndex

	expansions map[string][]string
	categoryVi map[string]string

	extractionStop map[string]struct{}
	scoringStop    map[string]struct{}

	categoryNouns   []string
	brandLexicon    []string
	contextTriggers []string

	countPhrases   []string
	productPhrases []string
	storePhrases   []string
}

// Load reads the dictionaries from path, or from the embedded document when
// path is empty.
func Load(path string) (*Tables, error) {
	data := embedded
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading dictionary file %s: %w", path, err)
		}
		data = b
	}
	return Parse(data)
}

// Default returns the embedded tables. It panics if the embedded document is
// invalid, which can only happen through a bad build.
func Default() *Tables {
	t, err := Parse(embedded)
	if err != nil {
		panic(fmt.Sprintf("dictionary: embedded tables: %v", err))
	}
	return t
}

// Parse decodes a YAML dictionaries document.
func Parse(data []byte) (*Tables, error) {
	var src Source
	if err := yaml.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("decoding dictionaries: %w", err)
	}
	return New(src)
}

// New builds Tables from src. Every key and phrase is normalized on the way in.
func New(src Source) (*Tables, error) {
	if len(src.ViToEn) == 0 {
		return nil, fmt.Errorf("dictionary: vi_to_en is empty")
	}

	viToEn, err := newPhraseIndex(src.ViToEn, "vi_to_en")
	if err != nil {
		return nil, err
	}
	protected, err := newPhraseIndex(identity(src.ProtectedKeywords), "protected_keywords")
	if err != nil {
		return nil, err
	}
	queryStop, err := newPhraseIndex(identity(src.QueryStopwords), "query_stopwords")
	if err != nil {
		return nil, err
	}
	brands, err := newPhraseIndex(identity(src.BrandLexicon), "brand_lexicon")
	if err != nil {
		return nil, err
	}

	t := &Tables{
		viToEn:          viToEn,
		protected:       protected,
		queryStop:       queryStop,
		brands:          brands,
		expansions:      make(map[string][]string, len(src.Expansions)),
		categoryVi:      make(map[string]string, len(src.CategoryEnToVi)),
		extractionStop:  wordSet(src.ExtractionStopwords),
		scoringStop:     wordSet(src.ScoringStopwords),
		categoryNouns:   phraseList(src.CategoryNouns),
		brandLexicon:    phraseList(src.BrandLexicon),
		contextTriggers: phraseList(src.ContextTriggers),
		countPhrases:    foldedList(src.Intent.Count),
		productPhrases:  foldedList(src.Intent.Product),
		storePhrases:    foldedList(src.Intent.Store),
	}

	for term, variants := range src.Expansions {
		key := textnorm.Normalize(term)
		if key == "" {
			return nil, fmt.Errorf("dictionary: expansions has an empty key")
		}
		set := textnorm.NewOrderedSet()
		for _, v := range variants {
			set.Add(textnorm.Normalize(v))
		}
		t.expansions[key] = set.Items()
	}
	for en, vi := range src.CategoryEnToVi {
		t.categoryVi[textnorm.Normalize(en)] = textnorm.Normalize(vi)
	}

	// Longest first so the category-anchor pass prefers "truyện tranh" over "truyện".
	sort.SliceStable(t.categoryNouns, func(i, j int) bool {
		return textnorm.RuneLen(t.categoryNouns[i]) > textnorm.RuneLen(t.categoryNouns[j])
	})

	return t, nil
}

// LookupViTerm maps a Vietnamese phrase to its English term.
func (t *Tables) LookupViTerm(phrase string) (string, bool) {
	return t.viToEn.lookup(phrase)
}

// IsProtected reports whether phrase is on the brand/product allowlist and
// returns its canonical spelling.
func (t *Tables) IsProtected(phrase string) (string, bool) {
	return t.protected.lookup(phrase)
}

// IsQueryStopword reports whether phrase is a query-time stopword.
func (t *Tables) IsQueryStopword(phrase string) bool {
	_, ok := t.queryStop.lookup(phrase)
	return ok
}

// MaxViWords is the word length of the longest vi_to_en key.
func (t *Tables) MaxViWords() int { return t.viToEn.maxWords }

// MaxProtectedWords is the word length of the longest protected keyword.
func (t *Tables) MaxProtectedWords() int { return t.protected.maxWords }

// MaxStopwordWords is the word length of the longest query stopword phrase.
func (t *Tables) MaxStopwordWords() int { return t.queryStop.maxWords }

// Expand returns the synonym variants of term, or nil.
func (t *Tables) Expand(term string) []string {
	v, ok := t.expansions[term]
	if !ok {
		return nil
	}
	out := make([]string, len(v))
	copy(out, v)
	return out
}

// CategoryVi returns the Vietnamese category name for an English term.
func (t *Tables) CategoryVi(term string) (string, bool) {
	v, ok := t.categoryVi[term]
	return v, ok
}

// IsExtractionStopword reports whether a grounding token is dropped at
// extraction time.
func (t *Tables) IsExtractionStopword(token string) bool {
	_, ok := t.extractionStop[token]
	return ok
}

// IsScoringStopword reports whether a grounding token is ignored at scoring
// time.
func (t *Tables) IsScoringStopword(token string) bool {
	_, ok := t.scoringStop[token]
	return ok
}

// IsBrand reports whether phrase is on the brand/product lexicon.
func (t *Tables) IsBrand(phrase string) bool {
	_, ok := t.brands.exact[phrase]
	return ok
}

// MaxBrandWords is the word length of the longest lexicon entry.
func (t *Tables) MaxBrandWords() int { return t.brands.maxWords }

// CategoryNouns returns the category anchors, longest first.
func (t *Tables) CategoryNouns() []string { return clone(t.categoryNouns) }

// BrandLexicon returns the brand/product lexicon.
func (t *Tables) BrandLexicon() []string { return clone(t.brandLexicon) }

// ContextTriggers returns the context-anchor trigger phrases.
func (t *Tables) ContextTriggers() []string { return clone(t.contextTriggers) }

// CountPhrases returns the folded count-intent phrases.
func (t *Tables) CountPhrases() []string { return clone(t.countPhrases) }

// ProductPhrases returns the folded product-intent phrases.
func (t *Tables) ProductPhrases() []string { return clone(t.productPhrases) }

// StorePhrases returns the folded store-intent phrases.
func (t *Tables) StorePhrases() []string { return clone(t.storePhrases) }

// phraseIndex answers exact lookups on the normalized phrase and, for
// unaccented input only, lookups on the diacritic-folded phrase.
type phraseIndex struct {
	exact    map[string]string
	folded   map[string]string
	maxWords int
}

func newPhraseIndex(m map[string]string, name string) (phraseIndex, error) {
	idx := phraseIndex{
		exact:  make(map[string]string, len(m)),
		folded: make(map[string]string, len(m)),
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := phraseKey(k)
		if key == "" {
			return phraseIndex{}, fmt.Errorf("dictionary: %s has an empty key", name)
		}
		idx.exact[key] = textnorm.Normalize(m[k])
		if n := len(strings.Split(key, " ")); n > idx.maxWords {
			idx.maxWords = n
		}
	}
	for _, k := range keys {
		key := phraseKey(k)
		f := textnorm.Fold(key)
		if _, taken := idx.folded[f]; !taken {
			idx.folded[f] = idx.exact[key]
		}
	}
	return idx, nil
}

func (p phraseIndex) lookup(phrase string) (string, bool) {
	if v, ok := p.exact[phrase]; ok {
		return v, true
	}
	if !textnorm.IsUnaccented(phrase) {
		return "", false
	}
	v, ok := p.folded[phrase]
	return v, ok
}

// phraseKey is the canonical form used for multi-word lookups: normalized
// words joined by a single space.
func phraseKey(s string) string {
	return strings.Join(textnorm.Words(textnorm.Normalize(s)), " ")
}

func identity(items []string) map[string]string {
	m := make(map[string]string, len(items))
	for _, s := range items {
		m[s] = s
	}
	return m
}

func wordSet(items []string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, s := range items {
		if w := textnorm.Normalize(s); w != "" {
			m[w] = struct{}{}
		}
	}
	return m
}

func phraseList(items []string) []string {
	set := textnorm.NewOrderedSet()
	for _, s := range items {
		set.Add(phraseKey(s))
	}
	return set.Items()
}

func foldedList(items []string) []string {
	set := textnorm.NewOrderedSet()
	for _, s := range items {
		set.Add(textnorm.Fold(s))
	}
	return set.Items()
}

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

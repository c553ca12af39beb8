package nlp

import (
	"strings"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/dictionary"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/textnorm"
)

// Intent flags a message. More than one flag may be set; only IsCount
// changes how the pipeline retrieves.
type Intent struct {
	IsCount   bool
	IsProduct bool
	IsStore   bool
}

// IntentClassifier detects intent from bilingual phrase lists.
type IntentClassifier struct {
	count   []string
	product []string
	store   []string
}

// NewIntentClassifier creates an IntentClassifier over the given tables.
func NewIntentClassifier(dict *dictionary.Tables) *IntentClassifier {
	return &IntentClassifier{
		count:   dict.CountPhrases(),
		product: dict.ProductPhrases(),
		store:   dict.StorePhrases(),
	}
}

// Classify checks the message against each phrase list, ignoring case and
// diacritics. Phrases only match on whole words.
func (c *IntentClassifier) Classify(message string) Intent {
	text := " " + strings.Join(textnorm.Words(textnorm.Fold(message)), " ") + " "
	return Intent{
		IsCount:   containsAny(text, c.count),
		IsProduct: containsAny(text, c.product),
		IsStore:   containsAny(text, c.store),
	}
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, " "+p+" ") {
			return true
		}
	}
	return false
}

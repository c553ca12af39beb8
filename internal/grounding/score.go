package grounding

import (
	"sort"
	"strings"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/domain"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/textnorm"
)

// Scoring weights and thresholds. Changing any of them changes which
// products are shown for the same reply.
const (
	NameWordScore           = 20
	NameSubstringScore      = 5
	BrandCategoryScore      = 3
	DescriptionScore        = 1
	MissingImportantPenalty = 10
	KeepThreshold           = 5
	ImportantMinRunes       = 4
)

// ScoredCandidate is a candidate with its grounding evidence.
type ScoredCandidate struct {
	Candidate         domain.Candidate
	Score             int
	HasImportantMatch bool
}

// Score rates every candidate against the reply keywords. The result is a
// pure function of its inputs and keeps the candidate order.
func (m *Matcher) Score(candidates []domain.Candidate, keywords []string) []ScoredCandidate {
	important := make(map[string]struct{})
	for _, kw := range m.ImportantKeywords(keywords) {
		important[kw] = struct{}{}
	}

	out := make([]ScoredCandidate, len(candidates))
	for i, c := range candidates {
		out[i] = m.scoreOne(c, keywords, important)
	}
	return out
}

func (m *Matcher) scoreOne(c domain.Candidate, keywords []string, important map[string]struct{}) ScoredCandidate {
	name := textnorm.Normalize(c.Name)
	brand := textnorm.Normalize(c.Brand)
	category := textnorm.Normalize(c.Category)
	description := textnorm.Normalize(c.Description)

	sc := ScoredCandidate{Candidate: c}
	for _, kw := range keywords {
		if kw == "" || m.dict.IsScoringStopword(kw) {
			continue
		}
		switch {
		case textnorm.HasWordPrefix(name, kw):
			sc.Score += NameWordScore
			if _, ok := important[kw]; ok {
				sc.HasImportantMatch = true
			}
		case strings.Contains(name, kw):
			sc.Score += NameSubstringScore
		}
		if strings.Contains(brand, kw) || strings.Contains(category, kw) {
			sc.Score += BrandCategoryScore
		}
		if sc.Score == 0 && strings.Contains(description, kw) {
			sc.Score += DescriptionScore
		}
	}

	if len(important) > 0 && !sc.HasImportantMatch {
		sc.Score = max(0, sc.Score-MissingImportantPenalty)
	}
	return sc
}

// Keep sorts scored candidates by score, highest first and stable on ties,
// and keeps those at or above KeepThreshold. It may return an empty list.
func Keep(scored []ScoredCandidate) []domain.Candidate {
	sorted := make([]ScoredCandidate, len(scored))
	copy(sorted, scored)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	out := []domain.Candidate{}
	for _, sc := range sorted {
		if sc.Score >= KeepThreshold {
			out = append(out, sc.Candidate)
		}
	}
	return out
}

// Ground returns the candidates the reply gives positive evidence for. Unlike
// FilterByReply it returns an empty list when nothing matches, so the caller
// can decide how to recover.
func (m *Matcher) Ground(candidates []domain.Candidate, reply string) []domain.Candidate {
	return Keep(m.Score(candidates, m.ExtractKeywords(reply)))
}

// FilterByReply narrows candidates to those the reply talks about. It never
// turns a non-empty candidate list into an empty one: without positive
// evidence the original list is returned unchanged.
func (m *Matcher) FilterByReply(candidates []domain.Candidate, reply string) []domain.Candidate {
	kept := m.Ground(candidates, reply)
	if len(kept) == 0 && len(candidates) > 0 {
		return candidates
	}
	return kept
}

package grounding_test

import (
	"reflect"
	"slices"
	"testing"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/dictionary"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/domain"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/grounding"
)

const doremonReply = "ShopMduc247 có Truyện Doremon tập 5 giá 20.000đ"

func newMatcher() *grounding.Matcher {
	return grounding.NewMatcher(dictionary.Default())
}

func names(cs []domain.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

// --- Extraction passes ---

func TestCategoryAnchors(t *testing.T) {
	got := newMatcher().CategoryAnchors("Bạn có thể tham khảo Truyện Doremon tập 5, rất hay.")
	want := []string{"doremon", "tập"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestCategoryAnchors_MultiWordNounIsCaseInsensitive(t *testing.T) {
	got := newMatcher().CategoryAnchors("ĐIỆN THOẠI Samsung Galaxy A55. Giao nhanh")
	want := []string{"samsung", "galaxy", "a55"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestLexiconMatches(t *testing.T) {
	m := newMatcher()

	got := m.LexiconMatches("Mình gợi ý iPhone 15 và tai nghe Sony WH-1000XM5")
	if want := []string{"iphone", "sony"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	got = m.LexiconMatches("Bộ One Piece tập 100")
	if want := []string{"one", "piece"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if got := m.LexiconMatches("sonyericsson"); len(got) != 0 {
		t.Errorf("expected whole-word matching only, got %v", got)
	}
}

func TestCapitalizedPhrases(t *testing.T) {
	m := newMatcher()

	got := m.CapitalizedPhrases(doremonReply)
	if want := []string{"truyện", "doremon"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	got = m.CapitalizedPhrases("Dạ, mình gợi ý Apple MacBook Air nhé")
	if want := []string{"apple", "macbook", "air"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestCapitalizedPhrases_SkipsStorefronts(t *testing.T) {
	got := newMatcher().CapitalizedPhrases("Xem tại Mduc Store Official ngay")
	if len(got) != 0 {
		t.Errorf("expected storefront tokens to break runs, got %v", got)
	}
}

func TestContextAnchors(t *testing.T) {
	m := newMatcher()

	got := m.ContextAnchors("Truyện Conan tập 99 có giá 25.000đ")
	if want := []string{"truyện", "conan", "tập"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	got = m.ContextAnchors("Nồi chiên không dầu Lock&Lock đã bán 1.200 sản phẩm")
	if want := []string{"không", "dầu", "lock"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestExtractKeywords_PoolsAndFilters(t *testing.T) {
	got := newMatcher().ExtractKeywords(doremonReply)
	want := []string{"doremon", "tập", "truyện"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestExtractKeywords_DropsStorefrontFromContextPass(t *testing.T) {
	m := newMatcher()

	anchors := m.ContextAnchors(doremonReply)
	if len(anchors) == 0 || anchors[0] != "shopmduc247" {
		t.Fatalf("expected the context pass to see the shop name first, got %v", anchors)
	}

	if kw := m.ExtractKeywords(doremonReply); slices.Contains(kw, "shopmduc247") {
		t.Errorf("expected shop name to be dropped when pooling, got %v", kw)
	}
	got := m.ExtractKeywords("Bookstore Mduc có Truyện Conan tập 99")
	if slices.Contains(got, "bookstore") || !slices.Contains(got, "conan") {
		t.Errorf("expected conan keywords without the storefront, got %v", got)
	}
}

func TestExtractKeywords_NothingRecognizable(t *testing.T) {
	got := newMatcher().ExtractKeywords("Dạ, bạn vui lòng xem thêm nhé.")
	if len(got) != 0 {
		t.Errorf("expected no keywords, got %v", got)
	}
}

func TestImportantKeywords(t *testing.T) {
	got := newMatcher().ImportantKeywords([]string{"doremon", "tập", "truyện", "shopmduc247", "mới"})
	want := []string{"doremon", "truyện", "shopmduc247"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

// --- Scoring ---

func TestScore_NameWordBeatsDescription(t *testing.T) {
	m := newMatcher()
	candidates := []domain.Candidate{
		{ID: "a", Name: "Gấu bông mèo"},
		{ID: "b", Name: "Gối ôm", Description: "In hình mèo dễ thương"},
	}

	scored := m.Score(candidates, []string{"mèo"})

	if scored[0].Score != grounding.NameWordScore {
		t.Errorf("expected name word score %d, got %d", grounding.NameWordScore, scored[0].Score)
	}
	if scored[1].Score != grounding.DescriptionScore {
		t.Errorf("expected description score %d, got %d", grounding.DescriptionScore, scored[1].Score)
	}
	if scored[0].Score <= scored[1].Score {
		t.Error("name word match must score strictly higher than description match")
	}
}

func TestScore_SubstringAndBrand(t *testing.T) {
	m := newMatcher()
	candidates := []domain.Candidate{
		{ID: "a", Name: "Bộ Lego Technic"},
		{ID: "b", Name: "Laptop Pavilion 15", Brand: "HP"},
	}

	scored := m.Score(candidates, []string{"nic", "hp"})

	if scored[0].Score != grounding.NameSubstringScore {
		t.Errorf("expected substring score %d, got %d", grounding.NameSubstringScore, scored[0].Score)
	}
	if scored[1].Score != grounding.BrandCategoryScore {
		t.Errorf("expected brand score %d, got %d", grounding.BrandCategoryScore, scored[1].Score)
	}
}

func TestScore_PenaltyWithoutImportantMatch(t *testing.T) {
	m := newMatcher()
	candidates := []domain.Candidate{{ID: "a", Name: "Ốp lưng iPhone"}}

	scored := m.Score(candidates, []string{"ốp", "samsung"})

	if scored[0].HasImportantMatch {
		t.Error("expected no important match")
	}
	want := grounding.NameWordScore - grounding.MissingImportantPenalty
	if scored[0].Score != want {
		t.Errorf("expected %d, got %d", want, scored[0].Score)
	}
}

func TestScore_PenaltyFloorsAtZero(t *testing.T) {
	m := newMatcher()
	candidates := []domain.Candidate{{ID: "a", Name: "Galaxy S24", Brand: "Samsung"}}

	scored := m.Score(candidates, []string{"samsung"})
	if scored[0].Score != 0 {
		t.Errorf("expected score floored at 0, got %d", scored[0].Score)
	}
}

func TestScore_IgnoresScoringStopwords(t *testing.T) {
	m := newMatcher()
	candidates := []domain.Candidate{{ID: "a", Name: "Truyện Doremon tập 5"}}

	scored := m.Score(candidates, []string{"tập"})
	if scored[0].Score != 0 {
		t.Errorf("expected scoring stopword to be ignored, got %d", scored[0].Score)
	}
}

// --- Filtering ---

func TestFilterByReply_KeepsOnlyMentionedProduct(t *testing.T) {
	candidates := []domain.Candidate{
		{ID: "p1", Name: "Truyện Doremon tập 5", Category: "Truyện tranh"},
		{ID: "p2", Name: "Tai nghe Sony", Brand: "Sony", Category: "Tai nghe"},
	}

	got := newMatcher().FilterByReply(candidates, doremonReply)

	if want := []string{"Truyện Doremon tập 5"}; !reflect.DeepEqual(names(got), want) {
		t.Errorf("expected %v, got %v", want, names(got))
	}
}

func TestFilterByReply_NoEvidenceReturnsOriginal(t *testing.T) {
	candidates := []domain.Candidate{
		{ID: "p1", Name: "Bình giữ nhiệt"},
		{ID: "p2", Name: "Ly sứ"},
	}
	m := newMatcher()
	reply := "Dạ, bạn vui lòng xem thêm nhé."

	got := m.FilterByReply(candidates, reply)
	if !reflect.DeepEqual(got, candidates) {
		t.Errorf("expected original candidates, got %v", names(got))
	}
	if grounded := m.Ground(candidates, reply); len(grounded) != 0 {
		t.Errorf("expected Ground to report no evidence, got %v", names(grounded))
	}
}

func TestFilterByReply_NeverEmptiesNonEmptyInput(t *testing.T) {
	m := newMatcher()
	candidates := []domain.Candidate{
		{ID: "p1", Name: "Laptop Dell Inspiron"},
		{ID: "p2", Name: "Chuột Logitech"},
	}
	replies := []string{
		"",
		"Xin chào!",
		doremonReply,
		"Điện thoại Samsung Galaxy giá tốt",
		"Apple MacBook Air đã bán 500 chiếc",
	}
	for _, r := range replies {
		if got := m.FilterByReply(candidates, r); len(got) == 0 {
			t.Errorf("reply %q: grounding emptied a non-empty list", r)
		}
	}
	if got := m.FilterByReply(nil, doremonReply); len(got) != 0 {
		t.Errorf("expected empty output for empty input, got %v", names(got))
	}
}

func TestKeep_StableByScore(t *testing.T) {
	scored := []grounding.ScoredCandidate{
		{Candidate: domain.Candidate{ID: "a"}, Score: 5},
		{Candidate: domain.Candidate{ID: "b"}, Score: 40},
		{Candidate: domain.Candidate{ID: "c"}, Score: 4},
		{Candidate: domain.Candidate{ID: "d"}, Score: 5},
	}

	got := grounding.Keep(scored)
	var ids []string
	for _, c := range got {
		ids = append(ids, c.ID)
	}
	if want := []string{"b", "a", "d"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("expected %v, got %v", want, ids)
	}
}

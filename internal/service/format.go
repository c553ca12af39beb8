package service

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/domain"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/textnorm"
)

// Canned replies for the terminal states that skip generation.
const (
	ReplyEmptyInput = "Bạn vui lòng mô tả rõ hơn sản phẩm bạn đang tìm nhé, " +
		"ví dụ: \"điện thoại Samsung\" hoặc \"truyện tranh Doremon\"."
	ReplyNotFound = "Xin lỗi, mình chưa tìm thấy sản phẩm phù hợp với yêu cầu của bạn. " +
		"Bạn thử tìm với từ khóa khác nhé!"
	ReplyNotFoundCount = "Hiện tại shop có 0 sản phẩm phù hợp với yêu cầu của bạn. " +
		"Bạn thử tìm với từ khóa khác nhé!"
)

const (
	maxDescriptionRunes = 160
	maxCandidatesRunes  = 4000
)

var vndPrinter = message.NewPrinter(language.Vietnamese)

// FormatVND renders an amount the way the storefront shows prices: "20.000đ".
func FormatVND(amount float64) string {
	return vndPrinter.Sprintf("%d", int64(math.Round(amount))) + "đ"
}

func notFoundReply(isCount bool) string {
	if isCount {
		return ReplyNotFoundCount
	}
	return ReplyNotFound
}

// FormatCandidates renders candidates as the numbered text block handed to
// the generative service. The block never exceeds maxCandidatesRunes; lines
// that would overflow it are left out whole.
func FormatCandidates(candidates []domain.Candidate) string {
	var b strings.Builder
	used := 0

	for i, c := range candidates {
		line := formatCandidateLine(i+1, c)
		n := textnorm.RuneLen(line) + 1
		if used+n > maxCandidatesRunes {
			break
		}
		b.WriteString(line)
		b.WriteByte('\n')
		used += n
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatCandidateLine(n int, c domain.Candidate) string {
	parts := []string{fmt.Sprintf("%d. %s", n, c.Name)}
	if c.Brand != "" {
		parts = append(parts, "thương hiệu: "+c.Brand)
	}
	if c.Category != "" {
		parts = append(parts, "danh mục: "+c.Category)
	}
	if c.SalePrice != nil && *c.SalePrice > 0 && *c.SalePrice < c.Price {
		parts = append(parts, fmt.Sprintf("giá: %s (giảm từ %s)", FormatVND(*c.SalePrice), FormatVND(c.Price)))
	} else {
		parts = append(parts, "giá: "+FormatVND(c.Price))
	}
	parts = append(parts,
		fmt.Sprintf("đánh giá: %.1f/5 (%d lượt)", c.Rating, c.ReviewsCount),
		fmt.Sprintf("đã bán: %d", c.SoldCount),
		fmt.Sprintf("tồn kho: %d", c.Quantity),
	)
	if c.Store != nil && c.Store.Name != "" {
		parts = append(parts, "cửa hàng: "+c.Store.Name)
	}
	if d := strings.TrimSpace(c.Description); d != "" {
		parts = append(parts, "mô tả: "+truncateRunes(d, maxDescriptionRunes))
	}
	return strings.Join(parts, " | ")
}

// FallbackReply builds the reply used when generation fails. It depends only
// on the candidates.
func FallbackReply(candidates []domain.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dạ, mình tìm thấy %d sản phẩm phù hợp với yêu cầu của bạn:", len(candidates))
	for i, c := range candidates {
		fmt.Fprintf(&b, "\n%d. %s - giá %s", i+1, c.Name, FormatVND(c.EffectivePrice()))
	}
	b.WriteString("\nBạn muốn xem chi tiết sản phẩm nào ạ?")
	return b.String()
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "…"
}

// toSummary projects a candidate onto the response shape.
func toSummary(c domain.Candidate) domain.ProductSummary {
	s := domain.ProductSummary{
		ID:           c.ID,
		Name:         c.Name,
		Price:        c.Price,
		SalePrice:    c.SalePrice,
		Images:       c.Images,
		Rating:       c.Rating,
		ReviewsCount: c.ReviewsCount,
		SoldCount:    c.SoldCount,
		Brand:        optional(c.Brand),
		Category:     optional(c.Category),
		Description:  optional(c.Description),
	}
	if s.Images == nil {
		s.Images = []string{}
	}
	if c.Store != nil && c.Store.Name != "" {
		s.Store = &domain.SummaryStore{Name: c.Store.Name, LogoURL: optional(c.Store.LogoURL)}
	}
	return s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// HistoryText renders stored turns as the "role: text" transcript the
// generator expects, one turn per line.
func HistoryText(msgs []domain.ChatMessage) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		lines = append(lines, m.Role+": "+content)
	}
	return strings.Join(lines, "\n")
}

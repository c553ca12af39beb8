// Package llm generates product replies with the OpenAI chat-completions API.
package llm

import (
	"fmt"
	"strings"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/domain"
)

const systemPreamble = `Bạn là trợ lý mua sắm của sàn thương mại điện tử. Trả lời bằng ngôn ngữ của khách hàng, ngắn gọn và thân thiện.
Chỉ giới thiệu các sản phẩm có trong danh sách bên dưới, gọi đúng tên sản phẩm như trong danh sách.
Không bịa thêm sản phẩm, giá hay cửa hàng.`

// SystemPrompt builds the instruction block: the assistant persona, the
// candidate list and, for count questions, the count summary.
func SystemPrompt(candidatesText string, opts domain.ReplyOptions) string {
	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n\nDanh sách sản phẩm:\n")
	b.WriteString(candidatesText)

	if opts.IsCountQuestion {
		fmt.Fprintf(&b, "\n\nKhách hàng hỏi về số lượng. Tổng số sản phẩm phù hợp: %d.", opts.TotalCount)
		if len(opts.BrandCounts) > 0 {
			parts := make([]string, len(opts.BrandCounts))
			for i, bc := range opts.BrandCounts {
				parts[i] = fmt.Sprintf("%s (%d)", bc.Brand, bc.Count)
			}
			fmt.Fprintf(&b, " Theo thương hiệu: %s.", strings.Join(parts, ", "))
		}
		fmt.Fprintf(&b, " Danh sách trên chỉ gồm %d sản phẩm tiêu biểu.", opts.TopProductsLength)
	}
	return b.String()
}

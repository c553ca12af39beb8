package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/domain"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/llm"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/observability"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/resilience"
)

func newGenerator(url string, metrics *observability.Metrics) *llm.OpenAIGenerator {
	guard := resilience.NewGuard("openai", resilience.Config{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxConcurrency: 2,
	}, zap.NewNop())
	return llm.NewOpenAIGenerator(llm.Config{APIKey: "sk-test", BaseURL: url + "/v1"}, nil, guard, metrics, zap.NewNop())
}

func completion(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}}},
		Usage:   openai.Usage{PromptTokens: 120, CompletionTokens: 30, TotalTokens: 150},
	}
}

func TestSystemPrompt_Count(t *testing.T) {
	prompt := llm.SystemPrompt("1. iPhone 15", domain.ReplyOptions{
		IsCountQuestion:   true,
		TotalCount:        12,
		BrandCounts:       []domain.BrandCount{{Brand: "Apple", Count: 8}, {Brand: "Samsung", Count: 4}},
		TopProductsLength: 10,
	})
	for _, want := range []string{"1. iPhone 15", "Tổng số sản phẩm phù hợp: 12", "Apple (8), Samsung (4).", "10 sản phẩm tiêu biểu"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("expected %q in prompt:\n%s", want, prompt)
		}
	}
}

func TestSystemPrompt_Search(t *testing.T) {
	prompt := llm.SystemPrompt("1. Tai nghe Sony", domain.ReplyOptions{})
	if strings.Contains(prompt, "Tổng số") {
		t.Errorf("expected no count summary for a search question:\n%s", prompt)
	}
}

func TestOpenAIGenerator_Reply(t *testing.T) {
	var req openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("  Dạ, bạn có thể xem Tai nghe Sony nhé.  "))
	}))
	defer srv.Close()

	metrics := observability.NewMetrics()
	gen := newGenerator(srv.URL, metrics)

	reply, err := gen.GenerateProductReply(context.Background(), "user: chào", "1. Tai nghe Sony", "tai nghe", domain.ReplyOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Dạ, bạn có thể xem Tai nghe Sony nhé." {
		t.Errorf("unexpected reply %q", reply)
	}
	if len(req.Messages) != 3 || req.Messages[2].Content != "tai nghe" {
		t.Errorf("expected system, history and user messages, got %+v", req.Messages)
	}
	snap := metrics.GetPipelineSnapshot()
	if snap.PromptTokens != 120 || snap.CompletionTokens != 30 {
		t.Errorf("expected token usage recorded, got %d/%d", snap.PromptTokens, snap.CompletionTokens)
	}
}

func TestOpenAIGenerator_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	gen := newGenerator(srv.URL, observability.NewMetrics())
	if _, err := gen.GenerateProductReply(context.Background(), "", "1. x", "x", domain.ReplyOptions{}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestOpenAIGenerator_ServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(completion("ok"))
	}))
	defer srv.Close()

	gen := newGenerator(srv.URL, observability.NewMetrics())
	reply, err := gen.GenerateProductReply(context.Background(), "", "1. x", "x", domain.ReplyOptions{})
	if err != nil || reply != "ok" {
		t.Fatalf("expected retry to succeed, got %q (%v)", reply, err)
	}
}

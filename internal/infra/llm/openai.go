package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/domain"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/observability"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/resilience"
)

var tracer = otel.Tracer("infra/llm")

// Config holds the OpenAI client settings.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenAIGenerator implements port.ReplyGenerator over chat completions.
type OpenAIGenerator struct {
	client  *openai.Client
	model   string
	guard   *resilience.Guard
	metrics *observability.Metrics
	logger  *zap.Logger
}

const defaultModel = "gpt-4o-mini"

// NewOpenAIGenerator creates a generator. An empty model defaults to gpt-4o-mini.
func NewOpenAIGenerator(cfg Config, httpClient *http.Client, guard *resilience.Guard, metrics *observability.Metrics, logger *zap.Logger) *OpenAIGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &OpenAIGenerator{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		guard:   guard,
		metrics: metrics,
		logger:  logger,
	}
}

// GenerateProductReply asks the model for a reply about the candidates.
func (g *OpenAIGenerator) GenerateProductReply(ctx context.Context, historyText, candidatesText, userMessage string, opts domain.ReplyOptions) (string, error) {
	ctx, span := tracer.Start(ctx, "OpenAIGenerator.GenerateProductReply")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", g.model),
		attribute.Bool("llm.count_question", opts.IsCountQuestion),
	)

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(candidatesText, opts)},
	}
	if h := strings.TrimSpace(historyText); h != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: "Lịch sử hội thoại:\n" + h,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userMessage})

	resp, err := resilience.Execute(ctx, g.guard, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       g.model,
			Messages:    messages,
			Temperature: 0.3,
		})
		if err != nil {
			return resp, markPermanent(err)
		}
		return resp, nil
	})
	if err != nil {
		return "", err
	}

	g.metrics.RecordTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	span.SetAttributes(attribute.Int("llm.total_tokens", resp.Usage.TotalTokens))

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	g.logger.Debug("openai reply generated",
		zap.String("model", g.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// markPermanent stops retries on client errors other than rate limiting.
func markPermanent(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && isClientError(apiErr.HTTPStatusCode) {
		return resilience.Permanent(err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && isClientError(reqErr.HTTPStatusCode) {
		return resilience.Permanent(err)
	}
	return err
}

func isClientError(status int) bool {
	return status >= 400 && status < 500 && status != http.StatusTooManyRequests
}

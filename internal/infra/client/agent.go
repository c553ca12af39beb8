// Package client holds HTTP clients for services the BFA calls.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/domain"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/observability"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/resilience"
)

var tracer = otel.Tracer("client")

// AgentGenerator calls the generation agent service. It implements
// port.ReplyGenerator.
type AgentGenerator struct {
	httpClient *http.Client
	baseURL    string
	guard      *resilience.Guard
	metrics    *observability.Metrics
}

// NewAgentGenerator creates a new AgentGenerator.
func NewAgentGenerator(httpClient *http.Client, baseURL string, guard *resilience.Guard, metrics *observability.Metrics) *AgentGenerator {
	return &AgentGenerator{
		httpClient: httpClient,
		baseURL:    baseURL,
		guard:      guard,
		metrics:    metrics,
	}
}

// GenerateProductReply posts the candidates and the user message to the agent
// and returns its reply.
func (c *AgentGenerator) GenerateProductReply(ctx context.Context, historyText, candidatesText, userMessage string, opts domain.ReplyOptions) (string, error) {
	ctx, span := tracer.Start(ctx, "AgentGenerator.GenerateProductReply")
	defer span.End()
	span.SetAttributes(attribute.Bool("agent.count_question", opts.IsCountQuestion))

	body, err := json.Marshal(&domain.AgentGenerateRequest{
		HistoryText:    historyText,
		CandidatesText: candidatesText,
		UserMessage:    userMessage,
		Options:        opts,
	})
	if err != nil {
		return "", err
	}

	resp, err := resilience.Execute(ctx, c.guard, func(ctx context.Context) (*domain.AgentGenerateResponse, error) {
		url := fmt.Sprintf("%s/v1/generate", c.baseURL)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, resilience.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		httpResp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode != http.StatusOK {
			statusErr := fmt.Errorf("agent API returned status %d", httpResp.StatusCode)
			if httpResp.StatusCode >= 400 && httpResp.StatusCode < 500 && httpResp.StatusCode != http.StatusTooManyRequests {
				return nil, resilience.Permanent(statusErr)
			}
			return nil, statusErr
		}

		var agentResp domain.AgentGenerateResponse
		if err := json.NewDecoder(httpResp.Body).Decode(&agentResp); err != nil {
			return nil, fmt.Errorf("decode agent response: %w", err)
		}
		return &agentResp, nil
	})
	if err != nil {
		return "", err
	}

	if resp.TokensUsed > 0 {
		c.metrics.RecordTokens(0, resp.TokensUsed)
		span.SetAttributes(attribute.Int("agent.tokens_used", resp.TokensUsed))
	}
	return resp.Reply, nil
}

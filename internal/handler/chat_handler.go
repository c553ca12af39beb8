// Package handler: chat_handler.go serves POST /v1/products/chat, the entry
// point of the shopping assistant widget.
//
// Request:
//
//	Content-Type: application/json
//	Authorization: Bearer <access token>   (optional)
//	Body: {"message": "có bao nhiêu iphone", "historyText": "...", "conversationId": "..."}
//
// Response (200 OK):
//
//	{"conversationId": "...", "reply": "...", "products": [...]}
//
// The handler is thin: it validates the body, resolves the optional user and
// their recent history, and delegates to the ProductFinder. The pipeline never
// fails; every collaborator error is already folded into the reply.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/domain"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/port"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/service"
)

const (
	maxChatBodyBytes = 64 << 10
	historyTurns     = 10
	historyLoadLimit = 2 * time.Second
)

// ProductFinder answers one shopping message.
type ProductFinder interface {
	FindProducts(ctx context.Context, message string, userID *string, historyText string) *domain.PipelineResult
}

func productChatHandler(finder ProductFinder, history port.HistoryReader, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/products/chat")
		defer span.End()

		if finder == nil {
			writeError(w, http.StatusServiceUnavailable, "product service unavailable")
			return
		}

		var req domain.ChatProductsRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: expected {\"message\": \"...\"}")
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			handleServiceError(w, &domain.ErrValidation{Field: "message", Message: "required"}, logger)
			return
		}

		userID := UserIDFromContext(ctx)
		span.SetAttributes(attribute.Bool("user.authenticated", userID != nil))

		historyText := req.HistoryText
		if strings.TrimSpace(historyText) == "" && userID != nil && history != nil {
			historyText = loadHistory(ctx, history, *userID, logger)
		}

		result := finder.FindProducts(ctx, req.Message, userID, historyText)

		convID := req.ConversationID
		if convID == "" {
			convID = uuid.New().String()
		}

		writeJSON(w, http.StatusOK, domain.ChatProductsResponse{
			ConversationID: convID,
			Reply:          result.Reply,
			Products:       result.Products,
		})
	}
}

// loadHistory fetches the user's recent turns. Failures leave the history
// empty; the reply does not depend on it.
func loadHistory(ctx context.Context, history port.HistoryReader, userID string, logger *zap.Logger) string {
	ctx, cancel := context.WithTimeout(ctx, historyLoadLimit)
	defer cancel()

	msgs, err := history.Recent(ctx, userID, historyTurns)
	if err != nil {
		logger.Warn("history load failed", zap.String("user_id", userID), zap.Error(err))
		return ""
	}
	return service.HistoryText(msgs)
}

package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/domain"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/resilience"
)

const supabaseTable = "chat_messages"

// SupabaseStore writes chat turns through the Supabase PostgREST API.
type SupabaseStore struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	guard          *resilience.Guard
	logger         *zap.Logger
}

// NewSupabaseStore creates a Supabase-backed history store.
func NewSupabaseStore(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, guard *resilience.Guard, logger *zap.Logger) *SupabaseStore {
	return &SupabaseStore{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		guard:          guard,
		logger:         logger,
	}
}

// Save appends one turn.
func (s *SupabaseStore) Save(ctx context.Context, userID, role, text string) error {
	ctx, span := tracer.Start(ctx, "SupabaseStore.Save")
	defer span.End()

	if err := validateTurn(userID, role); err != nil {
		return err
	}

	row := domain.ChatMessage{ID: uuid.NewString(), UserID: userID, Role: role, Content: text}
	_, err := resilience.Execute(ctx, s.guard, func(ctx context.Context) ([]byte, error) {
		return s.doPost(ctx, supabaseTable, row)
	})
	return err
}

// Recent returns the last limit turns of userID, oldest first.
func (s *SupabaseStore) Recent(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	ctx, span := tracer.Start(ctx, "SupabaseStore.Recent")
	defer span.End()

	q := url.Values{}
	q.Set("user_id", "eq."+userID)
	q.Set("select", "id,user_id,role,content")
	q.Set("order", "created_at.desc")
	q.Set("limit", fmt.Sprint(limit))

	body, err := resilience.Execute(ctx, s.guard, func(ctx context.Context) ([]byte, error) {
		return s.doRequest(ctx, http.MethodGet, supabaseTable+"?"+q.Encode(), nil)
	})
	if err != nil {
		return nil, err
	}

	msgs := []domain.ChatMessage{}
	if len(body) == 0 {
		return msgs, nil
	}
	if err := json.Unmarshal(body, &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode chat messages: %w", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Ping checks that the PostgREST endpoint answers.
func (s *SupabaseStore) Ping(ctx context.Context) error {
	_, err := s.doRequest(ctx, http.MethodGet, supabaseTable+"?select=id&limit=1", nil)
	return err
}

func (s *SupabaseStore) doPost(ctx context.Context, table string, data any) ([]byte, error) {
	jsonBody, err := json.Marshal(data)
	if err != nil {
		return nil, resilience.Permanent(err)
	}
	return s.doRequest(ctx, http.MethodPost, table, jsonBody)
}

// doRequest executes an authenticated request to PostgREST. 4xx answers are
// permanent; 5xx and transport errors are retried by the caller's guard.
func (s *SupabaseStore) doRequest(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", s.baseURL, path)

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, resilience.Permanent(err)
	}

	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		statusErr := fmt.Errorf("supabase returned status %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode < 500 {
			return nil, resilience.Permanent(statusErr)
		}
		return nil, statusErr
	}

	s.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return body, nil
}

package history_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/domain"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/history"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/resilience"
)

func newGuard() *resilience.Guard {
	return resilience.NewGuard("history", resilience.Config{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxConcurrency: 4,
	}, zap.NewNop())
}

func TestSupabaseStore_Save(t *testing.T) {
	var got domain.ChatMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rest/v1/chat_messages" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("apikey") != "anon" || r.Header.Get("Authorization") != "Bearer service" {
			t.Error("expected supabase auth headers")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	store := history.NewSupabaseStore(srv.Client(), srv.URL, "anon", "service", newGuard(), zap.NewNop())
	if err := store.Save(context.Background(), "u1", domain.RoleUser, "tìm tai nghe"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != "u1" || got.Role != domain.RoleUser || got.Content != "tìm tai nghe" {
		t.Errorf("unexpected row %+v", got)
	}
	if got.ID == "" {
		t.Error("expected a generated id")
	}
}

func TestSupabaseStore_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	store := history.NewSupabaseStore(srv.Client(), srv.URL, "anon", "service", newGuard(), zap.NewNop())
	if err := store.Save(context.Background(), "u1", domain.RoleAssistant, "ok"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestSupabaseStore_ClientErrorsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"message":"permission denied"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	store := history.NewSupabaseStore(srv.Client(), srv.URL, "anon", "service", newGuard(), zap.NewNop())
	err := store.Save(context.Background(), "u1", domain.RoleUser, "x")
	if err == nil {
		t.Fatal("expected error")
	}
	var extErr *domain.ErrExternalService
	if !errors.As(err, &extErr) {
		t.Errorf("expected ErrExternalService, got %T", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestSupabaseStore_Recent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("user_id") != "eq.u1" {
			t.Errorf("unexpected filter %q", r.URL.Query().Get("user_id"))
		}
		if r.URL.Query().Get("order") != "created_at.desc" {
			t.Errorf("unexpected order %q", r.URL.Query().Get("order"))
		}
		_ = json.NewEncoder(w).Encode([]domain.ChatMessage{
			{ID: "2", UserID: "u1", Role: domain.RoleAssistant, Content: "newer"},
			{ID: "1", UserID: "u1", Role: domain.RoleUser, Content: "older"},
		})
	}))
	defer srv.Close()

	store := history.NewSupabaseStore(srv.Client(), srv.URL, "anon", "service", newGuard(), zap.NewNop())
	msgs, err := store.Recent(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "older" || msgs[1].Content != "newer" {
		t.Errorf("expected oldest first, got %+v", msgs)
	}
}

func TestSave_RejectsInvalidTurn(t *testing.T) {
	store := history.NewPostgresStore(nil, newGuard())

	var valErr *domain.ErrValidation
	if err := store.Save(context.Background(), "", domain.RoleUser, "x"); !errors.As(err, &valErr) {
		t.Errorf("expected validation error for empty user, got %v", err)
	}
	if err := store.Save(context.Background(), "u1", "system", "x"); !errors.As(err, &valErr) {
		t.Errorf("expected validation error for unknown role, got %v", err)
	}
}

package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/rebalancer/internal/domain"
	"github.com/vadiminshakov/rebalancer/internal/registry"
	"go.uber.org/zap"
)

type stubStore struct {
	strategies map[string]domain.Strategy
	triggered  []string
	triggerErr error
}

func newStubStore() *stubStore {
	return &stubStore{strategies: make(map[string]domain.Strategy)}
}

func (s *stubStore) Upsert(userID, walletAddress, protectedDataAddress string) domain.Strategy {
	st := domain.Strategy{
		UserID:               userID,
		WalletAddress:        walletAddress,
		ProtectedDataAddress: protectedDataAddress,
		CreatedAt:            time.Now(),
	}
	s.strategies[userID] = st
	return st
}

func (s *stubStore) List() []domain.Strategy {
	out := make([]domain.Strategy, 0, len(s.strategies))
	for _, st := range s.strategies {
		out = append(out, st)
	}
	return out
}

func (s *stubStore) Count() int {
	return len(s.strategies)
}

func (s *stubStore) ActiveDeals() int {
	return 0
}

func (s *stubStore) TriggerUser(ctx context.Context, userID string) error {
	if _, ok := s.strategies[userID]; !ok {
		return registry.ErrStrategyNotFound
	}
	s.triggered = append(s.triggered, userID)
	return s.triggerErr
}

func newTestMux(store strategyStore) http.Handler {
	return NewServer(":0", store, true, zap.NewNop()).Handler()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestStatusEndpoint(t *testing.T) {
	store := newStubStore()
	store.Upsert("alice", "0xwallet", "0xdata")
	mux := newTestMux(store)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "running", body["status"])
	assert.EqualValues(t, 1, body["strategies"])
	assert.Equal(t, true, body["iexecConfigured"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestHealthEndpoint(t *testing.T) {
	mux := newTestMux(newStubStore())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["healthy"])
}

func TestUpsertStrategy(t *testing.T) {
	store := newStubStore()
	mux := newTestMux(store)

	payload := `{"userId":"alice","protectedDataAddress":"0xdata","walletAddress":"0xwallet"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/strategy", strings.NewReader(payload)))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 1, store.Count())
}

func TestUpsertStrategyMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"missing userId", `{"protectedDataAddress":"0xdata","walletAddress":"0xwallet"}`},
		{"missing protectedDataAddress", `{"userId":"alice","walletAddress":"0xwallet"}`},
		{"missing walletAddress", `{"userId":"alice","protectedDataAddress":"0xdata"}`},
		{"not json", `not json at all`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newStubStore()
			mux := newTestMux(store)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/strategy", strings.NewReader(tc.payload)))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeBody(t, rec)
			assert.NotEmpty(t, body["error"])
			assert.Zero(t, store.Count())
		})
	}
}

func TestListStrategies(t *testing.T) {
	store := newStubStore()
	store.Upsert("alice", "0xwallet", "0xdata")
	store.Upsert("bob", "0xwallet2", "0xdata2")
	mux := newTestMux(store)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/strategies", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["strategies"], 2)
}

func TestTriggerKnownUser(t *testing.T) {
	store := newStubStore()
	store.Upsert("alice", "0xwallet", "0xdata")
	mux := newTestMux(store)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trigger/alice", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []string{"alice"}, store.triggered)
}

func TestTriggerUnknownUser(t *testing.T) {
	mux := newTestMux(newStubStore())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trigger/nobody", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "nobody")
}

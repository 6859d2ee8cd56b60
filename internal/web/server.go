// Package web exposes the HTTP surface: strategy registration, listing
// and manual rebalance triggers.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vadiminshakov/rebalancer/internal/domain"
	"github.com/vadiminshakov/rebalancer/internal/registry"
	"go.uber.org/zap"
)

type strategyStore interface {
	Upsert(userID, walletAddress, protectedDataAddress string) domain.Strategy
	List() []domain.Strategy
	Count() int
	ActiveDeals() int
	TriggerUser(ctx context.Context, userID string) error
}

// Server serves the JSON API over plain net/http.
type Server struct {
	addr            string
	store           strategyStore
	iexecConfigured bool
	startedAt       time.Time
	logger          *zap.Logger
}

// NewServer creates the HTTP server.
func NewServer(addr string, store strategyStore, iexecConfigured bool, logger *zap.Logger) *Server {
	return &Server{
		addr:            addr,
		store:           store,
		iexecConfigured: iexecConfigured,
		startedAt:       time.Now(),
		logger:          logger,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /strategy", s.handleUpsertStrategy)
	mux.HandleFunc("GET /strategies", s.handleListStrategies)
	mux.HandleFunc("POST /trigger/{userId}", s.handleTrigger)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("server listening", zap.String("addr", s.addr))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "running",
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"strategies":      s.store.Count(),
		"activeDeals":     s.store.ActiveDeals(),
		"iexecConfigured": s.iexecConfigured,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"healthy": true,
		"uptime":  time.Since(s.startedAt).Seconds(),
	})
}

type strategyRequest struct {
	UserID               string `json:"userId"`
	ProtectedDataAddress string `json:"protectedDataAddress"`
	WalletAddress        string `json:"walletAddress"`
}

func (s *Server) handleUpsertStrategy(w http.ResponseWriter, r *http.Request) {
	var req strategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" || req.ProtectedDataAddress == "" || req.WalletAddress == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields: userId, protectedDataAddress, walletAddress")
		return
	}

	strategy := s.store.Upsert(req.UserID, req.WalletAddress, req.ProtectedDataAddress)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Strategy stored successfully",
		"strategy": strategy,
	})
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"strategies": s.store.List(),
	})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	err := s.store.TriggerUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, registry.ErrStrategyNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("No strategy found for user %s", userID))
			return
		}
		s.logger.Error("trigger failed", zap.String("user", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to trigger rebalancing")
		return
	}

	// dispatch acknowledged, the deal completes asynchronously
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Rebalancing triggered",
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

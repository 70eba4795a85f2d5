package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func limitParam(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	account, err := s.venue.GetAccountSnapshot(r.Context())
	if err != nil {
		s.logger.Error("Failed to fetch account snapshot", zap.Error(err))
		http.Error(w, "Failed to fetch account", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"status":     "running",
		"time":       time.Now().UTC(),
		"balance":    account.Balance,
		"equity":     account.Equity,
		"currency":   account.Currency,
		"open_plans": len(s.scheduler.Plans()),
	})
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.scheduler.Plans())
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.repo.ListTrades(r.Context(), limitParam(r, 100))
	if err != nil {
		s.logger.Error("Failed to list trades", zap.Error(err))
		http.Error(w, "Failed to list trades", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, trades)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.repo.ListPositionHistory(r.Context(), limitParam(r, 100))
	if err != nil {
		s.logger.Error("Failed to list position history", zap.Error(err))
		http.Error(w, "Failed to list history", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, history)
}

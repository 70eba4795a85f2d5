package advisor_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vikar/fx_cascade_trader/internal/domain"
	"github.com/vikar/fx_cascade_trader/internal/infrastructure/advisor"
)

func testPlan() *domain.ContingencyPlan {
	return &domain.ContingencyPlan{
		Instrument: "EURUSD",
		Primary: domain.Position{
			Instrument: "EURUSD",
			Side:       domain.SideBuy,
			EntryPrice: 1.1000,
			LotSize:    1,
		},
		CurrentLevel: 2,
		State:        domain.PlanCascade,
	}
}

func TestHTTPAdvisor_QueryCarriesPrimaryFields(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode query: %v", err)
		}
		json.NewEncoder(w).Encode(domain.AdvisorOpinion{ShouldExit: true, Confidence: 0.9, Reason: "trend broken"})
	}))
	defer srv.Close()

	a := advisor.NewHTTPAdvisor(srv.URL, time.Second)
	snap := &domain.IndicatorSnapshot{RSI: 61.5, SMAFast: 1.0995, SMAMid: 1.0990, SMASlow: 1.0900}
	op, err := a.ShouldExit(context.Background(), testPlan(), 1.0950, snap)
	if err != nil {
		t.Fatalf("ShouldExit failed: %v", err)
	}

	if got["side"] != "BUY" {
		t.Errorf("Expected side BUY, got %v", got["side"])
	}
	if got["entry_price"] != 1.1000 {
		t.Errorf("Expected entry_price 1.1, got %v", got["entry_price"])
	}
	if got["current_price"] != 1.0950 {
		t.Errorf("Expected current_price 1.095, got %v", got["current_price"])
	}
	if got["current_level"] != float64(2) {
		t.Errorf("Expected current_level 2, got %v", got["current_level"])
	}
	if got["rsi"] != 61.5 {
		t.Errorf("Expected rsi forwarded, got %v", got["rsi"])
	}

	if !op.ShouldExit || op.Confidence != 0.9 || op.Reason != "trend broken" {
		t.Errorf("Opinion not decoded: %+v", op)
	}
}

func TestHTTPAdvisor_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := advisor.NewHTTPAdvisor(srv.URL, time.Second)
	if _, err := a.ShouldExit(context.Background(), testPlan(), 1.0950, nil); err == nil {
		t.Fatal("Expected an error on non-200 status")
	}
}

package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vikar/fx_cascade_trader/internal/domain"
)

// HTTPAdvisor asks an external decision service whether an open plan
// should be abandoned. The service is advisory only; errors and slow
// responses surface to the caller, which treats them as no opinion.
type HTTPAdvisor struct {
	url    string
	client *http.Client
}

func NewHTTPAdvisor(url string, timeout time.Duration) *HTTPAdvisor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPAdvisor{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type exitQuery struct {
	Instrument   string  `json:"instrument"`
	Side         string  `json:"side"`
	EntryPrice   float64 `json:"entry_price"`
	CurrentPrice float64 `json:"current_price"`
	CurrentLevel int     `json:"current_level"`
	RSI          float64 `json:"rsi"`
	SMAFast      float64 `json:"sma_fast"`
	SMAMid       float64 `json:"sma_mid"`
	SMASlow      float64 `json:"sma_slow"`
}

func (a *HTTPAdvisor) ShouldExit(ctx context.Context, plan *domain.ContingencyPlan, price float64, snap *domain.IndicatorSnapshot) (*domain.AdvisorOpinion, error) {
	q := exitQuery{
		Instrument:   plan.Instrument,
		Side:         string(plan.Primary.Side),
		EntryPrice:   plan.Primary.EntryPrice,
		CurrentPrice: price,
		CurrentLevel: plan.CurrentLevel,
	}
	if snap != nil {
		q.RSI = snap.RSI
		q.SMAFast = snap.SMAFast
		q.SMAMid = snap.SMAMid
		q.SMASlow = snap.SMASlow
	}

	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("advisor: marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("advisor: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("advisor: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("advisor: unexpected status %d", resp.StatusCode)
	}

	var opinion domain.AdvisorOpinion
	if err := json.NewDecoder(resp.Body).Decode(&opinion); err != nil {
		return nil, fmt.Errorf("advisor: decode response: %w", err)
	}
	return &opinion, nil
}

package usecase

import (
	"context"
	"time"

	"github.com/vikar/fx_cascade_trader/internal/domain"
	"go.uber.org/zap"
)

// TradeSink is an append-only destination for trade records, e.g. a
// rotated JSONL file.
type TradeSink interface {
	Append(rec *domain.TradeRecord) error
}

// TradeLog fans one trade record out to the repository, the append-only
// sink and any live subscriber. Failures are logged, never fatal: the
// trade itself has already happened on the venue.
type TradeLog struct {
	repo   domain.TradeRepository
	sink   TradeSink
	notify func(*domain.TradeRecord)
	log    *zap.Logger
}

func NewTradeLog(repo domain.TradeRepository, sink TradeSink, log *zap.Logger) *TradeLog {
	return &TradeLog{repo: repo, sink: sink, log: log}
}

// OnRecord registers a live subscriber, e.g. the websocket hub.
func (t *TradeLog) OnRecord(fn func(*domain.TradeRecord)) {
	t.notify = fn
}

func (t *TradeLog) Record(ctx context.Context, rec *domain.TradeRecord) {
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	if t.repo != nil {
		if err := t.repo.SaveTrade(ctx, rec); err != nil {
			t.log.Warn("trade log: repository write failed", zap.Error(err))
		}
	}
	if t.sink != nil {
		if err := t.sink.Append(rec); err != nil {
			t.log.Warn("trade log: sink write failed", zap.Error(err))
		}
	}
	if t.notify != nil {
		t.notify(rec)
	}
}

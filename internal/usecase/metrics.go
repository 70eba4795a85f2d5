package usecase

import "github.com/vikar/fx_cascade_trader/internal/domain"

// Metrics receives scheduler and lifecycle events. The prometheus
// implementation lives in infrastructure; tests use NopMetrics.
type Metrics interface {
	CycleCompleted()
	SignalEmitted(side domain.Side)
	PlanOpened()
	PlanClosed(reason string)
	OrderRejected()
	InstrumentError(instrument string)
}

type NopMetrics struct{}

func (NopMetrics) CycleCompleted()           {}
func (NopMetrics) SignalEmitted(domain.Side) {}
func (NopMetrics) PlanOpened()               {}
func (NopMetrics) PlanClosed(string)         {}
func (NopMetrics) OrderRejected()            {}
func (NopMetrics) InstrumentError(string)    {}

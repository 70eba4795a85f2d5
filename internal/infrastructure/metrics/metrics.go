package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vikar/fx_cascade_trader/internal/domain"
)

// Set implements usecase.Metrics on a prometheus registry.
type Set struct {
	registry *prometheus.Registry

	cyclesTotal      prometheus.Counter
	signalsTotal     *prometheus.CounterVec
	plansOpened      prometheus.Counter
	plansClosed      *prometheus.CounterVec
	ordersRejected   prometheus.Counter
	instrumentErrors *prometheus.CounterVec
	openPlans        prometheus.Gauge
}

func NewSet() *Set {
	reg := prometheus.NewRegistry()
	s := &Set{
		registry: reg,
		cyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_cycles_total",
			Help: "Completed scheduler cycles.",
		}),
		signalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_signals_total",
			Help: "Directional signals emitted.",
		}, []string{"side"}),
		plansOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_plans_opened_total",
			Help: "Contingency plans opened.",
		}),
		plansClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_plans_closed_total",
			Help: "Contingency plans closed, by reason.",
		}, []string{"reason"}),
		ordersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_orders_rejected_total",
			Help: "Venue order rejections.",
		}),
		instrumentErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_instrument_errors_total",
			Help: "Per-instrument cycle failures.",
		}, []string{"instrument"}),
		openPlans: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_open_plans",
			Help: "Currently active contingency plans.",
		}),
	}
	reg.MustRegister(
		s.cyclesTotal, s.signalsTotal, s.plansOpened, s.plansClosed,
		s.ordersRejected, s.instrumentErrors, s.openPlans,
	)
	return s
}

func (s *Set) CycleCompleted() { s.cyclesTotal.Inc() }

func (s *Set) SignalEmitted(side domain.Side) {
	s.signalsTotal.WithLabelValues(string(side)).Inc()
}

func (s *Set) PlanOpened() {
	s.plansOpened.Inc()
	s.openPlans.Inc()
}

func (s *Set) PlanClosed(reason string) {
	s.plansClosed.WithLabelValues(reason).Inc()
	s.openPlans.Dec()
}

func (s *Set) OrderRejected() { s.ordersRejected.Inc() }

func (s *Set) InstrumentError(instrument string) {
	s.instrumentErrors.WithLabelValues(instrument).Inc()
}

// Handler serves the registry for the status server's /metrics route.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the settlement kernel. A nil *Metrics is a no-op.
type Metrics struct {
	// Settled intents by transaction type and status (committed, failed, skipped)
	Transactions *prometheus.CounterVec

	// Saga terminal states
	Sagas *prometheus.CounterVec

	// Rollbacks that could not restore every wallet
	RollbackFailures prometheus.Counter

	// Minor units minted and burned, by currency
	Issued    *prometheus.CounterVec
	Destroyed *prometheus.CounterVec

	// Gauges refreshed at the end of every tick
	MonetaryDelta  *prometheus.GaugeVec
	IntegrityDrift *prometheus.GaugeVec
	SystemDebt     *prometheus.GaugeVec

	DebtUnderflows prometheus.Counter

	TickDuration prometheus.Histogram
}

// New registers every kernel metric on reg under namespace.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transactions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Transaction intents processed by type and status",
		}, []string{"type", "status"}),

		Sagas: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estate_sagas_total",
			Help:      "Estate settlement sagas by terminal state",
		}, []string{"state"}),

		RollbackFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollback_failures_total",
			Help:      "Rollbacks that failed to restore every wallet",
		}),

		Issued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "money_issued_minor_units_total",
			Help:      "Minor units minted by creation authorities",
		}, []string{"currency"}),

		Destroyed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "money_destroyed_minor_units_total",
			Help:      "Minor units burned by the destruction authority",
		}, []string{"currency"}),

		MonetaryDelta: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monetary_delta_minor_units",
			Help:      "Authorized issuance minus destruction during the last tick",
		}, []string{"currency"}),

		IntegrityDrift: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "integrity_drift_minor_units",
			Help:      "Observed M2 change minus authorized monetary delta during the last tick",
		}, []string{"currency"}),

		SystemDebt: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "system_debt_minor_units",
			Help:      "Outstanding government debt",
		}, []string{"currency"}),

		DebtUnderflows: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "system_debt_underflows_total",
			Help:      "Debt decreases clamped at zero",
		}),

		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent settling one tick",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementTransaction records one processed intent.
func (m *Metrics) IncrementTransaction(txType, status string) {
	if m != nil {
		m.Transactions.WithLabelValues(txType, status).Inc()
	}
}

// IncrementSaga records a saga reaching a terminal state.
func (m *Metrics) IncrementSaga(state string) {
	if m != nil {
		m.Sagas.WithLabelValues(state).Inc()
	}
}

func (m *Metrics) IncrementRollbackFailure() {
	if m != nil {
		m.RollbackFailures.Inc()
	}
}

func (m *Metrics) IncrementDebtUnderflow() {
	if m != nil {
		m.DebtUnderflows.Inc()
	}
}

// AddIssued records minted minor units.
func (m *Metrics) AddIssued(currency string, amount int64) {
	if m != nil && amount > 0 {
		m.Issued.WithLabelValues(currency).Add(float64(amount))
	}
}

// AddDestroyed records burned minor units.
func (m *Metrics) AddDestroyed(currency string, amount int64) {
	if m != nil && amount > 0 {
		m.Destroyed.WithLabelValues(currency).Add(float64(amount))
	}
}

// SetTickFigures refreshes the per-tick gauges.
func (m *Metrics) SetTickFigures(currency string, delta, drift, debt int64) {
	if m != nil {
		m.MonetaryDelta.WithLabelValues(currency).Set(float64(delta))
		m.IntegrityDrift.WithLabelValues(currency).Set(float64(drift))
		m.SystemDebt.WithLabelValues(currency).Set(float64(debt))
	}
}

// ObserveTick records how long a tick took.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m != nil {
		m.TickDuration.Observe(d.Seconds())
	}
}

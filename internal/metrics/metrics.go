package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation outcomes.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeFailed    = "failed"
	OutcomeBusy      = "busy"
	OutcomeTimedOut  = "timed_out"
)

var (
	operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coffee_atm",
			Name:      "ledger_operations_total",
			Help:      "Ledger mutations by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coffee_atm",
			Name:      "ledger_operation_duration_seconds",
			Help:      "Time from admission to resolution, signature and confirmation included.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)

	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "coffee_atm",
		Name:      "ledger_operation_in_flight",
		Help:      "1 while a ledger mutation is outstanding.",
	})

	purchases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coffee_atm",
			Name:      "purchases_total",
			Help:      "Recorded purchases by item.",
		},
		[]string{"item"},
	)

	purchaseRevenue = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coffee_atm",
		Name:      "purchase_amount_total",
		Help:      "Sum of recorded purchase prices in ledger units.",
	})
)

// OperationStarted marks a mutation as admitted.
func OperationStarted() {
	inFlight.Set(1)
}

// OperationFinished records the outcome of an admitted mutation.
func OperationFinished(kind, outcome string, took time.Duration) {
	inFlight.Set(0)
	operations.WithLabelValues(kind, outcome).Inc()
	operationDuration.WithLabelValues(kind).Observe(took.Seconds())
}

// OperationRejected counts a mutation refused before admission.
func OperationRejected(kind, outcome string) {
	operations.WithLabelValues(kind, outcome).Inc()
}

// PurchaseRecorded counts a confirmed purchase.
func PurchaseRecorded(item string, price int64) {
	purchases.WithLabelValues(item).Inc()
	purchaseRevenue.Add(float64(price))
}

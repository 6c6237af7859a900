package monitoring

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	membershipOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_operations_total",
			Help: "Total membership service operations",
		},
		[]string{"operation", "status"},
	)

	partyTxRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "party_tx_retries_total",
			Help: "Total party transaction conflict retries",
		},
	)

	partyTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "party_tx_duration_seconds",
			Help:    "Duration of party record transactions",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	activeGuests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "party_active_guests",
			Help: "Current confirmed guest count per party",
		},
		[]string{"party_id"},
	)

	sweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_runs_total",
			Help: "Total completion sweeper runs",
		},
		[]string{"status"},
	)

	sweepPartiesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweep_parties_processed_total",
			Help: "Total parties finalized by the completion sweeper",
		},
	)
)

// TrackOperation records the outcome of one membership service call.
func TrackOperation(operation, status string) {
	membershipOperations.WithLabelValues(operation, status).Inc()
}

// TrackTxRetry records one optimistic transaction retry.
func TrackTxRetry() {
	partyTxRetries.Inc()
}

// TrackTxDuration records how long a party transaction took.
func TrackTxDuration(seconds float64) {
	partyTxDuration.Observe(seconds)
}

// TrackActiveGuests records the confirmed guest count for a party.
func TrackActiveGuests(partyID string, count int) {
	activeGuests.WithLabelValues(partyID).Set(float64(count))
}

// TrackSweepRun records the outcome of one sweeper run.
func TrackSweepRun(status string) {
	sweepRuns.WithLabelValues(status).Inc()
}

// TrackSweptParty records one party finalized by the sweeper.
func TrackSweptParty() {
	sweepPartiesProcessed.Inc()
}

// ServeMetrics exposes the Prometheus endpoint on its own port.
func ServeMetrics(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		log.Printf("Metrics server listening on :%s", port)
		if err := http.ListenAndServe(":"+port, mux); err != nil {
			log.Printf("Metrics server stopped: %v", err)
		}
	}()
}

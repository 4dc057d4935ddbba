package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RaffleWrites counts background writes against the remote store by
	// operation and outcome.
	RaffleWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raffle_store_writes_total",
			Help: "Background raffle store writes by operation and status",
		},
		[]string{"op", "status"},
	)

	// LiveSubscribers tracks open live-subscription channels per owner.
	LiveSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "raffle_live_subscribers",
			Help: "Open live raffle subscriptions",
		},
		[]string{"owner_id"},
	)

	// DrawsStarted counts drawing animations started.
	DrawsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "raffle_draws_started_total",
			Help: "Raffle drawings started",
		},
	)

	// DrawsActive tracks drawings currently animating or awaiting
	// dismissal.
	DrawsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "raffle_draws_active",
			Help: "Raffle drawings currently running",
		},
	)
)

func RecordRaffleWrite(op, status string) {
	RaffleWrites.WithLabelValues(op, status).Inc()
}

func SetLiveSubscribers(ownerID uint, n int) {
	LiveSubscribers.WithLabelValues(strconv.FormatUint(uint64(ownerID), 10)).Set(float64(n))
}

func RecordDrawStarted() {
	DrawsStarted.Inc()
	DrawsActive.Inc()
}

func RecordDrawFinished() {
	DrawsActive.Dec()
}

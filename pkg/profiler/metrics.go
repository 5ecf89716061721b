package profiler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "relay"

// Metrics collects the relay counters on a prometheus registry.
type Metrics struct {
	cosignRequests    *prometheus.CounterVec
	paymentsReceived  prometheus.Counter
	notificationsSent prometheus.Counter
	watcherStreaming  prometheus.Gauge
}

// NewMetrics registers the relay collectors on the given registry, along
// with the go runtime and process ones.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		cosignRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cosign_requests_total",
			Help:      "Number of processed cosign requests by outcome.",
		}, []string{"outcome"}),
		paymentsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_received_total",
			Help:      "Number of payments received by the watched account.",
		}),
		notificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Number of notifications delivered to listeners.",
		}),
		watcherStreaming: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watcher_streaming",
			Help:      "Whether the payment watcher is following the feed.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.cosignRequests, m.paymentsReceived, m.notificationsSent,
		m.watcherStreaming, collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) CosignProcessed(outcome string) {
	m.cosignRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PaymentReceived() {
	m.paymentsReceived.Inc()
}

func (m *Metrics) NotificationsSent(count int) {
	m.notificationsSent.Add(float64(count))
}

func (m *Metrics) WatcherStreaming(streaming bool) {
	if streaming {
		m.watcherStreaming.Set(1)
		return
	}
	m.watcherStreaming.Set(0)
}

// Package connectivity derives online/offline state from observed
// request outcomes and fires reconnect callbacks, standing in for the
// platform online event a browser dashboard would get for free.
package connectivity

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/fabwerk/mes-edge-client/pkg/client"
)

// Prometheus metrics for connectivity tracking.
var (
	onlineGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mes_connectivity_online",
		Help: "1 when the backend is considered reachable, 0 when offline",
	})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mes_connectivity_transitions_total",
		Help: "Total connectivity state transitions by direction",
	}, []string{"direction"})
)

// State is the connectivity state.
type State int

const (
	// Online means the backend is considered reachable.
	Online State = iota

	// Offline means consecutive transport failures crossed the threshold.
	Offline
)

// Monitor tracks consecutive transport-level failures. Crossing the
// threshold flips state to Offline; the first success afterwards flips
// back to Online and fires the registered reconnect callbacks. It
// implements the querycache Observer interface.
type Monitor struct {
	mu          sync.Mutex
	state       State
	failures    int
	threshold   int
	onReconnect []func()
	logger      zerolog.Logger
}

// NewMonitor creates a monitor. threshold is the number of consecutive
// network failures before going offline; values below 1 default to 3.
func NewMonitor(threshold int, logger zerolog.Logger) *Monitor {
	if threshold < 1 {
		threshold = 3
	}
	onlineGauge.Set(1)
	return &Monitor{
		state:     Online,
		threshold: threshold,
		logger:    logger,
	}
}

// OnReconnect registers a callback fired on each Offline -> Online
// transition. Callbacks run synchronously from the reporting goroutine.
func (m *Monitor) OnReconnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnect = append(m.onReconnect, fn)
}

// State returns the current connectivity state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ReportSuccess records a successful backend round trip.
func (m *Monitor) ReportSuccess() {
	m.mu.Lock()
	m.failures = 0
	recovered := m.state == Offline
	if recovered {
		m.state = Online
	}
	callbacks := m.onReconnect
	m.mu.Unlock()

	if !recovered {
		return
	}

	onlineGauge.Set(1)
	transitionsTotal.WithLabelValues("online").Inc()
	m.logger.Info().Msg("Backend connectivity restored")

	for _, fn := range callbacks {
		fn()
	}
}

// ReportFailure records a failed backend round trip. Only transport
// failures count: an HTTP error response proves the network is fine.
func (m *Monitor) ReportFailure(err error) {
	switch client.KindOf(err) {
	case client.KindNetwork, client.KindTimeout:
	default:
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.failures++
	if m.state == Online && m.failures >= m.threshold {
		m.state = Offline
		onlineGauge.Set(0)
		transitionsTotal.WithLabelValues("offline").Inc()
		m.logger.Warn().
			Int("consecutive_failures", m.failures).
			Msg("Backend considered offline")
	}
}

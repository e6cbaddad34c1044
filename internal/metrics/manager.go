package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager holds the RepQuest collectors. It satisfies the metrics interfaces
// of the server, the live relay and the session controller.
type Manager struct {
	// server
	CounterRequests       *prometheus.CounterVec
	HistRequestDuration   *prometheus.HistogramVec
	CounterLevelsComplete *prometheus.CounterVec

	// live relay
	GaugePeers          prometheus.Gauge
	CounterRelayed      prometheus.Counter
	CounterRelayDropped *prometheus.CounterVec

	// session
	CounterFramesSkipped prometheus.Counter
	CounterFramesDropped prometheus.Counter
	CounterProgress      *prometheus.CounterVec
	CounterSessions      *prometheus.CounterVec
	HistSessionDuration  prometheus.Histogram

	GaugeLifeSignal prometheus.Gauge
}

func NewTestManager() *Manager {
	return NewManager("repquest", "test", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("repquest", "test", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "requests_total",
		Help:      "The total number of served requests",
	}, []string{"method", "route", "status"})
	histRequestDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Duration of served requests in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"route"})
	counterLevelsComplete := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "level_completions_total",
		Help:      "Level completion calls, split by whether rewards were paid",
	}, []string{"rewarded"})

	gaugePeers := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "live_peers",
		Help:      "Connected live relay peers",
	})
	counterRelayed := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "live_frames_relayed_total",
		Help:      "Frames accepted by the live relay for fan-out",
	})
	counterRelayDropped := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "live_frames_dropped_total",
		Help:      "Frames the live relay dropped",
	}, []string{"reason"})

	counterFramesSkipped := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "frames_skipped_total",
		Help:      "Frames the session could not turn into a pose",
	})
	counterFramesDropped := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "frames_dropped_total",
		Help:      "Frames the camera dropped because the session was busy",
	})
	counterProgress := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "progress_events_total",
		Help:      "Progress events recorded per exercise",
	}, []string{"exercise"})
	counterSessions := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "sessions_total",
		Help:      "Finished sessions by outcome",
	}, []string{"outcome"})
	histSessionDuration := factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "session_duration_seconds",
		Help:      "Wall time of finished sessions in seconds",
		Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
	})

	gaugeLifeSignal := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "life_signal",
		Help:      "Shows whether the service is alive",
	})

	return &Manager{
		CounterRequests:       counterRequests,
		HistRequestDuration:   histRequestDuration,
		CounterLevelsComplete: counterLevelsComplete,
		GaugePeers:            gaugePeers,
		CounterRelayed:        counterRelayed,
		CounterRelayDropped:   counterRelayDropped,
		CounterFramesSkipped:  counterFramesSkipped,
		CounterFramesDropped:  counterFramesDropped,
		CounterProgress:       counterProgress,
		CounterSessions:       counterSessions,
		HistSessionDuration:   histSessionDuration,
		GaugeLifeSignal:       gaugeLifeSignal,
	}
}

func (m *Manager) RequestServed(method, route string, status int, d time.Duration) {
	m.CounterRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HistRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Manager) LevelCompleted(rewarded bool) {
	m.CounterLevelsComplete.WithLabelValues(strconv.FormatBool(rewarded)).Inc()
}

func (m *Manager) PeerConnected()    { m.GaugePeers.Inc() }
func (m *Manager) PeerDisconnected() { m.GaugePeers.Dec() }
func (m *Manager) FrameRelayed()     { m.CounterRelayed.Inc() }

func (m *Manager) FrameDropped(reason string) {
	m.CounterRelayDropped.WithLabelValues(reason).Inc()
}

func (m *Manager) FrameSkipped() { m.CounterFramesSkipped.Inc() }

func (m *Manager) FramesDropped(n uint64) {
	m.CounterFramesDropped.Add(float64(n))
}

func (m *Manager) ProgressRecorded(exercise string) {
	m.CounterProgress.WithLabelValues(exercise).Inc()
}

func (m *Manager) SessionFinished(outcome string, d time.Duration) {
	m.CounterSessions.WithLabelValues(outcome).Inc()
	m.HistSessionDuration.Observe(d.Seconds())
}

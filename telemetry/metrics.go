// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	EventsReceived    *prometheus.CounterVec // by event kind
	IntentsClassified *prometheus.CounterVec // by intent
	Rejections        *prometheus.CounterVec // by rejection code
	ActionsEmitted    *prometheus.CounterVec // by action kind
	ActionFailures    *prometheus.CounterVec // by action kind
	GamesStarted      prometheus.Counter
	CluesRegistered   prometheus.Counter
	Faults            *prometheus.CounterVec // by fault class
	TokenRefreshes    *prometheus.CounterVec // by outcome

	// Histograms (seconds)
	HandleDuration prometheus.Observer

	// Gauges
	ActiveGameGauge prometheus.Gauge // 1=game running,0=none
	ClueCountGauge  prometheus.Gauge
	QueueDepthGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{Name: "contact_events_received_total", Help: "Inbound chat events by kind"}, []string{"kind"})
		IntentsClassified = promauto.NewCounterVec(prometheus.CounterOpts{Name: "contact_intents_total", Help: "Classified intents by kind"}, []string{"intent"})
		Rejections = promauto.NewCounterVec(prometheus.CounterOpts{Name: "contact_rejections_total", Help: "Refused intents by reason"}, []string{"reason"})
		ActionsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{Name: "contact_actions_emitted_total", Help: "Outbound actions delivered to the transport"}, []string{"action"})
		ActionFailures = promauto.NewCounterVec(prometheus.CounterOpts{Name: "contact_action_failures_total", Help: "Outbound actions the transport rejected"}, []string{"action"})
		GamesStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "contact_games_started_total", Help: "Games started"})
		CluesRegistered = promauto.NewCounter(prometheus.CounterOpts{Name: "contact_clues_registered_total", Help: "Clues assigned a number"})
		Faults = promauto.NewCounterVec(prometheus.CounterOpts{Name: "contact_faults_total", Help: "Faults that forced a shutdown"}, []string{"class"})
		TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{Name: "contact_token_refreshes_total", Help: "OAuth token refresh attempts by outcome"}, []string{"outcome"})
		HandleDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "contact_handle_duration_seconds", Help: "Time to classify, apply and emit one event", Buckets: prometheus.DefBuckets})
		ActiveGameGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "contact_active_game", Help: "Game running=1 none=0"})
		ClueCountGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "contact_clues", Help: "Clues currently registered"})
		QueueDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "contact_event_queue_depth", Help: "Inbound events waiting to be handled"})
	})
}

// SetGame records the current game shape.
func SetGame(active bool, clues int) {
	if ActiveGameGauge == nil {
		return
	}
	if active {
		ActiveGameGauge.Set(1)
	} else {
		ActiveGameGauge.Set(0)
	}
	ClueCountGauge.Set(float64(clues))
}

// SetQueueDepth records how many events are waiting.
func SetQueueDepth(n int) {
	if QueueDepthGauge != nil {
		QueueDepthGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"live-chat-supervisor/pkg/models"
)

type Metrics struct {
	ActiveConversations    prometheus.Gauge
	DelayedConversations   prometheus.Gauge
	CriticalConversations  prometheus.Gauge
	LoadLevel              prometheus.Gauge
	MessagesAppended       *prometheus.CounterVec
	AlertsRaised           prometheus.Counter
	EvaluationDuration     prometheus.Histogram
	RedisOperationDuration *prometheus.HistogramVec
	AlertStreamMessages    *prometheus.CounterVec
	IngestEvents           *prometheus.CounterVec
	PanelConnections       prometheus.Gauge
}

// NewMetrics registers the supervisor collectors with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveConversations: factory.NewGauge(prometheus.GaugeOpts{
			Name: "supervisor_active_conversations",
			Help: "Current number of active monitored conversations",
		}),
		DelayedConversations: factory.NewGauge(prometheus.GaugeOpts{
			Name: "supervisor_delayed_conversations",
			Help: "Active conversations waiting on an agent past the reply deadline",
		}),
		CriticalConversations: factory.NewGauge(prometheus.GaugeOpts{
			Name: "supervisor_critical_conversations",
			Help: "Active conversations that contained a crisis keyword",
		}),
		LoadLevel: factory.NewGauge(prometheus.GaugeOpts{
			Name: "supervisor_load_level",
			Help: "Floor load level: 0 normal, 1 high, 2 critical",
		}),
		MessagesAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "supervisor_messages_appended_total",
			Help: "Total number of messages appended to conversations",
		}, []string{"sender"}),
		AlertsRaised: factory.NewCounter(prometheus.CounterOpts{
			Name: "supervisor_alerts_raised_total",
			Help: "Total number of keyword alerts raised",
		}),
		EvaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "supervisor_evaluation_duration_seconds",
			Help:    "Time taken to evaluate all conversations",
			Buckets: prometheus.DefBuckets,
		}),
		RedisOperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Time taken for Redis operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		AlertStreamMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "supervisor_alert_stream_messages_total",
			Help: "Total number of alert stream messages processed",
		}, []string{"status"}),
		IngestEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "supervisor_ingest_events_total",
			Help: "Observed widget messages by ingest outcome",
		}, []string{"result"}),
		PanelConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "supervisor_panel_connections",
			Help: "Current number of connected supervisor panels",
		}),
	}
}

// ObserveSnapshot publishes the aggregate counts of an evaluation
func (m *Metrics) ObserveSnapshot(snapshot models.StatusSnapshot) {
	m.ActiveConversations.Set(float64(snapshot.ActiveCount))
	m.DelayedConversations.Set(float64(snapshot.DelayedCount))
	m.CriticalConversations.Set(float64(snapshot.CriticalCount))

	switch snapshot.LoadLevel {
	case models.LoadCritical:
		m.LoadLevel.Set(2)
	case models.LoadHigh:
		m.LoadLevel.Set(1)
	default:
		m.LoadLevel.Set(0)
	}
}

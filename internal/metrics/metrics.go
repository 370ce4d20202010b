// Package metrics содержит Prometheus-метрики записи, воспроизведения и планировщика.
// Все методы безопасны для nil *Metrics: компоненты можно собирать без метрик.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "replay"

// Metrics хранит счётчики и датчики подсистемы
type Metrics struct {
	gatherer prometheus.Gatherer

	keyframesRecorded   *prometheus.CounterVec
	keyframesDispatched *prometheus.CounterVec
	recordings          *prometheus.CounterVec
	playbacks           *prometheus.CounterVec
	tracksFinished      *prometheus.CounterVec
	parseErrors         prometheus.Counter
	writeErrors         prometheus.Counter
	scriptsExecuted     prometheus.Counter
	scriptErrors        prometheus.Counter
	timelineEntries     prometheus.Gauge
	sessionState        prometheus.Gauge
}

// New создаёт метрики и регистрирует их в reg. Если reg реализует
// prometheus.Gatherer, Handler отдаёт именно его.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		keyframesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keyframes_recorded_total",
			Help:      "Записанные ключевые кадры по типу.",
		}, []string{"type"}),
		keyframesDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keyframes_dispatched_total",
			Help:      "Ключевые кадры, переданные потребителям при воспроизведении.",
		}, []string{"type"}),
		recordings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_total",
			Help:      "События жизненного цикла записи (started, stopped, failed).",
		}, []string{"event"}),
		playbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playbacks_total",
			Help:      "События жизненного цикла воспроизведения (started, finished, aborted).",
		}, []string{"event"}),
		tracksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracks_finished_total",
			Help:      "Завершённые дорожки воспроизведения.",
		}, []string{"track"}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Некорректные строки в файлах воспроизведения.",
		}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_errors_total",
			Help:      "Ошибки записи журнала.",
		}),
		scriptsExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_scripts_executed_total",
			Help:      "Скрипты планировщика, отправленные на выполнение.",
		}),
		scriptErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_script_errors_total",
			Help:      "Скрипты планировщика, завершившиеся ошибкой.",
		}),
		timelineEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "timeline_entries",
			Help:      "Количество записей во временной шкале скриптов.",
		}),
		sessionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "Состояние контроллера: 0 idle, 1 recording, 2 playing.",
		}),
	}

	reg.MustRegister(
		m.keyframesRecorded,
		m.keyframesDispatched,
		m.recordings,
		m.playbacks,
		m.tracksFinished,
		m.parseErrors,
		m.writeErrors,
		m.scriptsExecuted,
		m.scriptErrors,
		m.timelineEntries,
		m.sessionState,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// KeyframeRecorded увеличивает счётчик записанных кадров типа kind
func (m *Metrics) KeyframeRecorded(kind string) {
	if m == nil {
		return
	}
	m.keyframesRecorded.WithLabelValues(kind).Inc()
}

// KeyframeDispatched увеличивает счётчик переданных кадров типа kind
func (m *Metrics) KeyframeDispatched(kind string) {
	if m == nil {
		return
	}
	m.keyframesDispatched.WithLabelValues(kind).Inc()
}

// RecordingEvent отмечает событие записи
func (m *Metrics) RecordingEvent(event string) {
	if m == nil {
		return
	}
	m.recordings.WithLabelValues(event).Inc()
}

// PlaybackEvent отмечает событие воспроизведения
func (m *Metrics) PlaybackEvent(event string) {
	if m == nil {
		return
	}
	m.playbacks.WithLabelValues(event).Inc()
}

// TrackFinished отмечает завершение дорожки
func (m *Metrics) TrackFinished(track string) {
	if m == nil {
		return
	}
	m.tracksFinished.WithLabelValues(track).Inc()
}

// ParseError увеличивает счётчик ошибок разбора
func (m *Metrics) ParseError() {
	if m == nil {
		return
	}
	m.parseErrors.Inc()
}

// WriteError увеличивает счётчик ошибок записи
func (m *Metrics) WriteError() {
	if m == nil {
		return
	}
	m.writeErrors.Inc()
}

// ScriptExecuted отмечает выполненный скрипт планировщика
func (m *Metrics) ScriptExecuted(err error) {
	if m == nil {
		return
	}
	m.scriptsExecuted.Inc()
	if err != nil {
		m.scriptErrors.Inc()
	}
}

// SetTimelineEntries обновляет размер временной шкалы
func (m *Metrics) SetTimelineEntries(n int) {
	if m == nil {
		return
	}
	m.timelineEntries.Set(float64(n))
}

// SetSessionState обновляет состояние контроллера
func (m *Metrics) SetSessionState(state int) {
	if m == nil {
		return
	}
	m.sessionState.Set(float64(state))
}

// Handler отдаёт метрики в формате Prometheus
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

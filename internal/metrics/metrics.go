// Package metrics счётчики Prometheus для занятий, отметок и HTTP.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/app"
	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Transitions   *prometheus.CounterVec
	Marks         *prometheus.CounterVec
	SweepTicks    prometheus.Counter
	SweepFailures prometheus.Counter
	SweepDuration prometheus.Histogram
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
}

// New регистрирует метрики в reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "lesson_transitions_total",
			Help:      "Lesson lifecycle events by kind and actor.",
		}, []string{"kind", "actor"}),
		Marks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "marks_total",
			Help:      "Attendance marks by outcome and actor.",
		}, []string{"status", "actor"}),
		SweepTicks: f.NewCounter(prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "sweep_ticks_total",
			Help:      "Completed sweeper ticks.",
		}),
		SweepFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "sweep_failures_total",
			Help:      "Per-item failures during sweeper ticks.",
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "attendance",
			Name:      "sweep_duration_seconds",
			Help:      "Sweeper tick duration.",
			Buckets:   prometheus.DefBuckets,
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "attendance",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Publish считает событие жизненного цикла; реализует service.EventSink
func (m *Metrics) Publish(_ context.Context, event model.LessonEvent) error {
	actor := string(event.Actor.Kind)
	switch event.Kind {
	case model.LessonEventMarked, model.LessonEventCorrected:
		m.Marks.WithLabelValues(string(event.Status), actor).Inc()
	}
	m.Transitions.WithLabelValues(string(event.Kind), actor).Inc()
	return nil
}

// ObserveSweep реализует app.SweepObserver
func (m *Metrics) ObserveSweep(result app.SweepResult, took time.Duration) {
	m.SweepTicks.Inc()
	m.SweepFailures.Add(float64(result.Failed))
	m.SweepDuration.Observe(took.Seconds())
}

// GinMiddleware считает запросы по шаблону маршрута
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(started).Seconds())
	}
}

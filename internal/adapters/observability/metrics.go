package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"mealsfly_review/internal/domain"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mealsfly", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mealsfly", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mealsfly", Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mealsfly", Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mealsfly", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
	TaskTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mealsfly", Name: "task_transitions_total", Help: "Restaurant review status transitions."},
		[]string{"from", "to", "actor"}, // actor: reviewer|admin
	)
	TaskConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mealsfly", Name: "task_conflicts_total", Help: "Operations refused because the state moved underneath them."},
		[]string{"op"},
	)
)

// Serve exposes reg on a side listener when addr is set.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency, CacheEvents, TaskTransitions, TaskConflicts)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveConflict(op string) { TaskConflicts.WithLabelValues(op).Inc() }

// transitionCounter counts every published transition before forwarding it.
type transitionCounter struct{ next domain.EventPublisher }

// CountTransitions wraps next so that task_transitions_total follows the event stream.
func CountTransitions(next domain.EventPublisher) domain.EventPublisher {
	return transitionCounter{next: next}
}

func (c transitionCounter) Publish(ctx context.Context, e domain.TaskEvent) error {
	actor := "reviewer"
	switch e.Type {
	case domain.EventRestaurantStatusOverride, domain.EventRestaurantDeleted, domain.EventTaskReleased:
		actor = "admin"
	}
	to := string(e.NewStatus)
	if e.Type == domain.EventRestaurantDeleted {
		to = "deleted"
	}
	TaskTransitions.WithLabelValues(string(e.OldStatus), to, actor).Inc()
	if c.next == nil {
		return nil
	}
	return c.next.Publish(ctx, e)
}

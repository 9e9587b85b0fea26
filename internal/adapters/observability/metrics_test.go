package observability_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"mealsfly_review/internal/adapters/observability"
	"mealsfly_review/internal/domain"
)

func TestMetricsRegistryAndHandler(t *testing.T) {
	reg := observability.InitRegistry()

	// record one sample so counters are non-zero
	observability.ObserveHTTP("/test", "GET", 200, 12*time.Millisecond)
	observability.ObserveConflict("assign")

	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	for _, name := range []string{"mealsfly_http_requests_total", "mealsfly_task_conflicts_total"} {
		if !strings.Contains(out, name) {
			t.Fatalf("expected %s in output", name)
		}
	}
}

type sink struct{ got []domain.TaskEvent }

func (s *sink) Publish(ctx context.Context, e domain.TaskEvent) error {
	s.got = append(s.got, e)
	return nil
}

func TestCountTransitions(t *testing.T) {
	next := &sink{}
	pub := observability.CountTransitions(next)
	c := observability.TaskTransitions.WithLabelValues("not_started", "pending", "reviewer")
	before := testutil.ToFloat64(c)

	err := pub.Publish(context.Background(), domain.TaskEvent{
		Type:      domain.EventTaskAssigned,
		OldStatus: domain.StatusNotStarted,
		NewStatus: domain.StatusPending,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Fatalf("transition counter moved by %v", got)
	}
	if len(next.got) != 1 {
		t.Fatalf("event not forwarded")
	}
}

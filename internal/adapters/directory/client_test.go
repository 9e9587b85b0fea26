package directory_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mealsfly_review/internal/adapters/directory"
	"mealsfly_review/internal/domain"
)

func TestClient_ListAndGet(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/restaurants", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{
			"a1", map[string]any{"_id": "b2"}, 33.0, map[string]any{"name": "no id"},
		}})
	})
	mux.HandleFunc("/restaurants/a1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "a1", "name": "Dosa Point"}})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	cl, err := directory.New(ts.URL+"/", "test-key", 100)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ids, err := cl.ListRestaurantIDs(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff([]string{"a1", "b2", "33"}, ids); diff != "" {
		t.Fatalf("ids (-want +got):\n%s", diff)
	}

	rec, err := cl.GetRestaurant(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec["name"] != "Dosa Point" {
		t.Fatalf("unexpected payload: %+v", rec)
	}

	if _, err := cl.GetRestaurant(ctx, "zz"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestClient_RequiresBase(t *testing.T) {
	if _, err := directory.New(" ", "", 1); err == nil {
		t.Fatalf("expected error for empty base")
	}
}

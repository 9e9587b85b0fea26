package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"mealsfly_review/internal/domain"
)

func TestGet_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "k" {
			t.Errorf("missing api key header")
		}
		switch atomic.AddInt32(&hits, 1) {
		case 1:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = io.WriteString(w, "ok")
		}
	}))
	defer ts.Close()

	c := New("test", 100, time.Second, http.Header{"X-Api-Key": {"k"}})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var body string
	err := c.Get(ctx, ts.URL, "root", func(r io.Reader) error {
		b, err := io.ReadAll(r)
		body = string(b)
		return err
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if body != "ok" || atomic.LoadInt32(&hits) != 3 {
		t.Fatalf("body=%q hits=%d", body, hits)
	}
}

func TestGet_StatusMapping(t *testing.T) {
	for code, want := range map[int]error{
		http.StatusNotFound:     domain.ErrNotFound,
		http.StatusUnauthorized: domain.ErrUnauthorized,
		http.StatusForbidden:    domain.ErrUnauthorized,
	} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(code) }))
		c := New("test", 100, time.Second, nil)
		err := c.Get(context.Background(), ts.URL, "root", func(io.Reader) error { return nil })
		ts.Close()
		if !errors.Is(err, want) {
			t.Fatalf("status %d: want %v, got %v", code, want, err)
		}
	}
}

func TestGet_GivesUpOnCancel(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := New("test", 100, time.Second, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := c.Get(ctx, ts.URL, "root", func(io.Reader) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
}

func TestGet_PublicOnlyRefusesLoopback(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer ts.Close()

	c := New("test", 100, time.Second, nil, PublicOnly())
	start := time.Now()
	err := c.Get(context.Background(), ts.URL, "root", func(io.Reader) error { return nil })
	if !errors.Is(err, domain.ErrInvalid) || !errors.Is(err, ErrBlockedAddress) {
		t.Fatalf("want a blocked-address ErrInvalid, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("server was reached")
	}
	if time.Since(start) > 150*time.Millisecond {
		t.Fatalf("a refused dial should not be retried")
	}
}

func TestPublicAddr(t *testing.T) {
	for addr, want := range map[string]bool{
		"93.184.216.34":   true,
		"2606:4700::1111": true,
		"127.0.0.1":       false,
		"::1":             false,
		"10.1.2.3":        false,
		"172.16.0.9":      false,
		"192.168.1.1":     false,
		"169.254.169.254": false,
		"fe80::1":         false,
		"fd00::1":         false,
		"0.0.0.0":         false,
		"100.64.0.1":      false,
		"::ffff:10.0.0.1": false,
		"224.0.0.1":       false,
	} {
		if got := publicAddr(netip.MustParseAddr(addr)); got != want {
			t.Errorf("publicAddr(%s) = %v, want %v", addr, got, want)
		}
	}
}

func TestRetryAfter(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": {"2"}}}
	if got := retryAfter(resp); got != 2*time.Second {
		t.Fatalf("seconds form: %v", got)
	}
	resp.Header.Set("Retry-After", "soon")
	if got := retryAfter(resp); got != 0 {
		t.Fatalf("garbage form: %v", got)
	}
}

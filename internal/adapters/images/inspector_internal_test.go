package images

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"mealsfly_review/internal/adapters/fetch"
	"mealsfly_review/internal/domain"
)

// loopbackInspector trusts the test server's host and skips the address
// check, which would refuse 127.0.0.1.
func loopbackInspector(t *testing.T, ts *httptest.Server) *Inspector {
	t.Helper()
	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("parse %s: %v", ts.URL, err)
	}
	i := newInspector("", "http://uploads.invalid", []string{u.Hostname()})
	i.f = fetch.New("images", 50, 5*time.Second, nil, fetch.CheckRedirect(i.vetRedirect))
	return i
}

func TestInspector_RemoteJPEG(t *testing.T) {
	var small bytes.Buffer
	if err := jpeg.Encode(&small, image.NewRGBA(image.Rect(0, 0, 640, 360)), nil); err != nil {
		t.Fatalf("jpeg: %v", err)
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/small.jpg":
			_, _ = w.Write(small.Bytes())
		case "/not-an-image":
			_, _ = w.Write([]byte("<html></html>"))
		case "/moved.jpg":
			http.Redirect(w, r, "/small.jpg", http.StatusFound)
		case "/elsewhere.jpg":
			http.Redirect(w, r, "http://img.elsewhere.test/small.jpg", http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	insp := loopbackInspector(t, ts)
	ctx := context.Background()

	w, h, err := insp.Dimensions(ctx, ts.URL+"/small.jpg")
	if err != nil || w != 640 || h != 360 {
		t.Fatalf("Dimensions = %dx%d, %v", w, h, err)
	}
	if w, h, err := insp.Dimensions(ctx, ts.URL+"/moved.jpg"); err != nil || w != 640 || h != 360 {
		t.Fatalf("same-host redirect: %dx%d, %v", w, h, err)
	}
	if _, _, err := insp.Dimensions(ctx, ts.URL+"/elsewhere.jpg"); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("off-list redirect: want ErrInvalid, got %v", err)
	}
	if _, _, err := insp.Dimensions(ctx, ts.URL+"/not-an-image"); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, _, err := insp.Dimensions(ctx, ts.URL+"/missing.jpg"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

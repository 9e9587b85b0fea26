package images

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mealsfly_review/internal/adapters/fetch"
	"mealsfly_review/internal/domain"
)

// Inspector decodes only the image header. References under the uploader's
// public prefix are read from disk. Anything else is fetched over HTTP, but
// only from an allowed host and never from a non-public address.
type Inspector struct {
	f           *fetch.Client
	localPrefix string
	dir         string
	hosts       map[string]bool
}

// NewInspector allows remote images from publicBase's host and allowedHosts.
func NewInspector(dir, publicBase string, allowedHosts []string, rps int) *Inspector {
	i := newInspector(dir, publicBase, allowedHosts)
	i.f = fetch.New("images", rps, 15*time.Second, nil, fetch.PublicOnly(), fetch.CheckRedirect(i.vetRedirect))
	return i
}

func newInspector(dir, publicBase string, allowedHosts []string) *Inspector {
	i := &Inspector{
		localPrefix: strings.TrimRight(publicBase, "/") + StaticPath,
		dir:         dir,
		hosts:       map[string]bool{},
	}
	if u, err := url.Parse(publicBase); err == nil && u.Hostname() != "" {
		i.hosts[strings.ToLower(u.Hostname())] = true
	}
	for _, h := range allowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			i.hosts[h] = true
		}
	}
	return i
}

func (i *Inspector) allowed(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: image scheme %q", domain.ErrInvalid, u.Scheme)
	}
	if !i.hosts[strings.ToLower(u.Hostname())] {
		return fmt.Errorf("%w: image host %q is not allowed", domain.ErrInvalid, u.Hostname())
	}
	return nil
}

func (i *Inspector) vetRedirect(req *http.Request) error { return i.allowed(req.URL) }

func (i *Inspector) Dimensions(ctx context.Context, ref string) (int, int, error) {
	if rel, ok := strings.CutPrefix(ref, i.localPrefix); ok && i.dir != "" {
		return i.local(rel)
	}
	u, err := url.Parse(ref)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: image ref: %v", domain.ErrInvalid, err)
	}
	if err := i.allowed(u); err != nil {
		return 0, 0, err
	}
	var cfg image.Config
	err = i.f.Get(ctx, ref, "image", func(r io.Reader) error {
		var derr error
		cfg, _, derr = image.DecodeConfig(io.LimitReader(r, MaxFileSize))
		return derr
	})
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func (i *Inspector) local(rel string) (int, int, error) {
	clean := filepath.Clean("/" + rel)
	f, err := os.Open(filepath.Join(i.dir, clean))
	if err != nil {
		return 0, 0, fmt.Errorf("open upload %s: %w", clean, err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode upload %s: %w", clean, err)
	}
	return cfg.Width, cfg.Height, nil
}

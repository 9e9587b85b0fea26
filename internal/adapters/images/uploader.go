// Package images stores uploaded review photos and measures referenced images.
package images

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"mealsfly_review/internal/domain"
)

const (
	MaxFileSize = 10 * 1024 * 1024 // 10 MB
	StaticPath  = "/static/"
)

var allowedMimeTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// LocalUploader writes uploads under dir/YYYY/MM/DD and returns absolute
// URLs under publicBase + StaticPath.
type LocalUploader struct {
	dir        string
	publicBase string
}

func NewLocalUploader(dir, publicBase string) *LocalUploader {
	return &LocalUploader{dir: dir, publicBase: strings.TrimRight(publicBase, "/")}
}

func (u *LocalUploader) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	br := bufio.NewReaderSize(r, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(head) == 0 {
		return "", fmt.Errorf("%w: empty file", domain.ErrInvalid)
	}
	mimeType := strings.Split(http.DetectContentType(head), ";")[0]
	ext, ok := allowedMimeTypes[mimeType]
	if !ok {
		return "", fmt.Errorf("%w: only jpg and png images are accepted, got %s", domain.ErrInvalid, mimeType)
	}

	now := time.Now().UTC()
	relDir := fmt.Sprintf("%d/%02d/%02d", now.Year(), now.Month(), now.Day())
	absDir := filepath.Join(u.dir, relDir)
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s%s", uuid.NewString(), sanitizeName(filename), ext)
	absPath := filepath.Join(absDir, name)

	dst, err := os.Create(absPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	n, err := io.Copy(dst, io.LimitReader(br, MaxFileSize+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxFileSize {
		err = fmt.Errorf("%w: file exceeds %d MB", domain.ErrInvalid, MaxFileSize>>20)
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = os.Remove(absPath)
		return "", err
	}
	return u.publicBase + StaticPath + relDir + "/" + name, nil
}

func sanitizeName(name string) string {
	name = filepath.Base(name)
	name = strings.TrimSuffix(name, filepath.Ext(name)) // extension comes from the sniffed type
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '_'
	}, name)
	if len(name) > 40 {
		name = name[:40]
	}
	if name == "" || name == "_" {
		return "image"
	}
	return name
}

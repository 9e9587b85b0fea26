// Package directory reads restaurant records from the upstream REST directory.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mealsfly_review/internal/adapters/fetch"
)

type Client struct {
	base string
	f    *fetch.Client
}

func New(base, key string, rps int) (*Client, error) {
	if strings.TrimSpace(base) == "" {
		return nil, fmt.Errorf("directory base URL is required")
	}
	h := http.Header{"Accept": {"application/json"}}
	if key != "" {
		h.Set("X-API-Key", key)
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		f:    fetch.New("directory", rps, 20*time.Second, h),
	}, nil
}

// ListRestaurantIDs accepts a bare array of ids or records, or the same
// wrapped in {"data": [...]} / {"restaurants": [...]}.
func (c *Client) ListRestaurantIDs(ctx context.Context) ([]string, error) {
	var raw any
	err := c.f.Get(ctx, c.base+"/restaurants", "list", func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&raw)
	})
	if err != nil {
		return nil, err
	}
	if obj, ok := raw.(map[string]any); ok {
		for _, k := range []string{"data", "restaurants", "items"} {
			if v, ok := obj[k]; ok {
				raw = v
				break
			}
		}
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("directory: unexpected list payload %T", raw)
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if id := idOf(it); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func idOf(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		for _, k := range []string{"id", "_id", "restaurant_id"} {
			if s := idOf(t[k]); s != "" {
				return s
			}
		}
	}
	return ""
}

func (c *Client) GetRestaurant(ctx context.Context, id string) (map[string]any, error) {
	var out map[string]any
	err := c.f.Get(ctx, c.base+"/restaurants/"+url.PathEscape(id), "restaurant", func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&out)
	})
	if err != nil {
		return nil, err
	}
	// some deployments wrap the record like the list
	if inner, ok := out["data"].(map[string]any); ok {
		return inner, nil
	}
	return out, nil
}

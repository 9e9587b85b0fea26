package shared

import (
	"testing"
	"time"
)

func TestLoad_FromEnv(t *testing.T) {
	t.Chdir(t.TempDir()) // no stray .env
	t.Setenv("APP_ENV", "dev")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("JWT_TTL_HOURS", "2")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "abc")
	t.Setenv("PUBLIC_BASE_URL", "https://api.mealsfly.in/")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("IMAGE_ALLOWED_HOSTS", "CDN.Example.com, img.example.com")

	c := Load()
	if c.StoreDriver != "sqlite" {
		t.Fatalf("StoreDriver = %q", c.StoreDriver)
	}
	if len(c.KafkaBrokers) != 2 || c.KafkaBrokers[0] != "k1:9092" || c.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("KafkaBrokers = %q", c.KafkaBrokers)
	}
	if c.JWTTTL != 2*time.Hour {
		t.Fatalf("JWTTTL = %v", c.JWTTTL)
	}
	if c.RequestTimeout != 15*time.Second {
		t.Fatalf("bad integer should fall back, got %v", c.RequestTimeout)
	}
	if c.PublicBaseURL != "https://api.mealsfly.in" {
		t.Fatalf("PublicBaseURL = %q", c.PublicBaseURL)
	}
	if len(c.ImageAllowedHosts) != 2 || c.ImageAllowedHosts[0] != "cdn.example.com" || c.ImageAllowedHosts[1] != "img.example.com" {
		t.Fatalf("ImageAllowedHosts = %q", c.ImageAllowedHosts)
	}
	if c.EventBacklog != 1024 {
		t.Fatalf("EventBacklog = %d", c.EventBacklog)
	}
	if c.JWTSecret == "" {
		t.Fatalf("dev mode should fill a secret")
	}
}

func TestSplitList(t *testing.T) {
	if got := splitList(""); got != nil {
		t.Fatalf("splitList(\"\") = %q", got)
	}
}

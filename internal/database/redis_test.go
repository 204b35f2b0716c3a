package database

import (
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/keyxmakerx/gatehouse/internal/config"
)

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedis(config.RedisConfig{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer client.Close()

	if err := client.Set(t.Context(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := mr.Get("k"); got != "v" {
		t.Errorf("expected value to reach redis, got %q", got)
	}
}

func TestNewRedis_BadURL(t *testing.T) {
	if _, err := NewRedis(config.RedisConfig{URL: "http://not-redis"}); err == nil {
		t.Fatal("expected an error for a non-redis URL")
	}
}

package store

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestNewRedisSessionStoreValidation(t *testing.T) {
	if _, err := NewRedisSessionStore(nil, time.Minute, ""); err == nil {
		t.Fatal("expected error for nil client")
	}

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	if _, err := NewRedisSessionStore(client, 0, ""); err == nil {
		t.Fatal("expected error for zero ttl")
	}

	s, err := NewRedisSessionStore(client, time.Minute, "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if got := s.key("abc"); got != "pixelresize:session:abc" {
		t.Fatalf("unexpected key %s", got)
	}
}

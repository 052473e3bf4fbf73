package ratelimit

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestNewRedisTokenBucketValidation(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	if _, err := NewRedisTokenBucket(nil, 10, time.Minute, ""); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := NewRedisTokenBucket(client, 0, time.Minute, ""); err == nil {
		t.Fatal("expected error for zero capacity")
	}
	if _, err := NewRedisTokenBucket(client, 10, 0, ""); err == nil {
		t.Fatal("expected error for zero window")
	}

	bucket, err := NewRedisTokenBucket(client, 60, time.Minute, "")
	if err != nil {
		t.Fatalf("new bucket: %v", err)
	}
	if bucket.keyPrefix != defaultKeyPrefix {
		t.Fatalf("unexpected key prefix %s", bucket.keyPrefix)
	}
	if bucket.rate != 0.001 {
		t.Fatalf("expected 0.001 tokens/ms, got %f", bucket.rate)
	}
	if bucket.ttl != 2*time.Minute {
		t.Fatalf("expected ttl 2m, got %s", bucket.ttl)
	}
}

func TestParseReply(t *testing.T) {
	d, err := parseReply([]any{int64(0), int64(2), int64(1500)})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Allowed || d.Remaining != 2 || d.RetryAfter != 1500*time.Millisecond {
		t.Fatalf("unexpected decision %+v", d)
	}

	d, err = parseReply([]any{int64(1), "9", float64(0)})
	if err != nil || !d.Allowed || d.Remaining != 9 {
		t.Fatalf("unexpected decision %+v err=%v", d, err)
	}

	if _, err := parseReply([]any{int64(1)}); err == nil {
		t.Fatal("expected error for short reply")
	}
	if _, err := parseReply("OK"); err == nil {
		t.Fatal("expected error for non-array reply")
	}
	if _, err := parseReply([]any{int64(1), []byte("x"), int64(0)}); err == nil {
		t.Fatal("expected error for unsupported field type")
	}
}

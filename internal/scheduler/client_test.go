package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

type testSchedulerConfig struct {
	redisURL string
}

func (c testSchedulerConfig) GetRedisURL() string       { return c.redisURL }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string { return "dispatch" }
func (c testSchedulerConfig) GetAsynqConcurrency() int  { return 1 }

func TestRedisClientOpt_ParsesURL(t *testing.T) {
	opt, err := redisClientOpt("redis://:secret@localhost:6380/2", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opt.Addr != "localhost:6380" {
		t.Fatalf("expected addr localhost:6380, got %s", opt.Addr)
	}
	if opt.Password != "secret" {
		t.Fatalf("expected password to be parsed, got %q", opt.Password)
	}
	if opt.DB != 2 {
		t.Fatalf("expected db 2, got %d", opt.DB)
	}
	if opt.TLSConfig != nil {
		t.Fatal("expected no TLS config for redis:// URL")
	}
}

func TestRedisClientOpt_InsecureTLS(t *testing.T) {
	opt, err := redisClientOpt("redis://localhost:6379", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Fatal("expected insecure TLS config when requested")
	}
}

func TestRedisClientOpt_RejectsMalformedURL(t *testing.T) {
	if _, err := redisClientOpt("not-a-url", false); err == nil {
		t.Fatal("expected error for malformed redis url")
	}
}

func TestClient_ScheduleDispatchSweep(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(testSchedulerConfig{redisURL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}
	defer client.Close()

	err = client.ScheduleDispatchSweep(context.Background(), uuid.New(), time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error scheduling sweep: %v", err)
	}

	keys := mr.Keys()
	if len(keys) == 0 {
		t.Fatal("expected the scheduled task to be persisted in redis")
	}
}

func TestNewClient_RequiresRedisURL(t *testing.T) {
	if _, err := NewClient(testSchedulerConfig{redisURL: ""}); err == nil {
		t.Fatal("expected error when redis url is empty")
	}
}

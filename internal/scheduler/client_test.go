package scheduler

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

type redisTestConfig struct {
	url string
}

func (c redisTestConfig) GetRedisURL() string       { return c.url }
func (c redisTestConfig) GetRedisTLSInsecure() bool { return false }

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(redisTestConfig{}); err == nil {
		t.Fatal("expected error for empty redis url")
	}
	if _, err := NewClient(redisTestConfig{url: "://bad"}); err == nil {
		t.Fatal("expected error for malformed redis url")
	}
}

func TestEnqueueLeadContactDeduplicates(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(redisTestConfig{url: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.EnqueueLeadContact(ctx, 42); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	// A second delivery of the same webhook lands inside the uniqueness
	// window and must be treated as a success.
	if err := client.EnqueueLeadContact(ctx, 42); err != nil {
		t.Fatalf("duplicate enqueue: %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer inspector.Close()

	pending, err := inspector.ListPendingTasks("default")
	if err != nil {
		t.Fatalf("ListPendingTasks: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending tasks = %d, want 1", len(pending))
	}

	payload, err := ParseLeadContactPayload(asynq.NewTask(pending[0].Type, pending[0].Payload))
	if err != nil {
		t.Fatalf("ParseLeadContactPayload: %v", err)
	}
	if payload.CRMLeadID != 42 {
		t.Fatalf("crm lead id = %d, want 42", payload.CRMLeadID)
	}
}

func TestRedisClientOptParsesURL(t *testing.T) {
	opt, err := redisClientOpt("redis://:secret@queue.internal:6380/2", false)
	if err != nil {
		t.Fatalf("redisClientOpt: %v", err)
	}
	if opt.Addr != "queue.internal:6380" {
		t.Fatalf("addr = %q", opt.Addr)
	}
	if opt.Password != "secret" {
		t.Fatalf("password = %q", opt.Password)
	}
	if opt.DB != 2 {
		t.Fatalf("db = %d", opt.DB)
	}
	if opt.TLSConfig != nil {
		t.Fatal("expected no tls config for redis scheme")
	}

	opt, err = redisClientOpt("rediss://queue.internal:6380", true)
	if err != nil {
		t.Fatalf("redisClientOpt tls: %v", err)
	}
	if opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Fatal("expected insecure tls config for rediss url")
	}
}

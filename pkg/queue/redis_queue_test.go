package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"bugboard/pkg/report"
)

func TestRedisSyncQueueRequeueAndAckSuccess(t *testing.T) {
	q, ctx, msgID, jobID, params := newPendingQueueMessage(t)

	if err := q.requeueAndAck(ctx, msgID, jobID, params); err != nil {
		t.Fatalf("requeue and ack: %v", err)
	}

	pending, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 0 {
		t.Fatalf("expected no pending messages, got %d", pending.Count)
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: "consumer-2",
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    0,
	}).Result()
	if err != nil {
		t.Fatalf("read requeued message: %v", err)
	}
	if len(streams) != 1 || len(streams[0].Messages) != 1 {
		t.Fatalf("expected one requeued message, got %+v", streams)
	}
	got := streams[0].Messages[0]
	if got.Values["job_id"] != jobID || got.Values["channels"] != "chan-1,chan-2" {
		t.Fatalf("unexpected requeued payload: %+v", got.Values)
	}
}

func TestRedisSyncQueueRequeueAndAckFailureKeepsPendingMessage(t *testing.T) {
	q, ctx, msgID, jobID, params := newPendingQueueMessage(t)

	canceledCtx, cancel := context.WithCancel(ctx)
	cancel()
	if err := q.requeueAndAck(canceledCtx, msgID, jobID, params); err == nil {
		t.Fatalf("expected requeueAndAck to fail on canceled context")
	}

	pending, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 1 {
		t.Fatalf("expected original message to remain pending, got %d", pending.Count)
	}

	streamLen, err := q.client.XLen(ctx, q.stream).Result()
	if err != nil {
		t.Fatalf("xlen: %v", err)
	}
	if streamLen != 1 {
		t.Fatalf("expected no new message in stream on failure, got len=%d", streamLen)
	}
}

func TestRedisSyncQueueJobLifecycle(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	q, err := NewRedisSyncQueue(RedisQueueConfig{
		Addr:   redisSrv.Addr(),
		Stream: "test:sync",
	})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	ctx := context.Background()
	q.ensureGroup(ctx)

	job, err := q.Enqueue(ctx, SyncParams{ChannelIDs: []string{"chan-1"}, Limit: 50})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	got, ok, err := q.GetJob(ctx, job.ID)
	if err != nil || !ok {
		t.Fatalf("get job: ok=%v err=%v", ok, err)
	}
	if got.Status != StatusQueued {
		t.Fatalf("fresh job status = %q, want %q", got.Status, StatusQueued)
	}

	processing, err := q.markProcessing(ctx, job.ID)
	if err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if processing.Status != StatusProcessing || processing.Attempts != 1 {
		t.Fatalf("processing job = %+v", processing)
	}

	summary := report.Summary{Total: 3, Processed: 3, NewBugs: 2, ExistingBugs: 1}
	if err := q.markDone(ctx, job.ID, summary); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	done, ok, err := q.GetJob(ctx, job.ID)
	if err != nil || !ok {
		t.Fatalf("get done job: ok=%v err=%v", ok, err)
	}
	if done.Status != StatusDone {
		t.Fatalf("done job status = %q", done.Status)
	}
	if done.Summary == nil || done.Summary.NewBugs != 2 || done.Summary.Total != 3 {
		t.Fatalf("done job summary = %+v", done.Summary)
	}
}

func TestRedisSyncQueueGetJobUnknown(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	q, err := NewRedisSyncQueue(RedisQueueConfig{
		Addr:   redisSrv.Addr(),
		Stream: "test:sync",
	})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	_, ok, err := q.GetJob(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if ok {
		t.Fatalf("unknown job should not be found")
	}
}

func newPendingQueueMessage(t *testing.T) (*RedisSyncQueue, context.Context, string, string, SyncParams) {
	t.Helper()

	redisSrv := miniredis.RunT(t)
	q, err := NewRedisSyncQueue(RedisQueueConfig{
		Addr:       redisSrv.Addr(),
		Stream:     "test:sync",
		Group:      "test-group",
		Consumer:   "consumer-1",
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}

	ctx := context.Background()
	q.ensureGroup(ctx)

	params := SyncParams{ChannelIDs: []string{"chan-1", "chan-2"}, Limit: 100}
	job, err := q.Enqueue(ctx, params)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: "consumer-1",
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    0,
	}).Result()
	if err != nil {
		t.Fatalf("readgroup: %v", err)
	}
	if len(streams) != 1 || len(streams[0].Messages) != 1 {
		t.Fatalf("expected one pending message, got %+v", streams)
	}

	msg := streams[0].Messages[0]
	return q, ctx, msg.ID, job.ID, params
}

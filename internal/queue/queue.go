// Package queue is a Redis-backed priority queue for batching track
// point writes, grounded on the original RedisPointQueue: a per-queue
// sorted set scored by priority and enqueue order, drained with
// ZPOPMIN, with a parallel list-backed Dead Letter Queue for items that
// exhaust their retry budget.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/paraglide-live/trackcore/internal/models"
)

// priorityScale multiplies the queue priority in the sorted-set score,
// to which the enqueue time (milliseconds since epoch) is added, so
// items of equal priority drain FIFO.
const priorityScale = 1e12

// Queue wraps a Redis client with the fixed set of queue names the
// ingest pipeline uses.
type Queue struct {
	rdb *redis.Client
}

// New wraps an already-configured *redis.Client. Callers build the
// client from Config via Dial so connection options stay in one place.
func New(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

// Config holds Redis connection settings.
type Config struct {
	Addr         string
	Password     string
	DB           int
	MaxConns     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConns <= 0 {
		c.MaxConns = 10
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Second
	}
	return c
}

// Dial opens a Redis client and verifies it with a PING.
func Dial(ctx context.Context, cfg Config) (*Queue, error) {
	cfg = cfg.withDefaults()
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.MaxConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("queue: ping redis: %w", err)
	}
	return New(rdb), nil
}

// Close releases the underlying Redis connection pool.
func (q *Queue) Close() error { return q.rdb.Close() }

func sortedSetKey(name models.QueueName) string { return "queue:" + string(name) }
func dlqKey(name models.QueueName) string       { return "dlq:" + string(name) }

func score(priority int, enqueuedAt time.Time) float64 {
	return float64(priority)*priorityScale + float64(enqueuedAt.UnixMilli())
}

// ErrUnavailable wraps any failure to reach the backing Redis store.
// HTTP ingest adapters use it to decide whether to fall back to a
// direct Store write (spec §4.1/§4.7).
var ErrUnavailable = errors.New("queue: backing store unavailable")

// Enqueue adds a single QueueItem to its priority queue.
func (q *Queue) Enqueue(ctx context.Context, item models.QueueItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("queue: marshal item: %w", err)
	}
	z := redis.Z{Score: score(item.QueueType.Priority(), item.Timestamp), Member: payload}
	if err := q.rdb.ZAdd(ctx, sortedSetKey(item.QueueType), z).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// EnqueueBatch adds many QueueItems in a single pipelined round trip
// and reports how many of them were written successfully, mirroring
// the original implementation's queue_points_batch.
func (q *Queue) EnqueueBatch(ctx context.Context, items []models.QueueItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	pipe := q.rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(items))
	for i, item := range items {
		payload, err := json.Marshal(item)
		if err != nil {
			return 0, fmt.Errorf("queue: marshal item %d: %w", i, err)
		}
		z := redis.Z{Score: score(item.QueueType.Priority(), item.Timestamp), Member: payload}
		cmds[i] = pipe.ZAdd(ctx, sortedSetKey(item.QueueType), z)
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, fmt.Errorf("%w: pipeline exec: %v", ErrUnavailable, err)
	}

	successful := 0
	for _, cmd := range cmds {
		if cmd.Err() == nil {
			successful++
		}
	}
	return successful, nil
}

// DequeueBatch pops up to batchSize items from the front of a queue
// (lowest score first) via ZPOPMIN, which is atomic and avoids the
// read-then-delete race a plain ZRANGE+ZREM pair would have.
func (q *Queue) DequeueBatch(ctx context.Context, name models.QueueName, batchSize int) ([]models.QueueItem, error) {
	results, err := q.rdb.ZPopMin(ctx, sortedSetKey(name), int64(batchSize)).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: zpopmin %s: %w", name, err)
	}

	items := make([]models.QueueItem, 0, len(results))
	for _, z := range results {
		raw, ok := z.Member.(string)
		if !ok {
			continue
		}
		var item models.QueueItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// ToDLQ records a failed item in the Dead Letter Queue list for its
// queue family.
func (q *Queue) ToDLQ(ctx context.Context, entry models.DLQEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("queue: marshal dlq entry: %w", err)
	}
	return q.rdb.LPush(ctx, dlqKey(entry.Item.QueueType), payload).Err()
}

// DLQSize returns the number of entries waiting in a queue family's DLQ.
func (q *Queue) DLQSize(ctx context.Context, name models.QueueName) (int64, error) {
	return q.rdb.LLen(ctx, dlqKey(name)).Result()
}

// QueueStats is the per-queue-family snapshot surfaced at GET /queue/status.
type QueueStats struct {
	Pending int64 `json:"pending"`
	DLQSize int64 `json:"dlq_size"`
}

var allQueues = []models.QueueName{
	models.QueueLivePoints,
	models.QueueUploadPoints,
	models.QueueFlymasterPoints,
	models.QueueScoringPoints,
}

// Stats returns a snapshot of every queue family's pending and DLQ
// sizes, grounded on get_queue_stats in the original implementation.
func (q *Queue) Stats(ctx context.Context) (map[models.QueueName]QueueStats, error) {
	pipe := q.rdb.Pipeline()
	pendingCmds := make(map[models.QueueName]*redis.IntCmd, len(allQueues))
	dlqCmds := make(map[models.QueueName]*redis.IntCmd, len(allQueues))
	for _, name := range allQueues {
		pendingCmds[name] = pipe.ZCard(ctx, sortedSetKey(name))
		dlqCmds[name] = pipe.LLen(ctx, dlqKey(name))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("queue: stats pipeline: %w", err)
	}

	out := make(map[models.QueueName]QueueStats, len(allQueues))
	for _, name := range allQueues {
		out[name] = QueueStats{
			Pending: pendingCmds[name].Val(),
			DLQSize: dlqCmds[name].Val(),
		}
	}
	return out, nil
}

// ClearQueue removes every pending item in a queue family. Used by the
// admin /admin/queue endpoints.
func (q *Queue) ClearQueue(ctx context.Context, name models.QueueName) error {
	return q.rdb.Del(ctx, sortedSetKey(name)).Err()
}

// ReapDLQOlderThan drops DLQ entries whose FailedAt predates cutoff and
// returns how many were removed. The DLQ is a plain Redis list (LPush on
// failure, oldest entries toward the tail), so reaping rewrites the list
// in one pipelined round trip rather than trimming in place.
func (q *Queue) ReapDLQOlderThan(ctx context.Context, name models.QueueName, cutoff time.Time) (int, error) {
	key := dlqKey(name)
	raw, err := q.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: lrange dlq %s: %w", name, err)
	}

	kept := make([]interface{}, 0, len(raw))
	reaped := 0
	for _, payload := range raw {
		var entry models.DLQEntry
		if err := json.Unmarshal([]byte(payload), &entry); err != nil {
			continue
		}
		if entry.FailedAt.Before(cutoff) {
			reaped++
			continue
		}
		kept = append(kept, payload)
	}
	if reaped == 0 {
		return 0, nil
	}

	pipe := q.rdb.Pipeline()
	pipe.Del(ctx, key)
	if len(kept) > 0 {
		pipe.RPush(ctx, key, kept...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("queue: rewrite dlq %s: %w", name, err)
	}
	return reaped, nil
}

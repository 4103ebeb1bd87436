package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	SettlementStream = "settlement_stream"
	SettlementGroup  = "settlement_group"

	readBlock = 2 * time.Second
	readCount = 100
)

// Handler processes one delivered job. A nil return acknowledges the entry;
// an error leaves it pending so the reclaimer redelivers it later.
type Handler func(ctx context.Context, job Job) error

// Queue is the durable job broker on top of a Redis Stream consumer group.
// Delivery is at-least-once: entries are acked only after the handler
// succeeds, and stale pending entries are reclaimed.
type Queue struct {
	rdb            *redis.Client
	reclaimMinIdle time.Duration
}

func New(rdb *redis.Client, reclaimMinIdle time.Duration) *Queue {
	if reclaimMinIdle <= 0 {
		reclaimMinIdle = 30 * time.Second
	}
	return &Queue{rdb: rdb, reclaimMinIdle: reclaimMinIdle}
}

// Enqueue appends the job to the stream. Returns once redis has the entry;
// there is no synchronous settlement result.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	values, err := encodeJob(job)
	if err != nil {
		return fmt.Errorf("queue: encode job: %w", err)
	}
	if err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: SettlementStream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("queue: enqueue: %w", err)
	}
	return nil
}

// EnsureGroup creates the consumer group if it does not exist yet.
func (q *Queue) EnsureGroup(ctx context.Context) error {
	err := q.rdb.XGroupCreateMkStream(ctx, SettlementStream, SettlementGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("queue: create group: %w", err)
	}
	return nil
}

type delivery struct {
	id  string
	job Job
}

// StartConsumer runs the consume loop until ctx is cancelled: reader
// goroutines feed a job channel, numWorkers workers call the handler, and a
// reclaimer re-feeds entries whose consumer died before acking.
func (q *Queue) StartConsumer(ctx context.Context, handler Handler, numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	slog.Info("starting settlement consumer", "workers", numWorkers)

	jobChan := make(chan delivery, readCount)

	var workers sync.WaitGroup
	for i := 1; i <= numWorkers; i++ {
		workers.Add(1)
		go q.worker(ctx, i, jobChan, handler, &workers)
	}

	// Both producers must be done before jobChan can close.
	var producers sync.WaitGroup
	producers.Add(2)
	go func() {
		defer producers.Done()
		q.read(ctx, jobChan)
	}()
	go func() {
		defer producers.Done()
		q.reclaimer(ctx, jobChan)
	}()

	producers.Wait()
	close(jobChan)
	workers.Wait()
}

func (q *Queue) read(ctx context.Context, jobChan chan<- delivery) {
	hostname, _ := os.Hostname()
	consumer := fmt.Sprintf("consumer-%d-%s", os.Getpid(), hostname)

	for {
		if ctx.Err() != nil {
			return
		}

		entries, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    SettlementGroup,
			Consumer: consumer,
			Streams:  []string{SettlementStream, ">"},
			Block:    readBlock,
			Count:    readCount,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			slog.Error("read from stream failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, entry := range entries {
			for _, msg := range entry.Messages {
				if !q.dispatch(ctx, jobChan, msg) {
					return
				}
			}
		}
	}
}

// reclaimer re-feeds pending entries idle longer than reclaimMinIdle. This
// is the redelivery half of the at-least-once contract: an entry that was
// delivered but never acked comes back here.
func (q *Queue) reclaimer(ctx context.Context, jobChan chan<- delivery) {
	hostname, _ := os.Hostname()
	consumer := fmt.Sprintf("reclaimer-%d-%s", os.Getpid(), hostname)

	ticker := time.NewTicker(q.reclaimMinIdle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		start := "0-0"
		for {
			msgs, next, err := q.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   SettlementStream,
				Group:    SettlementGroup,
				Consumer: consumer,
				MinIdle:  q.reclaimMinIdle,
				Start:    start,
				Count:    readCount,
			}).Result()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					slog.Error("reclaim failed", "error", err)
				}
				break
			}
			for _, msg := range msgs {
				if !q.dispatch(ctx, jobChan, msg) {
					return
				}
			}
			if next == "0-0" || len(msgs) == 0 {
				break
			}
			start = next
		}
	}
}

func (q *Queue) dispatch(ctx context.Context, jobChan chan<- delivery, msg redis.XMessage) bool {
	job, err := decodeJob(msg.Values)
	if err != nil {
		// Poison entry: redelivering it can never succeed, ack and drop.
		slog.Error("dropping undecodable entry", "entry_id", msg.ID, "error", err)
		q.rdb.XAck(ctx, SettlementStream, SettlementGroup, msg.ID)
		return true
	}
	select {
	case jobChan <- delivery{id: msg.ID, job: job}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (q *Queue) worker(ctx context.Context, id int, jobChan <-chan delivery, handler Handler, wg *sync.WaitGroup) {
	defer wg.Done()

	for d := range jobChan {
		if err := handler(ctx, d.job); err != nil {
			// No ack: the entry stays pending and the reclaimer will
			// redeliver it after the idle threshold.
			slog.Warn("settlement attempt failed",
				"worker", id, "transaction_id", d.job.TransactionID, "error", err)
			continue
		}
		if err := q.rdb.XAck(ctx, SettlementStream, SettlementGroup, d.id).Err(); err != nil {
			slog.Error("ack failed", "entry_id", d.id, "error", err)
		}
	}
}

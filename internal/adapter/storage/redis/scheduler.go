package redis

import (
	"context"
	"sync"
	"time"

	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RoundScheduler implements ports.RoundScheduler on a delayed-job sorted set
// shared across processes: member = round id, score = run-at millis. ZADD
// overwrites the score, so Reschedule supersedes the pending job. Workers
// claim due jobs with ZREM; a claim that returns 0 lost the race to another
// worker. Delivery is at-least-once: handlers are idempotent for closed or
// missing rounds, and failed runs are re-enqueued with a delay.
type RoundScheduler struct {
	client *goredis.Client
	key    string
	log    zerolog.Logger
}

// NewRoundScheduler creates a Redis-backed round-closure scheduler.
func NewRoundScheduler(client *goredis.Client, log zerolog.Logger) *RoundScheduler {
	return &RoundScheduler{
		client: client,
		key:    "jobs:round_close",
		log:    log,
	}
}

// Schedule enqueues the closure job for a round at an absolute instant.
func (s *RoundScheduler) Schedule(ctx context.Context, roundID uuid.UUID, runAt time.Time) error {
	err := s.client.ZAdd(ctx, s.key, goredis.Z{
		Score:  float64(runAt.UnixMilli()),
		Member: roundID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("schedule round close: %w", err)
	}
	return nil
}

// Reschedule supersedes the pending job's run time. There is one logical job
// per round, so this is the same ZADD.
func (s *RoundScheduler) Reschedule(ctx context.Context, roundID uuid.UUID, runAt time.Time) error {
	return s.Schedule(ctx, roundID, runAt)
}

// Handler processes a claimed closure job.
type Handler func(ctx context.Context, roundID uuid.UUID) error

// WorkerOptions tune the polling worker pool.
type WorkerOptions struct {
	PollInterval time.Duration
	Workers      int
	RetryDelay   time.Duration
}

// Run polls for due jobs and dispatches them to a worker pool until ctx is
// cancelled. It blocks; callers run it in a goroutine.
func (s *RoundScheduler) Run(ctx context.Context, opts WorkerOptions, handle Handler) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 3 * time.Second
	}

	jobs := make(chan uuid.UUID)
	var wg sync.WaitGroup

	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for roundID := range jobs {
				s.runOne(ctx, roundID, opts.RetryDelay, handle)
			}
		}()
	}

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case <-ticker.C:
			for _, roundID := range s.claimDue(ctx) {
				select {
				case jobs <- roundID:
				case <-ctx.Done():
					close(jobs)
					wg.Wait()
					return
				}
			}
		}
	}
}

// claimDue pops jobs whose run time has passed. ZREM is the claim: exactly
// one competing worker removes the member.
func (s *RoundScheduler) claimDue(ctx context.Context) []uuid.UUID {
	now := time.Now().UnixMilli()
	members, err := s.client.ZRangeByScore(ctx, s.key, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now),
		Count: 32,
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn().Err(err).Msg("scheduler poll failed")
		}
		return nil
	}

	var claimed []uuid.UUID
	for _, m := range members {
		removed, err := s.client.ZRem(ctx, s.key, m).Result()
		if err != nil || removed == 0 {
			continue
		}
		roundID, err := uuid.Parse(m)
		if err != nil {
			s.log.Error().Str("member", m).Msg("dropping malformed scheduler job")
			continue
		}
		claimed = append(claimed, roundID)
	}
	return claimed
}

func (s *RoundScheduler) runOne(ctx context.Context, roundID uuid.UUID, retryDelay time.Duration, handle Handler) {
	if err := handle(ctx, roundID); err != nil {
		s.log.Error().Err(err).Str("round_id", roundID.String()).Msg("round close failed, re-enqueueing")
		if reErr := s.Schedule(ctx, roundID, time.Now().Add(retryDelay)); reErr != nil {
			s.log.Error().Err(reErr).Str("round_id", roundID.String()).Msg("re-enqueue failed, job lost until rescheduled")
		}
	}
}

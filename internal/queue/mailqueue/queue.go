package mailqueue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/geocoder89/storefront/internal/jobs"
	"github.com/geocoder89/storefront/internal/notifications"
	"github.com/redis/go-redis/v9"
)

const DefaultKey = "storefront:jobs:scheduled"

// zsetAPI is the slice of the redis client the queue uses, kept narrow so
// tests can run without a server.
type zsetAPI interface {
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	ZCard(ctx context.Context, key string) *redis.IntCmd
}

// Queue is a delayed job queue on a redis sorted set scored by run-at
// (unix millis). A job is owned by whichever worker removes it from the set.
type Queue struct {
	rdb      zsetAPI
	key      string
	maxTries int
	now      func() time.Time
}

func New(rdb *redis.Client, key string, maxTries int) *Queue {
	return newQueue(rdb, key, maxTries)
}

func newQueue(rdb zsetAPI, key string, maxTries int) *Queue {
	if key == "" {
		key = DefaultKey
	}
	if maxTries <= 0 {
		maxTries = jobs.DefaultMaxTries
	}

	return &Queue{rdb: rdb, key: key, maxTries: maxTries, now: time.Now}
}

// EnqueueEmail schedules msg for immediate retry by the worker.
func (q *Queue) EnqueueEmail(ctx context.Context, msg notifications.Message) error {
	payload, err := jobs.EncodePayload(jobs.JobSendEmail, jobs.SendEmailPayload{
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return err
	}

	j, err := jobs.NewJob(jobs.JobSendEmail, payload, q.now())
	if err != nil {
		return err
	}
	j.MaxTries = q.maxTries

	return q.Schedule(ctx, j)
}

// Schedule stores j to become due at j.RunAt.
func (q *Queue) Schedule(ctx context.Context, j jobs.Job) error {
	b, err := jobs.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", j.ID, err)
	}

	err = q.rdb.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(j.RunAt.UnixMilli()),
		Member: string(b),
	}).Err()
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", j.ID, err)
	}

	return nil
}

// ClaimDue removes up to limit due jobs from the set and returns them.
// Members another worker removed first are skipped. Undecodable members
// are dropped so they cannot block the queue.
func (q *Queue) ClaimDue(ctx context.Context, limit int) ([]jobs.Job, error) {
	if limit <= 0 {
		limit = 1
	}

	members, err := q.rdb.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(q.now().UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read due jobs: %w", err)
	}

	claimed := make([]jobs.Job, 0, len(members))

	for _, m := range members {
		removed, err := q.rdb.ZRem(ctx, q.key, m).Result()
		if err != nil {
			return claimed, fmt.Errorf("claim job: %w", err)
		}
		if removed == 0 {
			continue
		}

		j, err := jobs.Unmarshal([]byte(m))
		if err != nil {
			continue
		}

		claimed = append(claimed, j)
	}

	return claimed, nil
}

// Depth is the number of scheduled jobs, due or not.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, q.key).Result()
}

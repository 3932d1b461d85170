package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const JobOrderConfirmation = "orderConfirmation"

// ErrUnavailable marks a queue outage. Producers treat it as non-fatal.
var ErrUnavailable = errors.New("notification queue unavailable")

type Job struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OrderID    uuid.UUID `json:"orderId"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// OrderConfirmation builds the job for orderID. The id is derived from the
// order so duplicate enqueues collapse.
func OrderConfirmation(orderID uuid.UUID) Job {
	return Job{
		ID:      JobOrderConfirmation + ":" + orderID.String(),
		Type:    JobOrderConfirmation,
		OrderID: orderID,
	}
}

type Queue struct {
	client   *redis.Client
	listKey  string
	dedupTTL time.Duration
}

func NewQueue(client *redis.Client) *Queue {
	return &Queue{
		client:   client,
		listKey:  "email:jobs",
		dedupTTL: 7 * 24 * time.Hour,
	}
}

func (q *Queue) dedupKey(jobID string) string {
	return fmt.Sprintf("email:job:%s", jobID)
}

// Enqueue pushes job unless a job with the same id was already accepted.
// It reports whether the job was newly queued.
func (q *Queue) Enqueue(ctx context.Context, job Job) (bool, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	fresh, err := q.client.SetNX(ctx, q.dedupKey(job.ID), 1, q.dedupTTL).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !fresh {
		return false, nil
	}

	if err := q.push(ctx, job); err != nil {
		_ = q.client.Del(ctx, q.dedupKey(job.ID)).Err()
		return false, err
	}
	return true, nil
}

func (q *Queue) push(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job failed: %w", err)
	}
	if err := q.client.LPush(ctx, q.listKey, data).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Requeue puts a failed job back without the dedup check.
func (q *Queue) Requeue(ctx context.Context, job Job) error {
	job.Attempts++
	return q.push(ctx, job)
}

// Dequeue blocks up to timeout for the next job; (nil, nil) means none arrived.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.client.BRPop(ctx, timeout, q.listKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of length %d", len(res))
	}

	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job failed: %w", err)
	}
	return &job, nil
}

func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.listKey).Result()
}

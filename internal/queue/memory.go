package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/salescout/internal/model"
)

// MemoryQueue はプロセス内で完結するQueueの実装。
type MemoryQueue struct {
	mu    sync.Mutex
	jobs  map[string]*model.Job
	now   func() time.Time
	lease time.Duration
}

var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue はMemoryQueueを生成する。
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{jobs: make(map[string]*model.Job), now: time.Now, lease: DefaultLease}
}

// SetLease はrunningジョブのリース期間を変更する。0以下の値は無視する。
func (q *MemoryQueue) SetLease(d time.Duration) {
	if d <= 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lease = d
}

// Enqueue はジョブを即時実行可能な状態で投入する。
func (q *MemoryQueue) Enqueue(_ context.Context, trackerID int64) (*model.Job, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, j := range q.jobs {
		if j.TrackerID == trackerID && (j.Status == model.JobStatusPending || j.Status == model.JobStatusRunning) {
			cp := *j
			return &cp, false, nil
		}
	}

	now := q.now()
	job := &model.Job{
		ID:        uuid.New().String(),
		TrackerID: trackerID,
		Status:    model.JobStatusPending,
		RunAt:     now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q.jobs[job.ID] = job
	cp := *job
	return &cp, true, nil
}

// Claim はRunAtの古い順にpendingジョブとリース切れのrunningジョブを取得する。
func (q *MemoryQueue) Claim(_ context.Context, limit int) ([]*model.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var due []*model.Job
	for _, j := range q.jobs {
		if j.Status == model.JobStatusPending && !j.RunAt.After(now) {
			due = append(due, j)
			continue
		}
		if j.Status == model.JobStatusRunning && j.UpdatedAt.Before(now.Add(-q.lease)) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(a, b int) bool { return due[a].RunAt.Before(due[b].RunAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*model.Job, 0, len(due))
	for _, j := range due {
		j.Status = model.JobStatusRunning
		j.Attempts++
		j.UpdatedAt = now
		cp := *j
		claimed = append(claimed, &cp)
	}
	return claimed, nil
}

// Complete はジョブをdoneにする。
func (q *MemoryQueue) Complete(_ context.Context, jobID string) error {
	return q.update(jobID, func(j *model.Job) {
		j.Status = model.JobStatusDone
	})
}

// Retry はジョブをdelay後に実行可能なpendingに戻す。
func (q *MemoryQueue) Retry(_ context.Context, jobID string, delay time.Duration, reason string) error {
	return q.update(jobID, func(j *model.Job) {
		j.Status = model.JobStatusPending
		j.RunAt = q.now().Add(delay)
		j.LastError = reason
	})
}

// Fail はジョブをfailedにする。
func (q *MemoryQueue) Fail(_ context.Context, jobID string, reason string) error {
	return q.update(jobID, func(j *model.Job) {
		j.Status = model.JobStatusFailed
		j.LastError = reason
	})
}

// Get はジョブのコピーを返す。存在しない場合はnilを返す。
func (q *MemoryQueue) Get(jobID string) *model.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[jobID]
	if !ok {
		return nil
	}
	cp := *j
	return &cp
}

func (q *MemoryQueue) update(jobID string, fn func(j *model.Job)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[jobID]
	if !ok {
		return fmt.Errorf("ジョブが見つかりません: %s", jobID)
	}
	fn(j)
	j.UpdatedAt = q.now()
	return nil
}

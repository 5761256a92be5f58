package pricecheck

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/salescout/internal/model"
	"github.com/hitoshi/salescout/internal/queue"
)

func newTestWorker(q queue.Queue, checker TrackerChecker, policy RetryPolicy, concurrency int) (*Worker, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewWorker(q, checker, policy, nil, newTestLogger(&buf), concurrency), &buf
}

func TestWorker_RunOnce_CompletesSuccessfulJobs(t *testing.T) {
	q := queue.NewMemoryQueue()
	ctx := context.Background()

	var ids []string
	for _, trackerID := range []int64{1, 2, 3} {
		job, _, err := q.Enqueue(ctx, trackerID)
		if err != nil {
			t.Fatalf("Enqueue失敗: %v", err)
		}
		ids = append(ids, job.ID)
	}

	var checked sync.Map
	w, _ := newTestWorker(q, &mockChecker{checkFunc: func(_ context.Context, id int64) error {
		checked.Store(id, true)
		return nil
	}}, DefaultRetryPolicy(), 2)

	// 並列数2なので2回に分けて処理される
	total := 0
	for i := 0; i < 2; i++ {
		n, err := w.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce失敗: %v", err)
		}
		total += n
	}
	if total != 3 {
		t.Errorf("処理数 = %d, want 3", total)
	}
	for _, id := range ids {
		if got := q.Get(id).Status; got != model.JobStatusDone {
			t.Errorf("job %s status = %s, want done", id, got)
		}
	}
	for _, trackerID := range []int64{1, 2, 3} {
		if _, ok := checked.Load(trackerID); !ok {
			t.Errorf("tracker %d がチェックされていません", trackerID)
		}
	}
}

func TestWorker_RunOnce_RetriesThenFails(t *testing.T) {
	q := queue.NewMemoryQueue()
	ctx := context.Background()
	job, _, _ := q.Enqueue(ctx, 42)

	var calls atomic.Int32
	checker := &mockChecker{checkFunc: func(context.Context, int64) error {
		calls.Add(1)
		return &model.FetchError{URL: "https://www.flipkart.com/p/itm1", Attempts: 3, Err: errors.New("status 503")}
	}}
	// 遅延0にして同じテスト内で再取得できるようにする
	w, logs := newTestWorker(q, checker, RetryPolicy{MaxRetries: 3, Delay: 0}, 1)

	for i := 1; i <= 3; i++ {
		if _, err := w.RunOnce(ctx); err != nil {
			t.Fatalf("RunOnce失敗: %v", err)
		}
		got := q.Get(job.ID)
		if got.Status != model.JobStatusPending {
			t.Fatalf("%d回目の後のstatus = %s, want pending", i, got.Status)
		}
		if got.LastError == "" {
			t.Errorf("%d回目の後にLastErrorが記録されていません", i)
		}
	}

	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce失敗: %v", err)
	}
	got := q.Get(job.ID)
	if got.Status != model.JobStatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4", got.Attempts)
	}
	if calls.Load() != 4 {
		t.Errorf("チェック回数 = %d, want 4", calls.Load())
	}
	if !bytes.Contains(logs.Bytes(), []byte("リトライ上限に達しました")) {
		t.Error("リトライ上限のログが出力されていません")
	}

	// failedのジョブは再取得されない
	if n, _ := w.RunOnce(ctx); n != 0 {
		t.Errorf("failed後の処理数 = %d, want 0", n)
	}
}

func TestWorker_RunOnce_RetryDelayDefersJob(t *testing.T) {
	q := queue.NewMemoryQueue()
	ctx := context.Background()
	job, _, _ := q.Enqueue(ctx, 5)

	w, _ := newTestWorker(q, &mockChecker{checkFunc: func(context.Context, int64) error {
		return model.ErrPriceUnavailable
	}}, DefaultRetryPolicy(), 1)

	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce失敗: %v", err)
	}
	got := q.Get(job.ID)
	if got.Status != model.JobStatusPending {
		t.Fatalf("status = %s, want pending", got.Status)
	}
	if !got.RunAt.After(time.Now().Add(time.Minute)) {
		t.Errorf("RunAt = %v, 約120秒後になっていません", got.RunAt)
	}
	if n, _ := w.RunOnce(ctx); n != 0 {
		t.Errorf("遅延中のジョブが処理されました: %d", n)
	}
}

func TestWorker_RunOnce_SkipsInactiveTracker(t *testing.T) {
	q := queue.NewMemoryQueue()
	ctx := context.Background()
	job, _, _ := q.Enqueue(ctx, 8)

	w, logs := newTestWorker(q, &mockChecker{checkFunc: func(context.Context, int64) error {
		return model.ErrTrackerInactive
	}}, DefaultRetryPolicy(), 1)

	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce失敗: %v", err)
	}
	if got := q.Get(job.ID).Status; got != model.JobStatusDone {
		t.Errorf("status = %s, want done", got)
	}
	if !bytes.Contains(logs.Bytes(), []byte("スキップしました")) {
		t.Error("スキップのログが出力されていません")
	}
}

func TestWorker_RunOnce_RespectsConcurrency(t *testing.T) {
	q := queue.NewMemoryQueue()
	ctx := context.Background()
	for i := int64(1); i <= 6; i++ {
		q.Enqueue(ctx, i)
	}

	var current, peak atomic.Int32
	checker := &mockChecker{checkFunc: func(context.Context, int64) error {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		return nil
	}}
	w, _ := newTestWorker(q, checker, DefaultRetryPolicy(), 3)

	n, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce失敗: %v", err)
	}
	if n != 3 {
		t.Errorf("処理数 = %d, want 3", n)
	}
	if peak.Load() > 3 {
		t.Errorf("同時実行数 = %d, 上限3を超えています", peak.Load())
	}
}

func TestWorker_Start_StopsOnCancel(t *testing.T) {
	q := queue.NewMemoryQueue()
	w, _ := newTestWorker(q, &mockChecker{}, DefaultRetryPolicy(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	job, _, _ := q.Enqueue(context.Background(), 1)
	deadline := time.After(2 * time.Second)
	for q.Get(job.ID).Status != model.JobStatusDone {
		select {
		case <-deadline:
			t.Fatal("ジョブが処理されませんでした")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("キャンセル後にワーカーが停止しませんでした")
	}
}

func TestWorker_JobTimeoutCancelsCheck(t *testing.T) {
	q := queue.NewMemoryQueue()
	ctx := context.Background()
	job, _, _ := q.Enqueue(ctx, 11)

	checker := &mockChecker{checkFunc: func(ctx context.Context, _ int64) error {
		<-ctx.Done()
		return &StageError{Stage: StageFetching, Err: ctx.Err()}
	}}
	w, _ := newTestWorker(q, checker, RetryPolicy{MaxRetries: 3, Delay: time.Minute}, 1)
	w.SetJobTimeout(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.RunOnce(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ジョブのタイムアウトが効いていません")
	}

	got := q.Get(job.ID)
	if got.Status != model.JobStatusPending {
		t.Errorf("status = %s, want pending (retry)", got.Status)
	}
	if !strings.Contains(got.LastError, "deadline exceeded") {
		t.Errorf("LastError = %q", got.LastError)
	}
}

package pricecheck

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/salescout/internal/metrics"
	"github.com/hitoshi/salescout/internal/model"
	"github.com/hitoshi/salescout/internal/queue"
)

// TrackerChecker は1トラッカー分の価格チェックを実行するインターフェース。
type TrackerChecker interface {
	Check(ctx context.Context, trackerID int64) error
}

// Worker はキューからジョブを取り出して価格チェックを並列実行する。
// semaphoreパターンで最大並列数を制御する。
type Worker struct {
	queue          queue.Queue
	checker        TrackerChecker
	policy         RetryPolicy
	metrics        metrics.MetricsCollector
	logger         *slog.Logger
	maxConcurrency int
	jobTimeout     time.Duration
}

// NewWorker はWorkerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewWorker(
	q queue.Queue,
	checker TrackerChecker,
	policy RetryPolicy,
	m metrics.MetricsCollector,
	logger *slog.Logger,
	maxConcurrency int,
) *Worker {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Worker{
		queue:          q,
		checker:        checker,
		policy:         policy,
		metrics:        m,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// SetJobTimeout は1ジョブの実行時間の上限を設定する。
// キューのリース期間より短くし、リース切れで他のワーカーに再取得されたジョブが
// 並行して走り続けないようにする。0以下の場合は上限なし。
func (w *Worker) SetJobTimeout(d time.Duration) {
	w.jobTimeout = d
}

// Start はpollInterval間隔でキューをポーリングする。
// コンテキストがキャンセルされるまで実行を継続し、実行中のジョブの完了を待ってから戻る。
func (w *Worker) Start(ctx context.Context, pollInterval time.Duration) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	w.logger.Info("価格チェックワーカーを開始しました",
		slog.Duration("poll_interval", pollInterval),
		slog.Int("max_concurrency", w.maxConcurrency),
	)

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("ジョブの取得に失敗しました",
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-ctx.Done():
			w.logger.Info("価格チェックワーカーを停止しました")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce は実行可能なジョブを最大並列数まで取得して実行し、処理したジョブ数を返す。
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	if ctx.Err() != nil {
		return 0, nil
	}

	jobs, err := w.queue.Claim(ctx, w.maxConcurrency)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	start := time.Now()

	sem := make(chan struct{}, w.maxConcurrency)
	var wg sync.WaitGroup

	for _, job := range jobs {
		wg.Add(1)
		sem <- struct{}{}

		go func(j *model.Job) {
			defer wg.Done()
			defer func() { <-sem }()
			w.process(ctx, j)
		}(job)
	}

	wg.Wait()

	w.logger.Info("価格チェックサイクルが完了しました",
		slog.Int("job_count", len(jobs)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return len(jobs), nil
}

// process は1ジョブを実行し、結果に応じてキュー上のジョブ状態を更新する。
// シャットダウン中でも状態更新は行う。
func (w *Worker) process(ctx context.Context, job *model.Job) {
	log := w.logger.With(
		slog.String("job_id", job.ID),
		slog.Int64("tracker_id", job.TrackerID),
		slog.Int("attempt", job.Attempts),
	)

	checkCtx := ctx
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	checkErr := w.checker.Check(checkCtx, job.TrackerID)
	decision := w.policy.Decide(checkErr, job.Attempts)
	w.metrics.RecordCheck(decision.String())

	updateCtx := context.WithoutCancel(ctx)
	var err error
	switch decision {
	case DecisionComplete:
		err = w.queue.Complete(updateCtx, job.ID)
	case DecisionSkip:
		log.Warn("価格チェックをスキップしました", slog.String("reason", checkErr.Error()))
		err = w.queue.Complete(updateCtx, job.ID)
	case DecisionRetry:
		log.Warn("価格チェックに失敗したためリトライします",
			slog.String("error", checkErr.Error()),
			slog.Duration("delay", w.policy.Delay),
		)
		err = w.queue.Retry(updateCtx, job.ID, w.policy.Delay, checkErr.Error())
	case DecisionFail:
		log.Error("価格チェックがリトライ上限に達しました",
			slog.String("error", checkErr.Error()),
		)
		err = w.queue.Fail(updateCtx, job.ID, checkErr.Error())
	}
	if err != nil {
		log.Error("ジョブ状態の更新に失敗しました",
			slog.String("decision", decision.String()),
			slog.String("error", err.Error()),
		)
	}
}

package pricecheck

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hitoshi/salescout/internal/metrics"
	"github.com/hitoshi/salescout/internal/model"
	"github.com/hitoshi/salescout/internal/queue"
	"github.com/hitoshi/salescout/internal/repository"
)

// Scheduler は有効なトラッカーのうちチェック時刻を迎えたものをキューに投入する。
// ジョブの実行はWorkerが担う。
type Scheduler struct {
	trackers repository.TrackerRepository
	queue    queue.Queue
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	now      func() time.Time

	minInterval int
	maxInterval int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(
	trackers repository.TrackerRepository,
	q queue.Queue,
	m metrics.MetricsCollector,
	logger *slog.Logger,
) *Scheduler {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Scheduler{
		trackers: trackers,
		queue:    q,
		metrics:  m,
		logger:   logger,
		now:      time.Now,

		minInterval: model.MinPollingIntervalMinutes,
		maxInterval: model.MaxPollingIntervalMinutes,
	}
}

// SetPollingBounds はポーリング間隔の許容範囲（分）を設定する。
// 範囲外のトラッカーはチェック対象にしない。
func (s *Scheduler) SetPollingBounds(minMinutes, maxMinutes int) {
	s.minInterval = minMinutes
	s.maxInterval = maxMinutes
}

// Start はinterval間隔でEnqueueDueを実行する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	c := cron.New()
	if _, err := c.AddFunc("@every "+interval.String(), func() { s.runCycle(ctx) }); err != nil {
		return err
	}

	s.logger.Info("価格チェックスケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	s.runCycle(ctx)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("価格チェックスケジューラを停止しました")
	return nil
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.EnqueueDue(ctx); err != nil {
		s.logger.Error("スケジューリングサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// EnqueueDue はチェック時刻を迎えたトラッカーのジョブを投入し、投入したトラッカー数を返す。
// 同じトラッカーの未完了ジョブが既にある場合はそのジョブにまとめられるが、投入数には含める。
// そのため完了前に2回続けて呼んでも同じ数を返す。
// 一部のトラッカーで投入に失敗しても残りの投入は継続する。
func (s *Scheduler) EnqueueDue(ctx context.Context) (int, error) {
	start := time.Now()

	trackers, err := s.trackers.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	due, enqueued, created := 0, 0, 0
	for _, t := range trackers {
		if err := model.ValidateTracker(t, s.minInterval, s.maxInterval); err != nil {
			s.logger.Warn("設定が不正なトラッカーをスキップしました",
				slog.Int64("tracker_id", t.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !t.IsDue(now) {
			continue
		}
		due++

		job, isNew, err := s.queue.Enqueue(ctx, t.ID)
		if err != nil {
			s.logger.Error("ジョブの投入に失敗しました",
				slog.Int64("tracker_id", t.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		enqueued++
		if !isNew {
			s.logger.Debug("未完了のジョブにまとめました",
				slog.Int64("tracker_id", t.ID),
				slog.String("job_id", job.ID),
			)
			continue
		}
		created++
	}

	s.metrics.RecordEnqueued(created)
	s.logger.Info("スケジューリングサイクルが完了しました",
		slog.Int("active_count", len(trackers)),
		slog.Int("due_count", due),
		slog.Int("enqueued_count", enqueued),
		slog.Int("created_count", created),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return enqueued, nil
}

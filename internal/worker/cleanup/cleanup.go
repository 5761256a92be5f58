// Package cleanup は終了済み価格チェックジョブの定期削除を提供する。
// doneとfailedのジョブは実行履歴として一定期間残し、保持期間を過ぎたものを日次で削除する。
// 価格履歴（price_history）は削除対象に含まない。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultRetentionDays は終了済みジョブのデフォルト保持日数。
const DefaultRetentionDays = 7

// DefaultSchedule はクリーンアップのデフォルト実行スケジュール（毎日0時）。
const DefaultSchedule = "@daily"

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// JobCleanup は保持期間を過ぎた終了済みジョブを削除する。
// 冪等で、削除対象がなくてもエラーにならない。
type JobCleanup struct {
	db            Executor
	logger        *slog.Logger
	RetentionDays int
}

// NewJobCleanup はJobCleanupを生成する。retentionDaysが0以下の場合はDefaultRetentionDaysを使う。
func NewJobCleanup(db Executor, logger *slog.Logger, retentionDays int) *JobCleanup {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &JobCleanup{
		db:            db,
		logger:        logger,
		RetentionDays: retentionDays,
	}
}

// Run はupdated_atが保持期間より古いdone/failedのジョブを削除する。
// pendingとrunningのジョブは古くても削除しない。
func (j *JobCleanup) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d days", j.RetentionDays)

	query := `DELETE FROM price_check_jobs
		WHERE status IN ('done', 'failed') AND updated_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("ジョブクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("ジョブクリーンアップの実行に失敗: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	j.logger.Info("ジョブクリーンアップが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start はcron形式のscheduleに従ってRunを定期実行する。
// コンテキストがキャンセルされるまでブロックし、実行中のRunの終了を待ってから戻る。
func (j *JobCleanup) Start(ctx context.Context, schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		// 失敗はRun内でログ出力済み。次回のスケジュールで再試行される
		_ = j.Run(ctx)
	})
	if err != nil {
		return fmt.Errorf("クリーンアップスケジュールが不正です: %w", err)
	}

	j.logger.Info("ジョブクリーンアップを開始しました",
		slog.String("schedule", schedule),
		slog.Int("retention_days", j.RetentionDays),
	)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	j.logger.Info("ジョブクリーンアップを停止しました")
	return nil
}

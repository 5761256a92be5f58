package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/salescout/internal/model"
	"github.com/hitoshi/salescout/internal/queue"
)

// PostgresJobRepo はprice_check_jobsテーブルを使ったジョブキュー。
// 複数のワーカープロセスが同時にClaimしても同じジョブを二重に取得しない。
// runningのまま更新がリース期間を超えたジョブは、落ちたワーカーのものとして再取得する。
type PostgresJobRepo struct {
	db    *sql.DB
	lease time.Duration
}

var _ queue.Queue = (*PostgresJobRepo)(nil)

// NewPostgresJobRepo はPostgresJobRepoを生成する。
func NewPostgresJobRepo(db *sql.DB) *PostgresJobRepo {
	return &PostgresJobRepo{db: db, lease: queue.DefaultLease}
}

// SetLease はrunningジョブのリース期間を変更する。0以下の値は無視する。
func (r *PostgresJobRepo) SetLease(d time.Duration) {
	if d > 0 {
		r.lease = d
	}
}

// Enqueue はトラッカーのジョブを即時実行可能なpendingで投入する。
// 同じトラッカーの未完了ジョブがあればそれを返し、新規投入しない。
// 未完了ジョブはトラッカーごとに部分ユニークインデックスで1件に制限されるため、
// 複数プロセスから同時に呼ばれても重複しない。
func (r *PostgresJobRepo) Enqueue(ctx context.Context, trackerID int64) (*model.Job, bool, error) {
	// 競合した未完了ジョブが再取得の前に終わった場合に備えて数回やり直す
	for i := 0; i < 3; i++ {
		job, err := r.insertOpen(ctx, trackerID)
		if err != nil {
			return nil, false, err
		}
		if job != nil {
			return job, true, nil
		}

		job, err = r.findOpen(ctx, trackerID)
		if err != nil {
			return nil, false, err
		}
		if job != nil {
			return job, false, nil
		}
	}
	return nil, false, fmt.Errorf("ジョブの投入に失敗しました: tracker_id=%d の未完了ジョブが競合し続けています", trackerID)
}

// insertOpen はpendingのジョブを挿入する。未完了ジョブが既にある場合はnilを返す。
func (r *PostgresJobRepo) insertOpen(ctx context.Context, trackerID int64) (*model.Job, error) {
	job, err := scanJob(r.db.QueryRowContext(ctx,
		`INSERT INTO price_check_jobs (id, tracker_id, status, attempts, run_at, created_at, updated_at)
		 VALUES ($1, $2, 'pending', 0, now(), now(), now())
		 ON CONFLICT (tracker_id) WHERE status IN ('pending', 'running') DO NOTHING
		 RETURNING `+jobColumns,
		uuid.New().String(), trackerID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ジョブの投入に失敗しました: %w", err)
	}
	return job, nil
}

// findOpen はトラッカーの未完了ジョブを返す。存在しない場合はnilを返す。
func (r *PostgresJobRepo) findOpen(ctx context.Context, trackerID int64) (*model.Job, error) {
	job, err := scanJob(r.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+`
		 FROM price_check_jobs
		 WHERE tracker_id = $1 AND status IN ('pending', 'running')`,
		trackerID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("未完了ジョブの取得に失敗しました: %w", err)
	}
	return job, nil
}

const jobColumns = `id, tracker_id, status, attempts, run_at, last_error, created_at, updated_at`

func scanJob(row rowScanner) (*model.Job, error) {
	j := &model.Job{}
	var lastError sql.NullString
	if err := row.Scan(&j.ID, &j.TrackerID, &j.Status, &j.Attempts, &j.RunAt, &lastError, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.LastError = nullStringValue(lastError)
	return j, nil
}

// Claim は実行時刻を過ぎたpendingジョブと、リース切れのrunningジョブを
// 最大limit件取得してrunningにする。
// FOR UPDATE SKIP LOCKEDにより、他のワーカーが取得中の行は読み飛ばす。
func (r *PostgresJobRepo) Claim(ctx context.Context, limit int) ([]*model.Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE price_check_jobs SET
		    status = 'running',
		    attempts = attempts + 1,
		    updated_at = now()
		 WHERE id IN (
		    SELECT id FROM price_check_jobs
		    WHERE (status = 'pending' AND run_at <= now())
		       OR (status = 'running' AND updated_at < now() - $2 * interval '1 millisecond')
		    ORDER BY run_at
		    LIMIT $1
		    FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+jobColumns,
		limit, r.lease.Milliseconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("ジョブの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("ジョブのスキャンに失敗しました: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ジョブのイテレーションに失敗しました: %w", err)
	}
	return jobs, nil
}

// Complete はジョブをdoneにする。
func (r *PostgresJobRepo) Complete(ctx context.Context, jobID string) error {
	return r.setStatus(ctx, jobID, model.JobStatusDone, "", 0)
}

// Retry はジョブをdelay後に実行可能なpendingに戻す。
func (r *PostgresJobRepo) Retry(ctx context.Context, jobID string, delay time.Duration, reason string) error {
	return r.setStatus(ctx, jobID, model.JobStatusPending, reason, delay)
}

// Fail はジョブをfailedにする。
func (r *PostgresJobRepo) Fail(ctx context.Context, jobID string, reason string) error {
	return r.setStatus(ctx, jobID, model.JobStatusFailed, reason, 0)
}

func (r *PostgresJobRepo) setStatus(ctx context.Context, jobID string, status model.JobStatus, reason string, delay time.Duration) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE price_check_jobs SET
		    status = $2,
		    last_error = COALESCE($3, last_error),
		    run_at = CASE WHEN $2 = 'pending' THEN now() + $4 * interval '1 millisecond' ELSE run_at END,
		    updated_at = now()
		 WHERE id = $1`,
		jobID, string(status), nullString(reason), delay.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("ジョブ状態の更新に失敗しました: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("ジョブが見つかりません: %s", jobID)
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/salescout/internal/model"
)

// PostgresObservationRepo はPostgreSQLを使用した価格履歴リポジトリ。
type PostgresObservationRepo struct {
	db *sql.DB
}

var _ ObservationRepository = (*PostgresObservationRepo)(nil)

// NewPostgresObservationRepo はPostgresObservationRepoを生成する。
func NewPostgresObservationRepo(db *sql.DB) *PostgresObservationRepo {
	return &PostgresObservationRepo{db: db}
}

// Record は価格履歴の追加とトラッカーの更新を1トランザクションで行う。
// トラッカーが存在しない場合はロールバックしてエラーを返す。
func (r *PostgresObservationRepo) Record(ctx context.Context, rec model.ObservationRecord) (*model.PriceObservation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	obs := &model.PriceObservation{
		TrackerID: rec.TrackerID,
		Price:     rec.Price,
		CheckedAt: rec.CheckedAt,
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO price_history (tracker_id, price, checked_at)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		rec.TrackerID, rec.Price, rec.CheckedAt,
	).Scan(&obs.ID)
	if err != nil {
		return nil, fmt.Errorf("価格履歴の追加に失敗しました: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE trackers SET
		    last_price = $2,
		    last_checked_at = $3,
		    product_title = COALESCE($4, product_title),
		    image_url = COALESCE($5, image_url),
		    updated_at = now()
		 WHERE id = $1`,
		rec.TrackerID, rec.Price, rec.CheckedAt, nullString(rec.Title), nullString(rec.ImageURL),
	)
	if err != nil {
		return nil, fmt.Errorf("トラッカーの更新に失敗しました: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("トラッカーが存在しません: %d", rec.TrackerID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return obs, nil
}

// MostRecentBefore はcutoff以前で最も新しい観測を返す。存在しない場合はnilを返す。
func (r *PostgresObservationRepo) MostRecentBefore(ctx context.Context, trackerID int64, cutoff time.Time) (*model.PriceObservation, error) {
	obs := &model.PriceObservation{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, tracker_id, price, checked_at
		 FROM price_history
		 WHERE tracker_id = $1 AND checked_at <= $2
		 ORDER BY checked_at DESC
		 LIMIT 1`,
		trackerID, cutoff,
	).Scan(&obs.ID, &obs.TrackerID, &obs.Price, &obs.CheckedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("比較対象の価格履歴の取得に失敗しました: %w", err)
	}
	return obs, nil
}

// ListByTracker はトラッカーの観測を新しい順に最大limit件返す。
func (r *PostgresObservationRepo) ListByTracker(ctx context.Context, trackerID int64, limit int) ([]*model.PriceObservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tracker_id, price, checked_at
		 FROM price_history
		 WHERE tracker_id = $1
		 ORDER BY checked_at DESC, id DESC
		 LIMIT $2`,
		trackerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("価格履歴一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var result []*model.PriceObservation
	for rows.Next() {
		obs := &model.PriceObservation{}
		if err := rows.Scan(&obs.ID, &obs.TrackerID, &obs.Price, &obs.CheckedAt); err != nil {
			return nil, fmt.Errorf("価格履歴のスキャンに失敗しました: %w", err)
		}
		result = append(result, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("価格履歴のイテレーションに失敗しました: %w", err)
	}
	return result, nil
}

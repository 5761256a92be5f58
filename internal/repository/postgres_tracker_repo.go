package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/salescout/internal/model"
)

// PostgresTrackerRepo はPostgreSQLを使用したトラッカーリポジトリ。
type PostgresTrackerRepo struct {
	db *sql.DB
}

var _ TrackerRepository = (*PostgresTrackerRepo)(nil)

// NewPostgresTrackerRepo はPostgresTrackerRepoを生成する。
func NewPostgresTrackerRepo(db *sql.DB) *PostgresTrackerRepo {
	return &PostgresTrackerRepo{db: db}
}

const trackerColumns = `id, user_id, product_url, product_title, image_url, target_price,
	last_price, last_checked_at, polling_interval_minutes, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTracker(row rowScanner) (*model.Tracker, error) {
	t := &model.Tracker{}
	var imageURL sql.NullString
	var lastPrice sql.NullFloat64
	var lastCheckedAt sql.NullTime

	err := row.Scan(
		&t.ID, &t.UserID, &t.ProductURL, &t.ProductTitle, &imageURL, &t.TargetPrice,
		&lastPrice, &lastCheckedAt, &t.PollingIntervalMinutes, &t.Active,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.ImageURL = nullStringValue(imageURL)
	t.LastPrice = nullFloatPtr(lastPrice)
	t.LastCheckedAt = nullTimePtr(lastCheckedAt)
	return t, nil
}

// ListActive は有効な全トラッカーをID順に取得する。
func (r *PostgresTrackerRepo) ListActive(ctx context.Context) ([]*model.Tracker, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+trackerColumns+` FROM trackers WHERE active ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("有効なトラッカーの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var trackers []*model.Tracker
	for rows.Next() {
		t, err := scanTracker(rows)
		if err != nil {
			return nil, fmt.Errorf("トラッカーのスキャンに失敗しました: %w", err)
		}
		trackers = append(trackers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("トラッカーのイテレーションに失敗しました: %w", err)
	}
	return trackers, nil
}

// FindByID は指定IDのトラッカーを取得する。見つからない場合はnilを返す。
func (r *PostgresTrackerRepo) FindByID(ctx context.Context, id int64) (*model.Tracker, error) {
	t, err := scanTracker(r.db.QueryRowContext(ctx,
		`SELECT `+trackerColumns+` FROM trackers WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("トラッカーの取得に失敗しました: %w", err)
	}
	return t, nil
}

// UpdateDetails は商品タイトルと画像URLを更新する。空文字列のフィールドは既存値を維持する。
func (r *PostgresTrackerRepo) UpdateDetails(ctx context.Context, id int64, title, imageURL string) error {
	if title == "" && imageURL == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE trackers SET
		    product_title = COALESCE($2, product_title),
		    image_url = COALESCE($3, image_url),
		    updated_at = now()
		 WHERE id = $1`,
		id, nullString(title), nullString(imageURL),
	)
	if err != nil {
		return fmt.Errorf("商品詳細の更新に失敗しました: %w", err)
	}
	return nil
}

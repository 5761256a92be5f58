// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/salescout/internal/model"
)

// TrackerRepository はトラッカーの永続化インターフェース。
// トラッカーの作成・削除はユーザー向けAPIの責務で、価格チェックは参照と詳細更新のみ行う。
type TrackerRepository interface {
	// ListActive は有効な全トラッカーを取得する。
	ListActive(ctx context.Context) ([]*model.Tracker, error)

	// FindByID は指定IDのトラッカーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Tracker, error)

	// UpdateDetails は商品タイトルと画像URLを更新する。空文字列のフィールドは更新しない。
	UpdateDetails(ctx context.Context, id int64, title, imageURL string) error
}

// ObservationRepository は価格履歴の永続化インターフェース。
type ObservationRepository interface {
	// Record は価格履歴の追加とトラッカーのlast_price、last_checked_at、
	// 商品詳細の更新を1トランザクションで行う。どちらか一方だけが反映されることはない。
	Record(ctx context.Context, rec model.ObservationRecord) (*model.PriceObservation, error)

	// MostRecentBefore はcutoff以前で最も新しい観測を返す。存在しない場合はnilを返す。
	MostRecentBefore(ctx context.Context, trackerID int64, cutoff time.Time) (*model.PriceObservation, error)

	// ListByTracker はトラッカーの観測を新しい順に最大limit件返す。
	ListByTracker(ctx context.Context, trackerID int64, limit int) ([]*model.PriceObservation, error)
}

// UserRepository はユーザーの参照インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

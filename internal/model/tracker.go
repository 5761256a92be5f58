// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"time"
)

const (
	// PlaceholderTitle はタイトル取得前のトラッカーに設定される仮タイトル。
	PlaceholderTitle = "Pending title fetch"

	// DefaultPollingIntervalMinutes はポーリング間隔のデフォルト値（分）。
	DefaultPollingIntervalMinutes = 60
	// MinPollingIntervalMinutes はポーリング間隔の下限（分）。
	MinPollingIntervalMinutes = 5
	// MaxPollingIntervalMinutes はポーリング間隔の上限（分）。
	MaxPollingIntervalMinutes = 1440
)

// Tracker はユーザーが1つの商品URLを目標価格で監視する登録を表す。
// LastPriceとLastCheckedAtは最初の価格チェックが成功するまでnil。
type Tracker struct {
	ID                     int64
	UserID                 int64
	ProductURL             string
	ProductTitle           string
	ImageURL               string
	TargetPrice            float64
	LastPrice              *float64
	LastCheckedAt          *time.Time
	PollingIntervalMinutes int
	Active                 bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// PollingInterval はポーリング間隔をtime.Durationで返す。
func (t *Tracker) PollingInterval() time.Duration {
	return time.Duration(t.PollingIntervalMinutes) * time.Minute
}

// IsDue はnow時点でトラッカーが価格チェック対象かを判定する。
// 一度もチェックされていない場合は間隔に関係なく常に対象となる。
// 前回チェックからの経過時間がポーリング間隔以上であれば対象となる。
func (t *Tracker) IsDue(now time.Time) bool {
	if t.LastCheckedAt == nil {
		return true
	}
	return now.Sub(*t.LastCheckedAt) >= t.PollingInterval()
}

// ValidateTracker はトラッカーの不変条件を検証する。
// ポーリング間隔は[minMinutes, maxMinutes]、目標価格は正の値でなければならない。
func ValidateTracker(t *Tracker, minMinutes, maxMinutes int) error {
	if t.TargetPrice <= 0 {
		return NewInvalidTargetPriceError(t.TargetPrice)
	}
	if t.PollingIntervalMinutes < minMinutes || t.PollingIntervalMinutes > maxMinutes {
		return NewInvalidPollingIntervalError(t.PollingIntervalMinutes, minMinutes, maxMinutes)
	}
	return nil
}

// PriceObservation はトラッカーに対して記録された1件の価格サンプル。
// 作成後は変更されず、トラッカー削除時にCASCADE削除される。
type PriceObservation struct {
	ID        int64
	TrackerID int64
	Price     float64
	CheckedAt time.Time
}

// String はログ出力用の表現を返す。
func (o *PriceObservation) String() string {
	return fmt.Sprintf("observation(tracker=%d, price=%.2f, at=%s)", o.TrackerID, o.Price, o.CheckedAt.Format(time.RFC3339))
}

// ObservationRecord は観測記録時に同一トランザクションで書き込む内容。
// Title/ImageURLが空文字列の場合はトラッカーの既存値を維持する。
type ObservationRecord struct {
	TrackerID int64
	Price     float64
	CheckedAt time.Time
	Title     string
	ImageURL  string
}

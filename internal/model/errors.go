// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// 価格チェックパイプラインのセンチネルエラー。
var (
	// ErrPriceUnavailable はページ取得に成功したが価格を抽出できなかったことを示す。
	// 取得ジョブはリトライ対象となる。
	ErrPriceUnavailable = errors.New("商品ページから価格を抽出できませんでした")

	// ErrUnknownPlatform は未対応サイトのURLであることを示す。リトライしない。
	ErrUnknownPlatform = errors.New("未対応のECサイトです")

	// ErrTrackerInactive はトラッカーが存在しないか無効化されていることを示す。
	ErrTrackerInactive = errors.New("トラッカーが存在しないか無効です")
)

// FetchError はリトライを使い切っても商品ページを取得できなかったことを表す。
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

// Error はerrorインターフェースを実装する。
func (e *FetchError) Error() string {
	return fmt.Sprintf("商品ページの取得に失敗しました (url=%s, attempts=%d): %v", e.URL, e.Attempts, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *FetchError) Unwrap() error {
	return e.Err
}

// NotifyError はメール送信の失敗を表す。
// 通知失敗は記録済みの観測結果を取り消さない。
type NotifyError struct {
	To  string
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *NotifyError) Error() string {
	return fmt.Sprintf("通知メールの送信に失敗しました (to=%s): %v", e.To, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *NotifyError) Unwrap() error {
	return e.Err
}

// APIError は統一エラーフォーマットを表す。
// 運用APIのレスポンスボディとしてJSONで返される。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, tracker, system
	Action   string // 対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeTrackerNotFound        = "TRACKER_NOT_FOUND"
	ErrCodeInvalidTrackerID       = "INVALID_TRACKER_ID"
	ErrCodeInvalidPollingInterval = "INVALID_POLLING_INTERVAL"
	ErrCodeInvalidTargetPrice     = "INVALID_TARGET_PRICE"
	ErrCodeInvalidLimit           = "INVALID_LIMIT"
	ErrCodeRateLimited            = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal               = "INTERNAL_ERROR"
)

// NewTrackerNotFoundError はトラッカー未検出エラーを生成する。
func NewTrackerNotFoundError(trackerID int64) *APIError {
	return &APIError{
		Code:     ErrCodeTrackerNotFound,
		Message:  fmt.Sprintf("指定されたトラッカーが見つからないか無効です: %d", trackerID),
		Category: "tracker",
		Action:   "トラッカーIDと有効状態を確認してください。",
	}
}

// NewInvalidTrackerIDError はトラッカーIDの形式が不正な場合のエラーを生成する。
func NewInvalidTrackerIDError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTrackerID,
		Message:  fmt.Sprintf("無効なトラッカーIDです: %s", raw),
		Category: "validation",
		Action:   "トラッカーIDには正の整数を指定してください。",
	}
}

// NewInvalidPollingIntervalError はポーリング間隔が範囲外の場合のエラーを生成する。
func NewInvalidPollingIntervalError(minutes, minMinutes, maxMinutes int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPollingInterval,
		Message:  fmt.Sprintf("無効なポーリング間隔です: %d分", minutes),
		Category: "validation",
		Action:   fmt.Sprintf("ポーリング間隔は%d分から%d分の範囲で指定してください。", minMinutes, maxMinutes),
	}
}

// NewInvalidTargetPriceError は目標価格が正でない場合のエラーを生成する。
func NewInvalidTargetPriceError(price float64) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTargetPrice,
		Message:  fmt.Sprintf("無効な目標価格です: %.2f", price),
		Category: "validation",
		Action:   "目標価格には0より大きい値を指定してください。",
	}
}

// NewInvalidLimitError は取得件数の指定が不正な場合のエラーを生成する。
func NewInvalidLimitError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLimit,
		Message:  fmt.Sprintf("無効な取得件数です: %s", raw),
		Category: "validation",
		Action:   "limitには1から500までの整数を指定してください。",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitedError は手動チェックの実行回数制限エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

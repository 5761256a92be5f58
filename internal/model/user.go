// Package model はドメインモデルを定義する。
package model

import "time"

// User はトラッカーを所有するユーザーを表す。
// 通知メールの宛先としてEmailのみを価格チェックで参照する。
type User struct {
	ID        int64
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Package queue は価格チェックジョブのキューを定義する。
// 本番はPostgreSQLのテーブル（repository.PostgresJobRepo）、テストはMemoryQueueを使う。
package queue

import (
	"context"
	"time"

	"github.com/hitoshi/salescout/internal/model"
)

// DefaultLease はrunningのジョブを実行中とみなす期間。
// これを過ぎても完了報告のないジョブはワーカーが落ちたものとして再取得される。
const DefaultLease = 15 * time.Minute

// Queue は価格チェックジョブのキュー。
// 実行中のプロセスが落ちてもジョブが失われないよう、状態は永続化される。
type Queue interface {
	// Enqueue はトラッカーのジョブをpendingで投入する。
	// 同じトラッカーのpendingまたはrunningのジョブが既にあれば新規投入せず、
	// そのジョブとcreated=falseを返す。
	Enqueue(ctx context.Context, trackerID int64) (job *model.Job, created bool, err error)
	// Claim は実行時刻を過ぎたpendingジョブと、リース切れのrunningジョブを
	// 最大limit件取得してrunningにする。取得したジョブのAttemptsは1増える。
	Claim(ctx context.Context, limit int) ([]*model.Job, error)
	// Complete はジョブをdoneにする。
	Complete(ctx context.Context, jobID string) error
	// Retry はジョブをdelay後に再実行するpendingに戻す。
	Retry(ctx context.Context, jobID string, delay time.Duration, reason string) error
	// Fail はジョブをfailedにする。
	Fail(ctx context.Context, jobID string, reason string) error
}

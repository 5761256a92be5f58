package pricecheck

import (
	"errors"
	"time"

	"github.com/hitoshi/salescout/internal/model"
)

const (
	// DefaultMaxRetries はジョブの最大リトライ回数。初回と合わせて最大4回実行される。
	DefaultMaxRetries = 3
	// DefaultRetryDelay はジョブをリトライするまでの待機時間。
	DefaultRetryDelay = 120 * time.Second
)

// Decision は1回のジョブ実行後にキュー上のジョブをどう扱うかを表す。
type Decision int

const (
	// DecisionComplete はジョブを完了（done）にする。
	DecisionComplete Decision = iota
	// DecisionSkip はチェック対象外として完了（done）にする。
	DecisionSkip
	// DecisionRetry はRetryDelay後に再実行する。
	DecisionRetry
	// DecisionFail はリトライ上限に達したため失敗（failed）にする。
	DecisionFail
)

// String はメトリクスラベル用の文字列を返す。
func (d Decision) String() string {
	switch d {
	case DecisionComplete:
		return "done"
	case DecisionSkip:
		return "skipped"
	case DecisionRetry:
		return "retry"
	case DecisionFail:
		return "failed"
	default:
		return "unknown"
	}
}

// RetryPolicy はジョブのリトライ方針。
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

// DefaultRetryPolicy はデフォルトのリトライ方針を返す。
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: DefaultMaxRetries, Delay: DefaultRetryDelay}
}

// Decide はチェック結果のエラーと実行回数からジョブの扱いを決める。
// attemptsは今回を含む実行回数（1始まり）。
// トラッカーが無効な場合と未対応サイトの場合はリトライしても結果が変わらないためスキップする。
func (p RetryPolicy) Decide(err error, attempts int) Decision {
	if err == nil {
		return DecisionComplete
	}
	if errors.Is(err, model.ErrTrackerInactive) || errors.Is(err, model.ErrUnknownPlatform) {
		return DecisionSkip
	}
	if attempts <= p.MaxRetries {
		return DecisionRetry
	}
	return DecisionFail
}

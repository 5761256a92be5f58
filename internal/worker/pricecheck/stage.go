package pricecheck

import "log/slog"

// Stage は1回の価格チェックの進行段階。
// Started → Fetching → Extracting → PriceResolved → Recorded → Evaluated → Notified → Done の順に進む。
type Stage string

const (
	StageStarted       Stage = "started"
	StageFetching      Stage = "fetching"
	StageExtracting    Stage = "extracting"
	StagePriceResolved Stage = "price_resolved"
	StageRecorded      Stage = "recorded"
	StageEvaluated     Stage = "evaluated"
	StageNotified      Stage = "notified"
	StageDone          Stage = "done"
)

// StageError はチェックが失敗した段階を保持するエラー。
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func enterStage(log *slog.Logger, s Stage) {
	log.Debug("価格チェックの段階を開始します", slog.String("stage", string(s)))
}

package model

import "time"

// JobStatus は価格チェックジョブのキュー上の状態を表す。
type JobStatus string

const (
	// JobStatusPending は実行待ち。
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning はワーカーが取得済みで実行中。
	JobStatusRunning JobStatus = "running"
	// JobStatusDone は正常終了。
	JobStatusDone JobStatus = "done"
	// JobStatusFailed はリトライ上限に達して失敗。
	JobStatusFailed JobStatus = "failed"
)

// Job はキューに投入された1トラッカー分の価格チェック要求。
// Attemptsはワーカーが取得した回数で、取得時にインクリメントされる。
type Job struct {
	ID        string
	TrackerID int64
	Status    JobStatus
	Attempts  int
	RunAt     time.Time
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/salescout/internal/middleware"
	"github.com/hitoshi/salescout/internal/model"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// TrackerFinder はトラッカー参照のインターフェース。
type TrackerFinder interface {
	FindByID(ctx context.Context, id int64) (*model.Tracker, error)
}

// HistoryLister は価格履歴参照のインターフェース。
type HistoryLister interface {
	ListByTracker(ctx context.Context, trackerID int64, limit int) ([]*model.PriceObservation, error)
}

// CheckEnqueuer は価格チェックジョブ投入のインターフェース。
type CheckEnqueuer interface {
	Enqueue(ctx context.Context, trackerID int64) (*model.Job, bool, error)
}

// TrackerHandler は手動チェックと価格履歴のHTTPハンドラー。
type TrackerHandler struct {
	trackers TrackerFinder
	history  HistoryLister
	queue    CheckEnqueuer
	logger   *slog.Logger
}

// NewTrackerHandler はTrackerHandlerを生成する。
func NewTrackerHandler(trackers TrackerFinder, history HistoryLister, queue CheckEnqueuer, logger *slog.Logger) *TrackerHandler {
	return &TrackerHandler{
		trackers: trackers,
		history:  history,
		queue:    queue,
		logger:   logger,
	}
}

// checkResponse は手動チェック受付のレスポンス。
type checkResponse struct {
	JobID     string `json:"job_id"`
	TrackerID int64  `json:"tracker_id"`
	Status    string `json:"status"`
	// Created はfalseの場合、既存の未完了ジョブにまとめられたことを示す。
	Created bool `json:"created"`
}

// observationResponse は価格履歴1件のレスポンス。
type observationResponse struct {
	ID        int64     `json:"id"`
	Price     float64   `json:"price"`
	CheckedAt time.Time `json:"checked_at"`
}

// TriggerCheck はトラッカーの価格チェックジョブを投入する。
// POST /api/trackers/{id}/check
func (h *TrackerHandler) TriggerCheck(w http.ResponseWriter, r *http.Request) {
	tracker, ok := h.loadTracker(w, r)
	if !ok {
		return
	}
	if !tracker.Active {
		middleware.WriteAPIError(w, model.NewTrackerNotFoundError(tracker.ID))
		return
	}

	job, created, err := h.queue.Enqueue(r.Context(), tracker.ID)
	if err != nil {
		h.logger.Error("手動チェックのジョブ投入に失敗しました",
			slog.Int64("tracker_id", tracker.ID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	h.logger.Info("手動チェックを受け付けました",
		slog.Int64("tracker_id", tracker.ID),
		slog.String("job_id", job.ID),
		slog.Bool("created", created),
	)
	writeJSON(w, http.StatusAccepted, checkResponse{
		JobID:     job.ID,
		TrackerID: tracker.ID,
		Status:    string(job.Status),
		Created:   created,
	})
}

// ListHistory はトラッカーの価格履歴を新しい順に返す。
// GET /api/trackers/{id}/history?limit=N
func (h *TrackerHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			middleware.WriteAPIError(w, model.NewInvalidLimitError(raw))
			return
		}
		limit = n
	}

	tracker, ok := h.loadTracker(w, r)
	if !ok {
		return
	}

	observations, err := h.history.ListByTracker(r.Context(), tracker.ID, limit)
	if err != nil {
		h.logger.Error("価格履歴の取得に失敗しました",
			slog.Int64("tracker_id", tracker.ID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	resp := make([]observationResponse, 0, len(observations))
	for _, o := range observations {
		resp = append(resp, observationResponse{ID: o.ID, Price: o.Price, CheckedAt: o.CheckedAt})
	}
	writeJSON(w, http.StatusOK, resp)
}

// loadTracker はパスのIDからトラッカーを取得する。
// 取得できなかった場合はエラーレスポンスを書き込みfalseを返す。
func (h *TrackerHandler) loadTracker(w http.ResponseWriter, r *http.Request) (*model.Tracker, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteAPIError(w, model.NewInvalidTrackerIDError(raw))
		return nil, false
	}

	tracker, err := h.trackers.FindByID(r.Context(), id)
	if err != nil {
		h.logger.Error("トラッカーの取得に失敗しました",
			slog.Int64("tracker_id", id),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return nil, false
	}
	if tracker == nil {
		middleware.WriteAPIError(w, model.NewTrackerNotFoundError(id))
		return nil, false
	}
	return tracker, true
}

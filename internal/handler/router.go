// Package handler は運用向けHTTP APIを提供する。
// ヘルスチェック、Prometheusメトリクス、手動価格チェック、価格履歴の参照のみを扱う。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/salescout/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	Trackers TrackerFinder
	History  HistoryLister
	Queue    CheckEnqueuer

	// CheckRateLimiter は手動チェックのレート制限。nilの場合は制限しない。
	CheckRateLimiter *middleware.RateLimiter

	Logger *slog.Logger
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Recovery → SecurityHeaders
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	health := NewHealthHandler(deps.HealthChecker, deps.Logger)
	trackers := NewTrackerHandler(deps.Trackers, deps.History, deps.Queue, deps.Logger)

	r.Get("/health", health.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/trackers/{id}", func(r chi.Router) {
		if deps.CheckRateLimiter != nil {
			r.With(deps.CheckRateLimiter.Middleware()).Post("/check", trackers.TriggerCheck)
		} else {
			r.Post("/check", trackers.TriggerCheck)
		}
		r.Get("/history", trackers.ListHistory)
	})

	return r
}

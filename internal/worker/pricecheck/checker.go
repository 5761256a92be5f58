// Package pricecheck は価格チェックジョブのスケジューリングと実行を提供する。
// スケジューラが対象トラッカーをキューに投入し、ワーカーがキューから取り出して
// 取得・抽出・記録・アラート判定・通知を行う。
package pricecheck

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/salescout/internal/alert"
	"github.com/hitoshi/salescout/internal/fetcher"
	"github.com/hitoshi/salescout/internal/metrics"
	"github.com/hitoshi/salescout/internal/model"
	"github.com/hitoshi/salescout/internal/notify"
	"github.com/hitoshi/salescout/internal/repository"
	"github.com/hitoshi/salescout/internal/scraper"
)

// Checker は1トラッカー分の価格チェックを実行する。
type Checker struct {
	trackers     repository.TrackerRepository
	observations repository.ObservationRepository
	users        repository.UserRepository
	fetcher      fetcher.Fetcher
	registry     *scraper.Registry
	evaluator    *alert.Evaluator
	notifier     notify.Notifier
	metrics      metrics.MetricsCollector
	logger       *slog.Logger
	now          func() time.Time
}

// NewChecker はCheckerを生成する。
func NewChecker(
	trackers repository.TrackerRepository,
	observations repository.ObservationRepository,
	users repository.UserRepository,
	f fetcher.Fetcher,
	registry *scraper.Registry,
	evaluator *alert.Evaluator,
	notifier notify.Notifier,
	m metrics.MetricsCollector,
	logger *slog.Logger,
) *Checker {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Checker{
		trackers:     trackers,
		observations: observations,
		users:        users,
		fetcher:      f,
		registry:     registry,
		evaluator:    evaluator,
		notifier:     notifier,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
	}
}

// Check はトラッカーの現在価格を取得して記録し、条件を満たせば通知する。
//
// 戻り値のエラーはジョブの扱いを決めるために使われる。
// model.ErrTrackerInactiveとmodel.ErrUnknownPlatformはリトライ不要、
// それ以外（取得失敗、価格抽出失敗、DBエラー）はリトライ対象となる。
// 観測の記録後に発生した通知の失敗はエラーとして返さない。
func (c *Checker) Check(ctx context.Context, trackerID int64) error {
	tracker, err := c.trackers.FindByID(ctx, trackerID)
	if err != nil {
		return &StageError{Stage: StageStarted, Err: fmt.Errorf("トラッカーの取得に失敗: %w", err)}
	}
	if tracker == nil || !tracker.Active {
		return model.ErrTrackerInactive
	}

	log := c.logger.With(
		slog.Int64("tracker_id", tracker.ID),
		slog.String("url", tracker.ProductURL),
	)
	enterStage(log, StageStarted)

	platform := scraper.ClassifyPlatform(tracker.ProductURL)
	extractor, ok := c.registry.ForPlatform(platform)
	if !ok {
		log.Warn("未対応のECサイトのためチェックをスキップします")
		return model.ErrUnknownPlatform
	}
	log = log.With(slog.String("platform", string(platform)))

	enterStage(log, StageFetching)
	content, err := c.fetcher.Fetch(ctx, tracker.ProductURL)
	if err != nil {
		return &StageError{Stage: StageFetching, Err: err}
	}

	enterStage(log, StageExtracting)
	result := extractor.Extract(content)
	if !result.HasPrice() {
		// 価格が取れなくてもタイトルと画像は反映しておく
		if result.Title != "" || result.ImageURL != "" {
			if err := c.trackers.UpdateDetails(ctx, tracker.ID, result.Title, result.ImageURL); err != nil {
				log.Warn("商品詳細の更新に失敗しました", slog.String("error", err.Error()))
			}
		}
		log.Warn("商品ページから価格を抽出できませんでした")
		return &StageError{Stage: StageExtracting, Err: model.ErrPriceUnavailable}
	}
	newPrice := *result.Price
	now := c.now()
	enterStage(log, StagePriceResolved)

	// 記録前に比較対象を取得しておくと、失敗時に観測を重複記録せずにリトライできる
	prior, err := c.observations.MostRecentBefore(ctx, tracker.ID, alert.PriorDayCutoff(now))
	if err != nil {
		return &StageError{Stage: StagePriceResolved, Err: fmt.Errorf("比較対象の価格履歴の取得に失敗: %w", err)}
	}

	if _, err := c.observations.Record(ctx, model.ObservationRecord{
		TrackerID: tracker.ID,
		Price:     newPrice,
		CheckedAt: now,
		Title:     result.Title,
		ImageURL:  result.ImageURL,
	}); err != nil {
		return &StageError{Stage: StagePriceResolved, Err: fmt.Errorf("価格の記録に失敗: %w", err)}
	}

	log.Info("価格を記録しました", slog.Float64("price", newPrice))
	enterStage(log, StageRecorded)

	// trackerは記録前の状態のまま評価する（LastPriceが旧価格）
	decisions := c.evaluator.Evaluate(tracker, prior, newPrice)
	enterStage(log, StageEvaluated)
	if len(decisions) == 0 {
		enterStage(log, StageDone)
		return nil
	}

	user, err := c.users.FindByID(ctx, tracker.UserID)
	if err != nil {
		log.Error("通知先ユーザーの取得に失敗しました", slog.String("error", err.Error()))
		return nil
	}
	if user == nil {
		log.Warn("通知先ユーザーが存在しないため通知をスキップします", slog.Int64("user_id", tracker.UserID))
		return nil
	}

	title := tracker.ProductTitle
	if result.Title != "" {
		title = result.Title
	}

	for _, d := range decisions {
		c.metrics.RecordAlert(string(d.Kind))
		msg := notify.Message{
			To:           user.Email,
			ProductTitle: title,
			OldPrice:     d.OldPrice,
			NewPrice:     d.NewPrice,
			URL:          tracker.ProductURL,
			Reason:       d.Reason,
		}
		if err := c.notifier.Notify(ctx, msg); err != nil {
			log.Warn("アラート通知に失敗しました",
				slog.String("kind", string(d.Kind)),
				slog.String("error", err.Error()),
			)
		}
	}
	enterStage(log, StageNotified)
	enterStage(log, StageDone)
	return nil
}

package fetcher

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/salescout/internal/metrics"
	"github.com/hitoshi/salescout/internal/model"
)

// FallbackFetcher はprimaryが失敗したときにfallbackで再取得する。
// HTTP取得がbot対策で弾かれた場合にヘッドレスブラウザで描画取得するために使う。
type FallbackFetcher struct {
	primary  Fetcher
	fallback Fetcher
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

var _ Fetcher = (*FallbackFetcher)(nil)

// NewFallbackFetcher はFallbackFetcherを生成する。
func NewFallbackFetcher(primary, fallback Fetcher, m metrics.MetricsCollector, logger *slog.Logger) *FallbackFetcher {
	if m == nil {
		m = metrics.Nop{}
	}
	return &FallbackFetcher{primary: primary, fallback: fallback, metrics: m, logger: logger}
}

// Fetch はprimaryで取得し、失敗した場合のみfallbackを試す。
// URL検証で拒否された場合とctxがキャンセルされた場合はfallbackを使わない。
func (f *FallbackFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	body, err := f.primary.Fetch(ctx, rawURL)
	if err == nil {
		return body, nil
	}

	var fe *model.FetchError
	if errors.As(err, &fe) && fe.Attempts == 0 {
		return "", err
	}
	if ctx.Err() != nil {
		return "", err
	}

	f.logger.Info("ヘッドレスブラウザで再取得します",
		slog.String("url", rawURL),
		slog.String("error", err.Error()),
	)

	body, fbErr := f.fallback.Fetch(ctx, rawURL)
	f.metrics.RecordHeadlessFallback(fbErr == nil)
	if fbErr != nil {
		attempts := 1
		if fe != nil {
			attempts = fe.Attempts + 1
		}
		return "", &model.FetchError{URL: rawURL, Attempts: attempts, Err: fbErr}
	}
	return body, nil
}

// Package fetcher は商品ページのHTMLを取得する。
// 通常のHTTP取得とヘッドレスブラウザによる描画取得を提供する。
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/salescout/internal/metrics"
	"github.com/hitoshi/salescout/internal/model"
	"github.com/hitoshi/salescout/internal/scraper"
	"github.com/hitoshi/salescout/internal/security"
)

// ブラウザに見せかけるリクエストヘッダー。ECサイトはbot風のUser-Agentを拒否する。
const (
	DefaultUserAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0 Safari/537.36"
	DefaultAcceptLanguage = "en-US,en;q=0.9"
)

// Fetcher は商品URLのHTMLを取得する。
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Options はHTTPFetcherの動作設定。
type Options struct {
	// MaxAttempts は1回の取得での最大試行回数。
	MaxAttempts int
	// BackoffBase は試行間の待機時間の基準値。n回目の失敗後はBackoffBase*nだけ待つ。
	BackoffBase time.Duration
	// MaxBodySize はレスポンスボディの最大読み取りサイズ。
	MaxBodySize    int64
	UserAgent      string
	AcceptLanguage string
}

// HTTPFetcher はリトライ付きで商品ページをHTTP取得する。
type HTTPFetcher struct {
	client    *http.Client
	validator security.URLValidator
	limiter   *HostLimiter
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	opts      Options

	// sleep はテストで差し替える。
	sleep func(ctx context.Context, d time.Duration) error
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher はHTTPFetcherを生成する。
// clientには通常security.URLGuard.NewSafeClientの戻り値を渡す。
func NewHTTPFetcher(
	client *http.Client,
	validator security.URLValidator,
	limiter *HostLimiter,
	m metrics.MetricsCollector,
	logger *slog.Logger,
	opts Options,
) *HTTPFetcher {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.AcceptLanguage == "" {
		opts.AcceptLanguage = DefaultAcceptLanguage
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &HTTPFetcher{
		client:    client,
		validator: validator,
		limiter:   limiter,
		metrics:   m,
		logger:    logger,
		opts:      opts,
		sleep:     sleepContext,
	}
}

// Fetch は商品ページを取得してHTML文字列を返す。
// 200以外のステータスと通信エラーはMaxAttempts回までリトライする。
// 全試行が失敗した場合は*model.FetchErrorを返す。
// URL検証に失敗した場合はリトライせずに即座に*model.FetchErrorを返す。
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if err := f.validator.ValidateURL(rawURL); err != nil {
		f.logger.Warn("URL検証に失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return "", &model.FetchError{URL: rawURL, Attempts: 0, Err: err}
	}

	platform := string(scraper.ClassifyPlatform(rawURL))
	var lastErr error

	for attempt := 1; attempt <= f.opts.MaxAttempts; attempt++ {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return "", &model.FetchError{URL: rawURL, Attempts: attempt - 1, Err: err}
		}

		body, err := f.attempt(ctx, rawURL)
		f.metrics.RecordFetchAttempt(platform, err == nil)
		if err == nil {
			return body, nil
		}
		lastErr = err

		f.logger.Warn("商品ページの取得に失敗しました",
			slog.String("url", rawURL),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", f.opts.MaxAttempts),
			slog.String("error", err.Error()),
		)

		if attempt == f.opts.MaxAttempts {
			break
		}
		if err := f.sleep(ctx, f.opts.BackoffBase*time.Duration(attempt)); err != nil {
			return "", &model.FetchError{URL: rawURL, Attempts: attempt, Err: err}
		}
	}

	return "", &model.FetchError{URL: rawURL, Attempts: f.opts.MaxAttempts, Err: lastErr}
}

func (f *HTTPFetcher) attempt(ctx context.Context, rawURL string) (string, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept-Language", f.opts.AcceptLanguage)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	f.metrics.RecordHTTPStatus(resp.StatusCode)
	f.metrics.RecordFetchLatency(time.Since(start))

	if resp.StatusCode != http.StatusOK {
		// 接続を再利用できるようボディを読み捨てる
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return "", fmt.Errorf("予期しないHTTPステータス: %d", resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if f.opts.MaxBodySize > 0 {
		reader = io.LimitReader(resp.Body, f.opts.MaxBodySize)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}
	return string(body), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hitoshi/salescout/internal/model"
	"github.com/hitoshi/salescout/internal/security"
)

// HeadlessRenderer はヘッドレスChromiumでJavaScript描画後のHTMLを取得する。
// ブラウザは最初の取得時に起動し、Closeまで使い回す。
type HeadlessRenderer struct {
	bin       string
	timeout   time.Duration
	validator security.URLValidator
	logger    *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

var _ Fetcher = (*HeadlessRenderer)(nil)

// NewHeadlessRenderer はHeadlessRendererを生成する。
// binが空の場合はrodがChromiumを自動検出・ダウンロードする。
func NewHeadlessRenderer(bin string, timeout time.Duration, validator security.URLValidator, logger *slog.Logger) *HeadlessRenderer {
	return &HeadlessRenderer{
		bin:       bin,
		timeout:   timeout,
		validator: validator,
		logger:    logger,
	}
}

// Fetch はページを開いてloadイベントを待ち、描画後のHTMLを返す。
func (r *HeadlessRenderer) Fetch(ctx context.Context, rawURL string) (string, error) {
	if err := r.validator.ValidateURL(rawURL); err != nil {
		return "", &model.FetchError{URL: rawURL, Attempts: 0, Err: err}
	}

	browser, err := r.ensureBrowser()
	if err != nil {
		return "", &model.FetchError{URL: rawURL, Attempts: 1, Err: err}
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", &model.FetchError{URL: rawURL, Attempts: 1, Err: fmt.Errorf("タブの作成に失敗: %w", err)}
	}
	defer func() {
		if err := page.Close(); err != nil {
			r.logger.Warn("タブのクローズに失敗しました", slog.String("error", err.Error()))
		}
	}()

	p := page.Context(ctx).Timeout(r.timeout)
	if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      DefaultUserAgent,
		AcceptLanguage: DefaultAcceptLanguage,
	}); err != nil {
		return "", &model.FetchError{URL: rawURL, Attempts: 1, Err: fmt.Errorf("User-Agent設定に失敗: %w", err)}
	}
	if err := p.Navigate(rawURL); err != nil {
		return "", &model.FetchError{URL: rawURL, Attempts: 1, Err: fmt.Errorf("ページ遷移に失敗: %w", err)}
	}
	if err := p.WaitLoad(); err != nil {
		return "", &model.FetchError{URL: rawURL, Attempts: 1, Err: fmt.Errorf("ページ読み込み待機に失敗: %w", err)}
	}
	html, err := p.HTML()
	if err != nil {
		return "", &model.FetchError{URL: rawURL, Attempts: 1, Err: fmt.Errorf("HTML取得に失敗: %w", err)}
	}
	return html, nil
}

func (r *HeadlessRenderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New().
		Headless(true).
		NoSandbox(true).
		Leakless(false)
	if r.bin != "" {
		l = l.Bin(r.bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("ブラウザの起動に失敗: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("ブラウザへの接続に失敗: %w", err)
	}

	r.logger.Info("ヘッドレスブラウザを起動しました", slog.String("control_url", controlURL))
	r.browser = browser
	return browser, nil
}

// Close は起動済みのブラウザを終了する。未起動の場合は何もしない。
func (r *HeadlessRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	return err
}

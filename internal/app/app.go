package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/salescout/internal/alert"
	"github.com/hitoshi/salescout/internal/config"
	"github.com/hitoshi/salescout/internal/database"
	"github.com/hitoshi/salescout/internal/fetcher"
	"github.com/hitoshi/salescout/internal/handler"
	"github.com/hitoshi/salescout/internal/logger"
	"github.com/hitoshi/salescout/internal/metrics"
	"github.com/hitoshi/salescout/internal/middleware"
	"github.com/hitoshi/salescout/internal/notify"
	"github.com/hitoshi/salescout/internal/scraper"
	"github.com/hitoshi/salescout/internal/security"
	"github.com/hitoshi/salescout/internal/worker/cleanup"
	"github.com/hitoshi/salescout/internal/worker/pricecheck"
)

const (
	dbPingTimeout   = 5 * time.Second
	shutdownTimeout = 30 * time.Second
	smtpTimeout     = 30 * time.Second
	// ヘッドレス描画はJavaScriptの実行を待つため通常取得より長く待つ
	headlessTimeoutFactor = 3
)

// Init はアプリケーションの初期化を行う。
// .envを読み込んでから環境変数でConfigを構築し、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envと環境変数から設定を読み込む
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再セットアップ
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。SIGINTまたはSIGTERMでグレースフルシャットダウンする。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, w, args)
}

// RunContext はctxのキャンセルで停止するRun。
func RunContext(ctx context.Context, w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandRollback:
		steps, err := ParseRollbackSteps(args)
		if err != nil {
			return err
		}
		return runRollback(cfg, steps)
	default:
		return runServe(ctx, cfg)
	}
}

// openDatabase はDB接続を開き疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*repositorySet, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")
	repos := newRepositorySet(db)
	repos.jobs.SetLease(cfg.JobLease)
	return repos, nil
}

// newRegistry はGoランタイムとプロセスのメトリクスを登録したレジストリを返す。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe は運用APIサーバーモードで起動する。
func runServe(ctx context.Context, cfg *config.Config) error {
	repos, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.db.Close()

	reg := newRegistry()
	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(), slog.Default())
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		HealthChecker:    repos.db,
		MetricsHandler:   metrics.Handler(reg),
		Trackers:         repos.trackers,
		History:          repos.observations,
		Queue:            repos.jobs,
		CheckRateLimiter: rateLimiter,
		Logger:           slog.Default(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilDone(ctx, server, "API server")
}

// serveUntilDone はctxがキャンセルされるまでserverを動かし、その後グレースフルに停止する。
func serveUntilDone(ctx context.Context, server *http.Server, name string) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("%s listen error: %w", name, err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down " + name + "...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}
	slog.Info(name + " stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// スケジューラ、ワーカープール、非同期通知、終了済みジョブのクリーンアップ、
// メトリクス公開用のHTTPサーバーを動かし、シグナル受信で全て停止する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	repos, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.db.Close()

	// いずれかのコンポーネントが異常終了した場合は全体を停止する
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := slog.Default()
	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	// 1. 取得
	guard := security.NewURLGuard()
	httpFetcher := fetcher.NewHTTPFetcher(
		guard.NewSafeClient(cfg.FetchTimeout),
		guard,
		fetcher.NewHostLimiter(cfg.FetchHostRPS),
		collector,
		log,
		fetcher.Options{
			MaxAttempts: cfg.FetchMaxRetries,
			BackoffBase: cfg.FetchBackoffBase,
			MaxBodySize: cfg.FetchMaxSize,
		},
	)
	var pageFetcher fetcher.Fetcher = httpFetcher
	if cfg.HeadlessEnabled {
		renderer := fetcher.NewHeadlessRenderer(cfg.HeadlessBin, cfg.FetchTimeout*headlessTimeoutFactor, guard, log)
		defer renderer.Close()
		pageFetcher = fetcher.NewFallbackFetcher(httpFetcher, renderer, collector, log)
		log.Info("headless fallback enabled")
	}

	// 2. 通知
	mailer := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		Timeout:  smtpTimeout,
	})
	notifier := notify.NewAsyncNotifier(notify.NewEmailNotifier(mailer, collector, log), cfg.NotifyQueueSize, log)
	// 通知ループはワーカー停止後に止め、実行中のジョブが積んだ通知も送り切る
	notifyCtx, stopNotify := context.WithCancel(context.WithoutCancel(ctx))
	defer stopNotify()
	notifier.Start(notifyCtx)

	// 3. 価格チェック
	checker := pricecheck.NewChecker(
		repos.trackers,
		repos.observations,
		repos.users,
		pageFetcher,
		scraper.NewDefaultRegistry(security.NewTextSanitizer()),
		alert.NewEvaluator(cfg.PriceDropThreshold),
		notifier,
		collector,
		log,
	)
	policy := pricecheck.RetryPolicy{MaxRetries: cfg.JobMaxRetries, Delay: cfg.JobRetryDelay}
	worker := pricecheck.NewWorker(repos.jobs, checker, policy, collector, log, cfg.WorkerConcurrency)
	worker.SetJobTimeout(cfg.JobLease / 2)
	scheduler := pricecheck.NewScheduler(repos.trackers, repos.jobs, collector, log)
	scheduler.SetPollingBounds(cfg.PollingBounds())

	// 4. 保守
	jobCleanup := cleanup.NewJobCleanup(repos.db, log, cfg.QueueRetentionDays)

	log.Info("worker starting",
		slog.Duration("scheduler_interval", cfg.SchedulerInterval),
		slog.Duration("poll_interval", cfg.WorkerPollInterval),
		slog.Int("concurrency", cfg.WorkerConcurrency),
	)

	var wg sync.WaitGroup
	errCh := make(chan error, 4)
	goRun := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				errCh <- err
				cancel()
			}
		}()
	}

	goRun(func() error { return scheduler.Start(ctx, cfg.SchedulerInterval) })
	goRun(func() error { worker.Start(ctx, cfg.WorkerPollInterval); return nil })
	goRun(func() error { return jobCleanup.Start(ctx, cfg.CleanupSchedule) })
	goRun(func() error {
		server := &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           metrics.Handler(reg),
			ReadHeaderTimeout: 10 * time.Second,
		}
		return serveUntilDone(ctx, server, "metrics server")
	})

	wg.Wait()
	close(errCh)

	stopNotify()
	notifier.Wait()

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	log.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runRollback はマイグレーションをstepsだけ戻す。
func runRollback(cfg *config.Config, steps int) error {
	slog.Info("rolling back database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Int("steps", steps),
	)

	if err := database.RollbackMigrations(cfg.DatabaseURL, steps); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	slog.Info("database rollback completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}

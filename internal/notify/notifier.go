package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/salescout/internal/metrics"
	"github.com/hitoshi/salescout/internal/model"
)

// Notifier はアラート通知を送る。
type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

// EmailNotifier はMessageからメールを組み立ててMailerで送信する。
type EmailNotifier struct {
	mailer  Mailer
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

var _ Notifier = (*EmailNotifier)(nil)

// NewEmailNotifier はEmailNotifierを生成する。
func NewEmailNotifier(mailer Mailer, m metrics.MetricsCollector, logger *slog.Logger) *EmailNotifier {
	if m == nil {
		m = metrics.Nop{}
	}
	return &EmailNotifier{mailer: mailer, metrics: m, logger: logger}
}

// Notify は通知メールを送信する。失敗した場合は*model.NotifyErrorを返す。
func (n *EmailNotifier) Notify(ctx context.Context, m Message) error {
	err := n.mailer.Send(ctx, m.To, BuildSubject(m.Reason), BuildBody(m))
	n.metrics.RecordNotification(err == nil)
	if err != nil {
		n.logger.Error("通知メールの送信に失敗しました",
			slog.String("to", m.To),
			slog.String("url", m.URL),
			slog.String("reason", m.Reason),
			slog.String("error", err.Error()),
		)
		return &model.NotifyError{To: m.To, Err: err}
	}

	n.logger.Info("通知メールを送信しました",
		slog.String("to", m.To),
		slog.String("url", m.URL),
		slog.String("reason", m.Reason),
	)
	return nil
}

// AsyncNotifier は通知をバッファに積み、バックグラウンドで順に送信する。
// 価格チェックジョブがSMTPの遅延で詰まらないようにする。
type AsyncNotifier struct {
	next         Notifier
	queue        chan Message
	logger       *slog.Logger
	sendTimeout  time.Duration
	drainTimeout time.Duration

	wg sync.WaitGroup
}

var _ Notifier = (*AsyncNotifier)(nil)

// NewAsyncNotifier はバッファサイズsizeのAsyncNotifierを生成する。
// 送信を始めるにはStartを呼ぶ。
func NewAsyncNotifier(next Notifier, size int, logger *slog.Logger) *AsyncNotifier {
	if size < 1 {
		size = 1
	}
	return &AsyncNotifier{
		next:         next,
		queue:        make(chan Message, size),
		logger:       logger,
		sendTimeout:  30 * time.Second,
		drainTimeout: 30 * time.Second,
	}
}

// Notify は通知をバッファに積む。バッファが満杯の場合は破棄してログに残す。
// 送信結果は呼び出し元に返らない。
func (a *AsyncNotifier) Notify(_ context.Context, m Message) error {
	select {
	case a.queue <- m:
	default:
		a.logger.Warn("通知バッファが満杯のため通知を破棄しました",
			slog.String("to", m.To),
			slog.String("url", m.URL),
			slog.String("reason", m.Reason),
		)
	}
	return nil
}

// Start は送信ループをゴルーチンで開始する。
// ctxがキャンセルされるとバッファに残った通知を送信してから終了する。
// 送信中の通知はctxのキャンセルで中断せず、sendTimeoutまで待つ。
func (a *AsyncNotifier) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-ctx.Done():
				a.drain()
				return
			case m := <-a.queue:
				a.send(ctx, m)
			}
		}
	}()
}

func (a *AsyncNotifier) send(ctx context.Context, m Message) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.sendTimeout)
	defer cancel()
	// 失敗はnext側でログ出力済み
	_ = a.next.Notify(sendCtx, m)
}

func (a *AsyncNotifier) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), a.drainTimeout)
	defer cancel()
	for {
		select {
		case m := <-a.queue:
			_ = a.next.Notify(ctx, m)
		default:
			return
		}
	}
}

// Wait は送信ループの終了を待つ。
func (a *AsyncNotifier) Wait() {
	a.wg.Wait()
}

package pricecheck

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/salescout/internal/model"
	"github.com/hitoshi/salescout/internal/notify"
)

// --- モック定義 ---

// mockTrackerRepo はTrackerRepositoryのテスト用モック。
type mockTrackerRepo struct {
	listActiveFunc    func(ctx context.Context) ([]*model.Tracker, error)
	findByIDFunc      func(ctx context.Context, id int64) (*model.Tracker, error)
	updateDetailsFunc func(ctx context.Context, id int64, title, imageURL string) error
}

func (m *mockTrackerRepo) ListActive(ctx context.Context) ([]*model.Tracker, error) {
	if m.listActiveFunc != nil {
		return m.listActiveFunc(ctx)
	}
	return nil, nil
}

func (m *mockTrackerRepo) FindByID(ctx context.Context, id int64) (*model.Tracker, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockTrackerRepo) UpdateDetails(ctx context.Context, id int64, title, imageURL string) error {
	if m.updateDetailsFunc != nil {
		return m.updateDetailsFunc(ctx, id, title, imageURL)
	}
	return nil
}

// mockObservationRepo はObservationRepositoryのテスト用モック。
type mockObservationRepo struct {
	recordFunc           func(ctx context.Context, rec model.ObservationRecord) (*model.PriceObservation, error)
	mostRecentBeforeFunc func(ctx context.Context, trackerID int64, cutoff time.Time) (*model.PriceObservation, error)
	listByTrackerFunc    func(ctx context.Context, trackerID int64, limit int) ([]*model.PriceObservation, error)
}

func (m *mockObservationRepo) Record(ctx context.Context, rec model.ObservationRecord) (*model.PriceObservation, error) {
	if m.recordFunc != nil {
		return m.recordFunc(ctx, rec)
	}
	return &model.PriceObservation{ID: 1, TrackerID: rec.TrackerID, Price: rec.Price, CheckedAt: rec.CheckedAt}, nil
}

func (m *mockObservationRepo) MostRecentBefore(ctx context.Context, trackerID int64, cutoff time.Time) (*model.PriceObservation, error) {
	if m.mostRecentBeforeFunc != nil {
		return m.mostRecentBeforeFunc(ctx, trackerID, cutoff)
	}
	return nil, nil
}

func (m *mockObservationRepo) ListByTracker(ctx context.Context, trackerID int64, limit int) ([]*model.PriceObservation, error) {
	if m.listByTrackerFunc != nil {
		return m.listByTrackerFunc(ctx, trackerID, limit)
	}
	return nil, nil
}

// mockUserRepo はUserRepositoryのテスト用モック。
type mockUserRepo struct {
	findByIDFunc func(ctx context.Context, id int64) (*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return &model.User{ID: id, Email: "buyer@example.com"}, nil
}

// mockFetcher はfetcher.Fetcherのテスト用モック。
type mockFetcher struct {
	fetchFunc func(ctx context.Context, url string) (string, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, url)
	}
	return "", nil
}

// recordingNotifier は送信されたメッセージを記録するNotifier。
type recordingNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, m notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, m)
	return n.err
}

func (n *recordingNotifier) sent() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Message(nil), n.messages...)
}

// mockChecker はTrackerCheckerのテスト用モック。
type mockChecker struct {
	checkFunc func(ctx context.Context, trackerID int64) error
}

func (m *mockChecker) Check(ctx context.Context, trackerID int64) error {
	if m.checkFunc != nil {
		return m.checkFunc(ctx, trackerID)
	}
	return nil
}

// --- ヘルパー ---

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func ptr(v float64) *float64 { return &v }

// amazonPage は指定した価格表記を持つAmazon商品ページのHTMLを返す。
func amazonPage(priceText string) string {
	return `<html><head><meta property="og:image" content="https://m.media-amazon.com/images/I/shoe.jpg"></head>
<body><span id="productTitle">  Running Shoes  </span>
<span id="priceblock_ourprice">` + priceText + `</span></body></html>`
}

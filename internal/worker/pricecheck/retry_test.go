package pricecheck

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hitoshi/salescout/internal/model"
)

func TestRetryPolicy_Decide(t *testing.T) {
	policy := DefaultRetryPolicy()
	fetchErr := &model.FetchError{URL: "https://www.amazon.in/dp/X", Attempts: 3, Err: errors.New("timeout")}

	tests := []struct {
		name     string
		err      error
		attempts int
		want     Decision
	}{
		{"成功", nil, 1, DecisionComplete},
		{"無効なトラッカー", model.ErrTrackerInactive, 1, DecisionSkip},
		{"未対応サイト", fmt.Errorf("wrap: %w", model.ErrUnknownPlatform), 4, DecisionSkip},
		{"初回の取得失敗", fetchErr, 1, DecisionRetry},
		{"3回目の価格抽出失敗", model.ErrPriceUnavailable, 3, DecisionRetry},
		{"リトライ上限超過", fetchErr, 4, DecisionFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.Decide(tt.err, tt.attempts); got != tt.want {
				t.Errorf("Decide() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", p.MaxRetries)
	}
	if p.Delay != DefaultRetryDelay {
		t.Errorf("Delay = %v, want %v", p.Delay, DefaultRetryDelay)
	}
}

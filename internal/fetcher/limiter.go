package fetcher

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter は取得先ホストごとのリクエストレートを制限する。
// 同一ECサイトへの同時多発リクエストでブロックされるのを防ぐ。
type HostLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostLimiter はホストあたりrps件/秒のHostLimiterを生成する。
// rpsが0以下の場合は制限しない。
func NewHostLimiter(rps float64) *HostLimiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &HostLimiter{
		limit:    limit,
		burst:    1,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait はURLのホストに対する送信枠が空くまで待機する。
// ctxがキャンセルされた場合はエラーを返す。
func (h *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	if h == nil || h.limit == rate.Inf {
		return nil
	}
	return h.limiterFor(hostOf(rawURL)).Wait(ctx)
}

func (h *HostLimiter) limiterFor(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(h.limit, h.burst)
		h.limiters[host] = l
	}
	return l
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

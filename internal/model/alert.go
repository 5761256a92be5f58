package model

// AlertKind は通知の発火理由。
type AlertKind string

const (
	// AlertTargetReached は現在価格が目標価格以下になったことを示す。
	AlertTargetReached AlertKind = "target_reached"
	// AlertPriceDrop は前日比で閾値以上値下がりしたことを示す。
	AlertPriceDrop AlertKind = "price_drop"
)

// AlertDecision はアラート評価の結果1件分。
// 1回のチェックで0〜2件生成され、それぞれが独立した通知になる。
type AlertDecision struct {
	Kind          AlertKind
	OldPrice      *float64
	NewPrice      float64
	PercentChange float64
	Reason        string
}

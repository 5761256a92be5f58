// Package alert は価格観測結果から通知すべきアラートを判定する。
package alert

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/salescout/internal/model"
	"github.com/hitoshi/salescout/internal/price"
)

// DefaultDropThresholdPercent は値下がりアラートのデフォルト閾値（%）。
const DefaultDropThresholdPercent = 5.0

// priorDayWindow は値下がり判定で比較する過去観測の基準時間。
const priorDayWindow = 24 * time.Hour

// PriorDayCutoff は値下がり判定で比較対象とする観測の上限時刻を返す。
// この時刻以前で最も新しい観測が比較対象となる。
func PriorDayCutoff(now time.Time) time.Time {
	return now.Add(-priorDayWindow)
}

// Evaluator はアラート判定を行う。状態を持たない。
type Evaluator struct {
	dropThreshold float64
}

// NewEvaluator は値下がり閾値（%）を指定してEvaluatorを生成する。
// 0以下を指定した場合はDefaultDropThresholdPercentを使う。
func NewEvaluator(dropThresholdPercent float64) *Evaluator {
	if dropThresholdPercent <= 0 {
		dropThresholdPercent = DefaultDropThresholdPercent
	}
	return &Evaluator{dropThreshold: dropThresholdPercent}
}

// Evaluate は新しい価格に対して発火するアラートを返す。
//
// trackerは今回の観測を記録する前の状態を渡す。目標価格アラートの旧価格には
// tracker.LastPriceを使う。priorはPriorDayCutoff以前の最新観測で、存在しなければnil。
//
// 目標価格アラートと値下がりアラートは独立に判定し、両方発火した場合は
// 目標価格アラート、値下がりアラートの順で返す。
func (e *Evaluator) Evaluate(tracker *model.Tracker, prior *model.PriceObservation, newPrice float64) []model.AlertDecision {
	var decisions []model.AlertDecision

	if newPrice <= tracker.TargetPrice {
		decisions = append(decisions, model.AlertDecision{
			Kind:     model.AlertTargetReached,
			OldPrice: tracker.LastPrice,
			NewPrice: newPrice,
			Reason:   "Target price reached",
		})
	}

	if prior != nil {
		pct := price.PercentChange(prior.Price, newPrice)
		if pct <= -e.dropThreshold {
			old := prior.Price
			decisions = append(decisions, model.AlertDecision{
				Kind:          model.AlertPriceDrop,
				OldPrice:      &old,
				NewPrice:      newPrice,
				PercentChange: pct,
				Reason:        fmt.Sprintf("Price dropped %s%% since yesterday", formatPercent(math.Abs(pct))),
			})
		}
	}

	return decisions
}

// formatPercent は変化率を "10.0"、"33.33" の形式で整形する。
// 整数値でも小数点以下1桁を付ける。
func formatPercent(v float64) string {
	s := strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

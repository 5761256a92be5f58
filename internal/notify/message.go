// Package notify は価格アラートのメール通知を提供する。
package notify

import (
	"strings"

	"github.com/hitoshi/salescout/internal/price"
)

// footer は全ての通知メール本文の末尾に付く定型文。
const footer = "You are receiving this because you set a tracker in SaleScout."

// Message は1件のアラート通知の内容。
type Message struct {
	To           string
	ProductTitle string
	OldPrice     *float64
	NewPrice     float64
	URL          string
	Reason       string
}

// BuildSubject は通知メールの件名を生成する。
func BuildSubject(reason string) string {
	return "SaleScout Alert: " + reason
}

// BuildBody は通知メールのプレーンテキスト本文を生成する。
// 同じMessageからは常に同じ本文が生成される。
func BuildBody(m Message) string {
	lines := []string{
		"Product: " + m.ProductTitle,
		"Current Price: " + price.Format(m.NewPrice),
	}
	if m.OldPrice != nil {
		lines = append(lines, "Previous Price: "+price.Format(*m.OldPrice))
	}
	lines = append(lines, "Link: "+m.URL)
	lines = append(lines, "\n"+footer)
	return strings.Join(lines, "\n")
}

// Package price は価格文字列の解析・変化率計算・表示整形を提供する。
// 金額計算はshopspring/decimalで行い、浮動小数点の丸め誤差を避ける。
package price

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// 通貨記号・桁区切り・空白
	noisePattern = regexp.MustCompile(`[\p{Sc},\s]`)
	// "Rs" / "Rs." / "rs."
	rupeeAbbrPattern = regexp.MustCompile(`[Rr]s\.?`)
	numberPattern    = regexp.MustCompile(`\d+\.?\d*`)
)

// Parse は価格表記の文字列から数値を抽出する。
// 通貨記号・"Rs."・桁区切りカンマ・空白を除去し、最初の数値部分を採用する。
// 数値が見つからない場合はfalseを返す。
func Parse(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	cleaned := noisePattern.ReplaceAllString(text, "")
	cleaned = rupeeAbbrPattern.ReplaceAllString(cleaned, "")

	m := numberPattern.FindString(cleaned)
	if m == "" {
		return 0, false
	}
	// "1299." のような末尾のドットは整数として扱う
	m = strings.TrimSuffix(m, ".")

	d, err := decimal.NewFromString(m)
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

// PercentChange は旧価格から新価格への変化率（%）を小数第2位で丸めて返す。
// 旧価格が0の場合は0を返す。値下がりは負の値になる。
func PercentChange(oldPrice, newPrice float64) float64 {
	if oldPrice == 0 {
		return 0
	}
	o := decimal.NewFromFloat(oldPrice)
	n := decimal.NewFromFloat(newPrice)
	pct := n.Sub(o).Div(o).Mul(decimal.NewFromInt(100)).Round(2)
	f, _ := pct.Float64()
	return f
}

// Format は価格を "₹1,234.50" 形式の表示文字列に整形する。
func Format(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	return "₹" + sign + groupThousands(intPart) + "." + frac
}

func groupThousands(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

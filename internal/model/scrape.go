package model

// Platform は商品URLが属するECサイトを表す。
type Platform string

const (
	// PlatformAmazon はAmazon。
	PlatformAmazon Platform = "amazon"
	// PlatformFlipkart はFlipkart。
	PlatformFlipkart Platform = "flipkart"
	// PlatformUnknown は未対応サイト。
	PlatformUnknown Platform = "unknown"
)

// ExtractionResult は商品ページから抽出した値。永続化はされない。
// 取得できなかったフィールドは空文字列またはnilになる。
type ExtractionResult struct {
	Title    string
	ImageURL string
	Price    *float64
}

// HasPrice は価格が抽出できたかを返す。
func (r ExtractionResult) HasPrice() bool {
	return r.Price != nil
}

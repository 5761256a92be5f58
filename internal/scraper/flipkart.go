package scraper

import (
	"github.com/hitoshi/salescout/internal/model"
	"github.com/hitoshi/salescout/internal/security"
)

// Flipkartのクラス名は難読化されておりデザイン変更で頻繁に変わる。
var flipkartRules = siteRules{
	title: []selectorRule{
		text("span.B_NuCI"),
		text("h1.yhB1nd"),
		text("span.VU-ZEz"),
		attr("meta[property='og:title']", "content"),
	},
	image: []selectorRule{
		attr("img._396cs4._2amPTt._3qGmMb._3exPp9", "src"),
		attr("img._396cs4._2amPTt._3qGmMb", "src"),
		attr("img._396cs4", "src"),
		attr("div.CXW8mj img", "src"),
		attr("meta[property='og:image']", "content"),
	},
	price: []selectorRule{
		text("div._30jeq3._16Jk6d"),
		text("div._25b18c div._30jeq3"),
		text("div._30jeq3"),
		text("._16Jk6d"),
		attr("meta[property='product:price:amount']", "content"),
	},
}

// NewFlipkartExtractor はFlipkart商品ページ用のExtractorを生成する。
func NewFlipkartExtractor(sanitizer *security.TextSanitizer) Extractor {
	return &ruleExtractor{platform: model.PlatformFlipkart, rules: flipkartRules, sanitizer: sanitizer}
}

package scraper

import (
	"github.com/hitoshi/salescout/internal/model"
	"github.com/hitoshi/salescout/internal/security"
)

var amazonRules = siteRules{
	title: []selectorRule{
		text("#productTitle"),
		text("span#title"),
		text("h1.a-size-large"),
		text("span.a-size-large.product-title-word-break"),
		attr("meta[property='og:title']", "content"),
	},
	image: []selectorRule{
		attr("#landingImage", "src"),
		attr("#imgBlkFront", "src"),
		attr("#ebooksImgBlkFront", "src"),
		attr("img.a-dynamic-image", "src"),
		attr("meta[property='og:image']", "content"),
	},
	price: []selectorRule{
		text("#priceblock_ourprice"),
		text("#priceblock_dealprice"),
		text("#price_inside_buybox"),
		text("#priceblock_saleprice"),
		text("span.a-price.a-text-price span.a-offscreen"),
		text("span.a-price-whole"),
		attr("meta[property='product:price:amount']", "content"),
	},
}

// NewAmazonExtractor はAmazon商品ページ用のExtractorを生成する。
func NewAmazonExtractor(sanitizer *security.TextSanitizer) Extractor {
	return &ruleExtractor{platform: model.PlatformAmazon, rules: amazonRules, sanitizer: sanitizer}
}

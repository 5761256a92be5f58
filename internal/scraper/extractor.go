package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/salescout/internal/model"
	"github.com/hitoshi/salescout/internal/price"
	"github.com/hitoshi/salescout/internal/security"
)

// Extractor は1つのECサイトの商品ページから商品情報を抽出する。
// 抽出は失敗しない。見つからないフィールドは空のまま返す。
type Extractor interface {
	Platform() model.Platform
	Extract(content string) model.ExtractionResult
}

// selectorRule はCSSセレクタと値の取り出し方の組。
// attrが空の場合は要素のテキストを使う。
type selectorRule struct {
	selector string
	attr     string
}

func text(sel string) selectorRule       { return selectorRule{selector: sel} }
func attr(sel, name string) selectorRule { return selectorRule{selector: sel, attr: name} }

// siteRules はサイトごとのフィールド別セレクタ一覧。先頭から順に試行する。
type siteRules struct {
	title []selectorRule
	image []selectorRule
	price []selectorRule
}

// ruleExtractor はsiteRulesに従って抽出するExtractorの共通実装。
type ruleExtractor struct {
	platform  model.Platform
	rules     siteRules
	sanitizer *security.TextSanitizer
}

// Platform はこのExtractorが対応するECサイトを返す。
func (e *ruleExtractor) Platform() model.Platform {
	return e.platform
}

// Extract は商品ページHTMLからタイトル・画像URL・価格を抽出する。
// 価格はテキストを解析できた最初のセレクタの値を採用する。
func (e *ruleExtractor) Extract(content string) model.ExtractionResult {
	var result model.ExtractionResult
	if strings.TrimSpace(content) == "" {
		return result
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return result
	}

	for _, r := range e.rules.title {
		if v := e.sanitizer.Text(r.value(doc)); v != "" {
			result.Title = v
			break
		}
	}
	for _, r := range e.rules.image {
		if v := e.sanitizer.ImageURL(r.value(doc)); v != "" {
			result.ImageURL = v
			break
		}
	}
	for _, r := range e.rules.price {
		if p, ok := price.Parse(r.value(doc)); ok {
			result.Price = &p
			break
		}
	}
	return result
}

func (r selectorRule) value(doc *goquery.Document) string {
	sel := doc.Find(r.selector).First()
	if sel.Length() == 0 {
		return ""
	}
	if r.attr == "" {
		return strings.TrimSpace(sel.Text())
	}
	v, _ := sel.Attr(r.attr)
	return strings.TrimSpace(v)
}

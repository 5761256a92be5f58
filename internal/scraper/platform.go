// Package scraper はECサイトの商品ページHTMLから商品情報を抽出する。
package scraper

import (
	"net/url"
	"strings"

	"github.com/hitoshi/salescout/internal/model"
)

// ClassifyPlatform は商品URLのホスト名からECサイトを判定する。
// ホスト名に"amazon"を含めばAmazon、"flipkart"を含めばFlipkartとする。
// URLとして解釈できない場合はPlatformUnknownを返す。
func ClassifyPlatform(rawURL string) model.Platform {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return model.PlatformUnknown
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case strings.Contains(host, "amazon"):
		return model.PlatformAmazon
	case strings.Contains(host, "flipkart"):
		return model.PlatformFlipkart
	default:
		return model.PlatformUnknown
	}
}

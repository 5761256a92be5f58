package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は商品ページから抽出したテキストを保存用に整える。
// 商品タイトルはメール本文に埋め込まれるため、タグを全て除去したプレーンテキストにする。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はタグを一切許可しないポリシーでTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Text はHTMLタグを除去し、エンティティを戻して空白を1つに畳んだ文字列を返す。
func (s *TextSanitizer) Text(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	return strings.Join(strings.Fields(html.UnescapeString(stripped)), " ")
}

// ImageURL は画像URLがhttp/httpsの絶対URLであればそのまま返し、それ以外は空文字列を返す。
// "//cdn.example.com/a.jpg" のようなスキーム相対URLはhttpsとして補完する。
func (s *TextSanitizer) ImageURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

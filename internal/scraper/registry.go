package scraper

import (
	"github.com/hitoshi/salescout/internal/model"
	"github.com/hitoshi/salescout/internal/security"
)

// Registry はECサイトごとのExtractorを保持する。
type Registry struct {
	extractors map[model.Platform]Extractor
}

// NewRegistry は指定されたExtractorを登録したRegistryを生成する。
func NewRegistry(extractors ...Extractor) *Registry {
	m := make(map[model.Platform]Extractor, len(extractors))
	for _, e := range extractors {
		m[e.Platform()] = e
	}
	return &Registry{extractors: m}
}

// NewDefaultRegistry はAmazonとFlipkartのExtractorを登録したRegistryを生成する。
func NewDefaultRegistry(sanitizer *security.TextSanitizer) *Registry {
	return NewRegistry(NewAmazonExtractor(sanitizer), NewFlipkartExtractor(sanitizer))
}

// ForPlatform はECサイトに対応するExtractorを返す。未対応の場合はnil, falseを返す。
func (r *Registry) ForPlatform(p model.Platform) (Extractor, bool) {
	e, ok := r.extractors[p]
	return e, ok
}

package extractor

import (
	"net/url"

	"github.com/frigov/sicrawler/pkg/failure"
	"golang.org/x/net/html"
)

// ExtractionResult holds the extraction outcome.
// DocumentRoot is the original parsed HTML document.
// ContentNode is the extracted meaningful content node (semantic container).
type ExtractionResult struct {
	DocumentRoot *html.Node
	ContentNode  *html.Node
}

// Extractor defines the interface for pulling a meaningful content node out
// of a fetched HTML document.
type Extractor interface {
	Extract(sourceUrl url.URL, htmlByte []byte) (ExtractionResult, failure.ClassifiedError)
	SetExtractParam(params ExtractParam)
}

// Compile-time interface check
var _ Extractor = (*DomExtractor)(nil)

// SetExtractParam replaces the scoring parameters the extractor uses to pick
// between a semantic container and body-level fallback.
func (d *DomExtractor) SetExtractParam(params ExtractParam) {
	d.params = params
}

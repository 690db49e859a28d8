package extractor

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/frigov/sicrawler/internal/crawl"
	"github.com/frigov/sicrawler/internal/metadata"
	"github.com/frigov/sicrawler/pkg/failure"
	"github.com/frigov/sicrawler/pkg/urlutil"
	"golang.org/x/net/html"
)

/*
LinkImageExtractor implements §4.7: pull every outbound link edge and image
descriptor out of an HTML PageRaw. It reuses the same goquery selector-pass
idiom as mdconvert's extractLinkRefs/toLinkRef, extended with the mailto
skip, data: URI handling, and onclick URL-scanning §4.7 additionally
requires.
*/

// onclickURLPattern finds bare URLs embedded in an onclick handler's text -
// the same heuristic the original crawler used for JS-driven navigation
// that a plain href never carries.
var onclickURLPattern = regexp.MustCompile(`(?i)\b(?:https?://|www\.|/)\S+\b`)

// dataImagePrefixPattern isolates the media-type-plus-encoding prefix of a
// data: URI, up to and including the comma that starts the payload.
var dataImagePrefixPattern = regexp.MustCompile(`(data:image/[^,;]*;?[^,]*),`)

const maxDataImageContentType = 255

// LinkImageExtractor parses an HTML PageRaw body and emits the link edges
// and image descriptors it contains.
type LinkImageExtractor struct {
	metadataSink metadata.MetadataSink
}

// NewLinkImageExtractor builds a LinkImageExtractor reporting through sink.
func NewLinkImageExtractor(metadataSink metadata.MetadataSink) LinkImageExtractor {
	return LinkImageExtractor{metadataSink: metadataSink}
}

// Extract parses page's body and returns every link edge and image
// descriptor §4.7 defines, in document order. page must be classified HTML.
func (e LinkImageExtractor) Extract(page crawl.HTMLPage) ([]crawl.LinkEdge, []crawl.ImageDescriptor, failure.ClassifiedError) {
	pageURL := page.URL()

	doc, err := html.Parse(bytes.NewReader(page.Body))
	if err != nil {
		extractionErr := &ExtractionError{
			Message:   fmt.Sprintf("failed to parse HTML: %v", err),
			Retryable: false,
			Cause:     ErrCauseNotHTML,
		}
		e.metadataSink.RecordError(
			time.Now(),
			"extractor",
			"LinkImageExtractor.Extract",
			mapExtractionErrorToMetadataCause(extractionErr),
			err.Error(),
			[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, pageURL.String())},
		)
		return nil, nil, extractionErr
	}

	gqDoc := goquery.NewDocumentFromNode(doc)
	accessedAt := page.AccessedAt()

	var links []crawl.LinkEdge
	var images []crawl.ImageDescriptor

	gqDoc.Find("a[href], img[src], [onclick]").Each(func(i int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "a":
			if href, ok := s.Attr("href"); ok {
				if edge, ok := resolveLinkEdge(pageURL, href); ok {
					links = append(links, edge)
				}
			}
		case "img":
			if src, ok := s.Attr("src"); ok {
				images = append(images, resolveImageDescriptor(pageURL, src, accessedAt))
			}
		}

		if onclick, ok := s.Attr("onclick"); ok {
			for _, match := range onclickURLPattern.FindAllString(onclick, -1) {
				if edge, ok := resolveLinkEdge(pageURL, match); ok {
					links = append(links, edge)
				}
			}
		}
	})

	return links, images, nil
}

// resolveLinkEdge resolves href against pageURL and canonicalizes it,
// skipping absent or mailto: references per §4.7.
func resolveLinkEdge(pageURL url.URL, href string) (crawl.LinkEdge, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(strings.ToLower(href), "mailto:") {
		return crawl.LinkEdge{}, false
	}

	resolved, err := urlutil.Resolve(pageURL, href)
	if err != nil {
		return crawl.LinkEdge{}, false
	}
	canonical := urlutil.Canonicalize(resolved)

	return crawl.LinkEdge{From: pageURL.String(), To: canonical.String()}, true
}

// resolveImageDescriptor builds the ImageDescriptor for one <img src>,
// handling the data:image case separately per §4.7.
func resolveImageDescriptor(pageURL url.URL, src string, accessedAt time.Time) crawl.ImageDescriptor {
	src = strings.TrimSpace(src)

	if strings.HasPrefix(strings.ToLower(src), "data:image") {
		contentType := ""
		if match := dataImagePrefixPattern.FindStringSubmatch(src); len(match) > 1 {
			contentType = match[1]
		}
		if len(contentType) >= maxDataImageContentType {
			contentType = ""
		}
		return crawl.ImageDescriptor{Filename: "BINARY DATA", ContentType: contentType, AccessedAt: accessedAt}
	}

	resolved, err := urlutil.Resolve(pageURL, src)
	filename := src
	contentType := ""
	if err == nil {
		canonical := urlutil.Canonicalize(resolved)
		filename = canonical.String()
		contentType = strings.TrimPrefix(pathExt(canonical.Path), ".")
	}

	return crawl.ImageDescriptor{Filename: filename, ContentType: contentType, AccessedAt: accessedAt}
}

func pathExt(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx == -1 {
		return ""
	}
	return path[idx:]
}

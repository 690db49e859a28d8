package extractor_test

import (
	"strings"
	"testing"
	"time"

	"github.com/frigov/sicrawler/internal/crawl"
	"github.com/frigov/sicrawler/internal/extractor"
	"github.com/frigov/sicrawler/internal/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHTMLPage(t *testing.T, rawURL string, body string) crawl.HTMLPage {
	t.Helper()
	u := mustParseURL(t, rawURL)
	return crawl.NewHTMLPage(u, 200, time.Time{}, []byte(body), "")
}

func TestLinkImageExtractor_SkipsMailtoAndAbsentHref(t *testing.T) {
	x := extractor.NewLinkImageExtractor(&metadata.NoopSink{})
	page := newTestHTMLPage(t, "https://example.gov.si/page", `
		<html><body>
			<a href="mailto:someone@example.gov.si">mail</a>
			<a>no href</a>
			<a href="/about">about</a>
		</body></html>
	`)

	links, _, err := x.Extract(page)
	require.Nil(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "https://example.gov.si/about", links[0].To)
	assert.Equal(t, "https://example.gov.si/page", links[0].From)
}

func TestLinkImageExtractor_ResolvesAndCanonicalizesRelativeLinks(t *testing.T) {
	x := extractor.NewLinkImageExtractor(&metadata.NoopSink{})
	page := newTestHTMLPage(t, "https://example.gov.si/docs/index.html", `
		<html><body><a href="../other.html">other</a></body></html>
	`)

	links, _, err := x.Extract(page)
	require.Nil(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "https://example.gov.si/other.html", links[0].To)
}

func TestLinkImageExtractor_NormalImageUsesFileExtensionAsContentType(t *testing.T) {
	x := extractor.NewLinkImageExtractor(&metadata.NoopSink{})
	page := newTestHTMLPage(t, "https://example.gov.si/page", `
		<html><body><img src="/assets/logo.png"></body></html>
	`)

	_, images, err := x.Extract(page)
	require.Nil(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "png", images[0].ContentType)
	assert.Equal(t, "https://example.gov.si/assets/logo.png", images[0].Filename)
}

func TestLinkImageExtractor_DataImageShortPrefixIsKept(t *testing.T) {
	x := extractor.NewLinkImageExtractor(&metadata.NoopSink{})
	page := newTestHTMLPage(t, "https://example.gov.si/page", `
		<html><body><img src="data:image/png;base64,iVBORw0KGgo="></body></html>
	`)

	_, images, err := x.Extract(page)
	require.Nil(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "BINARY DATA", images[0].Filename)
	assert.Equal(t, "data:image/png;base64", images[0].ContentType)
}

func TestLinkImageExtractor_DataImageLongPrefixIsBlanked(t *testing.T) {
	x := extractor.NewLinkImageExtractor(&metadata.NoopSink{})
	longParams := strings.Repeat("x", 260)
	page := newTestHTMLPage(t, "https://example.gov.si/page", `
		<html><body><img src="data:image/png;`+longParams+`,iVBORw0KGgo="></body></html>
	`)

	_, images, err := x.Extract(page)
	require.Nil(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "BINARY DATA", images[0].Filename)
	assert.Empty(t, images[0].ContentType)
}

func TestLinkImageExtractor_OnclickURLsAreExtractedAsLinkEdges(t *testing.T) {
	x := extractor.NewLinkImageExtractor(&metadata.NoopSink{})
	page := newTestHTMLPage(t, "https://example.gov.si/page", `
		<html><body>
			<div onclick="window.location.href='https://example.gov.si/target'">click</div>
			<div onclick="mailto:someone@example.gov.si">mail</div>
		</body></html>
	`)

	links, _, err := x.Extract(page)
	require.Nil(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "https://example.gov.si/target", links[0].To)
}

func TestLinkImageExtractor_MalformedBodyStillParsesLeniently(t *testing.T) {
	x := extractor.NewLinkImageExtractor(&metadata.NoopSink{})
	page := newTestHTMLPage(t, "https://example.gov.si/page", `<html><body><a href="/x">x</html>`)

	links, _, err := x.Extract(page)
	require.Nil(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "https://example.gov.si/x", links[0].To)
}

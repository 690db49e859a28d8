// Package store defines the external persistence boundary the crawl core
// consumes. Per §1, the relational store itself is an external collaborator
// - this package only pins down the Go interface (§6) and ships an
// in-memory reference implementation, which the scheduler builds for each
// crawl and the tests use directly.
package store

import "time"

// Site is the row InsertSite writes: one per host, holding the robots.txt
// and first-sitemap text the Robots Registry resolved for it.
type Site struct {
	Host        string
	RobotsText  string
	SitemapText string
}

// Link is one outbound edge discovered on a page.
type Link struct {
	From string
	To   string
}

// Image is one image reference discovered on a page.
type Image struct {
	Filename    string
	ContentType string
	AccessedAt  time.Time
}

// PageInfo is the page-level row InsertPageWithLinksAndImages writes.
// Classification is one of the crawl.Kind string forms ("HTML", "BINARY",
// "DUPLICATE", "ERROR"); Hash, DataTypeCode, and DuplicateURL are only
// meaningful for the classifications that produce them (HTML, BINARY, and
// DUPLICATE respectively) and are left zero-valued otherwise.
type PageInfo struct {
	URL            string
	Host           string
	Status         int
	AccessedAt     time.Time
	Classification string
	Hash           string
	DataTypeCode   string
	DuplicateURL   string
}

// Sink is the small write interface the crawl core depends on (§6). No
// concrete database-backed implementation is required by this
// specification; production deployments provide their own.
type Sink interface {
	// InsertSite persists siteData. Idempotent per host: calling it twice
	// for the same host overwrites rather than duplicates the row.
	InsertSite(site Site) error

	// InsertPageWithLinksAndImages persists page, its outbound links, and
	// its image descriptors as a single atomic write.
	InsertPageWithLinksAndImages(page PageInfo, links []Link, images []Image) error

	// CheckDuplicateByHashOrURL reports whether a distinct, already-
	// persisted HTML page carries the same content hash. The comma-ok
	// return is the idiomatic Go shape for §9's "truthy value interpreted
	// as a URL" open question: (url, true) means a duplicate was found,
	// (_, false) means hash is novel.
	CheckDuplicateByHashOrURL(hash string, url string) (string, bool)
}

package store

import "sync"

// MemorySink is a process-local Sink backed by plain maps, guarded by a
// single mutex. The scheduler builds one for each crawl and the tests use it
// directly; it is not a substitute for a real relational store and does not
// persist across runs.
type MemorySink struct {
	mu sync.Mutex

	sites     map[string]Site
	pages     map[string]PageInfo
	pageLinks map[string][]Link
	pageImage map[string][]Image
	byHash    map[string]string // content hash -> first URL persisted with it
}

// NewMemorySink constructs an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		sites:     make(map[string]Site),
		pages:     make(map[string]PageInfo),
		pageLinks: make(map[string][]Link),
		pageImage: make(map[string][]Image),
		byHash:    make(map[string]string),
	}
}

var _ Sink = (*MemorySink)(nil)

func (m *MemorySink) InsertSite(site Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sites[site.Host] = site
	return nil
}

func (m *MemorySink) InsertPageWithLinksAndImages(page PageInfo, links []Link, images []Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pages[page.URL] = page
	m.pageLinks[page.URL] = links
	m.pageImage[page.URL] = images

	if page.Hash != "" {
		if _, exists := m.byHash[page.Hash]; !exists {
			m.byHash[page.Hash] = page.URL
		}
	}
	return nil
}

func (m *MemorySink) CheckDuplicateByHashOrURL(hash string, url string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.byHash[hash]
	if !ok || existing == url {
		return "", false
	}
	return existing, true
}

// Sites returns a snapshot of every site row inserted so far, keyed by host.
func (m *MemorySink) Sites() map[string]Site {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Site, len(m.sites))
	for k, v := range m.sites {
		out[k] = v
	}
	return out
}

// Pages returns a snapshot of every page row inserted so far, keyed by URL.
func (m *MemorySink) Pages() map[string]PageInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]PageInfo, len(m.pages))
	for k, v := range m.pages {
		out[k] = v
	}
	return out
}

// LinksFor returns the link edges recorded for url, if any.
func (m *MemorySink) LinksFor(url string) []Link {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Link(nil), m.pageLinks[url]...)
}

// ImagesFor returns the image descriptors recorded for url, if any.
func (m *MemorySink) ImagesFor(url string) []Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Image(nil), m.pageImage[url]...)
}

package frontier

import (
	"context"
	"sync"
	"time"

	"github.com/frigov/sicrawler/internal/config"
	"github.com/frigov/sicrawler/pkg/urlutil"
)

/*
Frontier Responsibilities
- Maintain BFS ordering
- Deduplicate URLs
- Track crawl depth
- Prevent infinite traversal
- Knows nothing about:
	- fetching
	- extraction
	- markdown
	- storage

It is a data structure + policy module, not a pipeline executor.
*/

// Frontier is a BFS-ordered, deduplicating queue of admitted crawl
// candidates. It never consults robots rules - by the time a candidate
// reaches Submit, it is assumed robots-allowed; Submit itself still applies
// the scope token and the depth/page limits.
type Frontier struct {
	mu  sync.RWMutex
	cfg config.Config

	// visited holds the canonical form of every URL ever accepted by
	// Submit. It never shrinks - dequeuing a token does not un-visit it.
	visited Set[string]

	queuesByDepth map[int]*FIFOQueue[CrawlToken]
	maxDepthSeen  int
}

// NewCrawlFrontier creates an empty frontier. Call Init before use.
func NewCrawlFrontier() *Frontier {
	return &Frontier{
		visited:       NewSet[string](),
		queuesByDepth: make(map[int]*FIFOQueue[CrawlToken]),
		maxDepthSeen:  -1,
	}
}

// Init binds the limits (MaxDepth, MaxPages) the frontier enforces on Submit.
func (f *Frontier) Init(cfg config.Config) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg
}

// Submit admits a candidate into the frontier, enforcing MaxDepth, MaxPages,
// scope (ScopeToken), and URL deduplication (on the canonicalized URL
// string). A rejected or duplicate candidate is silently dropped.
func (f *Frontier) Submit(candidate CrawlAdmissionCandidate) {
	f.mu.Lock()
	defer f.mu.Unlock()

	depth := candidate.DiscoveryMetadata().Depth()

	if maxDepth := f.cfg.MaxDepth(); maxDepth > 0 && depth > maxDepth {
		return
	}

	if maxPages := f.cfg.MaxPages(); maxPages > 0 && f.visited.Size() >= maxPages {
		return
	}

	target := candidate.TargetURL()

	if token := f.cfg.ScopeToken(); token != "" {
		host, err := urlutil.Host(target.String())
		if err != nil || !urlutil.ContainsToken(host, token) {
			return
		}
	}

	canonical, err := urlutil.CanonicalizeString(target.String())
	if err != nil {
		canonical = target.String()
	}

	if f.visited.Contains(canonical) {
		return
	}
	f.visited.Add(canonical)

	f.enqueueLocked(depth, NewCrawlToken(candidate.TargetURL(), depth))
}

// Requeue pushes token back onto its depth queue without re-evaluating
// scope, limits, or the visited set. It exists for politeness deferral: a
// token dequeued but not yet fetchable (its host is still under cooldown)
// goes back to the tail of its depth without being treated as a fresh
// discovery.
func (f *Frontier) Requeue(token CrawlToken) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueueLocked(token.Depth(), token)
}

// enqueueLocked must be called with f.mu held.
func (f *Frontier) enqueueLocked(depth int, token CrawlToken) {
	if depth > f.maxDepthSeen {
		f.maxDepthSeen = depth
	}

	queue, ok := f.queuesByDepth[depth]
	if !ok {
		queue = NewFIFOQueue[CrawlToken]()
		f.queuesByDepth[depth] = queue
	}
	queue.Enqueue(token)
}

// Dequeue returns the next token in strict BFS order: the lowest depth with
// a pending token is always drained before any higher depth is considered,
// even across gaps where an intermediate depth was never populated.
func (f *Frontier) Dequeue() (CrawlToken, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for depth := 0; depth <= f.maxDepthSeen; depth++ {
		queue, ok := f.queuesByDepth[depth]
		if !ok {
			continue
		}
		if token, ok := queue.Dequeue(); ok {
			return token, true
		}
	}
	return CrawlToken{}, false
}

// DequeueWait blocks until a token is available or ctx is cancelled; an
// empty frontier alone does not end the wait. It is a thin polling wrapper
// around the non-blocking Dequeue,
// used by the worker pool; the low-level Dequeue stays non-blocking so its
// existing semantics and test suite are undisturbed.
func (f *Frontier) DequeueWait(ctx context.Context, pollInterval time.Duration) (CrawlToken, bool) {
	if pollInterval <= 0 {
		pollInterval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	if token, ok := f.Dequeue(); ok {
		return token, true
	}
	for {
		select {
		case <-ctx.Done():
			return CrawlToken{}, false
		case <-ticker.C:
			if token, ok := f.Dequeue(); ok {
				return token, true
			}
		}
	}
}

// IsDepthExhausted reports whether depth has no pending tokens. A depth
// that never received a submission, or a negative depth, is exhausted.
func (f *Frontier) IsDepthExhausted(depth int) bool {
	if depth < 0 {
		return true
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	queue, ok := f.queuesByDepth[depth]
	if !ok {
		return true
	}
	return queue.Size() == 0
}

// CurrentMinDepth returns the lowest depth with a pending token, or -1 if
// the frontier is empty.
func (f *Frontier) CurrentMinDepth() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for depth := 0; depth <= f.maxDepthSeen; depth++ {
		if queue, ok := f.queuesByDepth[depth]; ok && queue.Size() > 0 {
			return depth
		}
	}
	return -1
}

// PendingCount returns the total number of tokens still queued across every
// depth.
func (f *Frontier) PendingCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	total := 0
	for _, queue := range f.queuesByDepth {
		total += queue.Size()
	}
	return total
}

// VisitedCount returns the number of unique canonical URLs ever admitted.
// It is append-only: dequeuing does not decrease it.
func (f *Frontier) VisitedCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.visited.Size()
}

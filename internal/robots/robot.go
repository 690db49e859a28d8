package robots

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/frigov/sicrawler/internal/metadata"
	"github.com/frigov/sicrawler/internal/robots/cache"
)

/*
Responsibilities

- Fetch robots.txt per host
- Cache rules for crawl duration
- Decide allow/disallow for a URL

Robots checks occur at fetch time, after a URL is dequeued from the
frontier (see fetcher.SpecFetcher.Fetch).
*/

// robotState is the mutable, shared half of a CachedRobot. It lives behind
// a pointer so CachedRobot itself stays a small comparable value (tests
// compare it against the zero value with ==).
type robotState struct {
	mu          sync.RWMutex
	hostRules   map[string]ruleSet
	sitemapText map[string]string
}

// CachedRobot enforces robots.txt allow/disallow decisions and caches the
// resolved rule set per host for the lifetime of the crawl.
type CachedRobot struct {
	sink      metadata.MetadataSink
	userAgent string
	fetcher   *RobotsFetcher
	state     *robotState
}

// NewCachedRobot builds a CachedRobot reporting through sink. Call Init or
// InitWithCache before Decide.
func NewCachedRobot(sink metadata.MetadataSink) CachedRobot {
	return CachedRobot{
		sink: sink,
		state: &robotState{
			hostRules:   make(map[string]ruleSet),
			sitemapText: make(map[string]string),
		},
	}
}

// Init binds the user agent this robot decides on behalf of, backed by an
// in-memory robots.txt cache.
func (r *CachedRobot) Init(userAgent string) {
	r.InitWithCache(userAgent, cache.NewMemoryCache())
}

// InitWithCache is like Init but lets the caller supply the robots.txt
// response cache (e.g. a shared cache across multiple CachedRobot instances).
func (r *CachedRobot) InitWithCache(userAgent string, robotsCache cache.Cache) {
	r.userAgent = userAgent
	r.fetcher = NewRobotsFetcherWithClient(r.sink, userAgent, &http.Client{Timeout: 30 * time.Second}, robotsCache)
}

// Decide reports whether u may be crawled under the target host's
// robots.txt, fetching and parsing that robots.txt at most once per host.
func (r CachedRobot) Decide(u url.URL) (Decision, error) {
	host := u.Hostname()
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}

	rs, ok := r.lookupRuleSet(host)
	if !ok {
		fetchResult, ferr := r.fetcher.Fetch(context.Background(), scheme, u.Host)
		if ferr != nil {
			r.sink.RecordError(
				time.Now(),
				"robots",
				"CachedRobot.Decide",
				mapRobotsErrorToMetadataCause(ferr),
				ferr.Error(),
				[]metadata.Attribute{
					metadata.NewAttr(metadata.AttrHost, host),
					metadata.NewAttr(metadata.AttrURL, u.String()),
				},
			)
			// §4.3: on fetch error, cache an empty-rules record rather than
			// leaving the host unresolved - otherwise knownBefore in
			// fetcher.SpecFetcher.Fetch stays permanently false for this
			// host, silently defeating the per-IP politeness gate (§4.4/I5)
			// for every subsequent fetch, and every later page re-attempts
			// the same failing robots.txt request.
			r.storeRuleSet(host, emptyRuleSet(host))
			return Decision{}, ferr
		}
		rs = MapResponseToRuleSet(fetchResult.Response, r.userAgent, fetchResult.FetchedAt)
		r.storeRuleSet(host, rs)
		r.fetchFirstSitemap(host, rs)
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	allowed, reason := decidePath(rs, path)

	var delay time.Duration
	if cd := rs.CrawlDelay(); cd != nil {
		delay = *cd
	}

	return Decision{
		Url:        u,
		Allowed:    allowed,
		Reason:     reason,
		CrawlDelay: delay,
	}, nil
}

// fetchFirstSitemap fetches the first declared sitemap for host (§4.3: only
// the first entry is ever consulted) and caches its text. Failure is
// non-fatal - the host is still admitted with whatever robots.txt did parse.
func (r CachedRobot) fetchFirstSitemap(host string, rs ruleSet) {
	sitemaps := rs.Sitemaps()
	if len(sitemaps) == 0 {
		return
	}
	text, err := r.fetcher.FetchSitemapText(context.Background(), sitemaps[0])
	if err != nil {
		r.sink.RecordError(
			time.Now(),
			"robots",
			"CachedRobot.fetchFirstSitemap",
			metadata.CauseNetworkFailure,
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrHost, host),
				metadata.NewAttr(metadata.AttrURL, sitemaps[0]),
			},
		)
		return
	}
	r.state.mu.Lock()
	r.state.sitemapText[host] = text
	r.state.mu.Unlock()
}

// HostRecord returns the cached robots/sitemap record for host, if Decide
// has already resolved it at least once.
func (r CachedRobot) HostRecord(host string) (HostRecord, bool) {
	r.state.mu.RLock()
	rs, ok := r.state.hostRules[host]
	sitemapText := r.state.sitemapText[host]
	r.state.mu.RUnlock()
	if !ok {
		return HostRecord{}, false
	}

	var delay time.Duration
	if cd := rs.CrawlDelay(); cd != nil {
		delay = *cd
	}

	return HostRecord{
		Host:        host,
		RobotsText:  rs.RawText(),
		SitemapURLs: rs.Sitemaps(),
		SitemapText: sitemapText,
		CrawlDelay:  delay,
	}, true
}

func (r CachedRobot) lookupRuleSet(host string) (ruleSet, bool) {
	r.state.mu.RLock()
	defer r.state.mu.RUnlock()
	rs, ok := r.state.hostRules[host]
	return rs, ok
}

func (r CachedRobot) storeRuleSet(host string, rs ruleSet) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	r.state.hostRules[host] = rs
}

// decidePath applies the standard robots.txt precedence rule: among every
// allow/disallow pattern matching path, the longest (most specific) one
// wins; a tie between an allow and a disallow is resolved in favor of
// allow.
func decidePath(rs ruleSet, path string) (bool, DecisionReason) {
	if !rs.hasGroups {
		return true, EmptyRuleSet
	}
	if !rs.matchedGroup {
		return true, UserAgentNotMatched
	}

	bestAllow, bestDisallow := -1, -1
	for _, rule := range rs.AllowRules() {
		if matchesPattern(rule.Prefix(), path) && len(rule.Prefix()) > bestAllow {
			bestAllow = len(rule.Prefix())
		}
	}
	for _, rule := range rs.DisallowRules() {
		if matchesPattern(rule.Prefix(), path) && len(rule.Prefix()) > bestDisallow {
			bestDisallow = len(rule.Prefix())
		}
	}

	if bestAllow == -1 && bestDisallow == -1 {
		return true, NoMatchingRules
	}
	if bestAllow >= bestDisallow {
		return true, AllowedByRobots
	}
	return false, DisallowedByRobots
}

// matchesPattern implements the Google robots.txt extension: "*" matches
// any run of characters, and a trailing "$" anchors the pattern to the end
// of path. Everything else is matched literally, segment by segment.
func matchesPattern(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	if anchored {
		pattern = pattern[:len(pattern)-1]
	}

	segments := strings.Split(pattern, "*")
	if !strings.HasPrefix(path, segments[0]) {
		return false
	}
	pos := len(segments[0])

	for _, seg := range segments[1:] {
		if seg == "" {
			continue
		}
		idx := strings.Index(path[pos:], seg)
		if idx == -1 {
			return false
		}
		pos += idx + len(seg)
	}

	if anchored {
		return pos == len(path)
	}
	return true
}

package robots

import (
	"net/url"
	"time"
)

// Permission modeling

type pathRule struct {
	prefix string
}

type ruleSet struct {
	host string

	// The user-agent these rules apply to (resolved, not raw)
	userAgent string

	// Path-based rules, evaluated in order of precedence
	allowRules    []pathRule
	disallowRules []pathRule

	// Optional crawl delay from robots.txt
	crawlDelay *time.Duration

	// sitemaps holds every Sitemap: URL declared in robots.txt, in file
	// order. §4.3 only consults the first entry.
	sitemaps []string

	// rawText is the verbatim robots.txt body (§6 siteData.robots_text).
	rawText string

	// Metadata / observability
	fetchedAt time.Time
	sourceURL string

	// matchedGroup indicates if a user-agent group was matched in robots.txt
	// This is false when no group matches (not even wildcard *)
	matchedGroup bool

	// hasGroups indicates if the robots.txt file had any user-agent groups at all
	// This is false when the response had no groups (e.g., 404 or empty file)
	hasGroups bool
}

type DecisionReason string

const (
	AllowedByRobots     DecisionReason = "allowed_by_robots"
	DisallowedByRobots  DecisionReason = "disallowed_by_robots"
	UserAgentNotMatched DecisionReason = "user_agent_not_matched"
	EmptyRuleSet        DecisionReason = "empty_rule_set"
	NoMatchingRules     DecisionReason = "no_matching_rules"
)

// Robot is the policy surface the scheduler depends on: configure the
// crawling user-agent, then ask whether a URL may be fetched.
type Robot interface {
	Init(userAgent string)
	Decide(u url.URL) (Decision, error)
	// HostRecord returns the cached robots/sitemap record for host, if the
	// registry has already resolved it (i.e. Decide has been called at
	// least once for a URL on that host).
	HostRecord(host string) (HostRecord, bool)
}

// HostRecord is the per-host cache entry described in §3: robots rules
// (folded into the Allowed decisions, not exposed raw here), crawl-delay,
// the declared sitemap URLs, the raw robots.txt text, and the fetched
// first-sitemap text. Created on first encounter of a host and never
// mutated afterward, per §3's HostRecord lifetime note.
type HostRecord struct {
	Host        string
	RobotsText  string
	SitemapURLs []string
	SitemapText string
	CrawlDelay  time.Duration
}

type Decision struct {
	Url url.URL

	Allowed bool

	// Why this decision was made (for logging/debugging)
	Reason DecisionReason

	// Optional delay override (robots crawl-delay). Zero means the host's
	// robots.txt specified none and the caller should fall back to its own
	// default politeness delay.
	CrawlDelay time.Duration
}

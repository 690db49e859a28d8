// Package politeness adapts pkg/limiter's host-keyed rate limiter into the
// per-IP scheduler §4.4 requires: "per server IP, enforce a minimum gap...".
// Sub-hosts behind the same IP (common on gov.si's shared hosting) are
// therefore throttled together, not independently.
package politeness

import (
	"net"
	"sync"
	"time"

	"github.com/frigov/sicrawler/pkg/limiter"
)

// Scheduler tracks, per resolved IP, the last time it was fetched and the
// effective crawl-delay to enforce before the next fetch.
type Scheduler struct {
	mu           sync.RWMutex
	limiter      limiter.RateLimiter
	defaultDelay time.Duration
	ipByHost     map[string]string
	resolver     func(host string) (string, error)
}

// NewScheduler builds a Scheduler backed by rl, falling back to
// defaultDelay when a host's robots.txt specified no crawl-delay.
func NewScheduler(rl limiter.RateLimiter, defaultDelay time.Duration) *Scheduler {
	return &Scheduler{
		limiter:      rl,
		defaultDelay: defaultDelay,
		ipByHost:     make(map[string]string),
		resolver:     lookupIPv4,
	}
}

// Delay reports how long the caller must wait before fetching host again.
// Zero means proceed immediately. A host not yet passed to MarkFetched is
// resolved here, so it is throttled together with any already-fetched host
// sharing its IP; if it does not resolve, or its IP has never been fetched,
// Delay reports zero.
func (s *Scheduler) Delay(host string) time.Duration {
	ip, ok := s.ipFor(host)
	if !ok {
		resolved, err := s.resolver(host)
		if err != nil {
			return 0
		}
		ip = resolved
	}
	return s.limiter.ResolveDelay(ip)
}

// MarkFetched resolves host to an IP address (DNS A lookup; failure is
// non-fatal and simply means this host's politeness can't be IP-grouped)
// and records the current time as that IP's last-visit, with crawlDelay as
// the effective per-IP delay (falling back to the scheduler default when
// crawlDelay is zero).
func (s *Scheduler) MarkFetched(host string, crawlDelay time.Duration) {
	ip, err := s.resolver(host)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.ipByHost[host] = ip
	s.mu.Unlock()

	effective := crawlDelay
	if effective <= 0 {
		effective = s.defaultDelay
	}
	s.limiter.SetCrawlDelay(ip, effective)
	s.limiter.MarkLastFetchAsNow(ip)
}

func (s *Scheduler) ipFor(host string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ip, ok := s.ipByHost[host]
	return ip, ok
}

// lookupIPv4 resolves host to its first IPv4 address, falling back to the
// first address of any family if no IPv4 record exists.
func lookupIPv4(host string) (string, error) {
	addrs, err := net.LookupIP(host)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", &net.DNSError{Err: "no addresses", Name: host}
	}
	for _, addr := range addrs {
		if v4 := addr.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return addrs[0].String(), nil
}

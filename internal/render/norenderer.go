package render

import (
	"context"
	"time"

	"github.com/frigov/sicrawler/pkg/timeutil"
)

// DefaultMinLatency is the original crawler's unconditional 5-second sleep
// before a Selenium round trip, preserved here as the floor every Renderer
// implementation (including NoRenderer) must honor regardless of outcome.
const DefaultMinLatency = 5 * time.Second

// NoRenderer is the null-object Renderer this specification ships so the
// core compiles and runs standalone without a real browser driver wired in
// (§4.5.2). It always reports failure, after sleeping MinLatency - matching
// the contract every real implementation must also satisfy.
type NoRenderer struct {
	MinLatency time.Duration
	Sleeper    timeutil.Sleeper
}

// NewNoRenderer builds a NoRenderer with the spec-default minimum latency
// and the real wall clock.
func NewNoRenderer() *NoRenderer {
	return &NoRenderer{MinLatency: DefaultMinLatency, Sleeper: timeutil.NewRealSleeper()}
}

var _ Renderer = (*NoRenderer)(nil)

func (n *NoRenderer) Render(ctx context.Context, url string) (string, bool) {
	sleeper := n.Sleeper
	if sleeper == nil {
		sleeper = timeutil.NewRealSleeper()
	}
	sleeper.Sleep(n.MinLatency)
	return "", false
}

// Package render defines the headless-browser contract the Fetcher falls
// back to when a static HTML response is too thin (§4.5.2). The core ships
// only a null-object implementation; wiring a real browser driver is an
// external-collaborator concern (§1).
package render

import "context"

// Renderer fully loads url with JavaScript execution and returns the final
// HTML, or ok=false on any browser failure. Implementations MUST block the
// caller for at least the configured MinLatency before returning - even on
// failure - to preserve global politeness for JS-driven fetches.
type Renderer interface {
	Render(ctx context.Context, url string) (html string, ok bool)
}

package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/frigov/sicrawler/internal/assets"
	"github.com/frigov/sicrawler/internal/checkpoint"
	"github.com/frigov/sicrawler/internal/config"
	"github.com/frigov/sicrawler/internal/crawl"
	"github.com/frigov/sicrawler/internal/extractor"
	"github.com/frigov/sicrawler/internal/fetcher"
	"github.com/frigov/sicrawler/internal/frontier"
	"github.com/frigov/sicrawler/internal/mdconvert"
	"github.com/frigov/sicrawler/internal/metadata"
	"github.com/frigov/sicrawler/internal/normalize"
	"github.com/frigov/sicrawler/internal/politeness"
	"github.com/frigov/sicrawler/internal/render"
	"github.com/frigov/sicrawler/internal/robots"
	"github.com/frigov/sicrawler/internal/sanitizer"
	"github.com/frigov/sicrawler/internal/storage"
	"github.com/frigov/sicrawler/internal/store"
	"github.com/frigov/sicrawler/pkg/failure"
	"github.com/frigov/sicrawler/pkg/hashutil"
	"github.com/frigov/sicrawler/pkg/limiter"
	"github.com/frigov/sicrawler/pkg/retry"
	"github.com/frigov/sicrawler/pkg/timeutil"
)

/*
Scheduler is the §4.8/§4.10 worker pool and lifecycle controller. Unlike
the teacher's original single-goroutine, single-currentHost design, it
drives N concurrent workers pulling from one shared Frontier; all
per-request admission and politeness decisions (robots, scope, per-IP
delay) live in fetcher.SpecFetcher and internal/politeness, not here. The
Scheduler's own job is coordination: start workers, route each Fetch
Outcome to extraction/persistence/resubmission, checkpoint periodically,
and shut down gracefully within the configured run budget.
*/

// Stats summarizes one completed run, mirroring the teacher's
// RecordFinalCrawlStats fields so both consumers report the same shape.
type Stats struct {
	TotalPages  int
	TotalErrors int
	TotalAssets int
	Duration    time.Duration
}

// pageFetcher is the fetch step the worker loop depends on - satisfied by
// fetcher.SpecFetcher in production and by a fake in tests that would
// otherwise need a live network and DNS resolution to exercise routing.
type pageFetcher interface {
	Fetch(ctx context.Context, target url.URL, depth int) fetcher.Outcome
}

// Scheduler coordinates the crawl's worker pool. Build one with NewScheduler.
type Scheduler struct {
	cfg            config.Config
	metadataSink   metadata.MetadataSink
	crawlFinalizer metadata.CrawlFinalizer

	robot       robots.Robot
	frontier    *frontier.Frontier
	specFetcher pageFetcher
	linkImages  extractor.LinkImageExtractor
	storeSink   store.Sink
	checkpoint  checkpoint.Checkpointer

	// Optional markdown-archival enrichment (§11.6/§11.7), reusing the
	// teacher's original extract->sanitize->convert->resolve->normalize->
	// write pipeline as an additive side-effect alongside store persistence.
	domExtractor  extractor.Extractor
	htmlSanitizer sanitizer.Sanitizer
	convertRule   mdconvert.ConvertRule
	assetResolver assets.Resolver
	constraint    normalize.MarkdownConstraint
	storageSink   storage.Sink

	fetchedCount int64
	mu           sync.Mutex // guards fetchedCount and checkpoint cadence

	pagesErrors int
	pagesAssets int
}

// NewScheduler wires every dependency a live crawl needs, following cfg.
func NewScheduler(cfg config.Config) Scheduler {
	recorder, _ := metadata.NewRecorder("")

	cachedRobot := robots.NewCachedRobot(recorder)
	cachedRobot.Init(cfg.UserAgent())

	fr := frontier.NewCrawlFrontier()
	fr.Init(cfg)

	pol := politeness.NewScheduler(limiter.NewConcurrentRateLimiter(), cfg.DefaultCrawlDelay())
	renderer := render.NewNoRenderer()

	specFetcher := fetcher.NewSpecFetcher(
		recorder,
		&cachedRobot,
		pol,
		renderer,
		cfg.UserAgent(),
		cfg.ThinPageByteThreshold(),
		cfg.DefaultCrawlDelay(),
		nil,
	)

	linkImages := extractor.NewLinkImageExtractor(recorder)
	storeSink := store.NewMemorySink()
	cp := checkpoint.NewCheckpointer(cfg.CheckpointPath(), recorder)

	ext := extractor.NewDomExtractor(recorder, extractor.ExtractParam{
		BodySpecificityBias:  cfg.BodySpecificityBias(),
		LinkDensityThreshold: cfg.LinkDensityThreshold(),
		ScoreMultiplier: extractor.ContentScoreMultiplier{
			NonWhitespaceDivisor: cfg.ScoreMultiplierNonWhitespaceDivisor(),
			Paragraphs:           cfg.ScoreMultiplierParagraphs(),
			Headings:             cfg.ScoreMultiplierHeadings(),
			CodeBlocks:           cfg.ScoreMultiplierCodeBlocks(),
			ListItems:            cfg.ScoreMultiplierListItems(),
		},
		Threshold: extractor.MeaningfulThreshold{
			MinNonWhitespace:    cfg.ThresholdMinNonWhitespace(),
			MinHeadings:         cfg.ThresholdMinHeadings(),
			MinParagraphsOrCode: cfg.ThresholdMinParagraphsOrCode(),
			MaxLinkDensity:      cfg.ThresholdMaxLinkDensity(),
		},
	})
	htmlSanitizer := sanitizer.NewHTMLSanitizer(recorder)
	convertRule := mdconvert.NewRule(recorder)
	resolver := assets.NewLocalResolver(recorder, &http.Client{}, cfg.UserAgent())
	constraint := normalize.NewMarkdownConstraint(recorder)
	storageSink := storage.NewLocalSink(recorder)

	return Scheduler{
		cfg:            cfg,
		metadataSink:   recorder,
		crawlFinalizer: recorder,
		robot:          &cachedRobot,
		frontier:       fr,
		specFetcher:    specFetcher,
		linkImages:     linkImages,
		storeSink:      storeSink,
		checkpoint:     cp,
		domExtractor:   &ext,
		htmlSanitizer:  &htmlSanitizer,
		convertRule:    convertRule,
		assetResolver:  &resolver,
		constraint:     constraint,
		storageSink:    &storageSink,
	}
}

// Run executes the crawl to completion: resumes from a checkpoint (or
// seeds fresh from cfg.SeedURLs()), drives cfg.Concurrency() workers until
// the run budget expires, an interrupt/SIGTERM arrives, or every worker has
// stopped on a fatal error (an empty frontier alone does not end the run),
// checkpoints on the way out, and reports final stats.
func (s *Scheduler) Run(parent context.Context) (Stats, error) {
	start := time.Now()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if budget := s.cfg.RunBudget(); budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	s.restoreOrSeed()

	workers := s.cfg.Concurrency()
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.workerLoop(ctx)
		}()
	}
	wg.Wait()

	s.checkpoint.Save(s.frontier.Snapshot())

	stats := Stats{
		TotalPages:  s.frontier.VisitedCount(),
		TotalErrors: s.pagesErrors,
		TotalAssets: s.pagesAssets,
		Duration:    time.Since(start),
	}
	s.crawlFinalizer.RecordFinalCrawlStats(stats.TotalPages, stats.TotalErrors, stats.TotalAssets, stats.Duration)
	return stats, nil
}

// restoreOrSeed attempts to resume from an on-disk checkpoint; a missing or
// empty snapshot falls back to seeding the frontier from cfg.SeedURLs().
func (s *Scheduler) restoreOrSeed() {
	snapshot, _ := s.checkpoint.Load()
	if len(snapshot.Visited) > 0 || len(snapshot.Pending) > 0 {
		s.frontier.Restore(snapshot)
		return
	}

	for _, seed := range s.cfg.SeedURLs() {
		s.frontier.Submit(frontier.NewCrawlAdmissionCandidate(
			seed,
			frontier.SourceSeed,
			frontier.NewDiscoveryMetadata(0, nil),
		))
	}
}

// workerLoop is one of the pool's N goroutines: dequeue, fetch, route.
// Per §4.8/§7.4/§7.7, a malformed-document parse failure or a store write
// that fails outright terminates this worker alone; the caller's WaitGroup
// still counts its Done, and every other worker keeps draining the
// Frontier. Transient per-URL problems (network errors, disallowed robots,
// politeness deferral) never reach that far - they are routed to the
// ordinary branches below and the loop continues.
func (s *Scheduler) workerLoop(ctx context.Context) {
	for {
		token, ok := s.frontier.DequeueWait(ctx, 50*time.Millisecond)
		if !ok {
			return
		}

		if fatal := s.processOne(ctx, token); fatal != nil {
			s.metadataSink.RecordError(time.Now(), "scheduler", "process_one", metadata.CauseInvariantViolation, fatal.Error(), nil)
			return
		}

		s.maybeCheckpoint()
	}
}

// processOne fetches and routes a single dequeued token, recovering a
// panic raised by a malformed document into a *crawl.CrawlError so the
// caller can terminate just this worker instead of crashing the process.
func (s *Scheduler) processOne(ctx context.Context, token frontier.CrawlToken) (fatal *crawl.CrawlError) {
	defer func() {
		if r := recover(); r != nil {
			fatal = &crawl.CrawlError{
				Message: fmt.Sprintf("%v", r),
				Cause:   crawl.ErrCauseMalformedContent,
			}
		}
	}()

	outcome := s.specFetcher.Fetch(ctx, token.URL(), token.Depth())

	switch {
	case outcome.Deferred:
		s.frontier.Requeue(token)
	case outcome.Dropped, outcome.NetworkError:
		if outcome.NetworkError {
			s.mu.Lock()
			s.pagesErrors++
			s.mu.Unlock()
		}
		// A robots-disallowed URL is never persisted as a page (§4.6/§7),
		// but its HostRecord - populated the first time this host's
		// robots.txt was ever resolved - still needs InsertSite, or a host
		// whose very first-encountered URL is disallowed never gets a site
		// row at all.
		if outcome.HostRecord != nil {
			if err := s.storeSink.InsertSite(store.Site{
				Host:        outcome.HostRecord.Host,
				RobotsText:  outcome.HostRecord.RobotsText,
				SitemapText: outcome.HostRecord.SitemapText,
			}); err != nil {
				return &crawl.CrawlError{Message: err.Error(), Cause: crawl.ErrCauseStoreFailure}
			}
		}
	default:
		return s.handlePage(ctx, outcome, token.Depth())
	}
	return nil
}

// handlePage persists one fetched page (after duplicate detection) and
// resubmits any links it discovered, running the optional markdown
// enrichment alongside when configured. A non-nil return is a store
// failure (§7.7): the caller terminates this worker over it.
func (s *Scheduler) handlePage(ctx context.Context, outcome fetcher.Outcome, depth int) *crawl.CrawlError {
	if outcome.HostRecord != nil {
		if err := s.storeSink.InsertSite(store.Site{
			Host:        outcome.HostRecord.Host,
			RobotsText:  outcome.HostRecord.RobotsText,
			SitemapText: outcome.HostRecord.SitemapText,
		}); err != nil {
			return &crawl.CrawlError{Message: err.Error(), Cause: crawl.ErrCauseStoreFailure}
		}
	}

	page := outcome.Page
	var links []crawl.LinkEdge
	var images []crawl.ImageDescriptor

	// A DuplicatePage arriving straight from the Fetcher is a redirect
	// (§4.5 step 6): its target is a fresh URL the Frontier has not seen
	// yet and, unless already visited, gets submitted here. A Duplicate
	// produced below by the hash check is a different case - the content
	// it points to was already discovered via its own URL, so nothing is
	// submitted for it and its links are simply discarded (§4.6).
	if dup, ok := page.(crawl.DuplicatePage); ok {
		if target, parseErr := parseURL(dup.DuplicateURL); parseErr == nil {
			s.frontier.Submit(frontier.NewCrawlAdmissionCandidate(
				target, frontier.SourceCrawl, frontier.NewDiscoveryMetadata(depth+1, nil),
			))
		}
	}

	if htmlPage, ok := page.(crawl.HTMLPage); ok {
		if dupURL, isDup := s.storeSink.CheckDuplicateByHashOrURL(htmlPage.Hash, htmlPage.URL().String()); isDup {
			page = crawl.NewDuplicatePage(htmlPage.URL(), htmlPage.Status(), htmlPage.AccessedAt(), dupURL)
		} else {
			var err failure.ClassifiedError
			links, images, err = s.linkImages.Extract(htmlPage)
			if err != nil {
				s.mu.Lock()
				s.pagesErrors++
				s.mu.Unlock()
			}
			for _, edge := range links {
				u, parseErr := parseURL(edge.To)
				if parseErr != nil {
					continue
				}
				s.frontier.Submit(frontier.NewCrawlAdmissionCandidate(
					u, frontier.SourceCrawl, frontier.NewDiscoveryMetadata(depth+1, nil),
				))
			}
			s.archiveMarkdown(ctx, htmlPage)
		}
	}

	if err := s.persist(page, links, images); err != nil {
		return &crawl.CrawlError{Message: err.Error(), Cause: crawl.ErrCauseStoreFailure}
	}
	return nil
}

// persist writes page (plus its links/images, when any) to the store.
func (s *Scheduler) persist(page crawl.PageRaw, links []crawl.LinkEdge, images []crawl.ImageDescriptor) error {
	info := store.PageInfo{
		URL:        page.URL().String(),
		Host:       page.Host(),
		Status:     page.Status(),
		AccessedAt: page.AccessedAt(),
	}

	switch p := page.(type) {
	case crawl.HTMLPage:
		info.Classification = crawl.KindHTML.String()
		info.Hash = p.Hash
	case crawl.BinaryPage:
		info.Classification = crawl.KindBinary.String()
		info.DataTypeCode = p.DataTypeCode
	case crawl.DuplicatePage:
		info.Classification = crawl.KindDuplicate.String()
		info.DuplicateURL = p.DuplicateURL
	case crawl.ErrorPage:
		info.Classification = crawl.KindError.String()
	}

	storeLinks := make([]store.Link, 0, len(links))
	for _, l := range links {
		storeLinks = append(storeLinks, store.Link{From: l.From, To: l.To})
	}
	storeImages := make([]store.Image, 0, len(images))
	for _, img := range images {
		storeImages = append(storeImages, store.Image{Filename: img.Filename, ContentType: img.ContentType, AccessedAt: img.AccessedAt})
	}

	return s.storeSink.InsertPageWithLinksAndImages(info, storeLinks, storeImages)
}

// archiveMarkdown runs the optional content-extraction -> sanitize ->
// convert -> resolve-assets -> normalize -> write pipeline for one HTML
// page, when the corresponding feature flags are set. Failures here are
// recorded but never abort the crawl - the store-backed persistence above
// already captured the page.
func (s *Scheduler) archiveMarkdown(ctx context.Context, page crawl.HTMLPage) {
	if !s.cfg.ArchiveMarkdown() && !s.cfg.ArchiveImages() {
		return
	}

	extraction, err := s.domExtractor.Extract(page.URL(), page.Body)
	if err != nil {
		s.countEnrichmentError()
		return
	}

	sanitized, err := s.htmlSanitizer.Sanitize(extraction.ContentNode)
	if err != nil {
		s.countEnrichmentError()
		return
	}

	converted, err := s.convertRule.Convert(sanitized)
	if err != nil {
		s.countEnrichmentError()
		return
	}

	retryParam := RetryParam(s.cfg)

	maxAssetSize := int64(0)
	if s.cfg.ArchiveImages() {
		maxAssetSize = s.cfg.MaxAssetSize()
	}
	resolveParam := assets.NewResolveParam(s.cfg.OutputDir(), maxAssetSize)
	assetful, err := s.assetResolver.Resolve(ctx, page.URL(), converted, resolveParam, retryParam)
	if err != nil {
		s.countEnrichmentError()
		return
	}
	s.mu.Lock()
	s.pagesAssets += len(assetful.LocalAssets())
	s.mu.Unlock()

	normalizeParam := normalize.NewNormalizeParam(
		"1.0", page.AccessedAt(), hashutil.HashAlgoSHA256, 0, s.cfg.AllowedPathPrefix(),
	)
	normalized, err := s.constraint.Normalize(page.URL(), assetful, normalizeParam)
	if err != nil {
		s.countEnrichmentError()
		return
	}

	if !s.cfg.ArchiveMarkdown() {
		return
	}
	if _, err := s.storageSink.Write(s.cfg.OutputDir(), normalized, hashutil.HashAlgoSHA256); err != nil {
		s.countEnrichmentError()
	}
}

func (s *Scheduler) countEnrichmentError() {
	s.mu.Lock()
	s.pagesErrors++
	s.mu.Unlock()
}

// maybeCheckpoint persists the frontier snapshot every CheckpointInterval
// dequeued URLs processed, in addition to the save Run makes on shutdown.
func (s *Scheduler) maybeCheckpoint() {
	s.mu.Lock()
	s.fetchedCount++
	n := s.fetchedCount
	s.mu.Unlock()

	interval := int64(s.cfg.CheckpointInterval())
	if interval <= 0 {
		return
	}
	if n%interval == 0 {
		s.checkpoint.Save(s.frontier.Snapshot())
	}
}

// parseURL parses a discovered link/redirect target string back into a
// url.URL for frontier submission. Malformed URLs (rare - extraction and
// redirect handling already produce valid strings) are simply not
// resubmitted.
func parseURL(raw string) (url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return url.URL{}, err
	}
	return *u, nil
}

// RetryParam adapts cfg's retry/backoff knobs into the shape
// pkg/retry.RetryParam expects, shared by the asset resolver's retried
// fetches.
func RetryParam(cfg config.Config) retry.RetryParam {
	return retry.NewRetryParam(
		cfg.BaseDelay(),
		cfg.Jitter(),
		cfg.RandomSeed(),
		cfg.MaxAttempt(),
		timeutil.NewBackoffParam(
			cfg.BackoffInitialDuration(),
			cfg.BackoffMultiplier(),
			cfg.BackoffMaxDuration(),
		),
	)
}

package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/frigov/sicrawler/internal/config"
	"github.com/frigov/sicrawler/internal/scheduler"
	"github.com/spf13/cobra"
)

var (
	cfgFile               string
	seedURLs              []string
	maxDepth              int
	concurrency           int
	outputDir             string
	dryRun                bool
	maxPages              int
	userAgent             string
	timeout               time.Duration
	baseDelay             time.Duration
	jitter                time.Duration
	randomSeed            int64
	allowedHosts          []string
	allowedPathPrefix     []string
	scopeToken            string
	thinPageByteThreshold int
	defaultCrawlDelay     time.Duration
	runBudget             time.Duration
	checkpointPath        string
	checkpointInterval    int
	archiveImages         bool
	archiveMarkdown       bool
)

// defaultSeedURLs is §6's default seed set, used whenever the operator
// doesn't pass --seed-url explicitly.
var defaultSeedURLs = []string{
	"https://gov.si",
	"https://evem.gov.si",
	"https://e-uprava.gov.si",
	"https://e-prostor.gov.si",
}

// parseStringSliceToSet converts a string slice to a map[string]struct{} set
func parseStringSliceToSet(strings []string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, s := range strings {
		if s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

// parseSeedURLs converts a string slice of URLs to []url.URL
func parseSeedURLs(urlStrings []string) ([]url.URL, error) {
	if len(urlStrings) == 0 {
		return nil, fmt.Errorf("seed URLs cannot be empty")
	}

	var urls []url.URL
	for _, urlStr := range urlStrings {
		parsedURL, err := url.Parse(urlStr)
		if err != nil {
			return nil, fmt.Errorf("error parsing seed URL %s: %w", urlStr, err)
		}
		urls = append(urls, *parsedURL)
	}
	return urls, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sicrawler",
	Short: "A polite, domain-restricted crawler for the gov.si web.",
	Long: `sicrawler discovers and archives pages reachable from a seed set of
Slovenian government web properties. It traverses hyperlinks breadth-first
across every host whose name contains gov.si, respecting per-host robots
rules and per-IP crawl delays, and persists the resulting graph of sites,
pages, links, and images through a pluggable store.

A crawl is resumable: progress checkpoints to disk on shutdown and resumes
from there on the next run instead of restarting from the seed set.`,
	Run: func(cmd *cobra.Command, args []string) {
		// §6's default seed set (four gov.si properties) applies whenever the
		// operator doesn't pass --seed-url explicitly.
		effectiveSeeds := seedURLs
		if len(effectiveSeeds) == 0 {
			effectiveSeeds = defaultSeedURLs
		}

		// Parse seed URLs
		parsedURLs, err := parseSeedURLs(effectiveSeeds)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}

		// Build config using initConfig with parsed seed URLs
		cfg := InitConfig(parsedURLs)

		// Display configuration for verification
		fmt.Printf("Configuration initialized successfully\n")
		if len(cfg.SeedURLs()) > 0 {
			var urls []string
			for _, u := range cfg.SeedURLs() {
				urls = append(urls, u.String())
			}
			fmt.Printf("Seed URLs: %s\n", strings.Join(urls, ", "))
		}
		if len(cfg.AllowedHosts()) > 0 {
			var hosts []string
			for host := range cfg.AllowedHosts() {
				hosts = append(hosts, host)
			}
			fmt.Printf("Allowed Hosts: %s\n", strings.Join(hosts, ", "))
		}
		if len(cfg.AllowedPathPrefix()) > 0 {
			fmt.Printf("Allowed Path Prefixes: %s\n", strings.Join(cfg.AllowedPathPrefix(), ", "))
		}
		fmt.Printf("Max Depth: %d\n", cfg.MaxDepth())
		fmt.Printf("Max Pages: %d\n", cfg.MaxPages())
		fmt.Printf("Concurrency: %d\n", cfg.Concurrency())
		fmt.Printf("Base Delay: %v\n", cfg.BaseDelay())
		fmt.Printf("Jitter: %v\n", cfg.Jitter())
		fmt.Printf("Random Seed: %d\n", cfg.RandomSeed())
		fmt.Printf("Timeout: %v\n", cfg.Timeout())
		fmt.Printf("User Agent: %s\n", cfg.UserAgent())
		fmt.Printf("Output Directory: %s\n", cfg.OutputDir())
		fmt.Printf("Dry Run: %t\n", cfg.DryRun())

		if cfg.DryRun() {
			fmt.Println("Dry run requested, skipping crawl execution.")
			return
		}

		s := scheduler.NewScheduler(cfg)
		stats, err := s.Run(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: crawl failed: %s\n", err)
			os.Exit(1)
		}

		fmt.Printf("Crawl finished: pages=%d errors=%d assets=%d duration=%s\n",
			stats.TotalPages, stats.TotalErrors, stats.TotalAssets, stats.Duration)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Here you will define your flags and configuration settings.
	// Cobra supports persistent flags, which, if defined here,
	// will be available to all subcommands in the sicrawler application.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "config file path (e.g., /home/myuser/config.json)")
	rootCmd.PersistentFlags().StringArrayVar(&seedURLs, "seed-url", []string{}, "one or more starting URLs (can be repeated)")
	rootCmd.PersistentFlags().IntVar(&maxDepth, "max-depth", 0, "maximum link depth from seed URL (0 uses the config default)")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 0, "number of concurrent fetch workers (0 uses the config default of 10)")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "output", "root output directory for crawled content")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "print the resolved configuration and exit without crawling")
	rootCmd.PersistentFlags().IntVar(&maxPages, "max-pages", 0, "maximum number of pages to fetch (0 uses the config default)")
	rootCmd.PersistentFlags().StringVar(&userAgent, "user-agent", "", "user agent string for HTTP requests")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "timeout for HTTP requests")
	rootCmd.PersistentFlags().DurationVar(&baseDelay, "base-delay", 0, "base delay between HTTP requests to the same host")
	rootCmd.PersistentFlags().DurationVar(&jitter, "jitter", 0, "random jitter added to base delay")
	rootCmd.PersistentFlags().Int64Var(&randomSeed, "random-seed", 0, "seed for random number generation (0 for current time)")
	rootCmd.PersistentFlags().StringArrayVar(&allowedHosts, "allowed-host", []string{}, "explicit hostname allowlist (defaults to seed host)")
	rootCmd.PersistentFlags().StringArrayVar(&allowedPathPrefix, "allowed-path-prefix", []string{}, "restrict crawl to paths like `/docs`, `/guide`")
	rootCmd.PersistentFlags().StringVar(&scopeToken, "scope-token", "", "substring a host must contain to be in scope (e.g. gov.si)")
	rootCmd.PersistentFlags().IntVar(&thinPageByteThreshold, "thin-page-byte-threshold", 0, "byte size below which a fetched page is flagged thin and re-rendered")
	rootCmd.PersistentFlags().DurationVar(&defaultCrawlDelay, "default-crawl-delay", 0, "crawl delay to use when a host's robots.txt specifies none or cannot be fetched")
	rootCmd.PersistentFlags().DurationVar(&runBudget, "run-budget", 0, "wall-clock duration bounding a single crawl run (0 uses the config default)")
	rootCmd.PersistentFlags().StringVar(&checkpointPath, "checkpoint-path", "", "path to the resumable frontier/visited-set checkpoint file")
	rootCmd.PersistentFlags().IntVar(&checkpointInterval, "checkpoint-interval", 0, "how often, in pages fetched, the checkpoint is persisted")
	rootCmd.PersistentFlags().BoolVar(&archiveImages, "archive-images", false, "enable the optional image-archival enrichment")
	rootCmd.PersistentFlags().BoolVar(&archiveMarkdown, "archive-markdown", false, "enable the optional markdown-snapshot enrichment")
}

// InitConfig reads in the config file if set, otherwise the CLI flags.
// seedUrls is a mandatory parameter and must contain at least one valid URL.
func InitConfig(seedUrls []url.URL) config.Config {
	cfg, err := InitConfigWithError(seedUrls)
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}
	return cfg
}

// InitConfigWithError reads in the config file if set, otherwise the CLI flags, returning any errors.
// seedUrls is a mandatory parameter and must contain at least one valid URL.
// This makes it easier to test error cases.
func InitConfigWithError(seedUrls []url.URL) (config.Config, error) {
	if len(seedUrls) == 0 {
		return config.Config{}, fmt.Errorf("%w: seedUrls cannot be empty", config.ErrInvalidConfig)
	}

	if cfgFile != "" {
		fmt.Printf("Initializing config from file: %s\n", cfgFile)
		cfg, err := config.WithConfigFile(cfgFile)
		if err != nil {
			return cfg, fmt.Errorf("error initializing config from file: %w", err)
		}
		return cfg, nil
	}

	// Build config from CLI flags using the With... functions with method chaining
	fmt.Println("No config file specified. Using default flag values or environment variables")

	// Start with default config using provided seed URLs and apply overrides using method chaining
	configBuilder := config.WithDefault(seedUrls)

	// Override with CLI flag values where provided
	if maxDepth > 0 {
		configBuilder = configBuilder.WithMaxDepth(maxDepth)
	}

	if concurrency > 0 {
		configBuilder = configBuilder.WithConcurrency(concurrency)
	}

	if outputDir != "" && outputDir != "output" {
		configBuilder = configBuilder.WithOutputDir(outputDir)
	}

	if dryRun {
		configBuilder = configBuilder.WithDryRun(dryRun)
	}

	if maxPages > 0 {
		configBuilder = configBuilder.WithMaxPages(maxPages)
	}

	if userAgent != "" {
		configBuilder = configBuilder.WithUserAgent(userAgent)
	}

	if timeout > 0 {
		configBuilder = configBuilder.WithTimeout(timeout)
	}

	if baseDelay > 0 {
		configBuilder = configBuilder.WithBaseDelay(baseDelay)
	}

	if jitter > 0 {
		configBuilder = configBuilder.WithJitter(jitter)
	}

	if randomSeed != 0 {
		configBuilder = configBuilder.WithRandomSeed(randomSeed)
	}

	if len(allowedHosts) > 0 {
		configBuilder = configBuilder.WithAllowedHosts(parseStringSliceToSet(allowedHosts))
	}

	if len(allowedPathPrefix) > 0 {
		configBuilder = configBuilder.WithAllowedPathPrefix(allowedPathPrefix)
	}

	if scopeToken != "" {
		configBuilder = configBuilder.WithScopeToken(scopeToken)
	}

	if thinPageByteThreshold > 0 {
		configBuilder = configBuilder.WithThinPageByteThreshold(thinPageByteThreshold)
	}

	if defaultCrawlDelay > 0 {
		configBuilder = configBuilder.WithDefaultCrawlDelay(defaultCrawlDelay)
	}

	if runBudget > 0 {
		configBuilder = configBuilder.WithRunBudget(runBudget)
	}

	if checkpointPath != "" {
		configBuilder = configBuilder.WithCheckpointPath(checkpointPath)
	}

	if checkpointInterval > 0 {
		configBuilder = configBuilder.WithCheckpointInterval(checkpointInterval)
	}

	if archiveImages {
		configBuilder = configBuilder.WithArchiveImages(archiveImages)
	}

	if archiveMarkdown {
		configBuilder = configBuilder.WithArchiveMarkdown(archiveMarkdown)
	}

	cfg, err := configBuilder.Build()
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func ResetFlags() {
	cfgFile = ""
	seedURLs = []string{}
	maxDepth = 0
	concurrency = 0
	outputDir = ""
	dryRun = false
	maxPages = 0
	userAgent = ""
	timeout = 0
	baseDelay = 0
	jitter = 0
	randomSeed = 0
	allowedHosts = []string{}
	allowedPathPrefix = []string{}
	scopeToken = ""
	thinPageByteThreshold = 0
	defaultCrawlDelay = 0
	runBudget = 0
	checkpointPath = ""
	checkpointInterval = 0
	archiveImages = false
	archiveMarkdown = false
}

// Test helper functions to set flag values from tests
func SetConfigFileForTest(path string) {
	cfgFile = path
}

func SetSeedURLsForTest(urls []string) {
	seedURLs = urls
}

func SetMaxDepthForTest(depth int) {
	maxDepth = depth
}

func SetConcurrencyForTest(conc int) {
	concurrency = conc
}

func SetOutputDirForTest(dir string) {
	outputDir = dir
}

func SetDryRunForTest(dry bool) {
	dryRun = dry
}

func SetMaxPagesForTest(pages int) {
	maxPages = pages
}

func SetUserAgentForTest(agent string) {
	userAgent = agent
}

func SetTimeoutForTest(t time.Duration) {
	timeout = t
}

func SetBaseDelayForTest(delay time.Duration) {
	baseDelay = delay
}

func SetJitterForTest(j time.Duration) {
	jitter = j
}

func SetRandomSeedForTest(seed int64) {
	randomSeed = seed
}

func SetAllowedHostsForTest(hosts []string) {
	allowedHosts = hosts
}

func SetAllowedPathPrefixForTest(prefixes []string) {
	allowedPathPrefix = prefixes
}

func SetScopeTokenForTest(token string) {
	scopeToken = token
}

func SetThinPageByteThresholdForTest(threshold int) {
	thinPageByteThreshold = threshold
}

func SetDefaultCrawlDelayForTest(delay time.Duration) {
	defaultCrawlDelay = delay
}

func SetRunBudgetForTest(budget time.Duration) {
	runBudget = budget
}

func SetCheckpointPathForTest(path string) {
	checkpointPath = path
}

func SetCheckpointIntervalForTest(interval int) {
	checkpointInterval = interval
}

func SetArchiveImagesForTest(enabled bool) {
	archiveImages = enabled
}

func SetArchiveMarkdownForTest(enabled bool) {
	archiveMarkdown = enabled
}

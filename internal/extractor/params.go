package extractor

// ExtractParam carries the scoring knobs used to pick a semantic container
// over a plain body extraction. The heuristics in dom.go are not yet wired
// to read every field here (see the inline TODOs); it exists so callers can
// configure extraction the same way they configure the rest of the crawl.
type ExtractParam struct {
	BodySpecificityBias  float64
	LinkDensityThreshold float64
	ScoreMultiplier      ContentScoreMultiplier
	Threshold            MeaningfulThreshold
}

// ContentScoreMultiplier weights each content signal when scoring a node.
type ContentScoreMultiplier struct {
	NonWhitespaceDivisor float64
	Paragraphs           float64
	Headings             float64
	CodeBlocks           float64
	ListItems            float64
}

// MeaningfulThreshold gates whether a scored node counts as real content.
type MeaningfulThreshold struct {
	MinNonWhitespace    int
	MinHeadings         int
	MinParagraphsOrCode int
	MaxLinkDensity      float64
}

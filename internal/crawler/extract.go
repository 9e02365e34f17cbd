package crawler

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ExtractorConfig tunes the content-extraction cascade.
type ExtractorConfig struct {
	// ContentSelectors are queried in priority order by the structured
	// strategies.
	ContentSelectors []string
	// MinFullLength is the acceptance threshold for the structured and
	// heuristic strategies.
	MinFullLength int
	// MinAcceptLength is the lower bar applied to the whole-body
	// fallback (truncated acceptance).
	MinAcceptLength int
	// MaxBlockLength rejects whole-page text dumps in the heuristic scan.
	MaxBlockLength int
	// MinCJKRatio is the minimum proportion of target-language characters
	// a heuristic candidate must carry.
	MinCJKRatio float64
	// LoginKeywords and VIPKeywords drive the access-flag heuristics over
	// the raw page prefix.
	LoginKeywords []string
	VIPKeywords   []string
}

// DefaultExtractorConfig returns the thresholds tuned against the source
// platform.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		ContentSelectors: []string{
			"div.read-content",
			"div.chapter-content",
			"div.j_readContent",
			".read-content",
			".chapter-content",
			"div.content",
			"article",
			".text-wrap",
			".main-text-wrap",
		},
		MinFullLength:   300,
		MinAcceptLength: 100,
		MaxBlockLength:  30000,
		MinCJKRatio:     0.3,
		LoginKeywords:   []string{"登录", "login", "立即登录"},
		VIPKeywords:     []string{"vip", "订阅"},
	}
}

// flagScanWindow bounds how much of the raw page the access-flag scan
// reads; the banners of interest render near the top.
const flagScanWindow = 2000

// Extractor recovers chapter body text from a rendered page by trying a
// fixed cascade of strategies and keeping the single longest success.
type Extractor struct {
	cfg    ExtractorConfig
	logger *zap.Logger
}

// NewExtractor constructs an Extractor.
func NewExtractor(cfg ExtractorConfig, logger *zap.Logger) *Extractor {
	if len(cfg.ContentSelectors) == 0 {
		cfg = DefaultExtractorConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{cfg: cfg, logger: logger}
}

type candidate struct {
	strategy string
	text     string
}

// Extract runs the strategy cascade against the renderer's current page.
// An empty Body in the result means no strategy cleared its threshold;
// the caller must not persist the chapter.
func (e *Extractor) Extract(ctx context.Context, r Renderer) (ExtractionResult, error) {
	title, err := r.PageTitle(ctx)
	if err != nil {
		return ExtractionResult{}, err
	}
	currentURL, err := r.CurrentURL(ctx)
	if err != nil {
		return ExtractionResult{}, err
	}
	source, err := r.PageSource(ctx)
	if err != nil {
		return ExtractionResult{}, err
	}

	result := ExtractionResult{
		Title:     title,
		SourceURL: currentURL,
	}
	result.IsVIP, result.RequiresLogin = e.scanAccessFlags(source)

	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(source))
	if docErr != nil {
		e.logger.Warn("parse rendered page failed", zap.String("url", currentURL), zap.Error(docErr))
	}

	var candidates []candidate
	if doc != nil {
		if text := e.directSelectorLookup(doc); text != "" {
			candidates = append(candidates, candidate{strategy: "selector", text: text})
		}
	}
	if text := e.scriptLookup(ctx, r); text != "" {
		candidates = append(candidates, candidate{strategy: "script", text: text})
	}
	if doc != nil {
		if text := e.heuristicBlockScan(doc); text != "" {
			candidates = append(candidates, candidate{strategy: "heuristic", text: text})
		}
		if len(candidates) == 0 {
			if text := e.bodyFallback(doc); text != "" {
				candidates = append(candidates, candidate{strategy: "body", text: text})
				ExtractionFallbacks.Inc()
			}
		}
	}

	best := pickLongest(candidates)
	if best.text == "" {
		e.logger.Warn("no extraction strategy produced content", zap.String("url", currentURL))
		return result, nil
	}

	result.Strategy = best.strategy
	result.Body = CleanContent(best.text)
	result.ContentLength = len([]rune(result.Body))
	e.logger.Debug("content extracted",
		zap.String("url", currentURL),
		zap.String("strategy", best.strategy),
		zap.Int("length", result.ContentLength))
	return result, nil
}

// directSelectorLookup queries the known content containers on the DOM
// snapshot and accepts the first one clearing the full threshold.
func (e *Extractor) directSelectorLookup(doc *goquery.Document) string {
	for _, selector := range e.cfg.ContentSelectors {
		var found string
		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			text := strings.TrimSpace(sel.Text())
			if len([]rune(text)) > e.cfg.MinFullLength {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// scriptLookup evaluates the in-page strategies, which see the live DOM
// and can recover text hidden from the snapshot.
func (e *Extractor) scriptLookup(ctx context.Context, r Renderer) string {
	for _, script := range []string{selectorExtractScript, densestBlockScript} {
		var text string
		if err := r.RunScript(ctx, script, &text); err != nil {
			e.logger.Debug("extraction script failed", zap.Error(err))
			continue
		}
		text = strings.TrimSpace(text)
		if len([]rune(text)) > e.cfg.MinFullLength {
			return text
		}
	}
	return ""
}

// heuristicBlockScan picks the densest block element below the page-dump
// bound, requiring the CJK proportion that separates prose from chrome.
func (e *Extractor) heuristicBlockScan(doc *goquery.Document) string {
	best := ""
	bestLen := 0
	doc.Find("div, article, section").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		n := len([]rune(text))
		if n <= bestLen || n >= e.cfg.MaxBlockLength {
			return
		}
		if cjkRatio(text) < e.cfg.MinCJKRatio {
			return
		}
		best = text
		bestLen = n
	})
	if bestLen <= e.cfg.MinFullLength {
		return ""
	}
	return best
}

// bodyFallback returns whole-body text when everything else came up short.
func (e *Extractor) bodyFallback(doc *goquery.Document) string {
	text := strings.TrimSpace(doc.Find("body").Text())
	if len([]rune(text)) < e.cfg.MinAcceptLength {
		return ""
	}
	return text
}

// scanAccessFlags derives VIP/login markers from the raw page prefix.
// Heuristic only; false positives are expected and tolerated.
func (e *Extractor) scanAccessFlags(source string) (isVIP, requiresLogin bool) {
	window := source
	if len(window) > flagScanWindow {
		window = window[:flagScanWindow]
	}
	lower := strings.ToLower(window)
	for _, kw := range e.cfg.LoginKeywords {
		if strings.Contains(window, kw) || strings.Contains(lower, strings.ToLower(kw)) {
			requiresLogin = true
			break
		}
	}
	for _, kw := range e.cfg.VIPKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			isVIP = true
			break
		}
	}
	return isVIP, requiresLogin
}

func pickLongest(candidates []candidate) candidate {
	best := candidate{}
	bestLen := 0
	for _, c := range candidates {
		if n := utf8.RuneCountInString(c.text); n > bestLen {
			best = c
			bestLen = n
		}
	}
	return best
}

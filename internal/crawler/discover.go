package crawler

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// DiscovererConfig tunes catalog-page chapter discovery.
type DiscovererConfig struct {
	// Origin is the canonical origin relative hrefs resolve against.
	Origin string
	// ChapterURLMarkers classify an anchor as a chapter link when its
	// href contains any of them.
	ChapterURLMarkers []string
	// NavLabels are display texts that mark navigation anchors, never
	// chapters.
	NavLabels []string
	// TierTagSelector locates an optional VIP/free marker adjacent to the
	// anchor.
	TierTagSelector string
	// MaxChapters caps the returned sequence.
	MaxChapters int
}

// DefaultDiscovererConfig returns the settings matching the source
// platform's catalog markup.
func DefaultDiscovererConfig() DiscovererConfig {
	return DiscovererConfig{
		Origin:            "https://www.qidian.com",
		ChapterURLMarkers: []string{"/chapter/", "read.qidian.com"},
		NavLabels:         []string{"上一章", "下一章", "目录", "开始阅读"},
		TierTagSelector:   "em, .tag, .vip-tag",
		MaxChapters:       30,
	}
}

// Discoverer enumerates candidate chapter links on a rendered catalog
// page, deduplicating by normalized URL in first-seen order.
type Discoverer struct {
	cfg    DiscovererConfig
	logger *zap.Logger
}

// NewDiscoverer constructs a Discoverer.
func NewDiscoverer(cfg DiscovererConfig, logger *zap.Logger) *Discoverer {
	if cfg.MaxChapters <= 0 {
		cfg.MaxChapters = DefaultDiscovererConfig().MaxChapters
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{cfg: cfg, logger: logger}
}

// Discover scans the catalog page source for chapter links. When the DOM
// snapshot yields nothing it retries with the in-page enumeration script,
// a resilience measure against markup variance, not a different rule.
func (d *Discoverer) Discover(ctx context.Context, r Renderer) ([]ChapterLink, error) {
	source, err := r.PageSource(ctx)
	if err != nil {
		return nil, err
	}

	links := d.scanSource(source)
	if len(links) == 0 {
		d.logger.Warn("snapshot scan found no chapters, falling back to in-page scan")
		links, err = d.scanInPage(ctx, r)
		if err != nil {
			return nil, err
		}
	}
	d.logger.Info("chapters discovered", zap.Int("count", len(links)))
	return links, nil
}

// scanSource applies the classification rule to every anchor in the DOM
// snapshot.
func (d *Discoverer) scanSource(source string) []ChapterLink {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		d.logger.Warn("parse catalog page failed", zap.Error(err))
		return nil
	}

	seen := make(map[string]struct{})
	var links []ChapterLink

	doc.Find("a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		text := strings.TrimSpace(sel.Text())
		if !ok || href == "" || len([]rune(text)) < 2 {
			return true
		}
		if !d.isChapterHref(href) || d.isNavLabel(text) {
			return true
		}

		resolved := ResolveURL(d.cfg.Origin, href)
		key, err := NormalizeURL(resolved)
		if err != nil {
			return true
		}
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}

		links = append(links, ChapterLink{
			URL:         key,
			DisplayText: text,
			TierTag:     d.tierTag(sel),
		})
		return len(links) < d.cfg.MaxChapters
	})

	return links
}

// scanInPage runs the anchor enumeration inside the live page.
func (d *Discoverer) scanInPage(ctx context.Context, r Renderer) ([]ChapterLink, error) {
	var raw []ChapterLink
	if err := r.RunScript(ctx, findChaptersScript, &raw); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	links := make([]ChapterLink, 0, len(raw))
	for _, link := range raw {
		key, err := NormalizeURL(link.URL)
		if err != nil {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		link.URL = key
		links = append(links, link)
		if len(links) >= d.cfg.MaxChapters {
			break
		}
	}
	return links, nil
}

func (d *Discoverer) isChapterHref(href string) bool {
	for _, marker := range d.cfg.ChapterURLMarkers {
		if strings.Contains(href, marker) {
			return true
		}
	}
	return false
}

func (d *Discoverer) isNavLabel(text string) bool {
	for _, label := range d.cfg.NavLabels {
		if strings.Contains(text, label) {
			return true
		}
	}
	return false
}

// tierTag captures an adjacent access marker when the markup provides one.
func (d *Discoverer) tierTag(sel *goquery.Selection) string {
	if d.cfg.TierTagSelector == "" {
		return ""
	}
	tag := strings.TrimSpace(sel.Siblings().Filter(d.cfg.TierTagSelector).First().Text())
	if tag == "" {
		tag = strings.TrimSpace(sel.Find(d.cfg.TierTagSelector).First().Text())
	}
	return tag
}

package crawler

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDiscoverClassifiesCatalogAnchors(t *testing.T) {
	t.Parallel()

	catalog := `<html><body>
		<a href="/">首页</a>
		<a href="/book/100/">书籍主页</a>
		<a href="/chapter/100/1001/">第1章 起源</a>
		<a href="//www.qidian.com/chapter/100/1002/">第2章 异变</a>
		<a href="/chapter/100/1003/">下一章</a>
	</body></html>`

	url := "https://www.qidian.com/book/100/catalog/"
	r := &fakeRenderer{
		current: url,
		pages:   map[string]fakePage{url: {source: catalog}},
	}

	links, err := NewDiscoverer(DefaultDiscovererConfig(), zap.NewNop()).Discover(context.Background(), r)
	require.NoError(t, err)

	// Of five anchors only the two real chapter links qualify: the home
	// and book links carry no chapter marker, the nav label is excluded.
	require.Len(t, links, 2)
	require.Equal(t, "https://www.qidian.com/chapter/100/1001/", links[0].URL)
	require.Equal(t, "第1章 起源", links[0].DisplayText)
	require.Equal(t, "https://www.qidian.com/chapter/100/1002/", links[1].URL)
}

func TestDiscoverDeduplicatesNormalizedURLs(t *testing.T) {
	t.Parallel()

	catalog := `<html><body>
		<a href="/chapter/100/1001/?b=2&a=1">第1章 起源</a>
		<a href="/chapter/100/1001/?a=1&b=2">第1章 起源（重复）</a>
		<a href="/chapter/100/1001/?a=1&b=2#top">第1章 起源（再重复）</a>
	</body></html>`

	url := "https://www.qidian.com/book/100/catalog/"
	r := &fakeRenderer{
		current: url,
		pages:   map[string]fakePage{url: {source: catalog}},
	}

	links, err := NewDiscoverer(DefaultDiscovererConfig(), zap.NewNop()).Discover(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "https://www.qidian.com/chapter/100/1001/?a=1&b=2", links[0].URL)
	// First-seen display text wins.
	require.Equal(t, "第1章 起源", links[0].DisplayText)
}

func TestDiscoverCapsChapterCount(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 1; i <= 40; i++ {
		fmt.Fprintf(&sb, `<a href="/chapter/100/%d/">第%d章 测试</a>`, 1000+i, i)
	}
	sb.WriteString("</body></html>")

	url := "https://www.qidian.com/book/100/catalog/"
	r := &fakeRenderer{
		current: url,
		pages:   map[string]fakePage{url: {source: sb.String()}},
	}

	links, err := NewDiscoverer(DefaultDiscovererConfig(), zap.NewNop()).Discover(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, links, 30)
	require.Equal(t, "第1章 测试", links[0].DisplayText)
	require.Equal(t, "第30章 测试", links[29].DisplayText)
}

func TestDiscoverTierTag(t *testing.T) {
	t.Parallel()

	catalog := `<html><body>
		<li><a href="/chapter/100/1001/">第1章 起源</a><em>VIP</em></li>
		<li><a href="/chapter/100/1002/">第2章 异变</a></li>
	</body></html>`

	url := "https://www.qidian.com/book/100/catalog/"
	r := &fakeRenderer{
		current: url,
		pages:   map[string]fakePage{url: {source: catalog}},
	}

	links, err := NewDiscoverer(DefaultDiscovererConfig(), zap.NewNop()).Discover(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, links, 2)
	require.Equal(t, "VIP", links[0].TierTag)
	require.Equal(t, "", links[1].TierTag)
}

func TestDiscoverFallsBackToInPageScan(t *testing.T) {
	t.Parallel()

	url := "https://www.qidian.com/book/100/catalog/"
	r := &fakeRenderer{
		current: url,
		// Snapshot shows no anchors at all, the live DOM does.
		pages: map[string]fakePage{url: {source: "<html><body></body></html>"}},
		inPageLinks: []ChapterLink{
			{URL: "https://www.qidian.com/chapter/100/1001/?b=2&a=1", DisplayText: "第1章 起源"},
			{URL: "https://www.qidian.com/chapter/100/1001/?a=1&b=2", DisplayText: "第1章 起源"},
			{URL: "https://www.qidian.com/chapter/100/1002/", DisplayText: "第2章 异变"},
		},
	}

	links, err := NewDiscoverer(DefaultDiscovererConfig(), zap.NewNop()).Discover(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, links, 2)
	require.Equal(t, "https://www.qidian.com/chapter/100/1001/?a=1&b=2", links[0].URL)
	require.Equal(t, "https://www.qidian.com/chapter/100/1002/", links[1].URL)
}

package crawler

import (
	"regexp"
	"strings"
)

// boilerplateDenylist holds phrases that mark a line as platform chrome
// rather than chapter text. Matching is case-insensitive.
var boilerplateDenylist = []string{
	"广告", "advertisement", "登录", "login", "立即登录",
	"vip", "订阅", "会员", "上一章", "下一章",
	"目录", "返回", "本章完", "未完待续", "起点中文网",
	"创世中文网", "qq阅读", "加入书架", "推荐票", "月票",
}

var (
	chapterNumPattern = regexp.MustCompile(`第(\d+)章`)
	repeatedDots      = regexp.MustCompile(`·+`)
	runsOfSpace       = regexp.MustCompile(`\s+`)
)

// specialChapterLabels are non-numeric installment markers kept verbatim
// as chapter numbers.
var specialChapterLabels = []string{"引子", "序章", "终章", "番外", "后记", "楔子"}

// minLineLength is the cutoff below which a line with no CJK characters
// is treated as noise.
const minLineLength = 10

// CleanContent strips boilerplate from extracted chapter text: short
// non-CJK lines and denylisted platform phrases go, runs of three or more
// blank lines collapse to one. The pass is idempotent.
func CleanContent(content string) string {
	if content == "" {
		return ""
	}

	lines := strings.Split(content, "\n")
	cleaned := make([]string, 0, len(lines))
	blankRun := 0

	for _, line := range lines {
		line = strings.TrimSpace(line)

		if line == "" {
			blankRun++
			continue
		}

		if len([]rune(line)) < minLineLength && countCJK(line) == 0 {
			continue
		}
		if matchesDenylist(line) {
			continue
		}

		// One separator stands in for any run of blanks, and only
		// between lines that survived the filters.
		if blankRun > 0 && len(cleaned) > 0 {
			cleaned = append(cleaned, "")
		}
		blankRun = 0

		cleaned = append(cleaned, line)
	}

	return strings.Join(cleaned, "\n")
}

func matchesDenylist(line string) bool {
	lower := strings.ToLower(line)
	for _, phrase := range boilerplateDenylist {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// countCJK returns the number of CJK ideographs in s.
func countCJK(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x4e00 && r <= 0x9fff {
			n++
		}
	}
	return n
}

// cjkRatio returns the proportion of CJK ideographs among all runes.
func cjkRatio(s string) float64 {
	runes := []rune(s)
	if len(runes) == 0 {
		return 0
	}
	return float64(countCJK(s)) / float64(len(runes))
}

// CleanWorkTitle cuts a browser page title down to the work name: text up
// to the first decoration character, with repeated separators removed.
func CleanWorkTitle(pageTitle string) string {
	title := strings.TrimSpace(pageTitle)
	if idx := strings.IndexAny(title, "(-【_"); idx > 0 {
		title = title[:idx]
	}
	title = repeatedDots.ReplaceAllString(title, "")
	title = runsOfSpace.ReplaceAllString(title, " ")
	return strings.TrimSpace(title)
}

// ChapterNumber derives the chapter label used as the dedup key: a
// normalized numeric marker when present, a known special label otherwise,
// else a bounded prefix of the title.
func ChapterNumber(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "未知章节"
	}
	if m := chapterNumPattern.FindStringSubmatch(title); m != nil {
		return "第" + m[1] + "章"
	}
	for _, label := range specialChapterLabels {
		if strings.Contains(title, label) {
			return label
		}
	}
	runes := []rune(title)
	if len(runes) > 10 {
		return string(runes[:10])
	}
	return title
}

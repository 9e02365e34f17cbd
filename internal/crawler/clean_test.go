package crawler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanContentDropsBoilerplateAndShortLines(t *testing.T) {
	t.Parallel()

	raw := strings.Join([]string{
		"寒武纪元，诸天万界，气象森罗。",
		"ads",
		"点击下一章继续阅读",
		"",
		"",
		"",
		"他睁开眼，看到了一个全新的世界。",
		"本章完",
	}, "\n")

	got := CleanContent(raw)
	want := "寒武纪元，诸天万界，气象森罗。\n\n他睁开眼，看到了一个全新的世界。"
	require.Equal(t, want, got)
}

func TestCleanContentIdempotent(t *testing.T) {
	t.Parallel()

	raw := "第一段正文内容在这里。\n\n\n\n第二段正文内容在这里。\nvip章节请订阅\n"
	once := CleanContent(raw)
	require.Equal(t, once, CleanContent(once))
}

func TestCleanContentKeepsShortCJKLines(t *testing.T) {
	t.Parallel()

	// Short lines survive when they carry ideographs; dialogue is often
	// only a few characters.
	require.Equal(t, "“嗯。”", CleanContent("“嗯。”"))
}

func TestCleanContentEmpty(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", CleanContent(""))
	require.Equal(t, "", CleanContent("\n\n\n"))
}

func TestCleanWorkTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "超级神基因", "超级神基因"},
		{"paren suffix", "超级神基因(十二翼黑暗炽天使)", "超级神基因"},
		{"dash suffix", "超级神基因-免费阅读", "超级神基因"},
		{"bracket suffix", "超级神基因【最新章节】", "超级神基因"},
		{"repeated dots", "超级·····神基因", "超级神基因"},
		{"spaces", "  超级神基因   在线阅读", "超级神基因 在线阅读"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, CleanWorkTitle(tc.in))
		})
	}
}

func TestChapterNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"numeric", "第12章 黄金猎场", "第12章"},
		{"numeric embedded", "正文 第305章 决战", "第305章"},
		{"prologue", "引子 万年之前", "引子"},
		{"prelude", "序章", "序章"},
		{"extra", "番外 十年之后", "番外"},
		{"plain title truncated", "这是一个没有编号的超长章节标题啊", "这是一个没有编号的超"},
		{"short plain title", "短标题", "短标题"},
		{"empty", "", "未知章节"},
		{"whitespace", "   ", "未知章节"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, ChapterNumber(tc.in))
		})
	}
}

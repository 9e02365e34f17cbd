package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseCommentPage(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"data": {
			"posts": [
				{"userName": "书友123", "content": "这本书太好看了", "createTime": "2026-08-01 12:00:00", "likeNum": 5, "floorNum": 1, "chapterId": "733376200", "chapterName": "第1章"},
				{"userName": "", "content": "<p>催更<b>!</b></p>", "createTime": "2026-08-02 08:30:00", "likeNum": "12", "floorNum": "2"},
				{"userName": "坏数据", "floorNum": {"nested": true}}
			],
			"hasNext": true
		}
	}`)

	page := ParseCommentPage(42, payload, zap.NewNop())

	require.True(t, page.HasNext)
	require.Len(t, page.Comments, 3)

	first := page.Comments[0]
	require.Equal(t, int64(42), first.WorkID)
	require.Equal(t, "书友123", first.AuthorName)
	require.Equal(t, "这本书太好看了", first.Body)
	require.Equal(t, 5, first.LikeCount)
	require.Equal(t, 1, first.FloorNo)
	require.Equal(t, "733376200", first.ChapterID)
	require.Equal(t, "第1章", first.ChapterName)

	// Missing user name falls back to the anonymous label; markup is
	// stripped and string-encoded counters are coerced.
	second := page.Comments[1]
	require.Equal(t, "匿名用户", second.AuthorName)
	require.Equal(t, "催更!", second.Body)
	require.Equal(t, 12, second.LikeCount)
	require.Equal(t, 2, second.FloorNo)

	// Uncoercible counters degrade to zero rather than dropping the post.
	require.Equal(t, 0, page.Comments[2].FloorNo)
}

func TestParseCommentPageMalformedPayload(t *testing.T) {
	t.Parallel()

	page := ParseCommentPage(42, []byte("<html>502 Bad Gateway</html>"), zap.NewNop())
	require.Empty(t, page.Comments)
	require.False(t, page.HasNext)
}

func TestParseCommentPageSkipsMalformedPosts(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"data": {"posts": [
		"not an object",
		{"userName": "正常用户", "content": "正常评论", "createTime": "2026-08-03"}
	], "hasNext": false}}`)

	page := ParseCommentPage(7, payload, zap.NewNop())
	require.Len(t, page.Comments, 1)
	require.Equal(t, "正常用户", page.Comments[0].AuthorName)
}

func TestCommentDedupHash(t *testing.T) {
	t.Parallel()

	base := Comment{WorkID: 1, AuthorName: "甲", Body: "内容  一样", PostedAt: "2026-08-01"}

	// Whitespace differences inside the body collapse to the same hash.
	reflowed := base
	reflowed.Body = "内容\n一样"
	require.Equal(t, base.DedupHash(), reflowed.DedupHash())

	// Mutable counters do not affect identity.
	liked := base
	liked.LikeCount = 99
	require.Equal(t, base.DedupHash(), liked.DedupHash())

	other := base
	other.AuthorName = "乙"
	require.NotEqual(t, base.DedupHash(), other.DedupHash())

	otherWork := base
	otherWork.WorkID = 2
	require.NotEqual(t, base.DedupHash(), otherWork.DedupHash())
}

package crawler

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// anonymousAuthor is the fallback for posts missing a user name.
const anonymousAuthor = "匿名用户"

// CommentPage is one parsed page of the comment API response.
type CommentPage struct {
	Comments []Comment
	HasNext  bool
}

type commentEnvelope struct {
	Data struct {
		Posts   []json.RawMessage `json:"posts"`
		HasNext bool              `json:"hasNext"`
	} `json:"data"`
}

type rawPost struct {
	UserName    string          `json:"userName"`
	Content     string          `json:"content"`
	CreateTime  string          `json:"createTime"`
	LikeNum     json.RawMessage `json:"likeNum"`
	FloorNum    json.RawMessage `json:"floorNum"`
	ChapterID   string          `json:"chapterId"`
	ChapterName string          `json:"chapterName"`
}

// ParseCommentPage normalizes one raw JSON response from the comment API.
// A malformed top-level payload yields an empty page, not an error;
// individual bad posts are skipped and logged. The parser knows nothing
// about pagination beyond surfacing the hasNext flag.
func ParseCommentPage(workID int64, payload []byte, logger *zap.Logger) CommentPage {
	if logger == nil {
		logger = zap.NewNop()
	}

	var envelope commentEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		logger.Warn("malformed comment payload", zap.Int64("work_id", workID), zap.Error(err))
		return CommentPage{}
	}

	page := CommentPage{HasNext: envelope.Data.HasNext}
	for _, raw := range envelope.Data.Posts {
		var post rawPost
		if err := json.Unmarshal(raw, &post); err != nil {
			logger.Warn("skipping malformed comment post", zap.Int64("work_id", workID), zap.Error(err))
			continue
		}

		author := strings.TrimSpace(post.UserName)
		if author == "" {
			author = anonymousAuthor
		}

		page.Comments = append(page.Comments, Comment{
			WorkID:      workID,
			AuthorName:  author,
			Body:        stripMarkup(post.Content),
			PostedAt:    post.CreateTime,
			LikeCount:   coerceInt(post.LikeNum),
			FloorNo:     coerceInt(post.FloorNum),
			ChapterID:   post.ChapterID,
			ChapterName: post.ChapterName,
		})
	}
	return page
}

// stripMarkup removes embedded tags from comment bodies. Tag removal
// only, not sanitization.
func stripMarkup(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}
	if !strings.ContainsRune(content, '<') {
		return content
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	return strings.TrimSpace(doc.Text())
}

// coerceInt accepts the number-or-string encodings the platform emits.
func coerceInt(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v
		}
	}
	return 0
}

// Package commentapi implements the comment-API collaborator over the
// Colly collector.
package commentapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Config controls the comment API client.
type Config struct {
	// BaseURL is the comment endpoint root.
	BaseURL string
	// Referer and UserAgent are sent on every request; the endpoint
	// rejects bare clients.
	Referer   string
	UserAgent string
	PageSize  int
	Timeout   time.Duration
}

// DefaultConfig returns the endpoint settings for the source platform.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "https://read.qidian.com/ajax/book/comment",
		Referer:   "https://www.qidian.com/",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		PageSize:  20,
		Timeout:   15 * time.Second,
	}
}

// Client fetches raw comment JSON pages via a configured Colly collector.
type Client struct {
	baseCollector *colly.Collector
	cfg           Config
	logger        *zap.Logger
}

// New constructs a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	base := colly.NewCollector(colly.UserAgent(cfg.UserAgent))
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          16,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
	})
	base.SetRequestTimeout(cfg.Timeout)

	return &Client{
		baseCollector: base,
		cfg:           cfg,
		logger:        logger,
	}
}

// FetchReviewPage retrieves one page of the work's review-section
// comments.
func (c *Client) FetchReviewPage(ctx context.Context, bookID string, page int) ([]byte, error) {
	url := fmt.Sprintf("%s/list?bookId=%s&page=%d&pageSize=%d&type=2",
		c.cfg.BaseURL, bookID, page, c.cfg.PageSize)
	return c.fetch(ctx, url)
}

// FetchChapterPage retrieves one page of a chapter's comment thread.
func (c *Client) FetchChapterPage(ctx context.Context, bookID, chapterID string, page int) ([]byte, error) {
	url := fmt.Sprintf("%s/chapter?bookId=%s&chapterId=%s&page=%d&pageSize=%d",
		c.cfg.BaseURL, bookID, chapterID, page, c.cfg.PageSize)
	return c.fetch(ctx, url)
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	collector := c.baseCollector.Clone()

	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() { resultCh <- res })
	}

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Referer", c.cfg.Referer)
		r.Headers.Set("Accept", "application/json, text/javascript, */*; q=0.01")
		r.Headers.Set("X-Requested-With", "XMLHttpRequest")
	})
	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode != http.StatusOK {
			send(fetchResult{err: fmt.Errorf("comment api status %d", r.StatusCode)})
			return
		}
		send(fetchResult{body: append([]byte{}, r.Body...)})
	})
	collector.OnError(func(_ *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(fetchResult{err: err})
	})

	if err := collector.Visit(url); err != nil {
		return nil, fmt.Errorf("visit %s: %w", url, err)
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if res.err != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, res.err)
		}
		return res.body, nil
	default:
		return nil, errors.New("comment fetch produced no result")
	}
}

type fetchResult struct {
	body []byte
	err  error
}

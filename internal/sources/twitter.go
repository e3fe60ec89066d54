package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/kswift/oreotrends/internal/models"
)

const (
	defaultTwitterBaseURL = "https://api.twitter.com"

	// Without a reset header we back off for a full window.
	defaultTwitterRetryAfter = time.Minute

	twitterPageMin = 10
	twitterPageMax = 100
)

// TwitterConfig configures the Twitter API v2 recent-search collector.
type TwitterConfig struct {
	BearerToken    string
	Query          string
	MaxResults     int
	Timeout        time.Duration
	Retry          RetryConfig
	RequestsPerSec float64
	BaseURL        string // test override
}

// TwitterClient collects recent tweets matching the keyword query. The only
// state kept between calls is the pagination cursor needed to resume a search
// that was cut short.
type TwitterClient struct {
	bearerToken string
	baseURL     string
	query       string
	maxResults  int
	httpClient  *http.Client
	limiter     *rate.Limiter
	retry       RetryConfig
	log         *logrus.Logger

	mu        sync.Mutex
	nextToken string
}

// NewTwitterClient creates a Twitter collector.
func NewTwitterClient(cfg TwitterConfig, log *logrus.Logger) *TwitterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTwitterBaseURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Retry.MaxTries == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 1
	}
	return &TwitterClient{
		bearerToken: cfg.BearerToken,
		baseURL:     cfg.BaseURL,
		query:       cfg.Query,
		maxResults:  cfg.MaxResults,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		retry:       cfg.Retry,
		log:         log,
	}
}

// Platform implements models.Collector.
func (c *TwitterClient) Platform() models.Platform {
	return models.PlatformTwitter
}

// Fetch implements models.Collector. Transient failures are retried with
// bounded backoff; auth and rate-limit errors surface immediately.
func (c *TwitterClient) Fetch(ctx context.Context, window models.Window) ([]models.RawItem, error) {
	return fetchWithRetry(ctx, c.retry, c.log, func() ([]models.RawItem, error) {
		return c.search(ctx, window)
	})
}

type twitterSearchResponse struct {
	Data []struct {
		ID            string    `json:"id"`
		Text          string    `json:"text"`
		AuthorID      string    `json:"author_id"`
		CreatedAt     time.Time `json:"created_at"`
		Lang          string    `json:"lang"`
		PublicMetrics struct {
			RetweetCount int64 `json:"retweet_count"`
			ReplyCount   int64 `json:"reply_count"`
			LikeCount    int64 `json:"like_count"`
			QuoteCount   int64 `json:"quote_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Meta struct {
		NextToken   string `json:"next_token"`
		ResultCount int    `json:"result_count"`
	} `json:"meta"`
}

// search paginates through /2/tweets/search/recent until maxResults items
// are collected or the results run out. On error the cursor is kept so the
// next call resumes where this one stopped.
func (c *TwitterClient) search(ctx context.Context, window models.Window) ([]models.RawItem, error) {
	c.mu.Lock()
	cursor := c.nextToken
	c.mu.Unlock()

	var items []models.RawItem
	for len(items) < c.maxResults {
		page, err := c.searchPage(ctx, window, cursor, c.maxResults-len(items))
		if err != nil {
			c.setCursor(cursor)
			return nil, err
		}

		for _, t := range page.Data {
			items = append(items, models.RawItem{
				Platform:    models.PlatformTwitter,
				ID:          t.ID,
				Text:        t.Text,
				Author:      t.AuthorID,
				PublishedAt: t.CreatedAt,
				Engagement: models.Engagement{
					Likes:    t.PublicMetrics.LikeCount,
					Replies:  t.PublicMetrics.ReplyCount,
					Retweets: t.PublicMetrics.RetweetCount,
				},
			})
		}

		cursor = page.Meta.NextToken
		if cursor == "" {
			break
		}
	}

	// Search completed; the next cycle starts a fresh query.
	c.setCursor("")
	return items, nil
}

func (c *TwitterClient) searchPage(ctx context.Context, window models.Window, cursor string, remaining int) (*twitterSearchResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	pageSize := remaining
	if pageSize > twitterPageMax {
		pageSize = twitterPageMax
	}
	if pageSize < twitterPageMin {
		pageSize = twitterPageMin
	}

	params := url.Values{}
	params.Set("query", c.query)
	params.Set("max_results", strconv.Itoa(pageSize))
	params.Set("tweet.fields", "created_at,public_metrics,lang")
	params.Set("expansions", "author_id")
	if !window.Start.IsZero() {
		params.Set("start_time", window.Start.UTC().Format(time.RFC3339))
	}
	if !window.End.IsZero() {
		params.Set("end_time", window.End.UTC().Format(time.RFC3339))
	}
	if cursor != "" {
		params.Set("next_token", cursor)
	}

	reqURL := fmt.Sprintf("%s/2/tweets/search/recent?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransientError{Platform: models.PlatformTwitter, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Platform: models.PlatformTwitter, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.classify(resp, body)
	}

	var page twitterSearchResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("twitter: parse search response: %w", err)
	}
	return &page, nil
}

func (c *TwitterClient) classify(resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Platform: models.PlatformTwitter, Status: resp.StatusCode, Reason: errorReason(body)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			Platform:   models.PlatformTwitter,
			RetryAfter: retryAfterHint(resp.Header, defaultTwitterRetryAfter),
			Reason:     errorReason(body),
		}
	case resp.StatusCode >= 500:
		return &TransientError{Platform: models.PlatformTwitter, Status: resp.StatusCode}
	default:
		return fmt.Errorf("twitter returned status %d: %s", resp.StatusCode, errorReason(body))
	}
}

func (c *TwitterClient) setCursor(token string) {
	c.mu.Lock()
	c.nextToken = token
	c.mu.Unlock()
}

// retryAfterHint reads the service-provided backoff hint. Twitter sends
// x-rate-limit-reset as a unix timestamp; some proxies send Retry-After
// seconds instead.
func retryAfterHint(h http.Header, def time.Duration) time.Duration {
	if s := h.Get("Retry-After"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	if s := h.Get("x-rate-limit-reset"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			if d := time.Until(time.Unix(n, 0)); d > 0 {
				return d
			}
		}
	}
	return def
}

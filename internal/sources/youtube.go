package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/kswift/oreotrends/internal/models"
)

const (
	defaultYouTubeBaseURL = "https://www.googleapis.com/youtube/v3"

	// Quota errors carry no reset time; the daily quota refills slowly, so
	// the default hint is generous.
	defaultYouTubeRetryAfter = 15 * time.Minute

	youtubePageMax = 50
)

// YouTubeConfig configures the YouTube Data API v3 collector.
type YouTubeConfig struct {
	APIKey           string
	Query            string
	MaxResults       int
	CommentsPerVideo int
	Timeout          time.Duration
	Retry            RetryConfig
	RequestsPerSec   float64
	BaseURL          string // test override
}

// YouTubeClient collects recent videos matching the keyword query plus their
// top-level comments. Videos contribute one item (title and description);
// each comment contributes another.
type YouTubeClient struct {
	apiKey           string
	baseURL          string
	query            string
	maxResults       int
	commentsPerVideo int
	httpClient       *http.Client
	limiter          *rate.Limiter
	retry            RetryConfig
	log              *logrus.Logger
}

// NewYouTubeClient creates a YouTube collector.
func NewYouTubeClient(cfg YouTubeConfig, log *logrus.Logger) *YouTubeClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultYouTubeBaseURL
	}
	if cfg.MaxResults <= 0 || cfg.MaxResults > youtubePageMax {
		cfg.MaxResults = youtubePageMax
	}
	if cfg.CommentsPerVideo <= 0 {
		cfg.CommentsPerVideo = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Retry.MaxTries == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 2
	}
	return &YouTubeClient{
		apiKey:           cfg.APIKey,
		baseURL:          cfg.BaseURL,
		query:            cfg.Query,
		maxResults:       cfg.MaxResults,
		commentsPerVideo: cfg.CommentsPerVideo,
		httpClient:       &http.Client{Timeout: cfg.Timeout},
		limiter:          rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		retry:            cfg.Retry,
		log:              log,
	}
}

// Platform implements models.Collector.
func (c *YouTubeClient) Platform() models.Platform {
	return models.PlatformYouTube
}

// Fetch implements models.Collector.
func (c *YouTubeClient) Fetch(ctx context.Context, window models.Window) ([]models.RawItem, error) {
	return fetchWithRetry(ctx, c.retry, c.log, func() ([]models.RawItem, error) {
		return c.collect(ctx, window)
	})
}

type ytSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
}

type ytVideosResponse struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type ytCommentsResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			TopLevelComment struct {
				Snippet struct {
					TextDisplay       string `json:"textDisplay"`
					AuthorDisplayName string `json:"authorDisplayName"`
					LikeCount         int64  `json:"likeCount"`
					PublishedAt       string `json:"publishedAt"`
				} `json:"snippet"`
			} `json:"topLevelComment"`
		} `json:"snippet"`
	} `json:"items"`
}

func (c *YouTubeClient) collect(ctx context.Context, window models.Window) ([]models.RawItem, error) {
	search, err := c.searchVideos(ctx, window)
	if err != nil {
		return nil, err
	}
	if len(search.Items) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(search.Items))
	for _, item := range search.Items {
		ids = append(ids, item.ID.VideoID)
	}

	stats, err := c.videoStats(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]models.RawItem, 0, len(search.Items))
	for _, v := range search.Items {
		publishedAt, _ := time.Parse(time.RFC3339, v.Snippet.PublishedAt)
		st := stats[v.ID.VideoID]
		items = append(items, models.RawItem{
			Platform:    models.PlatformYouTube,
			ID:          v.ID.VideoID,
			Text:        v.Snippet.Title + "\n" + v.Snippet.Description,
			Author:      v.Snippet.ChannelTitle,
			PublishedAt: publishedAt,
			Engagement: models.Engagement{
				Views:   st.views,
				Likes:   st.likes,
				Replies: st.comments,
			},
			Kind:       "video",
			VideoTitle: v.Snippet.Title,
		})

		// Best effort: videos with disabled comments or flaky comment
		// endpoints never fail the batch.
		comments, err := c.videoComments(ctx, v.ID.VideoID)
		if err != nil {
			c.log.WithError(err).WithField("video_id", v.ID.VideoID).Debug("Skipping comments for video")
			continue
		}
		items = append(items, comments...)
	}

	return items, nil
}

func (c *YouTubeClient) searchVideos(ctx context.Context, window models.Window) (*ytSearchResponse, error) {
	params := url.Values{}
	params.Set("part", "id,snippet")
	params.Set("q", c.query)
	params.Set("type", "video")
	params.Set("order", "date")
	params.Set("maxResults", strconv.Itoa(c.maxResults))
	params.Set("key", c.apiKey)
	if !window.Start.IsZero() {
		params.Set("publishedAfter", window.Start.UTC().Format(time.RFC3339))
	}

	var out ytSearchResponse
	if err := c.get(ctx, "/search", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type ytStats struct {
	views, likes, comments int64
}

func (c *YouTubeClient) videoStats(ctx context.Context, ids []string) (map[string]ytStats, error) {
	params := url.Values{}
	params.Set("part", "statistics")
	params.Set("id", strings.Join(ids, ","))
	params.Set("key", c.apiKey)

	var out ytVideosResponse
	if err := c.get(ctx, "/videos", params, &out); err != nil {
		return nil, err
	}

	stats := make(map[string]ytStats, len(out.Items))
	for _, item := range out.Items {
		views, _ := strconv.ParseInt(item.Statistics.ViewCount, 10, 64)
		likes, _ := strconv.ParseInt(item.Statistics.LikeCount, 10, 64)
		comments, _ := strconv.ParseInt(item.Statistics.CommentCount, 10, 64)
		stats[item.ID] = ytStats{views: views, likes: likes, comments: comments}
	}
	return stats, nil
}

func (c *YouTubeClient) videoComments(ctx context.Context, videoID string) ([]models.RawItem, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("videoId", videoID)
	params.Set("maxResults", strconv.Itoa(c.commentsPerVideo))
	params.Set("key", c.apiKey)

	var out ytCommentsResponse
	if err := c.get(ctx, "/commentThreads", params, &out); err != nil {
		return nil, err
	}

	items := make([]models.RawItem, 0, len(out.Items))
	for _, thread := range out.Items {
		snippet := thread.Snippet.TopLevelComment.Snippet
		publishedAt, _ := time.Parse(time.RFC3339, snippet.PublishedAt)
		items = append(items, models.RawItem{
			Platform:    models.PlatformYouTube,
			ID:          thread.ID,
			Text:        snippet.TextDisplay,
			Author:      snippet.AuthorDisplayName,
			PublishedAt: publishedAt,
			Engagement:  models.Engagement{Likes: snippet.LikeCount},
			Kind:        "comment",
		})
	}
	return items, nil
}

func (c *YouTubeClient) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransientError{Platform: models.PlatformYouTube, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransientError{Platform: models.PlatformYouTube, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return c.classify(resp, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("youtube: parse %s response: %w", path, err)
	}
	return nil
}

// classify maps Google API error responses onto the collector taxonomy.
// Quota exhaustion arrives as 403 with a reason code rather than 429.
func (c *YouTubeClient) classify(resp *http.Response, body []byte) error {
	reason := gjson.GetBytes(body, "error.errors.0.reason").Str

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			Platform:   models.PlatformYouTube,
			RetryAfter: retryAfterHint(resp.Header, defaultYouTubeRetryAfter),
			Reason:     errorReason(body),
		}
	case resp.StatusCode == http.StatusForbidden:
		switch reason {
		case "quotaExceeded", "rateLimitExceeded", "userRateLimitExceeded", "dailyLimitExceeded":
			return &RateLimitError{
				Platform:   models.PlatformYouTube,
				RetryAfter: retryAfterHint(resp.Header, defaultYouTubeRetryAfter),
				Reason:     reason,
			}
		}
		return &AuthError{Platform: models.PlatformYouTube, Status: resp.StatusCode, Reason: errorReason(body)}
	case resp.StatusCode == http.StatusUnauthorized:
		return &AuthError{Platform: models.PlatformYouTube, Status: resp.StatusCode, Reason: errorReason(body)}
	case resp.StatusCode == http.StatusBadRequest && (reason == "keyInvalid" || reason == "badRequest"):
		return &AuthError{Platform: models.PlatformYouTube, Status: resp.StatusCode, Reason: reason}
	case resp.StatusCode >= 500:
		return &TransientError{Platform: models.PlatformYouTube, Status: resp.StatusCode}
	default:
		return fmt.Errorf("youtube returned status %d: %s", resp.StatusCode, errorReason(body))
	}
}

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kswift/oreotrends/internal/models"
)

func newYouTube(t *testing.T, baseURL string) *YouTubeClient {
	t.Helper()
	return NewYouTubeClient(YouTubeConfig{
		APIKey:           "test-key",
		Query:            "oreo",
		MaxResults:       25,
		CommentsPerVideo: 5,
		Retry:            fastRetry(),
		RequestsPerSec:   1000,
		BaseURL:          baseURL,
	}, testLogger())
}

func youtubeMux(t *testing.T, commentsHandler http.HandlerFunc) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "oreo", r.URL.Query().Get("q"))
		assert.Equal(t, "video", r.URL.Query().Get("type"))
		assert.Equal(t, "25", r.URL.Query().Get("maxResults"))
		fmt.Fprint(w, `{
			"items": [
				{
					"id": {"videoId": "vid1"},
					"snippet": {
						"title": "Oreo Taste Test",
						"description": "Trying every flavor",
						"channelTitle": "SnackChannel",
						"publishedAt": "2025-06-01T12:00:00Z"
					}
				}
			]
		}`)
	})

	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "vid1", r.URL.Query().Get("id"))
		fmt.Fprint(w, `{
			"items": [
				{"id": "vid1", "statistics": {"viewCount": "9001", "likeCount": "120", "commentCount": "2"}}
			]
		}`)
	})

	if commentsHandler == nil {
		commentsHandler = func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "vid1", r.URL.Query().Get("videoId"))
			assert.Equal(t, "5", r.URL.Query().Get("maxResults"))
			fmt.Fprint(w, `{
				"items": [
					{
						"id": "c1",
						"snippet": {"topLevelComment": {"snippet": {
							"textDisplay": "golden oreos forever",
							"authorDisplayName": "fan",
							"likeCount": 7,
							"publishedAt": "2025-06-01T13:00:00Z"
						}}}
					}
				]
			}`)
		}
	}
	mux.HandleFunc("/commentThreads", commentsHandler)

	return mux
}

func TestYouTubeFetch(t *testing.T) {
	server := httptest.NewServer(youtubeMux(t, nil))
	defer server.Close()

	client := newYouTube(t, server.URL)
	items, err := client.Fetch(context.Background(), models.Window{
		Start: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	video := items[0]
	assert.Equal(t, models.PlatformYouTube, video.Platform)
	assert.Equal(t, "vid1", video.ID)
	assert.Equal(t, "Oreo Taste Test\nTrying every flavor", video.Text)
	assert.Equal(t, "video", video.Kind)
	assert.Equal(t, "Oreo Taste Test", video.VideoTitle)
	assert.Equal(t, int64(9001), video.Engagement.Views)
	assert.Equal(t, int64(120), video.Engagement.Likes)
	assert.Equal(t, int64(2), video.Engagement.Replies)

	comment := items[1]
	assert.Equal(t, "c1", comment.ID)
	assert.Equal(t, "golden oreos forever", comment.Text)
	assert.Equal(t, "comment", comment.Kind)
	assert.Equal(t, int64(7), comment.Engagement.Likes)
}

func TestYouTubeFetchCommentsBestEffort(t *testing.T) {
	mux := youtubeMux(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error": {"errors": [{"reason": "commentsDisabled"}], "message": "disabled"}}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newYouTube(t, server.URL)
	items, err := client.Fetch(context.Background(), models.Window{})

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "video", items[0].Kind)
}

func TestYouTubeFetchQuotaExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error": {"errors": [{"reason": "quotaExceeded"}], "message": "quota exceeded", "code": 403}}`)
	}))
	defer server.Close()

	client := newYouTube(t, server.URL)
	_, err := client.Fetch(context.Background(), models.Window{})

	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, models.PlatformYouTube, rateErr.Platform)
	assert.Equal(t, "quotaExceeded", rateErr.Reason)
	assert.Equal(t, 15*time.Minute, rateErr.RetryAfter)
}

func TestYouTubeFetchKeyInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": {"errors": [{"reason": "keyInvalid"}], "message": "Bad Request"}}`)
	}))
	defer server.Close()

	client := newYouTube(t, server.URL)
	_, err := client.Fetch(context.Background(), models.Window{})

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "keyInvalid", authErr.Reason)
}

func TestYouTubeFetchForbiddenWithoutQuotaReason(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error": {"errors": [{"reason": "accessNotConfigured"}], "message": "access not configured"}}`)
	}))
	defer server.Close()

	client := newYouTube(t, server.URL)
	_, err := client.Fetch(context.Background(), models.Window{})

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusForbidden, authErr.Status)
}

func TestYouTubeFetchRetriesTransient(t *testing.T) {
	var searchCalls int
	mux := youtubeMux(t, nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			searchCalls++
			if searchCalls == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
		}
		mux.ServeHTTP(w, r)
	}))
	defer server.Close()

	client := newYouTube(t, server.URL)
	items, err := client.Fetch(context.Background(), models.Window{})

	require.NoError(t, err)
	assert.Equal(t, 2, searchCalls)
	assert.Len(t, items, 2)
}

func TestYouTubeFetchNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": []}`)
	}))
	defer server.Close()

	client := newYouTube(t, server.URL)
	items, err := client.Fetch(context.Background(), models.Window{})

	require.NoError(t, err)
	assert.Empty(t, items)
}

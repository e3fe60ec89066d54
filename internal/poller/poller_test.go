package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kswift/oreotrends/internal/aggregator"
	"github.com/kswift/oreotrends/internal/cache"
	"github.com/kswift/oreotrends/internal/keywords"
	"github.com/kswift/oreotrends/internal/metrics"
	"github.com/kswift/oreotrends/internal/models"
	"github.com/kswift/oreotrends/internal/sources"
)

type fakeCollector struct {
	platform models.Platform

	mu    sync.Mutex
	calls int
	items []models.RawItem
	err   error
}

func (f *fakeCollector) Platform() models.Platform { return f.platform }

func (f *fakeCollector) Fetch(ctx context.Context, window models.Window) ([]models.RawItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.items, f.err
}

func (f *fakeCollector) fetchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	mu     sync.Mutex
	spikes map[string]int
}

func (f *fakeNotifier) NotifySpike(ctx context.Context, keyword string, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.spikes == nil {
		f.spikes = make(map[string]int)
	}
	f.spikes[keyword] = count
	return nil
}

type fakeClassifier struct {
	mu     sync.Mutex
	seen   map[string]string
	labels map[string]aggregator.SentimentLabel
}

func (f *fakeClassifier) Classify(ctx context.Context, texts map[string]string) (map[string]aggregator.SentimentLabel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = texts
	return f.labels, nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newHarness(t *testing.T, cfg Config, collectors ...models.Collector) (*Poller, *aggregator.Aggregator) {
	t.Helper()
	seen := cache.New(time.Hour)
	t.Cleanup(seen.Close)

	agg := aggregator.New(keywords.Default(), seen, time.Hour, testLogger())
	m := metrics.New(prometheus.NewRegistry())
	return New(collectors, agg, cfg, m, testLogger(), nil, nil), agg
}

func tweet(id, text string) models.RawItem {
	return models.RawItem{
		Platform:    models.PlatformTwitter,
		ID:          id,
		Text:        text,
		Author:      "someone",
		PublishedAt: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestCollectAppliesBatches(t *testing.T) {
	twitter := &fakeCollector{
		platform: models.PlatformTwitter,
		items:    []models.RawItem{tweet("1", "oreo thins rule"), tweet("2", "nothing relevant")},
	}
	youtube := &fakeCollector{
		platform: models.PlatformYouTube,
		items: []models.RawItem{{
			Platform:    models.PlatformYouTube,
			ID:          "v1",
			Text:        "golden oreo review",
			PublishedAt: time.Date(2025, 6, 1, 9, 45, 0, 0, time.UTC),
		}},
	}

	p, agg := newHarness(t, Config{Interval: time.Minute}, twitter, youtube)
	p.Collect(context.Background())

	assert.Equal(t, 1, twitter.fetchCalls())
	assert.Equal(t, 1, youtube.fetchCalls())
	// "oreo thins rule" mentions Oreo Thins once (longest match); the golden
	// review mentions Oreo Original via the bare alias plus the golden flavor.
	assert.Equal(t, 3, agg.MentionCount())
}

func TestCollectAuthErrorDisablesPlatform(t *testing.T) {
	twitter := &fakeCollector{
		platform: models.PlatformTwitter,
		err:      &sources.AuthError{Platform: models.PlatformTwitter, Status: 401},
	}

	p, _ := newHarness(t, Config{Interval: time.Minute}, twitter)
	p.Collect(context.Background())
	p.Collect(context.Background())

	assert.Equal(t, 1, twitter.fetchCalls(), "disabled platform must not be fetched again")

	status := p.Status()
	require.Len(t, status, 1)
	assert.True(t, status[0].Disabled)
	assert.NotEmpty(t, status[0].LastError)
}

func TestCollectRateLimitPausesPlatform(t *testing.T) {
	twitter := &fakeCollector{
		platform: models.PlatformTwitter,
		err:      &sources.RateLimitError{Platform: models.PlatformTwitter, RetryAfter: time.Hour},
	}

	p, _ := newHarness(t, Config{Interval: time.Minute, RateLimitCap: 10 * time.Minute}, twitter)
	p.Collect(context.Background())
	p.Collect(context.Background())

	assert.Equal(t, 1, twitter.fetchCalls(), "paused platform must not be fetched again")

	status := p.Status()
	require.Len(t, status, 1)
	assert.False(t, status[0].Disabled)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), status[0].PausedUntil, time.Minute,
		"pause must be capped below the service hint")
}

func TestCollectTransientErrorKeepsPlatformRunnable(t *testing.T) {
	twitter := &fakeCollector{
		platform: models.PlatformTwitter,
		err:      &sources.TransientError{Platform: models.PlatformTwitter, Status: 503},
	}

	p, _ := newHarness(t, Config{Interval: time.Minute}, twitter)
	p.Collect(context.Background())
	p.Collect(context.Background())

	assert.Equal(t, 2, twitter.fetchCalls())

	status := p.Status()
	require.Len(t, status, 1)
	assert.False(t, status[0].Disabled)
	assert.True(t, status[0].PausedUntil.IsZero())
}

func TestCollectSuccessClearsPause(t *testing.T) {
	twitter := &fakeCollector{
		platform: models.PlatformTwitter,
		err:      &sources.RateLimitError{Platform: models.PlatformTwitter, RetryAfter: time.Millisecond},
	}

	p, _ := newHarness(t, Config{Interval: time.Minute}, twitter)
	p.Collect(context.Background())

	time.Sleep(5 * time.Millisecond)
	twitter.mu.Lock()
	twitter.err = nil
	twitter.items = []models.RawItem{tweet("1", "oreo")}
	twitter.mu.Unlock()

	p.Collect(context.Background())

	status := p.Status()
	require.Len(t, status, 1)
	assert.True(t, status[0].PausedUntil.IsZero())
	assert.False(t, status[0].LastSuccess.IsZero())
}

func TestCollectNotifiesSpikes(t *testing.T) {
	twitter := &fakeCollector{
		platform: models.PlatformTwitter,
		items: []models.RawItem{
			tweet("1", "oreo is back"),
			tweet("2", "oreo everywhere"),
			tweet("3", "mint flavor only"),
		},
	}
	notifier := &fakeNotifier{}

	p, _ := newHarness(t, Config{Interval: time.Minute, SpikeThreshold: 2}, twitter)
	p.notifier = notifier
	p.Collect(context.Background())

	require.Len(t, notifier.spikes, 1)
	assert.Equal(t, 2, notifier.spikes["Oreo Original"])
}

func TestCollectClassifiesSentiment(t *testing.T) {
	twitter := &fakeCollector{
		platform: models.PlatformTwitter,
		items:    []models.RawItem{tweet("1", "oreo thins are wonderful")},
	}
	classifier := &fakeClassifier{
		labels: map[string]aggregator.SentimentLabel{"1": aggregator.SentimentPositive},
	}

	p, agg := newHarness(t, Config{Interval: time.Minute, SentimentSample: 10}, twitter)
	p.classifier = classifier
	p.Collect(context.Background())

	require.NotNil(t, classifier.seen)
	assert.Contains(t, classifier.seen, "1")

	summary := agg.Summary()
	assert.Equal(t, 1, summary.Sentiment["Oreo Thins"].Positive)
}

func TestStatusOrderIsStable(t *testing.T) {
	twitter := &fakeCollector{platform: models.PlatformTwitter}
	youtube := &fakeCollector{platform: models.PlatformYouTube}

	p, _ := newHarness(t, Config{Interval: time.Minute}, youtube, twitter)

	status := p.Status()
	require.Len(t, status, 2)
	assert.Equal(t, models.PlatformTwitter, status[0].Platform)
	assert.Equal(t, models.PlatformYouTube, status[1].Platform)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	twitter := &fakeCollector{platform: models.PlatformTwitter}
	p, _ := newHarness(t, Config{Interval: 10 * time.Millisecond}, twitter)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	assert.GreaterOrEqual(t, twitter.fetchCalls(), 2)
}

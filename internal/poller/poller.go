// Package poller drives the collection loop: a periodic timer triggers one
// fetch per platform (concurrently, they share no state), and each batch is
// handed to the aggregator serially.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kswift/oreotrends/internal/aggregator"
	"github.com/kswift/oreotrends/internal/metrics"
	"github.com/kswift/oreotrends/internal/models"
	"github.com/kswift/oreotrends/internal/sources"
)

// SentimentClassifier labels mention texts. Optional.
type SentimentClassifier interface {
	Classify(ctx context.Context, texts map[string]string) (map[string]aggregator.SentimentLabel, error)
}

// Notifier receives spike alerts. Optional.
type Notifier interface {
	NotifySpike(ctx context.Context, keyword string, count int) error
}

// Config tunes the polling loop.
type Config struct {
	Interval time.Duration
	// Lookback is how far back each window starts. Overlap with earlier
	// windows is fine; the seen-cache deduplicates.
	Lookback time.Duration
	// EndLag keeps the window end slightly in the past; Twitter rejects
	// end_time values too close to now.
	EndLag time.Duration
	// RateLimitCap bounds how long a service-provided retry hint can pause
	// a platform.
	RateLimitCap time.Duration
	// SpikeThreshold triggers a notification when a keyword reaches this
	// many mentions in a single cycle. Zero disables spike alerts.
	SpikeThreshold int
	// SentimentSample bounds how many matched items get classified per
	// cycle. Zero disables sentiment.
	SentimentSample int
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 15 * time.Minute
	}
	if c.Lookback <= 0 {
		c.Lookback = 2 * c.Interval
	}
	if c.EndLag <= 0 {
		c.EndLag = 30 * time.Second
	}
	if c.RateLimitCap <= 0 {
		c.RateLimitCap = 30 * time.Minute
	}
}

// PlatformStatus is the operator-facing health of one platform's collection.
type PlatformStatus struct {
	Platform    models.Platform `json:"platform"`
	LastSuccess time.Time       `json:"last_success,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	LastErrorAt time.Time       `json:"last_error_at,omitempty"`
	Disabled    bool            `json:"disabled"`
	PausedUntil time.Time       `json:"paused_until,omitempty"`
}

// Poller owns the timer loop and the per-platform status book.
type Poller struct {
	collectors []models.Collector
	agg        *aggregator.Aggregator
	cfg        Config
	metrics    *metrics.Metrics
	log        *logrus.Logger
	classifier SentimentClassifier
	notifier   Notifier

	mu     sync.RWMutex
	status map[models.Platform]*PlatformStatus
}

// New creates a Poller. classifier and notifier may be nil.
func New(collectors []models.Collector, agg *aggregator.Aggregator, cfg Config, m *metrics.Metrics, log *logrus.Logger, classifier SentimentClassifier, notifier Notifier) *Poller {
	cfg.applyDefaults()
	status := make(map[models.Platform]*PlatformStatus, len(collectors))
	for _, c := range collectors {
		status[c.Platform()] = &PlatformStatus{Platform: c.Platform()}
	}
	return &Poller{
		collectors: collectors,
		agg:        agg,
		cfg:        cfg,
		metrics:    m,
		log:        log,
		classifier: classifier,
		notifier:   notifier,
		status:     status,
	}
}

// Run blocks until ctx is cancelled, collecting once immediately and then on
// every tick.
func (p *Poller) Run(ctx context.Context) {
	p.Collect(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Collect(ctx)
		}
	}
}

// Collect runs one full cycle: concurrent fetches, then serial aggregation.
func (p *Poller) Collect(ctx context.Context) {
	started := time.Now()
	batchID := uuid.NewString()[:8]
	log := p.log.WithField("batch_id", batchID)

	window := models.Window{
		Start: started.Add(-p.cfg.Lookback),
		End:   started.Add(-p.cfg.EndLag),
	}

	type fetched struct {
		platform models.Platform
		items    []models.RawItem
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var batches []fetched

	for _, collector := range p.collectors {
		platform := collector.Platform()
		if !p.runnable(platform) {
			log.WithField("platform", platform).Debug("Platform disabled or paused, skipping")
			continue
		}

		wg.Add(1)
		go func(c models.Collector) {
			defer wg.Done()

			items, err := c.Fetch(ctx, window)
			if err != nil {
				p.recordFailure(c.Platform(), err, log)
				return
			}

			p.recordSuccess(c.Platform())
			p.metrics.CollectorRequests.WithLabelValues(string(c.Platform()), "ok").Inc()
			p.metrics.ItemsFetched.WithLabelValues(string(c.Platform())).Add(float64(len(items)))

			mu.Lock()
			batches = append(batches, fetched{platform: c.Platform(), items: items})
			mu.Unlock()
		}(collector)
	}

	wg.Wait()

	// Aggregation is single-threaded per batch; counters stay consistent
	// without per-key locking.
	matchedTexts := make(map[string]string)
	mentionsByKeyword := make(map[string]int)
	var allMentions []models.MentionRecord

	for _, batch := range batches {
		res := p.agg.Apply(batch.items)

		p.metrics.ItemsSkipped.WithLabelValues(string(batch.platform), "malformed").Add(float64(res.Skipped))
		p.metrics.ItemsSkipped.WithLabelValues(string(batch.platform), "duplicate").Add(float64(res.Duplicates))
		for _, m := range res.Mentions {
			p.metrics.Mentions.WithLabelValues(string(m.Platform), string(m.Category)).Inc()
			mentionsByKeyword[m.Keyword]++
		}

		allMentions = append(allMentions, res.Mentions...)
		for id, text := range res.MatchedTexts {
			matchedTexts[id] = text
		}

		log.WithFields(logrus.Fields{
			"platform":   batch.platform,
			"fetched":    len(batch.items),
			"processed":  res.Processed,
			"skipped":    res.Skipped,
			"duplicates": res.Duplicates,
			"mentions":   len(res.Mentions),
		}).Info("Applied batch")
	}

	p.classifySentiment(ctx, matchedTexts, allMentions, log)
	p.alertSpikes(ctx, mentionsByKeyword, log)

	p.metrics.CycleDuration.Observe(time.Since(started).Seconds())
}

func (p *Poller) classifySentiment(ctx context.Context, texts map[string]string, mentions []models.MentionRecord, log *logrus.Entry) {
	if p.classifier == nil || p.cfg.SentimentSample <= 0 || len(texts) == 0 {
		return
	}

	sample := make(map[string]string, p.cfg.SentimentSample)
	for id, text := range texts {
		if len(sample) >= p.cfg.SentimentSample {
			break
		}
		sample[id] = text
	}

	labels, err := p.classifier.Classify(ctx, sample)
	if err != nil {
		log.WithError(err).Warn("Sentiment classification failed, continuing without")
		return
	}

	for _, m := range mentions {
		if label, ok := labels[m.ItemID]; ok {
			p.agg.AddSentiment(m.Keyword, label)
		}
	}
}

func (p *Poller) alertSpikes(ctx context.Context, mentionsByKeyword map[string]int, log *logrus.Entry) {
	if p.notifier == nil || p.cfg.SpikeThreshold <= 0 {
		return
	}
	for keyword, count := range mentionsByKeyword {
		if count < p.cfg.SpikeThreshold {
			continue
		}
		if err := p.notifier.NotifySpike(ctx, keyword, count); err != nil {
			log.WithError(err).WithField("keyword", keyword).Warn("Spike notification failed")
		}
	}
}

func (p *Poller) runnable(platform models.Platform) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	st := p.status[platform]
	if st.Disabled {
		return false
	}
	return st.PausedUntil.IsZero() || time.Now().After(st.PausedUntil)
}

func (p *Poller) recordSuccess(platform models.Platform) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.status[platform]
	st.LastSuccess = time.Now()
	st.PausedUntil = time.Time{}
}

func (p *Poller) recordFailure(platform models.Platform, err error, log *logrus.Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.status[platform]
	st.LastError = err.Error()
	st.LastErrorAt = time.Now()

	var authErr *sources.AuthError
	var rateErr *sources.RateLimitError

	switch {
	case errors.As(err, &authErr):
		// Operator problem; retrying would only burn quota.
		st.Disabled = true
		p.metrics.CollectorRequests.WithLabelValues(string(platform), "auth").Inc()
		log.WithError(err).WithField("platform", platform).Error("Credentials rejected, disabling platform")
	case errors.As(err, &rateErr):
		pause := rateErr.RetryAfter
		if pause > p.cfg.RateLimitCap {
			pause = p.cfg.RateLimitCap
		}
		st.PausedUntil = time.Now().Add(pause)
		p.metrics.CollectorRequests.WithLabelValues(string(platform), "rate_limited").Inc()
		log.WithError(err).WithFields(logrus.Fields{
			"platform":     platform,
			"paused_until": st.PausedUntil.Format(time.RFC3339),
		}).Warn("Rate limited, pausing platform")
	default:
		p.metrics.CollectorRequests.WithLabelValues(string(platform), "error").Inc()
		log.WithError(err).WithField("platform", platform).Warn("Collection failed, data may be stale until next cycle")
	}
}

// Status returns a snapshot of every platform's collection health, in a
// stable order.
func (p *Poller) Status() []PlatformStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]PlatformStatus, 0, len(p.status))
	for _, platform := range models.Platforms() {
		if st, ok := p.status[platform]; ok {
			out = append(out, *st)
		}
	}
	return out
}

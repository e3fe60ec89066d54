// Package aggregator turns raw collected items into per-(platform, category,
// keyword, bucket) mention counts and serves read-only queries over them.
package aggregator

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kswift/oreotrends/internal/cache"
	"github.com/kswift/oreotrends/internal/keywords"
	"github.com/kswift/oreotrends/internal/models"
)

// SentimentLabel classifies the tone of a mention.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

// SentimentCounts tallies sentiment labels for one keyword.
type SentimentCounts struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// Aggregator owns the mention records and the aggregate counters. Batches are
// applied serially under one lock, so counts always equal the number of
// records sharing the key, and accumulation is commutative across batches.
type Aggregator struct {
	matcher *Matcher
	seen    *cache.SeenCache
	bucket  time.Duration
	log     *logrus.Logger

	mu          sync.RWMutex
	counts      map[models.AggregateKey]int
	records     []models.MentionRecord
	items       map[models.Platform]int64
	videos      map[string]VideoStat
	sentiments  map[string]SentimentCounts
	lastApplied map[models.Platform]time.Time
}

// New creates an Aggregator over the given keyword set. bucket is the
// time-bucket width (an hour or a day).
func New(set *keywords.Set, seen *cache.SeenCache, bucket time.Duration, log *logrus.Logger) *Aggregator {
	if bucket <= 0 {
		bucket = time.Hour
	}
	return &Aggregator{
		matcher:     NewMatcher(set),
		seen:        seen,
		bucket:      bucket,
		log:         log,
		counts:      make(map[models.AggregateKey]int),
		items:       make(map[models.Platform]int64),
		videos:      make(map[string]VideoStat),
		sentiments:  make(map[string]SentimentCounts),
		lastApplied: make(map[models.Platform]time.Time),
	}
}

// ApplyResult describes what one batch contributed.
type ApplyResult struct {
	Processed  int
	Skipped    int
	Duplicates int
	Mentions   []models.MentionRecord
	// MatchedTexts maps item ID to text for items that produced at least one
	// mention, for downstream enrichment (sentiment sampling).
	MatchedTexts map[string]string
}

// Apply processes one batch of raw items. A malformed item (missing text or
// timestamp) is skipped and logged, never aborting the batch. Items already
// seen in an earlier overlapping window are skipped as duplicates.
func (a *Aggregator) Apply(batch []models.RawItem) ApplyResult {
	res := ApplyResult{MatchedTexts: make(map[string]string)}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, item := range batch {
		if item.Text == "" || item.PublishedAt.IsZero() {
			a.log.WithFields(logrus.Fields{
				"platform": item.Platform,
				"item_id":  item.ID,
			}).Warn("Skipping malformed item")
			res.Skipped++
			continue
		}
		if !a.seen.MarkSeen(item.Key()) {
			res.Duplicates++
			continue
		}

		res.Processed++
		a.items[item.Platform]++
		a.lastApplied[item.Platform] = time.Now()
		if item.Kind == "video" {
			a.videos[item.ID] = VideoStat{
				ID:    item.ID,
				Title: item.VideoTitle,
				Views: item.Engagement.Views,
			}
		}

		mentions := a.matcher.Match(item.Text)
		if len(mentions) == 0 {
			continue
		}
		res.MatchedTexts[item.ID] = item.Text

		bucket := item.PublishedAt.UTC().Truncate(a.bucket)
		for _, m := range mentions {
			record := models.MentionRecord{
				Platform: item.Platform,
				Category: m.Category,
				Keyword:  m.Keyword,
				Bucket:   bucket,
				ItemID:   item.ID,
			}
			a.records = append(a.records, record)
			a.counts[record.AggregateKey()]++
			res.Mentions = append(res.Mentions, record)
		}
	}

	return res
}

// AddSentiment attributes one classified mention to a keyword.
func (a *Aggregator) AddSentiment(keyword string, label SentimentLabel) {
	a.mu.Lock()
	defer a.mu.Unlock()

	counts := a.sentiments[keyword]
	switch label {
	case SentimentPositive:
		counts.Positive++
	case SentimentNegative:
		counts.Negative++
	default:
		counts.Neutral++
	}
	a.sentiments[keyword] = counts
}

// Filter narrows count queries. Zero values mean "any".
type Filter struct {
	Platform models.Platform
	Category models.Category
	Keyword  string
	Start    time.Time
	End      time.Time
}

func (f Filter) matches(k models.AggregateKey) bool {
	if f.Platform != "" && k.Platform != f.Platform {
		return false
	}
	if f.Category != "" && k.Category != f.Category {
		return false
	}
	if f.Keyword != "" && k.Keyword != f.Keyword {
		return false
	}
	if !f.Start.IsZero() && k.Bucket.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && !k.Bucket.Before(f.End) {
		return false
	}
	return true
}

// CountEntry is one aggregate counter.
type CountEntry struct {
	models.AggregateKey
	Count int `json:"count"`
}

// Counts returns the counters matching the filter, ordered by bucket then
// platform, category, keyword.
func (a *Aggregator) Counts(f Filter) []CountEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []CountEntry
	for key, count := range a.counts {
		if f.matches(key) {
			out = append(out, CountEntry{AggregateKey: key, Count: count})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].AggregateKey, out[j].AggregateKey
		if !a.Bucket.Equal(b.Bucket) {
			return a.Bucket.Before(b.Bucket)
		}
		if a.Platform != b.Platform {
			return a.Platform < b.Platform
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Keyword < b.Keyword
	})
	return out
}

// BucketCount is one point in a keyword trend series.
type BucketCount struct {
	Bucket time.Time `json:"bucket"`
	Count  int       `json:"count"`
}

// Series returns the per-bucket totals for one keyword, summed across
// whatever the filter leaves in (all platforms by default).
func (a *Aggregator) Series(keyword string, f Filter) []BucketCount {
	f.Keyword = keyword

	a.mu.RLock()
	byBucket := make(map[time.Time]int)
	for key, count := range a.counts {
		if f.matches(key) {
			byBucket[key.Bucket] += count
		}
	}
	a.mu.RUnlock()

	out := make([]BucketCount, 0, len(byBucket))
	for bucket, count := range byBucket {
		out = append(out, BucketCount{Bucket: bucket, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bucket.Before(out[j].Bucket) })
	return out
}

// TotalMentions counts mention records for a keyword across the whole
// collection period.
func (a *Aggregator) TotalMentions(keyword string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	total := 0
	for _, r := range a.records {
		if r.Keyword == keyword {
			total++
		}
	}
	return total
}

// MentionCount returns the total number of mention records.
func (a *Aggregator) MentionCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records)
}

// VideoStat is one entry on the top-videos board.
type VideoStat struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Views int64  `json:"views"`
}

// Summary is the executive-summary block the dashboard renders.
type Summary struct {
	TotalItems           map[models.Platform]int64             `json:"total_items"`
	VariantsMentioned    int                                   `json:"variants_mentioned"`
	MostDiscussedProduct string                                `json:"most_discussed_product"`
	TopFlavor            string                                `json:"top_flavor"`
	KeywordTotals        map[models.Category]map[string]int    `json:"keyword_totals"`
	TopVideos            []VideoStat                           `json:"top_videos"`
	Sentiment            map[string]SentimentCounts            `json:"sentiment,omitempty"`
	LastApplied          map[models.Platform]time.Time         `json:"last_applied"`
}

// Summary computes the dashboard headline numbers.
func (a *Aggregator) Summary() Summary {
	a.mu.RLock()
	defer a.mu.RUnlock()

	totals := map[models.Category]map[string]int{
		models.CategoryProduct: {},
		models.CategoryFlavor:  {},
	}
	for key, count := range a.counts {
		totals[key.Category][key.Keyword] += count
	}

	s := Summary{
		TotalItems:           make(map[models.Platform]int64, len(a.items)),
		VariantsMentioned:    len(totals[models.CategoryProduct]),
		MostDiscussedProduct: topKeyword(totals[models.CategoryProduct]),
		TopFlavor:            topKeyword(totals[models.CategoryFlavor]),
		KeywordTotals:        totals,
		TopVideos:            a.topVideos(10),
		LastApplied:          make(map[models.Platform]time.Time, len(a.lastApplied)),
	}
	for platform, n := range a.items {
		s.TotalItems[platform] = n
	}
	for platform, t := range a.lastApplied {
		s.LastApplied[platform] = t
	}
	if len(a.sentiments) > 0 {
		s.Sentiment = make(map[string]SentimentCounts, len(a.sentiments))
		for kw, counts := range a.sentiments {
			s.Sentiment[kw] = counts
		}
	}
	return s
}

func (a *Aggregator) topVideos(n int) []VideoStat {
	videos := make([]VideoStat, 0, len(a.videos))
	for _, v := range a.videos {
		videos = append(videos, v)
	}
	sort.Slice(videos, func(i, j int) bool {
		if videos[i].Views != videos[j].Views {
			return videos[i].Views > videos[j].Views
		}
		return videos[i].ID < videos[j].ID
	})
	if len(videos) > n {
		videos = videos[:n]
	}
	return videos
}

// topKeyword picks the highest-count keyword; ties break alphabetically so
// results are stable.
func topKeyword(totals map[string]int) string {
	best, bestCount := "", -1
	for kw, count := range totals {
		if count > bestCount || (count == bestCount && kw < best) {
			best, bestCount = kw, count
		}
	}
	return best
}

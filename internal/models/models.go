package models

import (
	"context"
	"time"
)

// Platform identifies where an item was collected from.
type Platform string

const (
	PlatformTwitter Platform = "twitter"
	PlatformYouTube Platform = "youtube"
)

// Platforms lists every supported platform in a stable order.
func Platforms() []Platform {
	return []Platform{PlatformTwitter, PlatformYouTube}
}

// Category distinguishes the two keyword groups we track.
type Category string

const (
	CategoryProduct Category = "product"
	CategoryFlavor  Category = "flavor"
)

// Categories lists every keyword category in a stable order.
func Categories() []Category {
	return []Category{CategoryProduct, CategoryFlavor}
}

// Engagement carries the per-platform interaction counters a collector
// could extract. Fields that a platform does not report stay zero.
type Engagement struct {
	Likes    int64 `json:"likes"`
	Views    int64 `json:"views"`
	Replies  int64 `json:"replies"`
	Retweets int64 `json:"retweets"`
}

// RawItem is one social-media post, video or comment as fetched from a
// platform API. It is never mutated after collection.
type RawItem struct {
	Platform    Platform   `json:"platform"`
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	Author      string     `json:"author"`
	PublishedAt time.Time  `json:"published_at"`
	Engagement  Engagement `json:"engagement"`
	// Kind tells videos apart from comments on YouTube; empty for tweets.
	Kind string `json:"kind,omitempty"`
	// VideoTitle survives on video items so the dashboard can rank top
	// videos without a second fetch.
	VideoTitle string `json:"video_title,omitempty"`
}

// Key returns the cross-cycle dedup key for the item.
func (r RawItem) Key() string {
	return string(r.Platform) + ":" + r.ID
}

// MentionRecord is one matched keyword occurrence in one RawItem,
// already resolved to the canonical keyword and a time bucket.
type MentionRecord struct {
	Platform Platform  `json:"platform"`
	Category Category  `json:"category"`
	Keyword  string    `json:"keyword"`
	Bucket   time.Time `json:"bucket"`
	ItemID   string    `json:"item_id"`
}

// AggregateKey addresses one counter in the aggregate store.
type AggregateKey struct {
	Platform Platform  `json:"platform"`
	Category Category  `json:"category"`
	Keyword  string    `json:"keyword"`
	Bucket   time.Time `json:"bucket"`
}

// Key of the mention record's counter.
func (m MentionRecord) AggregateKey() AggregateKey {
	return AggregateKey{
		Platform: m.Platform,
		Category: m.Category,
		Keyword:  m.Keyword,
		Bucket:   m.Bucket,
	}
}

// Window bounds one collection pass.
type Window struct {
	Start time.Time
	End   time.Time
}

// Collector fetches raw items from one platform for a time window.
// Implementations keep no state between calls beyond a pagination cursor.
type Collector interface {
	Fetch(ctx context.Context, window Window) ([]RawItem, error)
	Platform() Platform
}

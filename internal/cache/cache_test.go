package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMarkSeen(t *testing.T) {
	c := New(time.Hour)
	defer c.Close()

	assert.False(t, c.Seen("twitter:t1"))
	assert.True(t, c.MarkSeen("twitter:t1"))
	assert.True(t, c.Seen("twitter:t1"))
	assert.False(t, c.MarkSeen("twitter:t1"), "second mark should be rejected")
}

func TestCleanupDropsExpiredEntries(t *testing.T) {
	c := New(10 * time.Millisecond)
	defer c.Close()

	c.MarkSeen("twitter:old")
	time.Sleep(20 * time.Millisecond)
	c.MarkSeen("twitter:fresh")

	c.performCleanup()

	assert.False(t, c.Seen("twitter:old"))
	assert.True(t, c.Seen("twitter:fresh"))
}

func TestStats(t *testing.T) {
	c := New(time.Hour)
	defer c.Close()

	c.MarkSeen("a")
	c.MarkSeen("b")

	stats := c.Stats()
	assert.Equal(t, 2, stats["tracked_items"])
	assert.Equal(t, time.Hour.String(), stats["retention"])
}

package deckcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fslcore/fsl/internal/corecontext"
	"github.com/fslcore/fsl/internal/deck"
)

func sampleDeck(t *testing.T) *deck.Deck {
	t.Helper()
	d := deck.New(deck.TypeCheckin)
	require.NoError(t, d.SetTimestamp(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
	require.NoError(t, d.SetUser("alice"))
	require.NoError(t, d.SetComment("init"))
	return d
}

func TestCachePutAndGet(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Stop()

	d := sampleDeck(t)
	c.Put("hash1", d)

	got, err := c.Get("hash1")
	require.NoError(t, err)
	assert.Same(t, d, got)
}

func TestCacheGetMiss(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Stop()

	_, err := c.Get("missing")
	assert.Equal(t, corecontext.KindNotFound, corecontext.KindOf(err))
}

func TestCacheExpiration(t *testing.T) {
	c := New(50*time.Millisecond, 0)
	defer c.Stop()

	d := sampleDeck(t)
	c.Put("hash1", d)

	_, err := c.Get("hash1")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	_, err = c.Get("hash1")
	assert.Equal(t, corecontext.KindNotFound, corecontext.KindOf(err))
}

func TestCacheDelete(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Stop()

	d := sampleDeck(t)
	c.Put("hash1", d)
	c.Delete("hash1")

	_, err := c.Get("hash1")
	assert.Equal(t, corecontext.KindNotFound, corecontext.KindOf(err))
}

func TestCacheExists(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Stop()

	assert.False(t, c.Exists("hash1"))
	c.Put("hash1", sampleDeck(t))
	assert.True(t, c.Exists("hash1"))
}

func TestCacheEvictsAtCapacity(t *testing.T) {
	c := New(time.Minute, 2)
	defer c.Stop()

	c.Put("a", sampleDeck(t))
	c.Put("b", sampleDeck(t))
	c.Put("c", sampleDeck(t))

	assert.LessOrEqual(t, c.Len(), 2)
}

package trigram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_ReturnsSameAsExtract(t *testing.T) {
	c, err := NewCache(4)
	require.NoError(t, err)

	assert.Equal(t, Extract("hello"), c.Extract("hello"))
	assert.Equal(t, Extract("hello"), c.Extract("hello"))
	assert.Equal(t, 1, c.Len())
}

func TestCache_ResultIsACopy(t *testing.T) {
	// Given: a cached extraction
	c, err := NewCache(4)
	require.NoError(t, err)
	first := c.Extract("hello")

	// When: the caller mutates the result
	first[0].Text = "zzz"

	// Then: later lookups are unaffected
	second := c.Extract("hello")
	assert.Equal(t, " he", second[0].Text)
}

func TestCache_EvictsOldest(t *testing.T) {
	c, err := NewCache(2)
	require.NoError(t, err)

	c.Extract("a")
	c.Extract("b")
	c.Extract("c")

	assert.Equal(t, 2, c.Len())
}

func TestCache_NilCacheFallsBack(t *testing.T) {
	var c *Cache
	assert.Equal(t, Extract("abc"), c.Extract("abc"))
	assert.Equal(t, 0, c.Len())
}

func TestNewCache_DefaultSize(t *testing.T) {
	c, err := NewCache(0)
	require.NoError(t, err)

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenInMemory(time.Hour)
	require.NoError(t, err, "opening cache")
	t.Cleanup(func() { c.Close() })
	return c
}

type payload struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

func TestSetGet(t *testing.T) {
	c := openTestCache(t)

	want := payload{Title: "Frieren", Tags: []string{"anime", "fantasy"}}
	require.NoError(t, c.Set("tmdb_tv_1668", want))

	var got payload
	hit, err := c.Get("tmdb_tv_1668", &got)
	require.NoError(t, err)
	require.True(t, hit, "expected a cache hit")
	assert.Equal(t, want, got)
}

func TestGet_Miss(t *testing.T) {
	c := openTestCache(t)

	var got payload
	hit, err := c.Get("absent", &got)
	require.NoError(t, err)
	assert.False(t, hit, "expected a cache miss")
}

func TestSetTTL_Expiry(t *testing.T) {
	c := openTestCache(t)

	require.NoError(t, c.SetTTL("ephemeral", payload{Title: "x"}, 50*time.Millisecond))

	time.Sleep(100 * time.Millisecond)

	var got payload
	hit, err := c.Get("ephemeral", &got)
	require.NoError(t, err)
	assert.False(t, hit, "expected the entry to expire")
}

func TestDelete(t *testing.T) {
	c := openTestCache(t)

	require.NoError(t, c.Set("doomed", payload{Title: "x"}))
	require.NoError(t, c.Delete("doomed"))

	var got payload
	hit, _ := c.Get("doomed", &got)
	assert.False(t, hit, "expected the entry to be gone")

	// Deleting an absent key is fine
	assert.NoError(t, c.Delete("never-existed"))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "tmdb_tv_1668", MetadataKey("tmdb", "tv", "1668"))
	assert.Equal(t, "search_mal_anime_frieren_2", SearchKey("mal", "anime", "frieren", 2))
}

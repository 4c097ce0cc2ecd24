package cache_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/sermondl/cache"
	"github.com/xeptore/sermondl/sermonaudio/types"
)

func TestMetadataFetchHitsOnce(t *testing.T) {
	t.Parallel()

	c := cache.New()
	t.Cleanup(c.Stop)

	calls := 0
	fetch := func() (*types.Metadata, error) {
		calls++
		return &types.Metadata{Title: "Grace", Group: nil}, nil
	}

	for range 3 {
		m, err := c.Metadata.Fetch("42", time.Minute, fetch)
		require.NoError(t, err)
		assert.Equal(t, "Grace", m.Title)
	}
	assert.Equal(t, 1, calls)
}

func TestMetadataFetchErrorIsNotCached(t *testing.T) {
	t.Parallel()

	c := cache.New()
	t.Cleanup(c.Stop)

	errBoom := errors.New("boom")
	_, err := c.Metadata.Fetch("42", time.Minute, func() (*types.Metadata, error) { return nil, errBoom })
	require.ErrorIs(t, err, errBoom)

	m, err := c.Metadata.Fetch("42", time.Minute, func() (*types.Metadata, error) {
		return &types.Metadata{Title: "Later", Group: nil}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Later", m.Title)
}

func TestOwnerNamesFetch(t *testing.T) {
	t.Parallel()

	c := cache.New()
	t.Cleanup(c.Stop)

	name, err := c.OwnerNames.Fetch("broadcaster/ghbc", time.Minute, func() (string, error) { return "Grace Heritage", nil })
	require.NoError(t, err)
	assert.Equal(t, "Grace Heritage", name)
}

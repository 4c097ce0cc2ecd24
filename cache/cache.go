package cache

import (
	"fmt"
	"time"

	"github.com/karlseguin/ccache/v3"

	"github.com/xeptore/sermondl/sermonaudio/types"
)

var DefaultOwnerNameTTL = 24 * time.Hour

type Cache struct {
	Metadata   MetadataCache
	OwnerNames OwnerNamesCache
}

func New() *Cache {
	metadataCache := ccache.New(
		ccache.Configure[*types.Metadata]().
			MaxSize(10_000).
			GetsPerPromote(3).
			ItemsToPrune(1),
	)

	ownerNamesCache := ccache.New(
		ccache.Configure[string]().
			MaxSize(1000).
			GetsPerPromote(3).
			ItemsToPrune(1),
	)

	return &Cache{
		Metadata:   MetadataCache{c: metadataCache},
		OwnerNames: OwnerNamesCache{c: ownerNamesCache},
	}
}

func (c *Cache) Stop() {
	c.Metadata.c.Stop()
	c.OwnerNames.c.Stop()
}

// MetadataCache is keyed by sermon ID. Failed fetches are not cached.
type MetadataCache struct {
	c *ccache.Cache[*types.Metadata]
}

func (c *MetadataCache) Fetch(
	k string,
	ttl time.Duration,
	fetch func() (*types.Metadata, error),
) (*types.Metadata, error) {
	v, err := c.c.Fetch(k, ttl, fetch)
	if nil != err {
		return nil, fmt.Errorf("fetch sermon metadata: %w", err)
	}

	return v.Value(), nil
}

// OwnerNamesCache is keyed by "<kind>/<id>".
type OwnerNamesCache struct {
	c *ccache.Cache[string]
}

func (c *OwnerNamesCache) Fetch(
	k string,
	ttl time.Duration,
	fetch func() (string, error),
) (string, error) {
	v, err := c.c.Fetch(k, ttl, fetch)
	if nil != err {
		return "", fmt.Errorf("fetch owner name: %w", err)
	}

	return v.Value(), nil
}

package main

import (
	"context"

	"github.com/sells-group/destination-cli/internal/config"
	"github.com/sells-group/destination-cli/internal/store"
)

// Cache namespaces. With the file driver each is <cache.dir>/<namespace>.json.
const (
	geocodeNamespace = "geocode_cache"
	enrichNamespace  = "enrich_cache"
)

var cacheNamespaces = []string{geocodeNamespace, enrichNamespace}

func openCache(ctx context.Context, c *config.Config, namespace string) (store.KV, error) {
	return store.OpenKV(ctx, c.Cache.Driver, c.Cache.Dir, namespace)
}

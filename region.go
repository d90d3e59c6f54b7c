package s3wire

import (
	"context"
	"sync"
)

// DefaultRegion applies when no region is configured and the lookup
// collaborator yields nothing.
const DefaultRegion = "us-east-1"

// RegionResolver discovers the region a bucket lives in. It is an
// external collaborator: this core never implements the discovery
// protocol itself. An empty result (with nil error) means unknown, and
// the default region applies.
type RegionResolver interface {
	ResolveBucketRegion(ctx context.Context, bucket string) (string, error)
}

// RegionResolverFunc adapts a function to the RegionResolver interface.
type RegionResolverFunc func(ctx context.Context, bucket string) (string, error)

// ResolveBucketRegion implements RegionResolver.
func (f RegionResolverFunc) ResolveBucketRegion(ctx context.Context, bucket string) (string, error) {
	return f(ctx, bucket)
}

// StaticRegion answers every lookup with the same region.
func StaticRegion(region string) RegionResolver {
	return RegionResolverFunc(func(context.Context, string) (string, error) {
		return region, nil
	})
}

// CachedRegions wraps a resolver with a per-bucket cache. Region
// caching belongs to the collaborator, not the orchestration core, so
// the cache is offered as a decorator callers opt into.
func CachedRegions(inner RegionResolver) RegionResolver {
	if inner == nil {
		return nil
	}
	return &cachedRegions{inner: inner, regions: make(map[string]string)}
}

type cachedRegions struct {
	inner   RegionResolver
	mu      sync.RWMutex
	regions map[string]string
}

func (c *cachedRegions) ResolveBucketRegion(ctx context.Context, bucket string) (string, error) {
	c.mu.RLock()
	region, ok := c.regions[bucket]
	c.mu.RUnlock()
	if ok {
		return region, nil
	}
	region, err := c.inner.ResolveBucketRegion(ctx, bucket)
	if err != nil {
		return "", err
	}
	if region != "" {
		c.mu.Lock()
		c.regions[bucket] = region
		c.mu.Unlock()
	}
	return region, nil
}

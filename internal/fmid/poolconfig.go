package fmid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DefaultPoolConfigURL is the fixed, versioned descriptor endpoint that
// publishes the identity pool and client identifiers.
const DefaultPoolConfigURL = "https://www.ifmcloud.com/endpoint/userpool/2.2.0.my.claris.com.json"

// PoolConfig identifies the user pool backing FMID sign-in. Immutable
// once fetched.
type PoolConfig struct {
	UserPoolID string
	ClientID   string
}

// poolConfigCache fetches the descriptor at most once per process. The
// first population is single-flighted so concurrent first callers share
// one request; after that the cached value is read without touching the
// network. Fetch failures cache nothing; the next caller retries.
//
// Tests get a fresh cache by constructing a new one; there is no reset.
type poolConfigCache struct {
	url    string
	client *http.Client

	flight singleflight.Group

	mu  sync.Mutex
	cfg *PoolConfig
}

// defaultPoolCache is the process-wide descriptor cache: every provider
// pointed at the default endpoint shares it, so the descriptor is
// fetched at most once per process. Overriding the URL or HTTP client
// yields a private cache, which is also how tests get a fresh one.
var defaultPoolCache = newPoolConfigCache(DefaultPoolConfigURL, nil)

func newPoolConfigCache(url string, client *http.Client) *poolConfigCache {
	if url == "" {
		url = DefaultPoolConfigURL
	}

	if client == nil {
		client = http.DefaultClient
	}

	return &poolConfigCache{url: url, client: client}
}

// get returns the memoized descriptor, fetching it on first need.
func (c *poolConfigCache) get(ctx context.Context) (*PoolConfig, error) {
	c.mu.Lock()
	cached := c.cfg
	c.mu.Unlock()

	if cached != nil {
		return cached, nil
	}

	v, err, _ := c.flight.Do("poolconfig", func() (any, error) {
		// A previous flight may have populated the cache while this
		// caller was queueing for the group.
		c.mu.Lock()
		cached := c.cfg
		c.mu.Unlock()

		if cached != nil {
			return cached, nil
		}

		fetched, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cfg = fetched
		c.mu.Unlock()

		return fetched, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*PoolConfig), nil
}

func (c *poolConfigCache) fetch(ctx context.Context) (*PoolConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrConfigFetch, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d from %s", ErrConfigFetch, resp.StatusCode, c.url)
	}

	var payload struct {
		Data struct {
			UserPoolID string `json:"UserPool_ID"`
			ClientID   string `json:"Client_ID"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decoding descriptor: %v", ErrConfigFetch, err)
	}

	if payload.Data.UserPoolID == "" || payload.Data.ClientID == "" {
		return nil, fmt.Errorf("%w: descriptor missing pool or client identifier", ErrConfigFetch)
	}

	return &PoolConfig{
		UserPoolID: payload.Data.UserPoolID,
		ClientID:   payload.Data.ClientID,
	}, nil
}

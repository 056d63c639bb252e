package client

import (
	"net/http"
	"time"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
)

// NewCachingHTTPClient creates an HTTP client that honours Cache-Control on
// responses, used for the roster service. Rosters are cached on disk under
// cacheDir so a restart does not refetch every cohort.
func NewCachingHTTPClient(cacheDir string, timeout time.Duration) *http.Client {
	if cacheDir == "" {
		return NewInMemoryCachingHTTPClient(timeout)
	}

	return &http.Client{
		Transport: httpcache.NewTransport(diskcache.New(cacheDir)),
		Timeout:   timeout,
	}
}

// NewInMemoryCachingHTTPClient creates an HTTP client with in-memory caching only.
func NewInMemoryCachingHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: httpcache.NewTransport(httpcache.NewMemoryCache()),
		Timeout:   timeout,
	}
}

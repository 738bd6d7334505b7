package httpclient

import (
	"fmt"
	"net/http"
	"strings"

	"CacheScanner/internal/domain"
)

// StatusExtractor derives a CacheStatus from response headers. Each CDN
// vendor plugs in its own header name and value mapping.
type StatusExtractor interface {
	Name() string
	Extract(headers http.Header) domain.CacheStatus
}

// Registry keeps a mapping from vendor names to their extractors.
type Registry struct {
	extractors map[string]StatusExtractor
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: map[string]StatusExtractor{}}
}

// Register adds or replaces an extractor implementation.
func (r *Registry) Register(e StatusExtractor) {
	if r.extractors == nil {
		r.extractors = map[string]StatusExtractor{}
	}
	r.extractors[e.Name()] = e
}

// Resolve returns an extractor by vendor name or an error if it is absent.
func (r *Registry) Resolve(name string) (StatusExtractor, error) {
	if e, ok := r.extractors[name]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("cdn vendor %s is not registered", name)
}

// CloudflareExtractor reads the CF-Cache-Status header.
type CloudflareExtractor struct{}

// Name identifies the vendor inside the registry.
func (CloudflareExtractor) Name() string {
	return "cloudflare"
}

// Extract maps Cloudflare's status values onto the common vocabulary.
// DYNAMIC means the resource is never cached (a bypass in effect);
// REVALIDATED means the edge served its stored copy after origin contact.
func (CloudflareExtractor) Extract(headers http.Header) domain.CacheStatus {
	value := strings.ToUpper(strings.TrimSpace(headers.Get("CF-Cache-Status")))
	switch value {
	case "HIT", "REVALIDATED":
		return domain.CacheHit
	case "MISS":
		return domain.CacheMiss
	case "BYPASS", "DYNAMIC":
		return domain.CacheBypass
	case "EXPIRED":
		return domain.CacheExpired
	default:
		return domain.CacheUnknown
	}
}

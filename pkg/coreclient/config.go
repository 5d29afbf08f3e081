package coreclient

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Header names understood by the core.
const (
	HeaderVersion  = "cdi-version"
	HeaderAPIKey   = "api-key"
	HeaderRecipeID = "rid"
)

// DefaultTenant is used when a tenant scoped path is built without a tenant.
const DefaultTenant = "public"

// DefaultVersions are the core API versions this SDK can speak.
var DefaultVersions = []string{"3.0", "3.1", "4.0"}

// ErrNoHosts is returned by New when the host list is empty.
var ErrNoHosts = errors.New("coreclient: at least one core host is required")

// Config configures a Client.
type Config struct {
	// Hosts are core base URLs, e.g. "http://localhost:3567". Order matters for
	// round-robin but not for correctness. Required.
	Hosts []string

	// APIKey is sent in the api-key header when set.
	APIKey string

	// HTTPClient performs the actual requests. Per-attempt timeouts live here.
	// Default: 10 second timeout.
	HTTPClient *http.Client

	// Retry controls the 429 retry budget.
	Retry RetryConfig

	// SupportedVersions overrides DefaultVersions.
	SupportedVersions []string

	// Logger receives liveness and retry events. Default: slog.Default().
	Logger *slog.Logger
}

// RetryConfig controls how rate limited calls are retried.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt. Zero means
	// the default of 5, a negative value disables retries.
	MaxRetries int

	// Interval is the fixed delay between attempts. Default: 100ms.
	Interval time.Duration
}

func defaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 5,
		Interval:   100 * time.Millisecond,
	}
}

func (r RetryConfig) normalized() RetryConfig {
	cfg := r
	def := defaultRetryConfig()
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = def.MaxRetries
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	return cfg
}

// ParseHosts splits a ';' separated connection URI list into trimmed host URLs.
func ParseHosts(uris string) []string {
	var hosts []string
	for part := range strings.SplitSeq(uris, ";") {
		part = strings.TrimSuffix(strings.TrimSpace(part), "/")
		if part != "" {
			hosts = append(hosts, part)
		}
	}
	return hosts
}

// TenantPath prefixes path with the tenant segment. An empty tenant maps to
// DefaultTenant.
func TenantPath(tenantID, path string) string {
	if tenantID == "" {
		tenantID = DefaultTenant
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "/" + tenantID + path
}

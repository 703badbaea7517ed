// Package httpcache parses HTTP Cache-Control semantics and computes
// cacheability/TTL verdicts for response caching.
package httpcache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CacheControl holds the directives relevant to caching decisions.
// Unknown directives are ignored; malformed numeric directives are
// ignored too rather than erroring.
type CacheControl struct {
	NoStore              bool
	NoCache              bool
	Private              bool
	Public               bool
	MustRevalidate       bool
	MaxAge               *int64
	SMaxAge              *int64
	StaleWhileRevalidate *int64
}

// Parse reads a Cache-Control header value. Directives are
// case-insensitive and comma-separated, per RFC 7234.
func Parse(header string) CacheControl {
	var cc CacheControl
	for _, raw := range strings.Split(header, ",") {
		part := strings.TrimSpace(raw)
		if part == "" {
			continue
		}
		name, value, hasValue := strings.Cut(part, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.Trim(strings.TrimSpace(value), `"`)

		switch name {
		case "no-store":
			cc.NoStore = true
		case "no-cache":
			cc.NoCache = true
		case "private":
			cc.Private = true
		case "public":
			cc.Public = true
		case "must-revalidate":
			cc.MustRevalidate = true
		case "max-age":
			if hasValue {
				if n, err := strconv.ParseInt(value, 10, 64); err == nil {
					cc.MaxAge = &n
				}
			}
		case "s-maxage":
			if hasValue {
				if n, err := strconv.ParseInt(value, 10, 64); err == nil {
					cc.SMaxAge = &n
				}
			}
		case "stale-while-revalidate":
			if hasValue {
				if n, err := strconv.ParseInt(value, 10, 64); err == nil {
					cc.StaleWhileRevalidate = &n
				}
			}
		}
	}
	return cc
}

// IsCacheable reports whether a response with the given status and
// Cache-Control may be cached at all. Only status 200 qualifies;
// no-store and private gate it further, while no-cache and
// must-revalidate affect revalidation, not cacheability itself.
func IsCacheable(status int, cc CacheControl) bool {
	return status == http.StatusOK && !cc.NoStore && !cc.Private
}

// Policy computes the effective TTL for a cacheable response.
type Policy struct {
	// DefaultTTL is used when no max-age/s-maxage is present, or when
	// IgnoreUpstreamCacheControl is set.
	DefaultTTL time.Duration
	// IgnoreUpstreamCacheControl short-circuits EffectiveTTL to
	// DefaultTTL regardless of what the upstream response specified.
	IgnoreUpstreamCacheControl bool
}

// EffectiveTTL resolves s-maxage over max-age over DefaultTTL.
func (p Policy) EffectiveTTL(cc CacheControl) time.Duration {
	if p.IgnoreUpstreamCacheControl {
		return p.DefaultTTL
	}
	if cc.SMaxAge != nil {
		return time.Duration(*cc.SMaxAge) * time.Second
	}
	if cc.MaxAge != nil {
		return time.Duration(*cc.MaxAge) * time.Second
	}
	return p.DefaultTTL
}

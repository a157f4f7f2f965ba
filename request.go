package refreshkit

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Priority expresses relative urgency of a request. The client records it on
// the envelope and exposes it to middleware; it does not reorder execution.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// String implements fmt.Stringer.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// CachePolicy overrides response caching for a single request.
type CachePolicy struct {
	Enabled bool
	// TTL overrides the cache's default TTL when positive.
	TTL time.Duration
}

// Request describes one logical request. It is a value type: construct it,
// hand it to the client, never mutate it afterwards.
type Request struct {
	// Method is the HTTP method. There is no default; an empty method fails
	// validation.
	Method string

	// Path is resolved against the client's base URL. Absolute URLs are
	// accepted and bypass the base URL.
	Path string

	// Header holds per-request headers, merged over the client defaults.
	Header map[string]string

	// Body is the raw request payload; nil for body-less methods.
	Body []byte

	// ContentType tags the body; set as the Content-Type header when a body
	// is present.
	ContentType string

	// Timeout overrides the client default for this request when positive.
	Timeout time.Duration

	// Priority is recorded for observability.
	Priority Priority

	// Signed marks requests that must carry credentials; validation rejects
	// signed requests without an Authorization header.
	Signed bool

	// Retry overrides the client's retry policy for this request.
	Retry *RetryPolicy

	// Cache overrides the client's cache policy for this request.
	Cache *CachePolicy
}

// validate performs the lightweight request-shape checks run before any
// admission gate is consulted.
func (r Request) validate() error {
	if strings.TrimSpace(r.Method) == "" {
		return &ClientError{Kind: KindInvalidRequest, Message: "method must not be empty"}
	}
	if strings.TrimSpace(r.Path) == "" {
		return &ClientError{Kind: KindInvalidRequest, Message: "path must not be empty"}
	}
	for k := range r.Header {
		if !validHeaderKey(k) {
			return &ClientError{
				Kind:    KindValidation,
				Message: fmt.Sprintf("malformed header key %q", k),
			}
		}
	}
	if r.Signed {
		if _, ok := r.Header["Authorization"]; !ok {
			return &ClientError{
				Kind:    KindValidation,
				Message: "signed request requires an Authorization header",
			}
		}
	}
	return nil
}

// validHeaderKey rejects empty keys and keys containing whitespace or control
// characters. Unknown-but-wellformed keys pass; rejecting malformed ones
// explicitly beats silently forwarding garbage to the transport.
func validHeaderKey(k string) bool {
	if k == "" {
		return false
	}
	for _, c := range k {
		if c <= ' ' || c == 0x7f || c == ':' {
			return false
		}
	}
	return true
}

// resolveURL joins the request path onto the base URL. Absolute paths are
// returned unchanged.
func resolveURL(base, path string) (string, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		if _, err := url.Parse(path); err != nil {
			return "", err
		}
		return path, nil
	}
	if base == "" {
		return "", fmt.Errorf("relative path %q without a base URL", path)
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	return u.ResolveReference(ref).String(), nil
}

// endpointKey produces the tracking key used by the rate limiter and
// metrics labels: host plus path, query stripped.
func endpointKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	var b strings.Builder
	b.WriteString(u.Host)
	if u.Path != "" && u.Path != "/" {
		b.WriteString(u.Path)
	} else {
		b.WriteByte('/')
	}
	return b.String()
}

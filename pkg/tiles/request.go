package tiles

import (
	"net/url"
	"strings"
)

// ResourceKind classifies what a request is for.
type ResourceKind int

const (
	KindUnknown ResourceKind = iota
	KindStyle
	KindSource
	KindTile
	KindGlyphs
	KindSprite
)

var kindNames = [...]string{"Unknown", "Style", "Source", "Tile", "Glyphs", "SpriteImage"}

// String returns the resource type name MapLibre passes to transformRequest.
func (k ResourceKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Unknown"
	}
	return kindNames[k]
}

// ParseResourceKind is the inverse of String.
func ParseResourceKind(s string) ResourceKind {
	for i, n := range kindNames {
		if n == s {
			return ResourceKind(i)
		}
	}
	if s == "SpriteJSON" {
		return KindSprite
	}
	return KindUnknown
}

// Request is a resolved outgoing request.
type Request struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Kind    ResourceKind      `json:"-"`
}

// RequestTransform rewrites a resource URL before it is fetched.
type RequestTransform func(url string, kind ResourceKind) Request

// Apply runs the transform, treating a nil transform as identity.
func (t RequestTransform) Apply(rawURL string, kind ResourceKind) Request {
	if t == nil {
		return Request{URL: rawURL, Kind: kind}
	}
	req := t(rawURL, kind)
	req.Kind = kind
	return req
}

// WithCredential returns a transform that sets access_token=token on every
// http(s) request produced by next. An existing access_token is replaced,
// so a per-export credential overrides a globally configured one.
// An empty token returns next unchanged.
func WithCredential(next RequestTransform, token string) RequestTransform {
	if token == "" {
		return next
	}
	return func(rawURL string, kind ResourceKind) Request {
		req := next.Apply(rawURL, kind)
		if strings.HasPrefix(req.URL, "http://") || strings.HasPrefix(req.URL, "https://") {
			req.URL = setQuery(req.URL, "access_token", token)
		}
		return req
	}
}

// WithHeaders returns a transform that adds headers to every request.
// Headers already set by next win.
func WithHeaders(next RequestTransform, headers map[string]string) RequestTransform {
	if len(headers) == 0 {
		return next
	}
	return func(rawURL string, kind ResourceKind) Request {
		req := next.Apply(rawURL, kind)
		merged := make(map[string]string, len(headers)+len(req.Headers))
		for k, v := range headers {
			merged[k] = v
		}
		for k, v := range req.Headers {
			merged[k] = v
		}
		req.Headers = merged
		return req
	}
}

// setQuery sets key=value in rawURL without re-encoding the path, which may
// still contain template placeholders.
func setQuery(rawURL, key, value string) string {
	base, query, _ := strings.Cut(rawURL, "?")
	fragment := ""
	if i := strings.IndexByte(query, '#'); i >= 0 {
		query, fragment = query[:i], query[i:]
	}
	q, err := url.ParseQuery(query)
	if err != nil {
		q = url.Values{}
	}
	q.Set(key, value)
	return base + "?" + q.Encode() + fragment
}

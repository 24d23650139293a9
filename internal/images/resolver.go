// Package images turns product photo references into displayable URLs.
package images

import (
	"net/url"
	"strings"
)

const (
	ObjectFitCover   = "cover"
	ObjectFitContain = "contain"
)

// Resolver maps a photo reference (absolute URL or storage key) to a URL.
type Resolver struct {
	baseURL     string
	placeholder string
}

// NewResolver creates a Resolver for keys stored under baseURL.
func NewResolver(baseURL, placeholder string) *Resolver {
	return &Resolver{
		baseURL:     strings.TrimRight(baseURL, "/"),
		placeholder: placeholder,
	}
}

// Resolve returns the placeholder for a missing photo, an absolute URL unchanged,
// and base + "/" + key for a storage key. Resolving its own output returns it unchanged.
func (r *Resolver) Resolve(photo *string) string {
	if photo == nil {
		return r.placeholder
	}
	ref := strings.TrimSpace(*photo)
	if ref == "" || ref == r.placeholder {
		return r.placeholder
	}
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" {
		return ref
	}
	return r.baseURL + "/" + strings.TrimLeft(ref, "/")
}

// Fallback is the image shown when a resolved URL fails to load.
func (r *Resolver) Fallback() string {
	return r.placeholder
}

// ObjectFit is the rendering hint for an image; the placeholder is contained rather than cropped.
func ObjectFit(failed bool) string {
	if failed {
		return ObjectFitContain
	}
	return ObjectFitCover
}

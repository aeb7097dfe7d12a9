package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Prompt is a single system/user exchange sent to a model.
type Prompt struct {
	System string
	User   string
}

// CallOptions tune one model call. Zero values fall back to the model defaults.
type CallOptions struct {
	Temperature float64
	MaxTokens   int
}

// Image is an encoded image ready to be attached to a vision request.
type Image struct {
	MIME string
	Data []byte
}

// Cache asset kinds.
const (
	AssetDocument    = "document"
	AssetFigures     = "figures"
	AssetArxivMeta   = "arxiv_meta"
	AssetFigureImage = "figure_image"
)

// CacheKey addresses one derived asset by project, content fingerprint and kind.
type CacheKey struct {
	ProjectID   string
	Fingerprint string
	Kind        string
}

// String is the key identity used for in-memory lookups and flight grouping.
func (k CacheKey) String() string {
	return k.ProjectID + "/" + k.Kind + "/" + k.Fingerprint
}

// Validate rejects keys that cannot be mapped safely onto the file system.
func (k CacheKey) Validate() error {
	for name, part := range map[string]string{"project": k.ProjectID, "fingerprint": k.Fingerprint, "kind": k.Kind} {
		if strings.TrimSpace(part) == "" {
			return fmt.Errorf("cache key %s is empty", name)
		}
		if strings.ContainsAny(part, `/\`) || part == "." || part == ".." {
			return fmt.Errorf("cache key %s %q is not a plain name", name, part)
		}
	}
	return nil
}

// RelPath is the location of the entry below the cache directory.
func (k CacheKey) RelPath() string {
	return filepath.Join(k.ProjectID, k.Kind, k.Fingerprint+".bin")
}

// CacheEntry is a stored payload.
type CacheEntry struct {
	Key       CacheKey
	Payload   []byte
	CreatedAt time.Time
}

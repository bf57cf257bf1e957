package capture

import (
	"crypto/sha256"
	"encoding/hex"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ztrue/tracerr"
)

// ExtensionResolver maps a response content type and source URL to a file
// extension. The resolver is injectable so the mapping can be swapped
// without touching the capture logic.
type ExtensionResolver func(contentType, rawURL string) string

// knownImageExtensions pins the extension for common image media types.
// mime.ExtensionsByType returns platform-dependent orderings for these
// (e.g. ".jfif" before ".jpg" on some systems), so a fixed table comes first.
var knownImageExtensions = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
	"image/avif":    ".avif",
	"image/bmp":     ".bmp",
	"image/tiff":    ".tif",
}

// GuessExtension is the default ExtensionResolver. It prefers the declared
// content type over the URL's own suffix and falls back to ".img" when
// neither yields anything usable.
func GuessExtension(contentType, rawURL string) string {
	if contentType != "" {
		mediaType := strings.TrimSpace(strings.Split(contentType, ";")[0])
		if ext, ok := knownImageExtensions[mediaType]; ok {
			return ext
		}
		if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" {
			return ext
		}
	}
	return ".img"
}

// ImageStore writes image payloads to a directory, deduplicated by content
// digest rather than by URL: the same bytes served from two mirrors produce
// exactly one file. The digest set only grows for the lifetime of the store.
type ImageStore struct {
	dir        string
	resolveExt ExtensionResolver

	mu    sync.Mutex
	seen  map[string]struct{}
	files []string
}

// NewImageStore creates the image directory if needed. A nil resolver means
// GuessExtension.
func NewImageStore(dir string, resolve ExtensionResolver) (*ImageStore, error) {
	if resolve == nil {
		resolve = GuessExtension
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, tracerr.Wrap(err)
	}
	return &ImageStore{
		dir:        dir,
		resolveExt: resolve,
		seen:       make(map[string]struct{}),
	}, nil
}

// Save persists body under a digest-derived name unless an identical payload
// was already written. Empty bodies are discarded without touching the set.
// It reports whether a new file was created.
//
// The membership check and the insert happen under one lock hold, so
// concurrent save tasks can never both claim the same digest.
func (s *ImageStore) Save(body []byte, contentType, sourceURL string) (bool, error) {
	if len(body) == 0 {
		return false, nil
	}
	sum := sha256.Sum256(body)
	digest := hex.EncodeToString(sum[:])

	s.mu.Lock()
	if _, dup := s.seen[digest]; dup {
		s.mu.Unlock()
		return false, nil
	}
	s.seen[digest] = struct{}{}
	s.mu.Unlock()

	name := digest[:16] + s.resolveExt(contentType, sourceURL)
	fullPath := filepath.Join(s.dir, name)
	if err := os.WriteFile(fullPath, body, 0644); err != nil {
		return false, tracerr.Wrap(err)
	}

	s.mu.Lock()
	s.files = append(s.files, fullPath)
	s.mu.Unlock()
	return true, nil
}

// Count returns the number of unique payloads seen so far.
func (s *ImageStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// SavedFiles returns the paths of all written files in completion order.
func (s *ImageStore) SavedFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.files))
	copy(out, s.files)
	return out
}

// Dir returns the image directory.
func (s *ImageStore) Dir() string {
	return s.dir
}

package source

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/couchcryptid/cocci-climate-etl/internal/cache"
	"github.com/couchcryptid/cocci-climate-etl/internal/domain"
)

// CacheObserver is notified of every table cache lookup.
type CacheObserver func(hit bool)

// Loader reads delimited tables from disk. Parsed tables are cached by the
// SHA-256 of the file contents, so an unchanged file is parsed once across
// scheduled runs while an edited file is always re-read.
type Loader struct {
	comma    rune
	cache    *cache.LRU[string, domain.Table]
	observer CacheObserver
}

// NewLoader creates a loader. A nil cache disables caching; a zero comma
// reads comma-separated files.
func NewLoader(c *cache.LRU[string, domain.Table], comma rune, observer CacheObserver) *Loader {
	if comma == 0 {
		comma = ','
	}
	return &Loader{comma: comma, cache: c, observer: observer}
}

// Load reads and parses the table at path. A file that cannot be read is
// reported as *domain.FileAccessError.
func (l *Loader) Load(ctx context.Context, path string) (domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return domain.Table{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Table{}, &domain.FileAccessError{Path: path, Err: err}
	}

	key := l.cacheKey(data)
	if l.cache != nil {
		t, ok := l.cache.Get(key)
		l.observe(ok)
		if ok {
			return t, nil
		}
	}

	t, err := domain.ReadTable(bytes.NewReader(data), l.comma)
	if err != nil {
		return domain.Table{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if l.cache != nil {
		l.cache.Put(key, t)
	}
	return t, nil
}

func (l *Loader) cacheKey(data []byte) string {
	sum := sha256.Sum256(data)
	return string(l.comma) + ":" + hex.EncodeToString(sum[:])
}

func (l *Loader) observe(hit bool) {
	if l.observer != nil {
		l.observer(hit)
	}
}

package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"forgeworks/macrod/internal/cache"
	"forgeworks/macrod/pkg/macro"
)

// Expander resolves tool paths under the configured root and expands
// documents, consulting the cache first.
type Expander struct {
	toolRoot string
	cache    *cache.Cache
	stats    *Stats
	metrics  *Metrics
}

func NewExpander(toolRoot string, c *cache.Cache, stats *Stats, metrics *Metrics) *Expander {
	return &Expander{
		toolRoot: toolRoot,
		cache:    c,
		stats:    stats,
		metrics:  metrics,
	}
}

// Resolve maps a request-supplied relative path to an absolute path,
// rejecting anything that escapes the tool root.
func (e *Expander) Resolve(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("empty path")
	}
	abs := filepath.Join(e.toolRoot, filepath.Clean("/"+rel))
	root := filepath.Clean(e.toolRoot)
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes tool root", rel)
	}
	return abs, nil
}

// Expand loads and expands the document at the given relative path.
// The second return reports whether the result came from the cache.
func (e *Expander) Expand(rel string) (*cache.Entry, bool, error) {
	abs, err := e.Resolve(rel)
	if err != nil {
		return nil, false, err
	}

	if entry := e.cache.Get(abs); entry != nil {
		e.stats.RecordCacheHit()
		e.metrics.ObserveCacheHit()
		return entry, true, nil
	}

	start := time.Now()
	doc, imports, err := macro.LoadWithReferences(abs)
	elapsed := time.Since(start)
	e.metrics.ObserveExpansion(elapsed, err)
	if err != nil {
		e.stats.RecordFailure()
		return nil, false, fmt.Errorf("expanding %s: %w", rel, err)
	}

	xml, err := doc.WriteToString()
	if err != nil {
		e.stats.RecordFailure()
		return nil, false, fmt.Errorf("serializing %s: %w", rel, err)
	}

	entry := &cache.Entry{
		XML:            xml,
		ImportPaths:    imports,
		TemplateParams: macro.TemplateMacroParams(doc.Root()),
		CachedAt:       time.Now(),
	}
	e.cache.Put(abs, entry)
	e.stats.RecordExpansion(elapsed)
	return entry, false, nil
}

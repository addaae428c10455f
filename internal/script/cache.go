package script

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vk/planforge/internal/directive"
	"github.com/vk/planforge/internal/platform"
)

// Cache memoizes build script results across runs of the same process. An
// entry is only reusable when the script opted into path-based invalidation
// with rerun-if-changed and none of its registered paths changed; a script
// that registered no paths reruns every time.
type Cache struct {
	entries *lru.Cache[string, cacheEntry]
}

type cacheEntry struct {
	cfg   *directive.Config
	stamp string
}

// NewCache creates a cache holding up to size script results.
func NewCache(size int) (*Cache, error) {
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// key identifies a script run: same package, same active flags, same target.
func cacheKey(pkg string, active []string, target platform.Platform) string {
	flags := append([]string(nil), active...)
	sort.Strings(flags)
	return fmt.Sprintf("%s|%s|%s/%s/%s", pkg, strings.Join(flags, ","), target.OS, target.Family, target.Arch)
}

// Lookup returns a previously cached config if its rerun triggers are all
// unchanged on disk.
func (c *Cache) Lookup(pkg, dir string, active []string, target platform.Platform) (*directive.Config, bool) {
	if c == nil {
		return nil, false
	}
	entry, ok := c.entries.Get(cacheKey(pkg, active, target))
	if !ok || entry.cfg.RerunAlways() {
		return nil, false
	}
	if stampPaths(dir, entry.cfg.RerunPaths) != entry.stamp {
		return nil, false
	}
	return entry.cfg.Clone(), true
}

// Store records a script result together with the current stamp of its rerun
// triggers. Results without triggers are not stored.
func (c *Cache) Store(pkg, dir string, active []string, target platform.Platform, cfg *directive.Config) {
	if c == nil || cfg.RerunAlways() {
		return
	}
	c.entries.Add(cacheKey(pkg, active, target), cacheEntry{
		cfg:   cfg.Clone(),
		stamp: stampPaths(dir, cfg.RerunPaths),
	})
}

// stampPaths fingerprints the registered paths by size and mtime. A missing
// path stamps distinctly so its appearance later invalidates the entry.
func stampPaths(dir string, paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		full := p
		if !filepath.IsAbs(full) {
			full = filepath.Join(dir, p)
		}
		info, err := os.Stat(full)
		if err != nil {
			fmt.Fprintf(&b, "%s=missing;", p)
			continue
		}
		fmt.Fprintf(&b, "%s=%d:%d;", p, info.Size(), info.ModTime().UnixNano())
	}
	return b.String()
}

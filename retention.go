package video_relay

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
)

// RetentionManager bounds how many files stay resident in the cache directory, evicting
// oldest-by-modification-time first. It is derived state: nothing is tracked between passes,
// every pass rescans the directory.
type RetentionManager struct {
	dir string
	max int
	log *zap.SugaredLogger
}

func NewRetentionManager(dir string, maxResident int) *RetentionManager {
	return &RetentionManager{
		dir: dir,
		max: maxResident,
		log: zap.S().Named("retention"),
	}
}

// EnforceLimit deletes the oldest regular files in the cache directory until at most the
// configured maximum remain. Only regular files count; subdirectories (including staging
// directories) are ignored. A file that cannot be deleted is logged and skipped so it cannot
// block eviction of the rest. Idempotent: a second pass with no intervening writes deletes
// nothing.
func (m *RetentionManager) EnforceLimit() (evicted int, err error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			// Nothing fetched yet means nothing to evict.
			return 0, nil
		}
		return 0, fmt.Errorf("cannot scan cache directory: %w", err)
	}

	type resident struct {
		path    string
		modTime time.Time
	}
	files := make([]resident, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info; no longer resident.
			continue
		}
		files = append(files, resident{
			path:    filepath.Join(m.dir, entry.Name()),
			modTime: info.ModTime(),
		})
	}
	if len(files) <= m.max {
		return 0, nil
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})
	for _, f := range files[:len(files)-m.max] {
		if err := os.Remove(f.path); err != nil {
			m.log.Warnf("could not evict %q: %v", f.path, err)
			continue
		}
		m.log.Infof("evicted %q (modified %s)", f.path, f.modTime.Format(time.RFC3339))
		evicted++
	}
	return evicted, nil
}

package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultPathManager implements path management functionality
type DefaultPathManager struct {
	root string
}

// NewDefaultPathManager creates a path manager rooted at dir, "results" when empty
func NewDefaultPathManager(dir string) *DefaultPathManager {
	if strings.TrimSpace(dir) == "" {
		dir = "results"
	}
	return &DefaultPathManager{root: dir}
}

// JournalPath returns a timestamped export path with the given extension
func (p *DefaultPathManager) JournalPath(now time.Time, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		ext = "xlsx"
	}
	return filepath.Join(p.root, fmt.Sprintf("journal_%s.%s", now.UTC().Format("20060102_150405"), ext))
}

// EnsureDirectoryExists creates the parent directory of path if it doesn't exist
func (p *DefaultPathManager) EnsureDirectoryExists(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

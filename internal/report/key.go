package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ObjectKey builds the storage key for an evidence file:
// <prefix>/<millisecond timestamp>_<original name>. The timestamp keeps
// keys collision-resistant across submissions; the original name keeps
// them recognizable to operators browsing the bucket.
func ObjectKey(prefix, originalName string) string {
	return fmt.Sprintf("%s/%d_%s", prefix, time.Now().UnixMilli(), sanitizeName(originalName))
}

// sanitizeName strips directories and characters that do not belong in an
// object key.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		}
		return '_'
	}, name)
	if name == "" || name == "." || name == ".." {
		name = "file"
	}
	return name
}

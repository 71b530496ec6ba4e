// Package source reads device signals from Linux sysfs and plain files and
// feeds them to the scene monitor.
package source

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/mutker/scened/internal/monitor"
	"codeberg.org/mutker/scened/internal/scene"
)

// Source produces a partial scene update. Factors it cannot observe are
// left out of the update or reported as unknown.
type Source interface {
	Name() string
	Read(ctx context.Context) (monitor.Update, error)
}

// readString returns the trimmed content of a sysfs attribute.
func readString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(data)), nil
}

// readValue parses an integer attribute. Missing or malformed attributes
// are unknown.
func readValue(path string) scene.Value {
	s, err := readString(path)
	if err != nil {
		return scene.Value{}
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return scene.Value{}
	}

	return scene.FromRaw(v)
}

// firstEntry returns the first directory entry under dir accepted by match,
// in lexical order.
func firstEntry(dir string, match func(path string) bool) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if match == nil || match(path) {
			return path, true
		}
	}

	return "", false
}

package sqlbatch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/salespipe/internal/core"
	"github.com/JonMunkholm/salespipe/internal/logging"
)

// Filename markers that admit a .sql file into the batch.
var markers = []string{"_bi_", "_view_"}

// Descriptor identifies one discovered SQL file.
type Descriptor struct {
	Path  string `json:"path"`
	Dir   string `json:"dir"`
	Name  string `json:"name"`  // base name with extension
	Stem  string `json:"stem"`  // base name without extension; names the result file
	Title string `json:"title"` // human-readable label
}

// Describe builds a Descriptor for path.
func Describe(path string) Descriptor {
	name := filepath.Base(path)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return Descriptor{
		Path:  path,
		Dir:   filepath.Dir(path),
		Name:  name,
		Stem:  stem,
		Title: Title(name),
	}
}

// Eligible reports whether a file name has a .sql extension (any case) and
// carries one of the batch markers.
func Eligible(name string) bool {
	lower := strings.ToLower(name)
	if filepath.Ext(lower) != ".sql" {
		return false
	}
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Discover lists eligible files: directories in the given order, each in
// lexical order. A missing or unreadable directory yields a warning instead
// of stopping discovery.
func Discover(ctx context.Context, dirs []string) ([]Descriptor, []error) {
	logger := logging.FromContext(ctx)

	var (
		files    []Descriptor
		warnings []error
	)
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				err = fmt.Errorf("directory %s does not exist", dir)
			}
			w := core.NewError(core.KindDiscovery, "discover", err)
			logger.Warn("sql directory skipped", "dir", dir, "error", w)
			warnings = append(warnings, w)
			continue
		}

		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			if !Eligible(e.Name()) {
				if strings.EqualFold(filepath.Ext(e.Name()), ".sql") {
					logger.Debug("sql file without batch marker skipped", "file", e.Name())
				}
				continue
			}
			files = append(files, Describe(filepath.Join(dir, e.Name())))
		}
	}

	return files, warnings
}

// Package scanner finds importable statement files under a directory so
// a whole download folder can be imported in one command.
package scanner

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// importable maps the file extensions worth feeding to the registry.
var importable = map[string]bool{
	".csv": true,
	".tsv": true,
	".ofx": true,
	".qfx": true,
	".qif": true,
	".txt": true,
	".pdf": true,
}

// Scan walks root and returns importable files sorted by path. Hidden
// directories are skipped; banks do not hide statements but sync tools
// hide state.
func Scan(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if importable[strings.ToLower(filepath.Ext(name))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

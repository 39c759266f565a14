package updater

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// PackageExt is the file extension of extension packages.
const PackageExt = ".vsix"

// Discover returns every package file under root, recursively, sorted.
func Discover(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && strings.EqualFold(filepath.Ext(p), PackageExt) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover packages under %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

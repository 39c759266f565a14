package updater

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/scylladb/go-set/strset"

	"github.com/mrhapile/vsix-updater/pkg/types"
)

// InjectResult lists what the file injector did.
type InjectResult struct {
	Injected      []string
	Skipped       []string
	EmptyPatterns []string
}

// SplitPatterns splits a semicolon separated pattern list, dropping blanks.
func SplitPatterns(patterns string) []string {
	var out []string
	for _, p := range strings.Split(patterns, ";") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// InjectFiles copies files matching patterns in sourceDir into the package.
// Each match becomes the part named by its path relative to sourceDir, so
// "*.pkgdef" yields top-level parts and "Tools/*.dll" parts under /Tools.
// Patterns are not recursive. A match whose part name is already present,
// compared without case, is skipped.
func InjectFiles(pkg Package, patterns, sourceDir string, log types.Logger) (*InjectResult, error) {
	res := &InjectResult{}

	existing := strset.New()
	for _, p := range pkg.ListPaths() {
		existing.Add(strings.ToLower(p))
	}

	for _, pattern := range SplitPatterns(patterns) {
		matches, err := filepath.Glob(filepath.Join(sourceDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("include pattern %q: %w", pattern, err)
		}

		found := 0
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", match, err)
			}
			if info.IsDir() {
				continue
			}
			found++

			name, err := archivePartName(sourceDir, match)
			if err != nil {
				return nil, fmt.Errorf("include pattern %q: %w", pattern, err)
			}
			key := strings.ToLower(name)
			if existing.Has(key) {
				logf(log, types.SeverityInfo, "skipping %s: %s is already in the package", match, name)
				res.Skipped = append(res.Skipped, name)
				continue
			}

			data, err := os.ReadFile(match)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", match, err)
			}
			if err := pkg.WriteBytes(name, data); err != nil {
				return nil, fmt.Errorf("inject %s: %w", name, err)
			}
			existing.Add(key)
			logf(log, types.SeverityInfo, "injected %s as %s", match, name)
			res.Injected = append(res.Injected, name)
		}

		if found == 0 {
			logf(log, types.SeverityWarning, "no files match pattern %q in %s", pattern, sourceDir)
			res.EmptyPatterns = append(res.EmptyPatterns, pattern)
		}
	}
	return res, nil
}

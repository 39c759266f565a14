// Package updater rewrites extension packages so the component based
// installer of newer hosts accepts them: it patches the extension manifest,
// optionally injects extra files, and generates catalog.json and
// manifest.json describing every file in the package.
package updater

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrhapile/vsix-updater/pkg/types"
	"github.com/mrhapile/vsix-updater/pkg/vsix"
)

// Package is the part-level view of an archive the pipeline works through.
// *vsix.Archive implements it.
type Package interface {
	ReadText(path string) (string, error)
	WriteText(path, text string) error
	WriteBytes(path string, data []byte) error
	ListPaths() []string
	Hash(path string) (string, error)
	Size(path string) (int64, error)
}

// Option configures the update process.
type Option func(*config)

type config struct {
	include         string
	sourceDir       string
	nextVersion     string
	installDir      string
	timestamp       time.Time
	logger          types.Logger
	continueOnError bool
}

// WithInclude sets a semicolon separated list of file patterns to inject.
func WithInclude(patterns string) Option {
	return func(c *config) {
		c.include = patterns
	}
}

// WithSourceDir sets the directory include patterns are resolved against.
// Defaults to the directory holding each package.
func WithSourceDir(dir string) Option {
	return func(c *config) {
		c.sourceDir = dir
	}
}

// WithNextVersion sets the exclusive upper bound written into host ranges.
func WithNextVersion(v string) Option {
	return func(c *config) {
		c.nextVersion = v
	}
}

// WithInstallDir fixes the installer directory token. If empty a random
// token is generated for every package (which breaks determinism across runs).
func WithInstallDir(token string) Option {
	return func(c *config) {
		c.installDir = token
	}
}

// WithTimestamp sets the modification time of rewritten parts.
func WithTimestamp(t time.Time) Option {
	return func(c *config) {
		c.timestamp = t
	}
}

// WithLogger sets the sink for progress messages and notices.
func WithLogger(l types.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithContinueOnError makes UpdateAll keep going after a package fails.
func WithContinueOnError(v bool) Option {
	return func(c *config) {
		c.continueOnError = v
	}
}

func newConfig(opts []Option) *config {
	cfg := &config{
		nextVersion: DefaultNextVersion,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Update processes one package in place. On failure the package file is
// left untouched.
func Update(path string, opts ...Option) (*types.ArchiveResult, error) {
	cfg := newConfig(opts)

	var archiveOpts []vsix.Option
	if !cfg.timestamp.IsZero() {
		archiveOpts = append(archiveOpts, vsix.WithModTime(cfg.timestamp))
	}
	archive, err := vsix.Open(path, archiveOpts...)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	result, err := process(archive, path, cfg)
	if err != nil {
		return nil, err
	}

	n, err := archive.Recompress()
	if err != nil {
		return nil, fmt.Errorf("recompress: %w", err)
	}
	result.Recompressed = n
	if n > 0 {
		logf(cfg.logger, types.SeverityInfo, "recompressed %d parts", n)
	}

	if err := archive.Flush(); err != nil {
		return nil, err
	}
	if err := archive.Close(); err != nil {
		return nil, err
	}
	return result, nil
}

func process(pkg Package, path string, cfg *config) (*types.ArchiveResult, error) {
	result := &types.ArchiveResult{ArchivePath: path}

	// 1. Inject extra files before anything reads the inventory
	if strings.TrimSpace(cfg.include) != "" {
		sourceDir := cfg.sourceDir
		if sourceDir == "" {
			sourceDir = filepath.Dir(path)
		}
		injected, err := InjectFiles(pkg, cfg.include, sourceDir, cfg.logger)
		if err != nil {
			return nil, err
		}
		result.InjectedFiles = injected.Injected
		result.SkippedFiles = injected.Skipped
		result.EmptyPatterns = injected.EmptyPatterns
	}

	// 2. Patch the extension manifest
	patched, err := PatchManifest(pkg, cfg.nextVersion, cfg.logger)
	if err != nil {
		return nil, err
	}

	// 3. Inventory, excluding the documents generated below
	files, err := BuildInventory(pkg)
	if err != nil {
		return nil, err
	}

	// 4. Generate and write catalog.json and manifest.json
	installDir := cfg.installDir
	if installDir == "" {
		installDir = NewInstallDirToken()
	}
	docs := BuildDocuments(patched.Info, patched.Dependencies, files, filepath.Base(path), installDir)
	if err := WriteDocuments(pkg, docs); err != nil {
		return nil, err
	}

	result.Manifest = patched.Info
	result.Dependencies = patched.Dependencies
	result.FileCount = len(files)
	result.InstallSize = docs.Manifest.InstallSize
	result.InstallDir = installDir
	return result, nil
}

// UpdateAll processes packages one at a time. The returned error joins an
// *ArchiveError for every package that failed; results hold the packages
// that succeeded. Without WithContinueOnError the first failure stops the run.
func UpdateAll(paths []string, opts ...Option) ([]*types.ArchiveResult, error) {
	cfg := newConfig(opts)

	var (
		results []*types.ArchiveResult
		errs    []error
	)
	for _, p := range paths {
		logf(cfg.logger, types.SeverityInfo, "updating %s...", p)
		res, err := Update(p, opts...)
		if err != nil {
			aerr := &ArchiveError{Path: p, Err: err}
			logf(cfg.logger, types.SeverityError, "%v", aerr)
			errs = append(errs, aerr)
			if !cfg.continueOnError {
				break
			}
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// NewInstallDirToken returns a random opaque directory name.
func NewInstallDirToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func logf(l types.Logger, sev types.Severity, format string, args ...any) {
	if l == nil {
		return
	}
	l.Log(sev, fmt.Sprintf(format, args...))
}

package types

// ManifestInfo is the identity read back from the patched extension manifest.
// Version is kept as written in the manifest and never parsed.
type ManifestInfo struct {
	ID          string `json:"id"`
	Version     string `json:"version"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ArchiveResult represents the output of a successful update of one package.
type ArchiveResult struct {
	ArchivePath   string       `json:"archivePath"`             // The path of the updated package
	Manifest      ManifestInfo `json:"manifest"`                // Identity of the extension
	Dependencies  Dependencies `json:"dependencies"`            // Harvested or seeded prerequisites
	FileCount     int          `json:"fileCount"`               // Number of inventory entries
	InstallSize   int64        `json:"installSize"`             // Sum of inventory sizes
	InstallDir    string       `json:"installDir"`              // Random installer directory token
	InjectedFiles []string     `json:"injectedFiles,omitempty"` // Parts added by the file injector
	SkippedFiles  []string     `json:"skippedFiles,omitempty"`  // Matches already present in the package
	EmptyPatterns []string     `json:"emptyPatterns,omitempty"` // Include patterns that matched nothing
	Recompressed  int          `json:"recompressed"`            // Parts rewritten at maximum compression
}

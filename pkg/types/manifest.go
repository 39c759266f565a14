package types

// PackageManifestDocument is the per-package manifest.json consumed by the
// installer at install time. Field order is the wire order.
type PackageManifestDocument struct {
	ID           string       `json:"id"`
	Version      string       `json:"version"`
	Type         string       `json:"type"`
	VsixID       string       `json:"vsixId"`
	ExtensionDir string       `json:"extensionDir"`
	Files        []FileEntry  `json:"files"`
	InstallSize  int64        `json:"installSize"`
	Dependencies Dependencies `json:"dependencies"`
}

// FileEntry represents a single file inside the package.
type FileEntry struct {
	// Path is the root-relative, forward-slash part name (e.g. "/extension.vsixmanifest").
	Path string `json:"path"`

	// SHA256 is the uppercase hex checksum of the part content.
	SHA256 string `json:"sha256"`

	// Size is the size of the part content in bytes.
	Size int64 `json:"size"`
}

// TotalSize sums the sizes of all entries.
func TotalSize(files []FileEntry) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}

package updater

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mrhapile/vsix-updater/pkg/types"
)

// InventoryBuilder collects the file inventory of a package.
type InventoryBuilder struct {
	files []types.FileEntry
}

func NewInventoryBuilder() *InventoryBuilder {
	return &InventoryBuilder{files: []types.FileEntry{}}
}

func (ib *InventoryBuilder) AddFile(path, sha256 string, size int64) {
	ib.files = append(ib.files, types.FileEntry{
		Path:   path,
		SHA256: sha256,
		Size:   size,
	})
}

func (ib *InventoryBuilder) Build() []types.FileEntry {
	return ib.files
}

// BuildInventory hashes and sizes every part except the generated JSON
// documents, in archive order.
func BuildInventory(pkg Package) ([]types.FileEntry, error) {
	ib := NewInventoryBuilder()
	for _, p := range pkg.ListPaths() {
		if isGenerated(p) {
			continue
		}
		sum, err := pkg.Hash(p)
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", p, err)
		}
		size, err := pkg.Size(p)
		if err != nil {
			return nil, fmt.Errorf("size %s: %w", p, err)
		}
		ib.AddFile(p, sum, size)
	}
	return ib.Build(), nil
}

// Documents holds the two generated installer documents.
type Documents struct {
	Catalog  types.CatalogDocument
	Manifest types.PackageManifestDocument
}

// BuildDocuments assembles catalog.json and manifest.json. The catalog's
// component package also depends on the extension itself; manifest.json
// carries the dependencies unchanged.
func BuildDocuments(info types.ManifestInfo, deps types.Dependencies, files []types.FileEntry, archiveName, installDir string) Documents {
	installSize := types.TotalSize(files)
	extensionDir := ExtensionDir(installDir)

	componentDeps := deps.Clone()
	componentDeps.Set(info.ID, info.Version)

	catalog := types.CatalogDocument{
		ManifestVersion: CatalogManifestVersion,
		Info:            types.CatalogInfo{ID: fmt.Sprintf("%s,version=%s", info.ID, info.Version)},
		Packages: types.CatalogPackages{
			Component: types.CatalogComponentPackage{
				ID:           ComponentPrefix + info.ID,
				Version:      info.Version,
				Type:         ComponentType,
				Extension:    true,
				Dependencies: componentDeps,
				LocalizedResources: []types.LocalizedResource{{
					Language:    ResourceLanguage,
					Title:       info.Title,
					Description: info.Description,
				}},
			},
			Vsix: types.CatalogVsixPackage{
				ID:      info.ID,
				Version: info.Version,
				Type:    PackageType,
				Payloads: []types.Payload{{
					FileName: archiveName,
					Size:     installSize,
				}},
				VsixID:       info.ID,
				ExtensionDir: extensionDir,
				InstallSize:  installSize,
			},
		},
	}

	manifest := types.PackageManifestDocument{
		ID:           info.ID,
		Version:      info.Version,
		Type:         PackageType,
		VsixID:       info.ID,
		ExtensionDir: extensionDir,
		Files:        files,
		InstallSize:  installSize,
		Dependencies: deps.Clone(),
	}

	return Documents{Catalog: catalog, Manifest: manifest}
}

// WriteDocuments serializes both documents into their well-known parts.
func WriteDocuments(pkg Package, docs Documents) error {
	catalogJSON, err := MarshalDocument(docs.Catalog)
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	if err := pkg.WriteText(CatalogPart, string(catalogJSON)); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	manifestJSON, err := MarshalDocument(docs.Manifest)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := pkg.WriteText(PackagePart, string(manifestJSON)); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// MarshalDocument renders v as two-space indented JSON without HTML
// escaping and without a trailing newline.
func MarshalDocument(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

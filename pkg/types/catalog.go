package types

import (
	"bytes"
	"encoding/json"
)

// CatalogDocument is the installer-facing catalog.json.
type CatalogDocument struct {
	ManifestVersion string          `json:"manifestVersion"`
	Info            CatalogInfo     `json:"info"`
	Packages        CatalogPackages `json:"packages"`
}

// CatalogInfo identifies the catalog as "<id>,version=<version>".
type CatalogInfo struct {
	ID string `json:"id"`
}

// CatalogPackages holds the two package descriptors of a catalog. It is
// encoded as a JSON array, component first.
type CatalogPackages struct {
	Component CatalogComponentPackage
	Vsix      CatalogVsixPackage
}

// MarshalJSON encodes the packages as a two element array.
func (p CatalogPackages) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]any{p.Component, p.Vsix}); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON decodes a two element package array.
func (p *CatalogPackages) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw[0], &p.Component); err != nil {
			return err
		}
	}
	if len(raw) > 1 {
		if err := json.Unmarshal(raw[1], &p.Vsix); err != nil {
			return err
		}
	}
	return nil
}

// CatalogComponentPackage is the synthetic "Component.<id>" package.
type CatalogComponentPackage struct {
	ID                 string              `json:"id"`
	Version            string              `json:"version"`
	Type               string              `json:"type"`
	Extension          bool                `json:"extension"`
	Dependencies       Dependencies        `json:"dependencies"`
	LocalizedResources []LocalizedResource `json:"localizedResources"`
}

// LocalizedResource carries the display strings for one language.
type LocalizedResource struct {
	Language    string `json:"language"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CatalogVsixPackage describes the extension payload itself.
type CatalogVsixPackage struct {
	ID           string    `json:"id"`
	Version      string    `json:"version"`
	Type         string    `json:"type"`
	Payloads     []Payload `json:"payloads"`
	VsixID       string    `json:"vsixId"`
	ExtensionDir string    `json:"extensionDir"`
	InstallSize  int64     `json:"installSize"`
}

// Payload names the archive file and its install size.
type Payload struct {
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
}

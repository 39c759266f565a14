package updater

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mrhapile/vsix-updater/pkg/types"
	"github.com/mrhapile/vsix-updater/pkg/vsix"
)

const testTypes = `<?xml version="1.0" encoding="utf-8"?>` +
	`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="vsixmanifest" ContentType="text/xml" />` +
	`<Default Extension="dll" ContentType="application/octet-stream" />` +
	`</Types>`

// manifestXML renders an extension manifest. prereqs is inserted verbatim
// after the Installation element.
func manifestXML(id, version, targets, prereqs string) string {
	return `<?xml version="1.0" encoding="utf-8"?>
<PackageManifest Version="2.0.0" xmlns="http://schemas.microsoft.com/developer/vsx-schema/2011" xmlns:d="http://schemas.microsoft.com/developer/vsx-schema-design/2011">
  <Metadata>
    <Identity Id="` + id + `" Version="` + version + `" Language="en-US" Publisher="Contoso" />
    <DisplayName>Contoso Tool</DisplayName>
    <Description>Does things &amp; more</Description>
  </Metadata>
  <Installation>
` + targets + `
  </Installation>
` + prereqs + `
</PackageManifest>`
}

func target(id, rng string) string {
	return fmt.Sprintf(`    <InstallationTarget Id="%s" Version="%s" />`, id, rng)
}

type entry struct {
	name   string
	data   []byte
	method uint16
}

func writePackage(t *testing.T, dir, name string, entries ...entry) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	all := append([]entry{{name: vsix.ContentTypesName, data: []byte(testTypes), method: zip.Deflate}}, entries...)
	for _, e := range all {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: e.method})
		if err != nil {
			t.Fatalf("create %s: %v", e.name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			t.Fatalf("write %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func filled(n int, b byte) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func sha(data []byte) string {
	sum := sha256.Sum256(data)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// memPackage is an in-memory Package.
type memPackage struct {
	order []string
	parts map[string][]byte
}

func newMemPackage(kv ...string) *memPackage {
	m := &memPackage{parts: make(map[string][]byte)}
	for i := 0; i+1 < len(kv); i += 2 {
		_ = m.WriteText(kv[i], kv[i+1])
	}
	return m
}

func (m *memPackage) ReadText(p string) (string, error) {
	data, ok := m.parts[p]
	if !ok {
		return "", &vsix.PartNotFoundError{Part: p}
	}
	return string(data), nil
}

func (m *memPackage) WriteText(p, text string) error {
	return m.WriteBytes(p, []byte(text))
}

func (m *memPackage) WriteBytes(p string, data []byte) error {
	if _, ok := m.parts[p]; !ok {
		m.order = append(m.order, p)
	}
	m.parts[p] = append([]byte(nil), data...)
	return nil
}

func (m *memPackage) Exists(p string) bool {
	_, ok := m.parts[p]
	return ok
}

func (m *memPackage) ListPaths() []string {
	return append([]string(nil), m.order...)
}

func (m *memPackage) Hash(p string) (string, error) {
	data, ok := m.parts[p]
	if !ok {
		return "", &vsix.PartNotFoundError{Part: p}
	}
	return sha(data), nil
}

func (m *memPackage) Size(p string) (int64, error) {
	data, ok := m.parts[p]
	if !ok {
		return 0, &vsix.PartNotFoundError{Part: p}
	}
	return int64(len(data)), nil
}

func recordLogger(out *[]string) types.Logger {
	return types.LoggerFunc(func(sev types.Severity, msg string) {
		*out = append(*out, sev.String()+" "+msg)
	})
}

package vsix

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const fixtureTypes = `<?xml version="1.0" encoding="utf-8"?>` +
	`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="vsixmanifest" ContentType="text/xml" />` +
	`<Default Extension="dll" ContentType="application/octet-stream" />` +
	`<Default Extension="xml" ContentType="application/xml" />` +
	`</Types>`

type fixtureEntry struct {
	name   string
	data   string
	method uint16
}

func writeFixture(t *testing.T, entries []fixtureEntry) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: e.method})
		if err != nil {
			t.Fatalf("create %s: %v", e.name, err)
		}
		if _, err := w.Write([]byte(e.data)); err != nil {
			t.Fatalf("write %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	path := filepath.Join(t.TempDir(), "fixture.vsix")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func defaultFixture(t *testing.T) string {
	return writeFixture(t, []fixtureEntry{
		{name: ContentTypesName, data: fixtureTypes, method: zip.Deflate},
		{name: "extension.vsixmanifest", data: "<PackageManifest />", method: zip.Deflate},
		{name: "Tools/helper.dll", data: "hello", method: zip.Store},
		{name: "Tools/", method: zip.Store},
	})
}

func openFixture(t *testing.T, path string) *Archive {
	t.Helper()
	a, err := Open(path, WithModTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.vsix")
	if err := os.WriteFile(garbage, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{name: "missing", path: filepath.Join(dir, "missing.vsix")},
		{name: "not a zip", path: garbage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.path)
			var openErr *OpenError
			if !errors.As(err, &openErr) {
				t.Fatalf("expected OpenError, got %v", err)
			}
			if openErr.Path != tt.path {
				t.Fatalf("path = %q, want %q", openErr.Path, tt.path)
			}
		})
	}
}

func TestListPathsSkipsContentTypesAndDirectories(t *testing.T) {
	a := openFixture(t, defaultFixture(t))

	got := a.ListPaths()
	want := []string{"/extension.vsixmanifest", "/Tools/helper.dll"}
	if len(got) != len(want) {
		t.Fatalf("ListPaths = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ListPaths[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestReadWriteParts(t *testing.T) {
	a := openFixture(t, defaultFixture(t))

	text, err := a.ReadText("extension.vsixmanifest")
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if text != "<PackageManifest />" {
		t.Fatalf("ReadText = %q", text)
	}

	if err := a.WriteText("/extension.vsixmanifest", "<x/>"); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	text, _ = a.ReadText("/extension.vsixmanifest")
	if text != "<x/>" {
		t.Fatalf("write did not replace content: %q", text)
	}

	_, err = a.ReadBytes("/nope.txt")
	var nf *PartNotFoundError
	if !errors.As(err, &nf) || nf.Part != "/nope.txt" {
		t.Fatalf("expected PartNotFoundError for /nope.txt, got %v", err)
	}

	if a.Exists("/tools/helper.dll") {
		t.Fatal("existence check must be case-sensitive")
	}
}

func TestWriteKeepsExistingCompression(t *testing.T) {
	a := openFixture(t, defaultFixture(t))

	if err := a.WriteBytes("/Tools/helper.dll", []byte("changed")); err != nil {
		t.Fatal(err)
	}
	c, err := a.Compression("/Tools/helper.dll")
	if err != nil {
		t.Fatal(err)
	}
	if c != NotCompressed {
		t.Fatalf("compression = %v, want none", c)
	}

	if err := a.WriteBytes("/new.bin", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if c, _ := a.Compression("/new.bin"); c != Maximum {
		t.Fatalf("new part compression = %v, want maximum", c)
	}
}

func TestContentTypeInference(t *testing.T) {
	tests := []struct {
		part string
		want string
	}{
		{part: "/readme.txt", want: "text/plain"},
		{part: "/README.TXT", want: "text/plain"},
		{part: "/a.PkgDef", want: "text/plain"},
		{part: "/page.HTML", want: "text/html"},
		{part: "/doc.Pdf", want: "application/pdf"},
		{part: "/logo.JPEG", want: "image/jpg"},
		{part: "/nested.VSIX", want: "application/zip"},
		{part: "/catalog.json", want: "application/json"},
		{part: "/noext", want: "application/octet-stream"},
		// xml is already mapped to application/xml by the package, so the
		// new part gets an override.
		{part: "/Schema.XML", want: "text/xml"},
	}
	for _, tt := range tests {
		t.Run(tt.part, func(t *testing.T) {
			path := defaultFixture(t)
			a := openFixture(t, path)
			if err := a.WriteText(tt.part, "data"); err != nil {
				t.Fatalf("write: %v", err)
			}
			got, err := a.ContentType(tt.part)
			if err != nil {
				t.Fatalf("ContentType: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ContentType = %q, want %q", got, tt.want)
			}

			if err := a.Flush(); err != nil {
				t.Fatalf("flush: %v", err)
			}
			if err := a.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
			reopened := openFixture(t, path)
			got, err = reopened.ContentType(tt.part)
			if err != nil {
				t.Fatalf("ContentType after reopen: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ContentType after reopen = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInferContentTypeIgnoresCase(t *testing.T) {
	for _, name := range []string{"a.gif", "a.GIF", "a.Gif"} {
		if got := InferContentType(name); got != "image/gif" {
			t.Fatalf("InferContentType(%q) = %q", name, got)
		}
	}
}

func TestHashStableAcrossRewrite(t *testing.T) {
	a := openFixture(t, defaultFixture(t))

	const helloSHA = "2CF24DBA5FB0A30E26E83B2AC5B9E29E1B161E5C1FA7425E73043362938B9824"
	before, err := a.Hash("/Tools/helper.dll")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if before != helloSHA {
		t.Fatalf("hash = %s, want %s", before, helloSHA)
	}

	data, err := a.ReadBytes("/Tools/helper.dll")
	if err != nil {
		t.Fatal(err)
	}
	if err := a.WriteBytes("/Tools/helper.dll", data); err != nil {
		t.Fatal(err)
	}
	after, err := a.Hash("/Tools/helper.dll")
	if err != nil {
		t.Fatal(err)
	}
	if after != before {
		t.Fatalf("hash changed after identical rewrite: %s != %s", after, before)
	}

	size, err := a.Size("/Tools/helper.dll")
	if err != nil {
		t.Fatal(err)
	}
	if size != 5 {
		t.Fatalf("size = %d, want 5", size)
	}
}

func TestRecompressConverges(t *testing.T) {
	path := defaultFixture(t)
	a := openFixture(t, path)

	n, err := a.Recompress()
	if err != nil {
		t.Fatalf("recompress: %v", err)
	}
	if n != 2 {
		t.Fatalf("recompressed %d parts, want 2", n)
	}
	for _, p := range a.ListPaths() {
		if c, _ := a.Compression(p); c != Maximum {
			t.Fatalf("%s compression = %v after recompress", p, c)
		}
	}
	n, err = a.Recompress()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("second recompress rewrote %d parts", n)
	}
	if ctype, _ := a.ContentType("/Tools/helper.dll"); ctype != "application/octet-stream" {
		t.Fatalf("content type lost: %q", ctype)
	}

	if err := a.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("reopen with archive/zip: %v", err)
	}
	defer zr.Close()
	seen := 0
	for _, f := range zr.File {
		if f.Name == "Tools/" {
			continue
		}
		seen++
		if f.Method != zip.Deflate || f.Flags&flagLevelMask != flagMaximum {
			t.Fatalf("%s method=%d flags=%#x, want maximum deflate", f.Name, f.Method, f.Flags)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		_ = rc.Close()
	}
	if seen != 3 {
		t.Fatalf("saw %d entries, want 3", seen)
	}

	reopened := openFixture(t, path)
	data, err := reopened.ReadText("/Tools/helper.dll")
	if err != nil || data != "hello" {
		t.Fatalf("content after recompress = %q, %v", data, err)
	}
}

func TestCloseWithoutFlushDiscardsChanges(t *testing.T) {
	path := defaultFixture(t)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	a := openFixture(t, path)
	if err := a.WriteText("/extra.txt", "x"); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("package changed without Flush")
	}
}

func TestOperationsAfterClose(t *testing.T) {
	a := openFixture(t, defaultFixture(t))
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := a.ReadBytes("/extension.vsixmanifest"); !errors.Is(err, ErrClosed) {
		t.Fatalf("ReadBytes after close: %v", err)
	}
	if err := a.WriteText("/a.txt", "x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("WriteText after close: %v", err)
	}
	if _, err := a.Recompress(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Recompress after close: %v", err)
	}
	if err := a.Flush(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Flush after close: %v", err)
	}
	if a.ListPaths() != nil {
		t.Fatal("ListPaths after close should be nil")
	}
}

func TestDeletePart(t *testing.T) {
	path := defaultFixture(t)
	a := openFixture(t, path)
	if err := a.Delete("/Tools/helper.dll"); err != nil {
		t.Fatal(err)
	}
	if a.Exists("/Tools/helper.dll") {
		t.Fatal("part still present")
	}
	var nf *PartNotFoundError
	if err := a.Delete("/Tools/helper.dll"); !errors.As(err, &nf) {
		t.Fatalf("second delete: %v", err)
	}
	if err := a.Flush(); err != nil {
		t.Fatal(err)
	}
	_ = a.Close()

	reopened := openFixture(t, path)
	if got := reopened.ListPaths(); len(got) != 1 || got[0] != "/extension.vsixmanifest" {
		t.Fatalf("ListPaths after delete = %v", got)
	}
}

func TestOpenLocksPackage(t *testing.T) {
	path := defaultFixture(t)
	first := openFixture(t, path)

	_, err := Open(path)
	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("second open: expected OpenError, got %v", err)
	}
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("second open: expected ErrLocked, got %v", err)
	}

	if err := first.WriteText("/x.txt", "x"); err != nil {
		t.Fatal(err)
	}
	if err := first.Flush(); err != nil {
		t.Fatalf("flush under lock: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second := openFixture(t, path)
	if !second.Exists("/x.txt") {
		t.Fatal("write from the first handle lost")
	}
}

// failingFile fails the first Write after writing half of the data.
type failingFile struct {
	*os.File
	failed bool
}

func (f *failingFile) Write(p []byte) (int, error) {
	if !f.failed {
		f.failed = true
		n, _ := f.File.Write(p[:len(p)/2])
		return n, errors.New("disk full")
	}
	return f.File.Write(p)
}

func TestFlushFailureRestoresPackage(t *testing.T) {
	path := defaultFixture(t)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	a := openFixture(t, path)
	if err := a.WriteText("/extension.vsixmanifest", "<changed/>"); err != nil {
		t.Fatal(err)
	}
	if err := a.flushTo(&failingFile{File: a.file}); err == nil {
		t.Fatal("expected flush error")
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Fatalf("package not restored: %d bytes, want %d", len(after), len(before))
	}
}

func TestPartNameEscaping(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "extension.vsixmanifest", want: "/extension.vsixmanifest"},
		{in: `Tools\helper.dll`, want: "/Tools/helper.dll"},
		{in: "my file.txt", want: "/my%20file.txt"},
		{in: "/my%20file.txt", want: "/my%20file.txt"},
		{in: "docs/read me/a b.txt", want: "/docs/read%20me/a%20b.txt"},
		{in: "100%.txt", want: "/100%25.txt"},
	}
	for _, tt := range tests {
		if got := PartName(tt.in); got != tt.want {
			t.Errorf("PartName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscapedPartNamesOnDisk(t *testing.T) {
	path := writeFixture(t, []fixtureEntry{
		{name: ContentTypesName, data: fixtureTypes, method: zip.Deflate},
		{name: "old%20name.dll", data: "old", method: zip.Deflate},
	})
	a := openFixture(t, path)
	if !a.Exists("/old name.dll") || !a.Exists("/old%20name.dll") {
		t.Fatal("escaped entry not found by either spelling")
	}
	if err := a.WriteText("my file.txt", "new"); err != nil {
		t.Fatal(err)
	}
	if err := a.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["my%20file.txt"] || names["my file.txt"] {
		t.Fatalf("entries = %v, want my%%20file.txt", names)
	}
	if !names["old%20name.dll"] {
		t.Fatalf("entries = %v, existing escaped entry renamed", names)
	}
}

// Package vsix gives part-level read/write access to a zip based extension
// package laid out with Open Packaging Conventions.
package vsix

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/sassoftware/relic/v7/lib/signappx"
)

type part struct {
	name     string    // canonical part name, e.g. "/extension.vsixmanifest"
	entry    string    // zip entry name as stored, "" for new parts
	src      *zip.File // original entry, nil once the content is replaced
	data     []byte    // replaced content
	method   uint16
	flags    uint16
	modified time.Time
}

func (p *part) compression() Compression {
	return compressionOf(p.method, p.flags)
}

// Archive is an open package. It is owned by one caller and is not safe for
// concurrent use. All changes stay in memory until Flush.
type Archive struct {
	path    string
	file    *os.File
	raw     []byte // file content as opened, restored if Flush fails midway
	comment string
	modTime time.Time

	parts []*part
	index map[string]*part
	extra []*zip.File // directory entries, copied through untouched

	ctypes      *signappx.ContentTypes
	ctypesEntry *zip.File
	ctypesBlob  []byte
	ctypesDirty bool

	closed bool
}

// Option configures an Archive.
type Option func(*Archive)

// WithModTime sets the modification time recorded for parts written through
// the archive. Defaults to time.Now().
func WithModTime(t time.Time) Option {
	return func(a *Archive) {
		a.modTime = t
	}
}

// Open opens an existing package for read-write and takes an exclusive
// lock on it. The file handle and the lock are held until Close. A package
// locked by another handle fails with an *OpenError wrapping ErrLocked.
func Open(path string, opts ...Option) (*Archive, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, &OpenError{Path: path, Err: err}
	}
	a, err := load(path, f)
	if err != nil {
		_ = unlockFile(f)
		_ = f.Close()
		return nil, &OpenError{Path: path, Err: err}
	}
	a.modTime = time.Now()
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func load(path string, f *os.File) (*Archive, error) {
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, err
	}
	zr.RegisterDecompressor(zip.Deflate, flate.NewReader)

	a := &Archive{
		path:    path,
		file:    f,
		raw:     raw,
		comment: zr.Comment,
		index:   make(map[string]*part),
		ctypes:  signappx.NewContentTypes(),
	}
	for _, zf := range zr.File {
		switch {
		case zf.Name == ContentTypesName:
			blob, err := readEntry(zf)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", ContentTypesName, err)
			}
			if err := a.ctypes.Parse(blob); err != nil {
				return nil, fmt.Errorf("parse %s: %w", ContentTypesName, err)
			}
			a.ctypesEntry = zf
			a.ctypesBlob = blob
		case strings.HasSuffix(zf.Name, "/"):
			a.extra = append(a.extra, zf)
		default:
			name := PartName(zf.Name)
			if _, dup := a.index[name]; dup {
				return nil, fmt.Errorf("duplicate part %s", name)
			}
			p := &part{
				name:     name,
				entry:    zf.Name,
				src:      zf,
				method:   zf.Method,
				flags:    zf.Flags,
				modified: zf.Modified,
			}
			a.parts = append(a.parts, p)
			a.index[name] = p
		}
	}
	if a.ctypes.ByExt == nil {
		a.ctypes.ByExt = make(map[string]string)
	}
	if a.ctypes.ByOverride == nil {
		a.ctypes.ByOverride = make(map[string]string)
	}
	if a.ctypesEntry == nil {
		a.ctypesDirty = true
	}
	return a, nil
}

// Path returns the file system path the archive was opened from.
func (a *Archive) Path() string { return a.path }

// PartName returns the canonical name of a part: forward slashes, a leading
// "/" and percent-encoded segments. "foo\my file.txt", "foo/my file.txt" and
// "/foo/my%20file.txt" all become "/foo/my%20file.txt".
func PartName(p string) string {
	segs := strings.Split(strings.TrimLeft(strings.ReplaceAll(p, `\`, "/"), "/"), "/")
	for i, seg := range segs {
		if unescaped, err := url.PathUnescape(seg); err == nil {
			seg = unescaped
		}
		segs[i] = url.PathEscape(seg)
	}
	return "/" + strings.Join(segs, "/")
}

func entryName(name string) string {
	return strings.TrimPrefix(name, "/")
}

func (p *part) entryName() string {
	if p.entry != "" {
		return p.entry
	}
	return entryName(p.name)
}

func readEntry(zf *zip.File) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (a *Archive) lookup(p string) (*part, error) {
	if a.closed {
		return nil, ErrClosed
	}
	name := PartName(p)
	pt, ok := a.index[name]
	if !ok {
		return nil, &PartNotFoundError{Part: name}
	}
	return pt, nil
}

func (p *part) open() (io.ReadCloser, error) {
	if p.src == nil {
		return io.NopCloser(bytes.NewReader(p.data)), nil
	}
	return p.src.Open()
}

// Exists reports whether a part with exactly this name is present.
func (a *Archive) Exists(p string) bool {
	if a.closed {
		return false
	}
	_, ok := a.index[PartName(p)]
	return ok
}

// ReadBytes returns the full content of a part.
func (a *Archive) ReadBytes(p string) ([]byte, error) {
	pt, err := a.lookup(p)
	if err != nil {
		return nil, err
	}
	if pt.src == nil {
		out := make([]byte, len(pt.data))
		copy(out, pt.data)
		return out, nil
	}
	data, err := readEntry(pt.src)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pt.name, err)
	}
	return data, nil
}

// ReadText returns the content of a part as a string.
func (a *Archive) ReadText(p string) (string, error) {
	data, err := a.ReadBytes(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteBytes replaces the content of a part. A missing part is created with
// an inferred content type and maximum compression; an existing part keeps
// its content type and compression setting.
func (a *Archive) WriteBytes(p string, data []byte) error {
	if a.closed {
		return ErrClosed
	}
	name := PartName(p)
	if pt, ok := a.index[name]; ok {
		pt.src = nil
		pt.data = append([]byte(nil), data...)
		pt.modified = a.modTime
		return nil
	}
	a.create(name, data, InferContentType(name))
	return nil
}

// WriteText replaces the content of a part with text.
func (a *Archive) WriteText(p, text string) error {
	return a.WriteBytes(p, []byte(text))
}

func (a *Archive) create(name string, data []byte, ctype string) {
	method, flags := Maximum.header()
	pt := &part{
		name:     name,
		data:     append([]byte(nil), data...),
		method:   method,
		flags:    flags,
		modified: a.modTime,
	}
	a.parts = append(a.parts, pt)
	a.index[name] = pt
	a.registerContentType(name, ctype)
}

// Delete removes a part.
func (a *Archive) Delete(p string) error {
	pt, err := a.lookup(p)
	if err != nil {
		return err
	}
	delete(a.index, pt.name)
	for i, cur := range a.parts {
		if cur == pt {
			a.parts = append(a.parts[:i], a.parts[i+1:]...)
			break
		}
	}
	a.dropOverride(pt.name)
	return nil
}

// ListPaths returns every part name in archive order. The content-type map
// and directory entries are not parts.
func (a *Archive) ListPaths() []string {
	if a.closed {
		return nil
	}
	out := make([]string, 0, len(a.parts))
	for _, pt := range a.parts {
		out = append(out, pt.name)
	}
	return out
}

// Hash returns the uppercase hex SHA-256 digest of a part's content.
func (a *Archive) Hash(p string) (string, error) {
	pt, err := a.lookup(p)
	if err != nil {
		return "", err
	}
	rc, err := pt.open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", pt.name, err)
	}
	defer rc.Close()

	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", fmt.Errorf("hash %s: %w", pt.name, err)
	}
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil))), nil
}

// Size returns the uncompressed length of a part.
func (a *Archive) Size(p string) (int64, error) {
	pt, err := a.lookup(p)
	if err != nil {
		return 0, err
	}
	if pt.src == nil {
		return int64(len(pt.data)), nil
	}
	return int64(pt.src.UncompressedSize64), nil
}

// Compression returns the compression setting of a part.
func (a *Archive) Compression(p string) (Compression, error) {
	pt, err := a.lookup(p)
	if err != nil {
		return 0, err
	}
	return pt.compression(), nil
}

// ContentType returns the content type a part resolves to, or "" when the
// package declares none for it.
func (a *Archive) ContentType(p string) (string, error) {
	pt, err := a.lookup(p)
	if err != nil {
		return "", err
	}
	return a.contentTypeOf(pt.name), nil
}

// Recompress rewrites every part not stored at maximum compression and
// returns how many parts it rewrote. Part order and content types are kept.
func (a *Archive) Recompress() (int, error) {
	if a.closed {
		return 0, ErrClosed
	}
	method, flags := Maximum.header()
	n := 0
	for _, pt := range a.parts {
		if pt.compression() == Maximum {
			continue
		}
		if pt.src != nil {
			data, err := readEntry(pt.src)
			if err != nil {
				return n, fmt.Errorf("read %s: %w", pt.name, err)
			}
			pt.src = nil
			pt.data = data
		}
		pt.method = method
		pt.flags = flags
		pt.modified = a.modTime
		n++
	}
	return n, nil
}

// Flush writes the package back to the file it was opened from. The new
// content is built in memory first; if writing it to the file fails, the
// content the package was opened with is written back.
func (a *Archive) Flush() error {
	if a.closed {
		return ErrClosed
	}
	return a.flushTo(a.file)
}

func (a *Archive) flushTo(f fileHandle) error {
	var buf bytes.Buffer
	if err := a.writeTo(&buf); err != nil {
		return fmt.Errorf("write package %s: %w", a.path, err)
	}
	if err := rewrite(f, buf.Bytes()); err != nil {
		if rerr := rewrite(f, a.raw); rerr != nil {
			return fmt.Errorf("write package %s: %w (restore failed: %v)", a.path, err, rerr)
		}
		return fmt.Errorf("write package %s: %w", a.path, err)
	}
	a.raw = buf.Bytes()
	return nil
}

// fileHandle is the part of *os.File Flush writes through.
type fileHandle interface {
	io.WriteSeeker
	Truncate(size int64) error
	Sync() error
}

func rewrite(f fileHandle, data []byte) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// Close releases the file handle. Changes not flushed are discarded.
// Closing twice is a no-op.
func (a *Archive) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	_ = unlockFile(a.file)
	if err := a.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("close package %s: %w", a.path, err)
	}
	return nil
}

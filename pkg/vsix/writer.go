package vsix

import (
	"archive/zip"
	"bytes"
	"fmt"
	"hash/crc32"
	"io"
	"time"
	"unicode/utf8"

	"github.com/klauspost/compress/flate"
)

// writeTo serializes the package: the content-type map first, then parts in
// archive order, then directory entries. Untouched entries are copied raw so
// their bytes and compression settings survive.
func (a *Archive) writeTo(w io.Writer) error {
	zw := zip.NewWriter(w)

	if err := a.writeContentTypes(zw); err != nil {
		_ = zw.Close()
		return err
	}

	for _, pt := range a.parts {
		if pt.src != nil {
			if err := zw.Copy(pt.src); err != nil {
				_ = zw.Close()
				return fmt.Errorf("copy %s: %w", pt.name, err)
			}
			continue
		}
		if err := writeEntry(zw, pt.entryName(), pt.data, pt.compression(), pt.modified); err != nil {
			_ = zw.Close()
			return fmt.Errorf("write %s: %w", pt.name, err)
		}
	}

	for _, zf := range a.extra {
		if err := zw.Copy(zf); err != nil {
			_ = zw.Close()
			return fmt.Errorf("copy %s: %w", zf.Name, err)
		}
	}

	if a.comment != "" {
		if err := zw.SetComment(a.comment); err != nil {
			_ = zw.Close()
			return err
		}
	}
	return zw.Close()
}

func (a *Archive) writeContentTypes(zw *zip.Writer) error {
	var blob []byte
	switch {
	case !a.ctypesDirty && compressionOf(a.ctypesEntry.Method, a.ctypesEntry.Flags) == Maximum:
		if err := zw.Copy(a.ctypesEntry); err != nil {
			return fmt.Errorf("copy %s: %w", ContentTypesName, err)
		}
		return nil
	case !a.ctypesDirty:
		blob = a.ctypesBlob
	default:
		var err error
		blob, err = a.ctypes.Marshal()
		if err != nil {
			return fmt.Errorf("marshal %s: %w", ContentTypesName, err)
		}
	}
	if err := writeEntry(zw, ContentTypesName, blob, Maximum, a.modTime); err != nil {
		return fmt.Errorf("write %s: %w", ContentTypesName, err)
	}
	return nil
}

// writeEntry compresses data itself so the recorded level flags match the
// level actually used.
func writeEntry(zw *zip.Writer, name string, data []byte, c Compression, modified time.Time) error {
	method, flags := c.header()
	if !isASCII(name) && utf8.ValidString(name) {
		flags |= flagUTF8
	}

	payload := data
	if method == zip.Deflate {
		var buf bytes.Buffer
		fw, err := flate.NewWriter(&buf, c.level())
		if err != nil {
			return err
		}
		if _, err := fw.Write(data); err != nil {
			return err
		}
		if err := fw.Close(); err != nil {
			return err
		}
		payload = buf.Bytes()
	}

	fh := &zip.FileHeader{
		Name:               name,
		Method:             method,
		Flags:              flags,
		CRC32:              crc32.ChecksumIEEE(data),
		CompressedSize64:   uint64(len(payload)),
		UncompressedSize64: uint64(len(data)),
	}
	fh.SetModTime(modified)
	fh.SetMode(0o644)

	out, err := zw.CreateRaw(fh)
	if err != nil {
		return err
	}
	_, err = out.Write(payload)
	return err
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

package vsix

import (
	"path"
	"strings"
)

// ContentTypesName is the zip entry holding the package content-type map.
const ContentTypesName = "[Content_Types].xml"

// DefaultContentType is used for extensions missing from the table.
const DefaultContentType = "application/octet-stream"

var contentTypes = map[string]string{
	"txt":          "text/plain",
	"pkgdef":       "text/plain",
	"xml":          "text/xml",
	"vsixmanifest": "text/xml",
	"htm":          "text/html",
	"html":         "text/html",
	"rtf":          "application/rtf",
	"pdf":          "application/pdf",
	"gif":          "image/gif",
	"jpg":          "image/jpg",
	"jpeg":         "image/jpg",
	"tiff":         "image/tiff",
	"vsix":         "application/zip",
	"zip":          "application/zip",
	"json":         "application/json",
}

// InferContentType maps the extension of name to a MIME type, ignoring case.
func InferContentType(name string) string {
	if ctype, ok := contentTypes[extOf(name)]; ok {
		return ctype
	}
	return DefaultContentType
}

func extOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

func (a *Archive) lookupExt(ext string) (string, bool) {
	if ctype, ok := a.ctypes.ByExt[ext]; ok {
		return ctype, true
	}
	for k, ctype := range a.ctypes.ByExt {
		if strings.EqualFold(k, ext) {
			return ctype, true
		}
	}
	return "", false
}

// registerContentType makes name resolve to ctype, preferring a Default
// entry and falling back to an Override when the extension is already
// mapped to something else.
func (a *Archive) registerContentType(name, ctype string) {
	ext := extOf(name)
	if ext == "" {
		a.ctypes.ByOverride[name] = ctype
		a.ctypesDirty = true
		return
	}
	existing, ok := a.lookupExt(ext)
	switch {
	case !ok:
		a.ctypes.ByExt[ext] = ctype
		a.ctypesDirty = true
	case existing != ctype:
		a.ctypes.ByOverride[name] = ctype
		a.ctypesDirty = true
	}
}

func (a *Archive) contentTypeOf(name string) string {
	if ctype, ok := a.ctypes.ByOverride[name]; ok {
		return ctype
	}
	if ctype, ok := a.lookupExt(extOf(name)); ok {
		return ctype
	}
	return ""
}

func (a *Archive) dropOverride(name string) {
	if _, ok := a.ctypes.ByOverride[name]; ok {
		delete(a.ctypes.ByOverride, name)
		a.ctypesDirty = true
	}
}

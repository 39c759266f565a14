package vsix

import (
	"archive/zip"

	"github.com/klauspost/compress/flate"
)

// Compression is the per-part compression setting recorded in the zip
// header: the method plus general purpose flag bits 1 and 2.
type Compression int

const (
	NotCompressed Compression = iota
	Normal
	Maximum
	Fast
	SuperFast
)

const (
	flagMaximum   = 0x2
	flagFast      = 0x4
	flagSuperFast = 0x6
	flagLevelMask = 0x6
	flagUTF8      = 0x800
)

func (c Compression) String() string {
	switch c {
	case NotCompressed:
		return "none"
	case Normal:
		return "normal"
	case Maximum:
		return "maximum"
	case Fast:
		return "fast"
	case SuperFast:
		return "superfast"
	default:
		return "unknown"
	}
}

func compressionOf(method, flags uint16) Compression {
	if method == zip.Store {
		return NotCompressed
	}
	if method != zip.Deflate {
		return Normal
	}
	switch flags & flagLevelMask {
	case flagMaximum:
		return Maximum
	case flagFast:
		return Fast
	case flagSuperFast:
		return SuperFast
	default:
		return Normal
	}
}

// header returns the zip method and level flags for c.
func (c Compression) header() (method uint16, flags uint16) {
	switch c {
	case NotCompressed:
		return zip.Store, 0
	case Maximum:
		return zip.Deflate, flagMaximum
	case Fast:
		return zip.Deflate, flagFast
	case SuperFast:
		return zip.Deflate, flagSuperFast
	default:
		return zip.Deflate, 0
	}
}

func (c Compression) level() int {
	switch c {
	case Maximum:
		return flate.BestCompression
	case Fast:
		return 3
	case SuperFast:
		return flate.BestSpeed
	default:
		return flate.DefaultCompression
	}
}

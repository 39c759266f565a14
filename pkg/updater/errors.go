package updater

import "fmt"

// ManifestParseError reports an extension manifest that is malformed or is
// missing an element the update depends on.
type ManifestParseError struct {
	Reason string
	Err    error
}

func (e *ManifestParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse manifest: %s: %v", e.Reason, e.Err)
	}
	return "parse manifest: " + e.Reason
}

func (e *ManifestParseError) Unwrap() error { return e.Err }

// ArchiveError ties a failure to the package it aborted.
type ArchiveError struct {
	Path string
	Err  error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("update %s: %v", e.Path, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

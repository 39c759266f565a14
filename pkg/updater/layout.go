package updater

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mrhapile/vsix-updater/pkg/vsix"
)

// Well-known parts of an extension package.
const (
	ManifestPart = "/extension.vsixmanifest"
	CatalogPart  = "/catalog.json"
	PackagePart  = "/manifest.json"
)

const (
	ManifestNamespace = "http://schemas.microsoft.com/developer/vsx-schema/2011"

	BaseDependencyID   = "Microsoft.VisualStudio.Component.CoreEditor"
	BaseDependencyName = "Visual Studio core editor"
	BaseLowerBound     = "15.0"

	DefaultNextVersion = "16.0"

	CatalogManifestVersion = "1.1"
	ComponentPrefix        = "Component."
	ComponentType          = "Component"
	PackageType            = "Vsix"
	ResourceLanguage       = "en-US"

	installDirPrefix = `[installdir]\Common7\IDE\Extensions\`
)

// hostEditions are the installation targets whose ranges get extended.
var hostEditions = []string{
	"Microsoft.VisualStudio.Pro",
	"Microsoft.VisualStudio.Community",
	"Microsoft.VisualStudio.Enterprise",
}

// generatedParts are rewritten on every run and never listed in the inventory.
var generatedParts = []string{CatalogPart, PackagePart}

func isGenerated(part string) bool {
	for _, g := range generatedParts {
		if part == g {
			return true
		}
	}
	return false
}

// BaseDependencyRange returns the range injected for the base prerequisite.
func BaseDependencyRange(nextVersion string) string {
	return "[" + BaseLowerBound + "," + nextVersion + ")"
}

// ExtensionDir builds the installer path for an install directory token.
func ExtensionDir(token string) string {
	return installDirPrefix + token
}

// archivePartName maps a file under sourceDir to the part name it is
// injected as: its path relative to sourceDir, so "Tools/helper.dll"
// becomes "/Tools/helper.dll".
func archivePartName(sourceDir, file string) (string, error) {
	rel, err := filepath.Rel(sourceDir, file)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside %s", file, sourceDir)
	}
	return vsix.PartName(rel), nil
}

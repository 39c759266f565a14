package updater

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/beevik/etree"

	"github.com/mrhapile/vsix-updater/pkg/types"
)

// TargetRewrite records one installation target whose range was extended.
type TargetRewrite struct {
	ID   string
	From string
	To   string
}

// PatchResult is the outcome of patching an extension manifest.
type PatchResult struct {
	Text                 string
	Info                 types.ManifestInfo
	Dependencies         types.Dependencies
	Rewrites             []TargetRewrite
	InjectedPrerequisite bool
	Warnings             []string
}

// PatchManifest extends the host version ranges of the manifest part, makes
// sure a prerequisite block exists, and writes the document back.
func PatchManifest(pkg Package, nextVersion string, log types.Logger) (*PatchResult, error) {
	text, err := pkg.ReadText(ManifestPart)
	if err != nil {
		return nil, err
	}
	res, err := PatchManifestText(text, nextVersion)
	if err != nil {
		return nil, err
	}
	for _, rw := range res.Rewrites {
		logf(log, types.SeverityInfo, "rewrote installation target %s %s -> %s", rw.ID, rw.From, rw.To)
	}
	if res.InjectedPrerequisite {
		logf(log, types.SeverityInfo, "added prerequisite %s %s", BaseDependencyID, BaseDependencyRange(nextVersion))
	}
	for _, w := range res.Warnings {
		logf(log, types.SeverityWarning, "%s", w)
	}
	if err := pkg.WriteText(ManifestPart, res.Text); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return res, nil
}

// PatchManifestText applies the manifest changes to an XML document.
// Running it on its own output changes nothing and harvests the prerequisite
// it added the first time.
func PatchManifestText(text, nextVersion string) (*PatchResult, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(text); err != nil {
		return nil, &ManifestParseError{Reason: "malformed XML", Err: err}
	}
	root := doc.Root()
	if root == nil || root.Tag != "PackageManifest" || root.NamespaceURI() != ManifestNamespace {
		return nil, &ManifestParseError{Reason: "missing PackageManifest root in " + ManifestNamespace}
	}
	installation := child(root, "Installation")
	if installation == nil {
		return nil, &ManifestParseError{Reason: "missing Installation element"}
	}

	res := &PatchResult{Dependencies: types.NewDependencies()}

	for _, target := range children(installation, "InstallationTarget") {
		id := target.SelectAttrValue("Id", "")
		if !slices.Contains(hostEditions, id) {
			continue
		}
		attr := target.SelectAttr("Version")
		if attr == nil {
			return nil, &ManifestParseError{Reason: fmt.Sprintf("installation target %s has no Version", id)}
		}
		updated, err := RewriteRange(attr.Value, nextVersion)
		if err != nil {
			return nil, &ManifestParseError{Reason: fmt.Sprintf("installation target %s", id), Err: err}
		}
		if w := checkLowerBound(id, updated, nextVersion); w != "" {
			res.Warnings = append(res.Warnings, w)
		}
		res.Rewrites = append(res.Rewrites, TargetRewrite{ID: id, From: attr.Value, To: updated})
		attr.Value = updated
	}

	if prereqs := child(root, "Prerequisites"); prereqs == nil {
		baseRange := BaseDependencyRange(nextVersion)
		res.Dependencies.Set(BaseDependencyID, baseRange)

		prereqs = root.CreateElement(qualified(root, "Prerequisites"))
		prereq := prereqs.CreateElement(qualified(root, "Prerequisite"))
		prereq.CreateAttr("Id", BaseDependencyID)
		prereq.CreateAttr("Version", baseRange)
		prereq.CreateAttr("DisplayName", BaseDependencyName)
		res.InjectedPrerequisite = true
	} else {
		for _, prereq := range descendants(prereqs, "Prerequisite") {
			id := prereq.SelectAttr("Id")
			version := prereq.SelectAttr("Version")
			if id == nil || version == nil {
				return nil, &ManifestParseError{Reason: "prerequisite without Id or Version"}
			}
			if res.Dependencies.Has(id.Value) {
				return nil, &ManifestParseError{Reason: "duplicate prerequisite " + id.Value}
			}
			res.Dependencies.Set(id.Value, version.Value)
		}
	}

	info, err := readIdentity(root)
	if err != nil {
		return nil, err
	}
	res.Info = info

	doc.Indent(2)
	out, err := doc.WriteToString()
	if err != nil {
		return nil, &ManifestParseError{Reason: "serialize manifest", Err: err}
	}
	res.Text = out
	return res, nil
}

// RewriteRange keeps the opening bracket and lower bound of a version range
// and replaces its upper bound: "[15.0,15.9)" becomes "[15.0,16.0)". A bare
// version is read as an inclusive lower bound.
func RewriteRange(old, nextVersion string) (string, error) {
	s := strings.TrimSpace(old)
	if s == "" {
		return "", fmt.Errorf("empty version range")
	}
	open := "["
	if s[0] == '[' || s[0] == '(' {
		open, s = s[:1], s[1:]
	}
	lower := strings.TrimRight(s, ")]")
	if i := strings.IndexByte(lower, ','); i >= 0 {
		lower = lower[:i]
	}
	return open + strings.TrimSpace(lower) + "," + nextVersion + ")", nil
}

// checkLowerBound warns when a rewritten range can never be satisfied.
func checkLowerBound(id, rng, nextVersion string) string {
	lower := strings.TrimLeft(strings.SplitN(rng, ",", 2)[0], "[(")
	lv, err := semver.NewVersion(lower)
	if err != nil {
		return ""
	}
	nv, err := semver.NewVersion(nextVersion)
	if err != nil {
		return ""
	}
	if !lv.LessThan(nv) {
		return fmt.Sprintf("installation target %s lower bound %s is not below %s", id, lower, nextVersion)
	}
	return ""
}

func readIdentity(root *etree.Element) (types.ManifestInfo, error) {
	metadata := child(root, "Metadata")
	if metadata == nil {
		return types.ManifestInfo{}, &ManifestParseError{Reason: "missing Metadata element"}
	}
	identity := child(metadata, "Identity")
	if identity == nil {
		return types.ManifestInfo{}, &ManifestParseError{Reason: "missing Identity element"}
	}
	id := identity.SelectAttr("Id")
	version := identity.SelectAttr("Version")
	if id == nil || version == nil {
		return types.ManifestInfo{}, &ManifestParseError{Reason: "Identity needs Id and Version"}
	}
	return types.ManifestInfo{
		ID:          id.Value,
		Version:     version.Value,
		Title:       childText(metadata, "DisplayName"),
		Description: childText(metadata, "Description"),
	}, nil
}

func child(parent *etree.Element, tag string) *etree.Element {
	for _, e := range parent.ChildElements() {
		if e.Tag == tag && e.NamespaceURI() == ManifestNamespace {
			return e
		}
	}
	return nil
}

func children(parent *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	for _, e := range parent.ChildElements() {
		if e.Tag == tag && e.NamespaceURI() == ManifestNamespace {
			out = append(out, e)
		}
	}
	return out
}

func descendants(parent *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	for _, e := range parent.ChildElements() {
		if e.Tag == tag && e.NamespaceURI() == ManifestNamespace {
			out = append(out, e)
		}
		out = append(out, descendants(e, tag)...)
	}
	return out
}

func childText(parent *etree.Element, tag string) string {
	if e := child(parent, tag); e != nil {
		return e.Text()
	}
	return ""
}

// qualified reuses the root's prefix so new elements land in the manifest
// namespace.
func qualified(root *etree.Element, tag string) string {
	if root.Space == "" {
		return tag
	}
	return root.Space + ":" + tag
}

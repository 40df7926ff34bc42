package services

import (
	"path/filepath"
	"regexp"
)

var (
	depotManifestPattern = regexp.MustCompile(`(?i)depot[_-]?(\d+)[_-]?manifest[_-]?(\d+)`)
	simplePattern        = regexp.MustCompile(`(\d+)[_-](\d+)`)
	manifestOnlyPattern  = regexp.MustCompile(`(?i)manifest[_-]?(\d+)`)
	knownExtension       = regexp.MustCompile(`(?i)\.(manifest|lua|acf|txt)$`)
)

// ParseManifestFilename pulls depot and manifest ids out of an uploaded
// file name. Recognized shapes, in order:
//
//	depot_123_manifest_456.manifest
//	123_456.manifest
//	manifest_456.lua
//
// When no manifest id is found the name without its extension is used.
func ParseManifestFilename(name string) (depotID, manifestID string) {
	name = filepath.Base(name)
	if m := depotManifestPattern.FindStringSubmatch(name); m != nil {
		return m[1], m[2]
	}
	if m := simplePattern.FindStringSubmatch(name); m != nil {
		return m[1], m[2]
	}
	if m := manifestOnlyPattern.FindStringSubmatch(name); m != nil {
		return "", m[1]
	}
	return "", knownExtension.ReplaceAllString(name, "")
}

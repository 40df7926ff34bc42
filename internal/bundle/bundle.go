package bundle

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	ManifestTag = "=== MANIFEST FILE (BASE64) ==="
	ScriptTag   = "=== LUA FILE (BASE64) ==="
)

var (
	ErrEmptyBundle     = errors.New("bundle: nothing to encode")
	ErrMalformedBundle = errors.New("bundle: no section tag found")
	ErrInvalidMetadata = errors.New("bundle: depot/manifest id cannot be embedded")
)

// SectionError reports a located section whose payload is not valid base64.
type SectionError struct {
	Kind     string // "manifest" or "script"
	Position int    // 1-based among sections of the same kind
	Err      error
}

func (e *SectionError) Error() string {
	return fmt.Sprintf("bundle: %s section %d: %v", e.Kind, e.Position, e.Err)
}

func (e *SectionError) Unwrap() error { return e.Err }

// Manifest is one depot manifest payload. DepotID and ManifestID are either
// both set or both empty.
type Manifest struct {
	DepotID    string
	ManifestID string
	Data       []byte
}

func (m Manifest) HasIDs() bool {
	return m.DepotID != "" && m.ManifestID != ""
}

type Script struct {
	Data []byte
}

// Bundle holds manifests in upload order and at most one script.
type Bundle struct {
	Manifests []Manifest
	Script    *Script
}

func (b Bundle) Empty() bool {
	return len(b.Manifests) == 0 && b.Script == nil
}

// Size is the sum of the original payload lengths.
func (b Bundle) Size() int64 {
	var n int64
	for _, m := range b.Manifests {
		n += int64(len(m.Data))
	}
	if b.Script != nil {
		n += int64(len(b.Script.Data))
	}
	return n
}

// Encode serializes b. The output is a pure function of the entries.
func Encode(b Bundle) (string, error) {
	if b.Empty() {
		return "", ErrEmptyBundle
	}
	var sb strings.Builder
	for i, m := range b.Manifests {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(ManifestTag)
		if m.DepotID != "" || m.ManifestID != "" {
			if err := validIDs(m.DepotID, m.ManifestID); err != nil {
				return "", fmt.Errorf("manifest %d: %w", i+1, err)
			}
			sb.WriteString(" [")
			sb.WriteString(m.DepotID)
			sb.WriteByte('_')
			sb.WriteString(m.ManifestID)
			sb.WriteByte(']')
		}
		sb.WriteByte('\n')
		sb.WriteString(base64.StdEncoding.EncodeToString(m.Data))
	}
	if b.Script != nil {
		if len(b.Manifests) > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(ScriptTag)
		sb.WriteByte('\n')
		sb.WriteString(base64.StdEncoding.EncodeToString(b.Script.Data))
	}
	return sb.String(), nil
}

// CanEmbed reports whether the pair can be written into a section header.
func CanEmbed(depotID, manifestID string) bool {
	return validIDs(depotID, manifestID) == nil
}

// The depot id may not contain '_' since it is the split point of the
// header; neither id may close the bracket or break the line.
func validIDs(depotID, manifestID string) error {
	if depotID == "" || manifestID == "" {
		return ErrInvalidMetadata
	}
	if strings.ContainsAny(depotID, "_]\r\n") || strings.ContainsAny(manifestID, "]\r\n") {
		return ErrInvalidMetadata
	}
	return nil
}

type sectionKind int

const (
	kindManifest sectionKind = iota
	kindScript
)

type section struct {
	kind       sectionKind
	depotID    string
	manifestID string
	payload    strings.Builder
}

// Decode parses an encoded bundle. Tags are only recognized at line starts.
// All manifest sections are returned in order; the first script section
// wins and later ones are ignored. Text before the first tag is ignored.
func Decode(encoded string) (Bundle, error) {
	var sections []*section
	var cur *section
	for _, line := range strings.Split(encoded, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, ManifestTag):
			cur = &section{kind: kindManifest}
			rest := strings.TrimSpace(strings.TrimPrefix(trimmed, ManifestTag))
			if depot, manifest, ok := parseHeaderIDs(rest); ok {
				cur.depotID, cur.manifestID = depot, manifest
			} else {
				cur.payload.WriteString(rest)
			}
			sections = append(sections, cur)
		case strings.HasPrefix(trimmed, ScriptTag):
			cur = &section{kind: kindScript}
			cur.payload.WriteString(strings.TrimPrefix(trimmed, ScriptTag))
			sections = append(sections, cur)
		case cur != nil:
			cur.payload.WriteString(line)
		}
	}
	if len(sections) == 0 {
		return Bundle{}, ErrMalformedBundle
	}

	var out Bundle
	for _, s := range sections {
		switch s.kind {
		case kindManifest:
			data, err := decodePayload(s.payload.String())
			if err != nil {
				return Bundle{}, &SectionError{Kind: "manifest", Position: len(out.Manifests) + 1, Err: err}
			}
			out.Manifests = append(out.Manifests, Manifest{DepotID: s.depotID, ManifestID: s.manifestID, Data: data})
		case kindScript:
			if out.Script != nil {
				continue
			}
			data, err := decodePayload(s.payload.String())
			if err != nil {
				return Bundle{}, &SectionError{Kind: "script", Position: 1, Err: err}
			}
			out.Script = &Script{Data: data}
		}
	}
	return out, nil
}

// parseHeaderIDs reads "[depot_manifest]", splitting on the first '_'.
func parseHeaderIDs(s string) (string, string, bool) {
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return "", "", false
	}
	depot, manifest, ok := strings.Cut(s[1:len(s)-1], "_")
	if !ok || depot == "" || manifest == "" {
		return "", "", false
	}
	return depot, manifest, true
}

func decodePayload(text string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	data, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		// older uploads were sometimes stored without padding
		if raw, rawErr := base64.RawStdEncoding.DecodeString(clean); rawErr == nil {
			return raw, nil
		}
		return nil, err
	}
	return data, nil
}

package bundle

import (
	"fmt"
	"strings"
)

// Record carries the row-level fields used to name extracted files.
type Record struct {
	DepotID    string
	ManifestID string
	GameName   string
}

type File struct {
	Name string
	Data []byte
}

// Files names every payload in b. Each manifest section is resolved on its
// own: embedded ids first, then the record ids for a lone section, then a
// positional name so multi-section bundles never collide. A name already
// taken by an earlier section gets the section's position as a suffix.
func Files(b Bundle, rec Record) []File {
	files := make([]File, 0, len(b.Manifests)+1)
	seen := make(map[string]bool, len(b.Manifests))
	for i, m := range b.Manifests {
		var name string
		switch {
		case m.HasIDs():
			name = fmt.Sprintf("%s_%s.manifest", m.DepotID, m.ManifestID)
		case len(b.Manifests) == 1:
			name = fmt.Sprintf("%s_%s.manifest", orDefault(rec.DepotID, "unknown"), orDefault(rec.ManifestID, "unknown"))
		default:
			name = fmt.Sprintf("%s_%d.manifest", orDefault(rec.DepotID, "depot"), i+1)
		}
		name = uniqueName(safeName(name), i+1, seen)
		files = append(files, File{Name: name, Data: m.Data})
	}
	if b.Script != nil {
		files = append(files, File{Name: ScriptName(rec.GameName), Data: b.Script.Data})
	}
	return files
}

func uniqueName(name string, position int, seen map[string]bool) string {
	base := strings.TrimSuffix(name, ".manifest")
	for n := 0; seen[name]; n++ {
		if n == 0 {
			name = fmt.Sprintf("%s_%d.manifest", base, position)
		} else {
			name = fmt.Sprintf("%s_%d_%d.manifest", base, position, n)
		}
	}
	seen[name] = true
	return name
}

func ScriptName(gameName string) string {
	return safeName(orDefault(strings.TrimSpace(gameName), "unknown") + ".lua")
}

// ArchiveName is the download name for a whole bundle.
func ArchiveName(gameName string) string {
	return safeName(orDefault(strings.TrimSpace(gameName), "manifest") + ".zip")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Names end up as zip entries and Content-Disposition values.
func safeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', 0:
			return '_'
		}
		return r
	}, name)
}

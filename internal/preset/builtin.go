package preset

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed presets/*.yaml
var builtinFS embed.FS

// Info identifies a builtin preset for listings and pickers.
type Info struct {
	Name        string
	Description string
}

// Find loads a builtin preset by name. Returns an error if no builtin
// preset with that name exists.
func Find(name string) (*LoadResult, error) {
	data, err := builtinFS.ReadFile("presets/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("preset %q not found (use 'aloop list' to see available presets)", name)
	}
	result, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("builtin preset %q: %w", name, err)
	}
	return result, nil
}

// List returns all builtin presets sorted by name. Presets that fail to
// parse are listed with an "(invalid preset)" description rather than
// aborting the listing.
func List() []Info {
	entries, err := fs.ReadDir(builtinFS, "presets")
	if err != nil {
		return nil
	}

	var infos []Info
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".yaml")
		data, err := builtinFS.ReadFile("presets/" + entry.Name())
		if err != nil {
			continue
		}
		result, err := Parse(data)
		if err != nil {
			infos = append(infos, Info{Name: name, Description: "(invalid preset)"})
			continue
		}
		infos = append(infos, Info{Name: result.Preset.Name, Description: result.Preset.Description})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

package preset

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/lixenwraith/killsound/constant"
)

// ParseName splits a directory name into master and variant
// "crossfire_v_red" -> ("crossfire", "red"); "crossfire" -> ("crossfire", "")
func ParseName(name string) (master, variant string) {
	master, variant, _ = strings.Cut(name, constant.VariantSeparator)
	return master, variant
}

// QualifiedName joins master and variant back into a directory name
func QualifiedName(master, variant string) string {
	if variant == "" {
		return master
	}
	return master + constant.VariantSeparator + variant
}

// Entry is one master preset with the variants found next to it
type Entry struct {
	Name     string
	Variants []string
}

// String formats the entry as "name" or "name: [a, b]"
func (e Entry) String() string {
	if len(e.Variants) == 0 {
		return e.Name
	}
	return fmt.Sprintf("%s: [%s]", e.Name, strings.Join(e.Variants, ", "))
}

// List scans root for preset directories, grouped by master and sorted
func List(root string) ([]Entry, error) {
	dirents, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read presets dir: %w", err)
	}

	byMaster := make(map[string][]string)
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		master, variant := ParseName(d.Name())
		if _, ok := byMaster[master]; !ok {
			byMaster[master] = nil
		}
		if variant != "" {
			byMaster[master] = append(byMaster[master], variant)
		}
	}

	entries := make([]Entry, 0, len(byMaster))
	for master, variants := range byMaster {
		sort.Strings(variants)
		entries = append(entries, Entry{Name: master, Variants: variants})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

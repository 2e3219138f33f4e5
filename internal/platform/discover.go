package platform

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Item identifies one workspace artifact found under a repository root,
// taken from its descriptor metadata.
type Item struct {
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
	Dir         string `json:"dir"`
}

// Discover walks root and returns the artifacts whose descriptors carry
// metadata, sorted by type then name. Descriptors that fail to parse or
// lack metadata are skipped; discovery is best-effort inventory, not
// validation.
func Discover(root string) ([]Item, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("workspace folder %s: %w", root, err)
	}

	var items []Item
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || d.Name() != DescriptorFileName {
			return nil
		}

		data, err := os.ReadFile(path) // #nosec G304 - path comes from the walk
		if err != nil {
			return nil
		}
		var desc Descriptor
		if err := json.Unmarshal(data, &desc); err != nil {
			return nil
		}
		if desc.Metadata.DisplayName == "" || desc.Metadata.Type == "" {
			return nil
		}
		items = append(items, Item{
			DisplayName: desc.Metadata.DisplayName,
			Type:        desc.Metadata.Type,
			Dir:         filepath.Dir(path),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering artifacts under %s: %w", root, err)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Type != items[j].Type {
			return items[i].Type < items[j].Type
		}
		return items[i].DisplayName < items[j].DisplayName
	})
	return items, nil
}

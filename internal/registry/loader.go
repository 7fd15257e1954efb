package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"iorganise/internal/common/fsutil"
	"iorganise/pkg/types"
)

// Kinds lists the catalog sections in display order.
var Kinds = []string{"asr", "llm", "classifier"}

// LoadDir scans <root>/{asr,llm,classifier}/ and returns one model per entry.
// Variant is the entry name with any extension removed; Path is absolute.
// Missing kind directories are skipped; a missing root is an error.
func LoadDir(root string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(root)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, kind := range Kinds {
		entries, err := os.ReadDir(filepath.Join(abs, kind))
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}
			variant := name
			if !e.IsDir() {
				variant = strings.TrimSuffix(name, filepath.Ext(name))
			}
			models = append(models, types.Model{
				Kind:      kind,
				Variant:   variant,
				Path:      filepath.Join(abs, kind, name),
				Available: true,
			})
		}
	}
	sort.SliceStable(models, func(i, j int) bool {
		if models[i].Kind != models[j].Kind {
			return kindOrder(models[i].Kind) < kindOrder(models[j].Kind)
		}
		return models[i].Variant < models[j].Variant
	})
	return models, nil
}

func kindOrder(kind string) int {
	for i, k := range Kinds {
		if k == kind {
			return i
		}
	}
	return len(Kinds)
}

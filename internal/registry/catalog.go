package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"iorganise/internal/common/fsutil"
	"iorganise/internal/config"
	"iorganise/pkg/types"
)

// UnknownVariantError is returned when a kind has no variant with the given id.
type UnknownVariantError struct {
	Kind    string
	Variant string
}

func (e UnknownVariantError) Error() string {
	return fmt.Sprintf("unknown %s variant %q", e.Kind, e.Variant)
}

// MissingWeightsError is returned when a variant is known but its weights are
// not on disk.
type MissingWeightsError struct {
	Kind    string
	Variant string
	Path    string
}

func (e MissingWeightsError) Error() string {
	return fmt.Sprintf("%s variant %q: weights not found at %s", e.Kind, e.Variant, e.Path)
}

func IsUnknownVariant(err error) bool {
	var e UnknownVariantError
	return errors.As(err, &e)
}

func IsMissingWeights(err error) bool {
	var e MissingWeightsError
	return errors.As(err, &e)
}

// Catalog maps kind -> variant -> weights path. It is safe for concurrent use.
type Catalog struct {
	mu       sync.RWMutex
	paths    map[string]map[string]string
	defaults map[string]string
}

// New builds a catalog from explicit variant maps and per-kind defaults.
func New(paths map[string]map[string]string, defaults map[string]string) *Catalog {
	c := &Catalog{paths: map[string]map[string]string{}, defaults: map[string]string{}}
	for kind, vs := range paths {
		for v, p := range vs {
			c.add(kind, v, p)
		}
	}
	for kind, v := range defaults {
		c.defaults[kind] = v
	}
	return c
}

// FromConfig builds the catalog from the models section. When Dir is set,
// variants discovered there are added without overriding configured ones.
func FromConfig(cfg config.ModelsConfig) (*Catalog, error) {
	c := New(map[string]map[string]string{
		"asr":        cfg.ASR,
		"llm":        cfg.LLM,
		"classifier": cfg.Classifier,
	}, map[string]string{
		"asr":        cfg.DefaultASR,
		"llm":        cfg.DefaultLLM,
		"classifier": cfg.DefaultClassifier,
	})
	if cfg.Dir != "" {
		found, err := LoadDir(cfg.Dir)
		if err != nil {
			return nil, err
		}
		for _, m := range found {
			if !c.Has(m.Kind, m.Variant) {
				c.add(m.Kind, m.Variant, m.Path)
			}
		}
	}
	return c, nil
}

func (c *Catalog) add(kind, variant, path string) {
	if variant == "" || path == "" {
		return
	}
	if p, err := fsutil.ExpandHome(path); err == nil {
		path = p
	}
	if c.paths[kind] == nil {
		c.paths[kind] = map[string]string{}
	}
	c.paths[kind][variant] = path
}

// Has reports whether kind has the variant.
func (c *Catalog) Has(kind, variant string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.paths[kind][variant]
	return ok
}

// Default returns the variant used when a request does not name one.
func (c *Catalog) Default(kind string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaults[kind]
}

// Resolve returns the weights path for kind/variant. An empty variant selects
// the kind's default.
func (c *Catalog) Resolve(kind, variant string) (string, error) {
	c.mu.RLock()
	if variant == "" {
		variant = c.defaults[kind]
	}
	p, ok := c.paths[kind][variant]
	c.mu.RUnlock()
	if !ok {
		return "", UnknownVariantError{Kind: kind, Variant: variant}
	}
	if !fsutil.PathExists(p) {
		return "", MissingWeightsError{Kind: kind, Variant: variant, Path: p}
	}
	return p, nil
}

// Variants returns the sorted variant ids of a kind.
func (c *Catalog) Variants(kind string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.paths[kind]))
	for v := range c.paths[kind] {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// List returns every known variant, grouped by kind, with availability
// checked against the filesystem.
func (c *Catalog) List() []types.Model {
	var out []types.Model
	for _, kind := range Kinds {
		def := c.Default(kind)
		for _, v := range c.Variants(kind) {
			c.mu.RLock()
			p := c.paths[kind][v]
			c.mu.RUnlock()
			out = append(out, types.Model{
				Kind:      kind,
				Variant:   v,
				Path:      p,
				Available: fsutil.PathExists(p),
				Default:   v == def,
			})
		}
	}
	return out
}

package workflow

import (
	"path/filepath"

	"github.com/bitswalk/minibuild/description"
	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/internal/errs"
	"github.com/bitswalk/minibuild/internal/paths"
)

// moduleNode is one discovered module: its directory, its loaded
// description, and the directories its lib_list/explicit_depends name
// (§4.6 step 2).
type moduleNode struct {
	dir        string
	desc       *description.BuildDescription
	moduleType string
	moduleName string
	libDeps    []string // directories from lib_list (lib-static/lib-shared only)
	orderDeps  []string // libDeps plus explicit_depends, for topological sort
}

// Cache loads and caches module descriptions by absolute directory (§3
// "Lifecycle: descriptions are loaded lazily... cached by absolute
// directory").
type Cache struct {
	loader *description.Loader
	nodes  map[string]*moduleNode
}

// NewCache builds a Cache around loader.
func NewCache(loader *description.Loader) *Cache {
	return &Cache{loader: loader, nodes: map[string]*moduleNode{}}
}

// Load returns the moduleNode for dir, loading and validating it on first
// use.
func (c *Cache) Load(dir string, requiredBy []string) (*moduleNode, error) {
	key := filepath.Clean(dir)
	if n, ok := c.nodes[key]; ok {
		return n, nil
	}
	desc, err := c.loader.LoadModule(key, requiredBy)
	if err != nil {
		return nil, err
	}
	moduleType, err := description.RequireModuleType(desc)
	if err != nil {
		return nil, err
	}
	moduleName, err := description.RequireModuleName(desc)
	if err != nil {
		return nil, err
	}
	n := &moduleNode{
		dir:        key,
		desc:       desc,
		moduleType: moduleType,
		moduleName: moduleName,
	}
	// libDeps/orderDeps are resolved relative to dir: lib_list/
	// explicit_depends are preprocess-enabled paths (§4.2), and entries
	// still relative after the loader's substitution pass name
	// directories relative to the module.
	for _, d := range desc.Get(grammar.KeyLinkDirList).List() {
		n.libDeps = append(n.libDeps, paths.NormalizeOptional(d, key))
	}
	n.orderDeps = append(n.orderDeps, n.libDeps...)
	for _, d := range desc.Get(grammar.KeyExplicitDepends).List() {
		n.orderDeps = append(n.orderDeps, paths.NormalizeOptional(d, key))
	}
	c.nodes[key] = n
	return n, nil
}

// Graph is the discovered set of modules reachable from a starting
// directory, in topological order (starting module last, §4.6 step 3).
type Graph struct {
	Order []*moduleNode
}

// Discover walks startDir's lib_list/explicit_depends transitively (§4.6
// step 2), validating that every lib_list entry names a lib-static or
// lib-shared module, and returns the modules in dependency order.
func Discover(cache *Cache, startDir string) (*Graph, error) {
	visiting := map[string]bool{}
	visited := map[string]bool{}
	var order []*moduleNode

	var visit func(dir string, chain []string) error
	visit = func(dir string, chain []string) error {
		key := filepath.Clean(dir)
		if visited[key] {
			return nil
		}
		if visiting[key] {
			return errs.New(errs.DomainBuild, "cyclic-library-dependency",
				"cyclic library dependency detected: %s -> %s", joinChain(chain), key)
		}
		visiting[key] = true

		n, err := cache.Load(key, chain)
		if err != nil {
			return err
		}
		for _, libDir := range n.libDeps {
			dep, err := cache.Load(libDir, append(chain, key))
			if err != nil {
				return err
			}
			if dep.moduleType != grammar.ModuleTypeLibStatic && dep.moduleType != grammar.ModuleTypeLibShared {
				return errs.New(errs.DomainBuild, "bad-lib-dependency",
					"module '%s' lists '%s' in lib_list, but its module_type is '%s' (expected lib-static or lib-shared)",
					n.moduleName, dep.moduleName, dep.moduleType)
			}
			if err := visit(libDir, append(chain, key)); err != nil {
				return err
			}
		}
		for _, depDir := range n.orderDeps {
			if err := visit(depDir, append(chain, key)); err != nil {
				return err
			}
		}

		visiting[key] = false
		visited[key] = true
		order = append(order, n)
		return nil
	}

	if err := visit(filepath.Clean(startDir), nil); err != nil {
		return nil, err
	}
	return &Graph{Order: order}, nil
}

func joinChain(chain []string) string {
	out := ""
	for i, c := range chain {
		if i > 0 {
			out += " -> "
		}
		out += c
	}
	return out
}

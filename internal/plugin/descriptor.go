// ABOUTME: Plugin descriptors and TOML manifest discovery
// ABOUTME: Scans a directory for manifests naming registered entry points

package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Descriptor describes one loadable plugin: its identity, dependencies,
// declared commands, and the entry point that builds it.
type Descriptor struct {
	Name         string        `toml:"name"`
	Version      string        `toml:"version"`
	Entry        string        `toml:"entry"`
	Dependencies []string      `toml:"dependencies"`
	Commands     []CommandSpec `toml:"commands"`
}

func (d *Descriptor) validate() error {
	if d.Name == "" {
		return fmt.Errorf("manifest missing name")
	}
	if d.Entry == "" {
		// Manifests may omit entry when it matches the plugin name.
		d.Entry = d.Name
	}
	for _, dep := range d.Dependencies {
		if dep == d.Name {
			return fmt.Errorf("plugin %q depends on itself", d.Name)
		}
	}
	seen := make(map[string]struct{}, len(d.Commands))
	for _, cmd := range d.Commands {
		if cmd.Name == "" {
			return fmt.Errorf("plugin %q declares a command without a name", d.Name)
		}
		if _, dup := seen[cmd.Name]; dup {
			return fmt.Errorf("plugin %q declares command %q twice", d.Name, cmd.Name)
		}
		seen[cmd.Name] = struct{}{}
	}
	return nil
}

// ReadManifest parses a single TOML plugin manifest.
func ReadManifest(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var d Descriptor
	if err := toml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", filepath.Base(path), err)
	}
	if err := d.validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", filepath.Base(path), err)
	}
	return &d, nil
}

// DiscoverManifests reads every *.toml manifest in dir, sorted by filename
// so registration order is deterministic. A missing directory yields an
// empty set, not an error: a bot may run on builtin plugins alone.
func DiscoverManifests(dir string) ([]*Descriptor, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading plugin directory: %w", err)
	}

	var descriptors []*Descriptor
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		d, err := ReadManifest(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

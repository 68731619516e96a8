// ABOUTME: Tests for TOML manifest parsing and plugin directory discovery
// ABOUTME: Covers validation failures and deterministic discovery order

package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chatManifest = `
name = "chat"
version = "1.2.0"
entry = "chat"
dependencies = []

[[commands]]
name = "ping"
help = "Answers with pong and the gateway latency"

[[commands]]
name = "echo"
help = "Repeats the given text"
`

func writeManifest(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadManifest(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "chat.toml", chatManifest)

	d, err := ReadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, "chat", d.Name)
	assert.Equal(t, "1.2.0", d.Version)
	assert.Equal(t, "chat", d.Entry)
	require.Len(t, d.Commands, 2)
	assert.Equal(t, "ping", d.Commands[0].Name)
}

func TestReadManifest_EntryDefaultsToName(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "m.toml", "name = \"notes\"\n")

	d, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "notes", d.Entry)
}

func TestReadManifest_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		wantMsg  string
	}{
		{"missing name", `version = "1.0"`, "missing name"},
		{"self dependency", "name = \"a\"\ndependencies = [\"a\"]\n", "depends on itself"},
		{"unnamed command", "name = \"a\"\n[[commands]]\nhelp = \"x\"\n", "without a name"},
		{"duplicate command", "name = \"a\"\n[[commands]]\nname = \"x\"\n[[commands]]\nname = \"x\"\n", "twice"},
		{"bad toml", "name = [", "parsing manifest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, t.TempDir(), "m.toml", tt.manifest)
			_, err := ReadManifest(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestDiscoverManifests(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "b.toml", "name = \"b\"\n")
	writeManifest(t, dir, "a.toml", "name = \"a\"\n")
	writeManifest(t, dir, "notes.txt", "not a manifest")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.toml"), 0755))

	descriptors, err := DiscoverManifests(dir)
	require.NoError(t, err)
	require.Len(t, descriptors, 2)

	// Sorted by filename for deterministic registration order.
	assert.Equal(t, "a", descriptors[0].Name)
	assert.Equal(t, "b", descriptors[1].Name)
}

func TestDiscoverManifests_MissingDirIsEmpty(t *testing.T) {
	descriptors, err := DiscoverManifests(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, descriptors)
}

func TestDiscoverManifests_BadManifestFails(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "bad.toml", "name = [")

	_, err := DiscoverManifests(dir)
	require.Error(t, err)
}

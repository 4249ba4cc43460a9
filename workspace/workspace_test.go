package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestResolve_ArrayForm(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"workspaces":["packages/*"]}`)
	writeFile(t, filepath.Join(root, "packages/foo/package.json"), `{"name":"foo"}`)
	writeFile(t, filepath.Join(root, "packages/bar/package.json"), `{"name":"bar"}`)
	// A directory matching the glob but with no package.json must be skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "packages/not-a-package"), 0o755))

	topo, err := Resolve(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"packages/bar", "packages/foo"}, topo.PackagePaths)
}

func TestResolve_PackagesObjectForm(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"workspaces":{"packages":["apps/*"]}}`)
	writeFile(t, filepath.Join(root, "apps/web/package.json"), `{"name":"web"}`)

	topo, err := Resolve(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"apps/web"}, topo.PackagePaths)
}

func TestResolve_NoWorkspacesField(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"name":"root"}`)

	topo, err := Resolve(root)
	require.NoError(t, err)
	assert.Empty(t, topo.PackagePaths)
}

func TestResolve_MissingRootManifest(t *testing.T) {
	root := t.TempDir()

	_, err := Resolve(root)
	assert.Error(t, err)
}

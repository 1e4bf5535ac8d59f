// Package testutil holds golden-file helpers shared by package tests.
// Run `go test ./... -update` to rewrite the golden files.
package testutil

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var Update = flag.Bool(
	"update",
	false,
	"update golden files",
)

func goldenPath(name string) string {
	return filepath.Join("testdata", name+".golden")
}

// CompareWithGolden marshals v as indented JSON and compares it with
// testdata/<name>.golden.
func CompareWithGolden(t *testing.T, name string, v any) {
	t.Helper()

	actual, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err, "marshal actual JSON")
	CompareBytesWithGolden(t, name, actual)
}

// CompareFileWithGolden compares the contents of path with
// testdata/<name>.golden.
func CompareFileWithGolden(t *testing.T, name, path string) {
	t.Helper()

	actual, err := os.ReadFile(path)
	require.NoError(t, err, "read %s", path)
	CompareBytesWithGolden(t, name, actual)
}

// CompareBytesWithGolden compares raw bytes with testdata/<name>.golden, or
// rewrites the golden file under -update.
func CompareBytesWithGolden(t *testing.T, name string, actual []byte) {
	t.Helper()

	path := goldenPath(name)
	if *Update {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, actual, 0644), "write golden file")
		return
	}

	expected, err := os.ReadFile(path)
	require.NoError(t, err, "read golden file (run with -update to create it)")
	require.Equal(t, string(expected), string(actual), "golden mismatch for %s", name)
}

package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fontrecipe/internal/testutil"
)

const twoFamilies = `out/A.ttf:
  - source: A.designspace
  - operation: buildTTF
  - operation: fix
out/B.ttf:
  - source: B.designspace
  - operation: buildTTF
  - operation: autohint
`

// writeRecipe lays out a project with sources A and B and returns the
// recipe path.
func writeRecipe(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, testutil.WriteSources(dir, "A.designspace", "B.designspace"))
	path := filepath.Join(dir, "recipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

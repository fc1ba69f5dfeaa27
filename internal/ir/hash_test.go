package ir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeKeyDeterminism(t *testing.T) {
	fields := Map{
		"op":       String("autohint"),
		"args":     Map{"args": String("--fail-ok")},
		"upstream": String("abc"),
	}

	k1, err := NodeKey(fields)
	require.NoError(t, err)
	k2, err := NodeKey(fields.Clone())
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 64, "SHA-256 hex is 64 characters")
}

func TestNodeKeyChangesWithFields(t *testing.T) {
	base := Map{"op": String("fix"), "upstream": String("a")}
	other := Map{"op": String("fix"), "upstream": String("b")}

	k1, err := NodeKey(base)
	require.NoError(t, err)
	k2, err := NodeKey(other)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestHashWithDomainSeparation(t *testing.T) {
	data := []byte(`{"op":"fix"}`)
	assert.NotEqual(t, hashWithDomain(DomainNode, data), hashWithDomain(DomainRecipe, data))
}

func TestContentHashFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.ttf")
	require.NoError(t, os.WriteFile(p, []byte("glyphs"), 0o644))

	h1, err := ContentHash(p)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(p, []byte("glyphs2"), 0o644))
	h2, err := ContentHash(p)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestContentHashDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Foo.ufo")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "glyphs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fontinfo.plist"), []byte("info"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "glyphs", "a.glif"), []byte("a"), 0o644))

	h1, err := ContentHash(dir)
	require.NoError(t, err)
	h2, err := ContentHash(dir)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	require.NoError(t, os.Rename(filepath.Join(dir, "glyphs", "a.glif"), filepath.Join(dir, "glyphs", "b.glif")))
	h3, err := ContentHash(dir)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3, "renaming a file inside the directory changes the hash")
}

func TestContentHashMissing(t *testing.T) {
	_, err := ContentHash(filepath.Join(t.TempDir(), "missing.ttf"))
	assert.True(t, os.IsNotExist(err))
}

func TestArtifactsHash(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ttf"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.ttf"), []byte("b"), 0o644))

	ab, err := ArtifactsHash(dir, []string{"a.ttf", "b.ttf"})
	require.NoError(t, err)
	ba, err := ArtifactsHash(dir, []string{"b.ttf", "a.ttf"})
	require.NoError(t, err)
	assert.NotEqual(t, ab, ba, "order matters")

	other := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(other, "a.ttf"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(other, "b.ttf"), []byte("b"), 0o644))
	moved, err := ArtifactsHash(other, []string{"a.ttf", "b.ttf"})
	require.NoError(t, err)
	assert.Equal(t, ab, moved, "the root is not part of the hash")

	_, err = ArtifactsHash(dir, []string{"missing.ttf"})
	assert.Error(t, err)
}

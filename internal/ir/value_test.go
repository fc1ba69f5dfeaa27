package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{
		"args":    "--fail-ok",
		"weights": []any{400, int64(700)},
		"inplace": true,
	})
	require.NoError(t, err)

	m, ok := v.(Map)
	require.True(t, ok)
	assert.Equal(t, String("--fail-ok"), m["args"])
	assert.Equal(t, List{Int(400), Int(700)}, m["weights"])
	assert.Equal(t, Bool(true), m["inplace"])
}

func TestFromAnyRejectsFloat(t *testing.T) {
	_, err := FromAny(map[string]any{"opsz": 14.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opsz")
	assert.Contains(t, err.Error(), "quote")
}

func TestFromAnyRejectsNull(t *testing.T) {
	_, err := FromAny([]any{"a", nil})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[1]")
}

func TestToAnyRoundTrip(t *testing.T) {
	in := map[string]any{
		"subsets": []any{map[string]any{"from": "Noto Sans Devanagari", "ranges": []any{int64(2304)}}},
	}
	v, err := FromAny(in)
	require.NoError(t, err)
	assert.Equal(t, in, ToAny(v))
}

func TestText(t *testing.T) {
	assert.Equal(t, "--fail-ok", Text(String("--fail-ok")))
	assert.Equal(t, "12", Text(Int(12)))
	assert.Equal(t, "false", Text(Bool(false)))
	assert.Equal(t, "wght=400 wdth=drop", Text(List{String("wght=400"), String("wdth=drop")}))
	assert.Equal(t, `{"a":1}`, Text(Map{"a": Int(1)}))
}

func TestOperationSpecString(t *testing.T) {
	spec := OperationSpec{Name: "rename", Args: Map{"name": String("Foo SC"), "args": String("--just-family")}}
	assert.Equal(t, "rename(args=--just-family, name=Foo SC)", spec.String())
	assert.Equal(t, "compress", OperationSpec{Name: "compress"}.String())
}

func TestOperationSpecCanonicalIgnoresNilArgs(t *testing.T) {
	a, err := OperationSpec{Name: "fix"}.Canonical()
	require.NoError(t, err)
	b, err := OperationSpec{Name: "fix", Args: Map{}}.Canonical()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

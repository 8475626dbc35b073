package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"single", "gateway", []string{"gateway"}, false},
		{"nested", "gateway.auth.mode", []string{"gateway", "auth", "mode"}, false},
		{"indexed", "groups.0.maxTurns", []string{"groups", "0", "maxTurns"}, false},
		{"empty", "", nil, true},
		{"empty segment", "gateway..port", nil, true},
		{"blocked", "a.__proto__.b", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfigPath(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func sampleRaw() map[string]any {
	return map[string]any{
		"gateway": map[string]any{"port": 18790, "auth": map[string]any{"mode": "token"}},
		"groups": []any{
			map[string]any{"name": "g1", "maxTurns": 2},
			map[string]any{"name": "g2"},
		},
	}
}

func TestGetValueAtPath(t *testing.T) {
	root := sampleRaw()
	tests := []struct {
		path   []string
		want   any
		wantOK bool
	}{
		{[]string{"gateway", "port"}, 18790, true},
		{[]string{"gateway", "auth", "mode"}, "token", true},
		{[]string{"groups", "0", "maxTurns"}, 2, true},
		{[]string{"groups", "1", "name"}, "g2", true},
		{[]string{"groups", "5", "name"}, nil, false},
		{[]string{"groups", "x"}, nil, false},
		{[]string{"gateway", "port", "deeper"}, nil, false},
		{[]string{"missing"}, nil, false},
	}
	for _, tt := range tests {
		got, ok := GetValueAtPath(root, tt.path)
		assert.Equal(t, tt.wantOK, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestSetValueAtPath(t *testing.T) {
	root := sampleRaw()

	assert.True(t, SetValueAtPath(root, []string{"gateway", "port"}, 9000))
	assert.True(t, SetValueAtPath(root, []string{"groups", "1", "flow"}, "roundRobin"))
	assert.True(t, SetValueAtPath(root, []string{"summary", "keepRecent"}, 4))
	assert.False(t, SetValueAtPath(root, []string{"groups", "7", "flow"}, "manual"))

	v, _ := GetValueAtPath(root, []string{"gateway", "port"})
	assert.Equal(t, 9000, v)
	v, _ = GetValueAtPath(root, []string{"groups", "1", "flow"})
	assert.Equal(t, "roundRobin", v)
	v, _ = GetValueAtPath(root, []string{"summary", "keepRecent"})
	assert.Equal(t, 4, v)
}

func TestSetValueAtPathOverwritesScalar(t *testing.T) {
	root := map[string]any{"gateway": "oops"}
	assert.True(t, SetValueAtPath(root, []string{"gateway", "port"}, 1))
	v, ok := GetValueAtPath(root, []string{"gateway", "port"})
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestUnsetValueAtPath(t *testing.T) {
	root := sampleRaw()
	assert.True(t, UnsetValueAtPath(root, []string{"gateway", "auth", "mode"}))
	assert.True(t, UnsetValueAtPath(root, []string{"groups", "0", "maxTurns"}))
	assert.False(t, UnsetValueAtPath(root, []string{"gateway", "auth", "mode"}))
	assert.False(t, UnsetValueAtPath(root, []string{"nope", "x"}))
	assert.False(t, UnsetValueAtPath(root, []string{"groups", "0"}))

	_, ok := GetValueAtPath(root, []string{"gateway", "port"})
	assert.True(t, ok, "siblings survive")
}

func TestResolvePathsCustomHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PROMPTPRIM_HOME", dir)

	p, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, dir, p.Base)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), p.Config)
	assert.Equal(t, filepath.Join(dir, "data", "sessions.db"), p.SessionDB())
}

func TestResolvePathsDefaultHome(t *testing.T) {
	t.Setenv("PROMPTPRIM_HOME", "")
	p, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, ".promptprim", filepath.Base(p.Base))
}

func TestEnsureDirs(t *testing.T) {
	t.Setenv("PROMPTPRIM_HOME", filepath.Join(t.TempDir(), "pp"))
	p, err := ResolvePaths()
	require.NoError(t, err)

	require.NoError(t, p.EnsureDirs())
	require.NoError(t, p.EnsureDirs())
	for _, d := range []string{p.Base, p.Data, p.Logs} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

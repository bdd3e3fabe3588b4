package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chazu/brepmesh/pkg/meshadapt"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, meshadapt.DefaultParams(), cfg.Mesh)
	assert.Equal(t, DefaultDebounce, cfg.Debounce())
}

func TestLoadYAMLKeepsDefaults(t *testing.T) {
	path := write(t, "brepmesh.yaml", `
mesh:
  deflection: 0.02
  relative: true
verify: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.02, cfg.Mesh.Deflection)
	assert.True(t, cfg.Mesh.Relative)
	assert.True(t, cfg.Verify)
	assert.Equal(t, meshadapt.DefaultParams().Angle, cfg.Mesh.Angle)
}

func TestLoadJSON(t *testing.T) {
	path := write(t, "brepmesh.json", `{"mesh": {"angle": 0.25, "workers": 3}, "debounceMs": 50}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.Mesh.Angle)
	assert.Equal(t, 3, cfg.Mesh.Workers)
	assert.Equal(t, 50*time.Millisecond, cfg.Debounce())
	assert.Equal(t, meshadapt.DefaultParams().Deflection, cfg.Mesh.Deflection)
}

func TestEmptyYAMLIsDefault(t *testing.T) {
	cfg, err := Load(write(t, "empty.yaml", "\n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestInvalidValuesAreRejected(t *testing.T) {
	_, err := Load(write(t, "bad.yaml", "mesh:\n  deflection: -1\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, meshadapt.ErrInvalidArgument))

	_, err = Load(write(t, "debounce.yaml", "debounce_ms: -5\n"))
	assert.Error(t, err)
}

func TestUnknownKeysAreRejected(t *testing.T) {
	_, err := Load(write(t, "typo.yaml", "mesh:\n  deflecton: 0.1\n"))
	assert.Error(t, err)

	_, err = Load(write(t, "typo.json", `{"verfy": true}`))
	assert.Error(t, err)
}

func TestMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestMarshalParsesBack(t *testing.T) {
	cfg := Default()
	cfg.Mesh.Deflection = 0.3
	cfg.Verify = true
	out, err := Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(out), "deflection: 0.3")

	back, err := Parse(out, false)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseUrl string            `json:"base_url"`
	Workers int               `json:"workers"`
	Paths   map[string]string `json:"paths"`
}

func writeFile(t testing.TB, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "config.json5")

	writeFile(t, name, `{
		// comments are allowed
		base_url: "http://www.cazy.org",
		workers: 4,
		paths: { archaea: "a.html" },
	}`)
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{ workers: 8, paths: { viruses: "v.html" } }`)

	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "http://www.cazy.org", cfg.BaseUrl)
	require.Equal(t, 8, cfg.Workers)
	require.Equal(t, map[string]string{"archaea": "a.html", "viruses": "v.html"}, cfg.Paths)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadConfigOnlyLocal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{ workers: 2 }`)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Workers)
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, "dir/config.local.json5", LocalPath("dir/config.json5"))
	require.Equal(t, "telemetry.local", LocalPath("telemetry"))
}

package telemetry

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitSlog(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	file := filepath.Join(t.TempDir(), "logs", "cazy.log")
	closeLog := InitSlog(slog.LevelInfo, file)

	slog.Debug("hidden")
	slog.Info("crawled category", "category", "archaea")
	require.NoError(t, closeLog())

	contents, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(contents), "crawled category")
	require.Contains(t, string(contents), "category=archaea")
	require.NotContains(t, string(contents), "hidden")
}

func TestSetupFromEnvWithoutConfig(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })

	tel, err := SetupFromEnv(context.Background(), "test:telemetry")
	require.NoError(t, err)
	require.Nil(t, tel.TracerProvider)
	require.Nil(t, tel.MeterProvider)
	require.NoError(t, tel.Shutdown(context.Background()))
}

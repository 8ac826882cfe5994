package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/liamg/portprobe/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseRootFlags parses args into the real root command's flags without
// running it, and restores every flag to its default when the test ends.
func parseRootFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()

	resetFlags(t)
	t.Cleanup(func() { resetFlags(t) })

	require.NoError(t, rootCmd.ParseFlags(args))
	return rootCmd
}

func resetFlags(t *testing.T) {
	t.Helper()

	rootCmd.Flags().VisitAll(func(f *pflag.Flag) {
		require.NoError(t, f.Value.Set(f.DefValue))
		f.Changed = false
	})
}

func TestLoadSettingsFlagsWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portprobe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ports: \"1-100\"\nworkers: 20\n"), 0o600))
	t.Setenv("PORTPROBE_WORKERS", "30")

	c := parseRootFlags(t, "--config", path, "-w", "40", "-t", "5")

	cfg, err := loadSettings(c)
	require.NoError(t, err)

	assert.Equal(t, "1-100", cfg.Ports)
	assert.Equal(t, 40, cfg.Workers)
	// clamped to the minimum timeout
	assert.Equal(t, 10*time.Millisecond, cfg.ConnectTimeout.Duration)
}

func TestLoadSettingsEnvOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portprobe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 20\n"), 0o600))
	t.Setenv("PORTPROBE_WORKERS", "30")

	c := parseRootFlags(t, "-c", path, "--no-banner")

	cfg, err := loadSettings(c)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Workers)
	assert.True(t, cfg.NoBanner)
	assert.Zero(t, cfg.EffectiveBannerTimeout())
}

func TestLoadSettingsPortsFlag(t *testing.T) {
	c := parseRootFlags(t, "-p", "22,80")

	cfg, err := loadSettings(c)
	require.NoError(t, err)
	assert.Equal(t, "22,80", cfg.Ports)
}

func TestLoadSettingsUnchangedFlagsKeepDefaults(t *testing.T) {
	c := parseRootFlags(t)

	cfg, err := loadSettings(c)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultWorkers, cfg.Workers)
	assert.Equal(t, config.DefaultConnectTimeout, cfg.ConnectTimeout.Duration)
	assert.False(t, cfg.NoBanner)
}

func TestRootFlagNames(t *testing.T) {
	c := parseRootFlags(t, "--ports", "443", "--workers", "7", "--timeout-ms", "250",
		"--banner-timeout-ms", "0", "--no-banner", "--all", "--json", "--live", "--verbose")

	cfg, err := loadSettings(c)
	require.NoError(t, err)
	assert.Equal(t, "443", cfg.Ports)
	assert.Equal(t, 7, cfg.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.ConnectTimeout.Duration)
	assert.True(t, showAll)
	assert.True(t, jsonOutput)
	assert.True(t, liveOutput)
	assert.True(t, debug)
}

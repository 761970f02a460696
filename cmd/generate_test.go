package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zolointo/next-fext-randomizer/internal/config"
)

func TestResolveAppIDsPrefersArgs(t *testing.T) {
	cfg := config.Config{AppIDs: []int{999}}
	got, err := resolveAppIDs(cfg, []string{"440", "570"}, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, []int{440, 570}, got)
}

func TestResolveAppIDsFallsBackToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steam_appids.txt")
	require.NoError(t, os.WriteFile(path, []byte("440, 570\n"), 0o600))

	cfg := config.Config{AppIDsFile: path, AppIDs: []int{999}}
	got, err := resolveAppIDs(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, []int{440, 570}, got)
}

func TestResolveAppIDsFallsBackToConfigList(t *testing.T) {
	cfg := config.Config{
		AppIDsFile: filepath.Join(t.TempDir(), "missing.txt"),
		AppIDs:     []int{999},
	}
	got, err := resolveAppIDs(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, []int{999}, got)
}

func TestResolveAppIDsRejectsBadArgs(t *testing.T) {
	_, err := resolveAppIDs(config.Config{}, []string{"not-a-number"}, zap.NewNop())
	require.Error(t, err)
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()
	require.Equal(t, "nextfest", root.Name())

	generate, _, err := root.Find([]string{"generate"})
	require.NoError(t, err)
	require.Equal(t, "generate", generate.Name())

	flag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
}

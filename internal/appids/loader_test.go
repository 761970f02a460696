package appids

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "steam_appids.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseArgs(t *testing.T) {
	ids, err := ParseArgs([]string{"440", " 570 ", "1091500"})
	require.NoError(t, err)
	require.Equal(t, []int{440, 570, 1091500}, ids)

	_, err = ParseArgs([]string{"440", "banana"})
	require.Error(t, err)

	_, err = ParseArgs([]string{"-5"})
	require.Error(t, err)

	ids, err = ParseArgs(nil)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestLoadFileMixedDelimiters(t *testing.T) {
	path := writeFile(t, "440, 570\n292030 1245620,\n1091500\n")
	ids, err := LoadFile(path, nil)
	require.NoError(t, err)
	require.Equal(t, []int{440, 570, 292030, 1245620, 1091500}, ids)
}

func TestLoadFileSkipsNonNumericTokens(t *testing.T) {
	path := writeFile(t, "# my picks\n440 oops\n570\n")
	ids, err := LoadFile(path, nil)
	require.NoError(t, err)
	require.Equal(t, []int{440, 570}, ids)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.txt"), nil)
	require.Error(t, err)
}

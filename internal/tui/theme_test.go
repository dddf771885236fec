package tui

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestThemeByName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "dark", ThemeByName("dark").Name)
	require.Equal(t, "light", ThemeByName("light").Name)
}

func TestUnknownThemeFallsBackToDark(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "solarized", "LIGHT"} {
		require.Equal(t, "dark", ThemeByName(name).Name, "name %q", name)
	}
}

package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := NewRootCmd()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}

	assert.True(t, names["index"])
	assert.True(t, names["search"])
	assert.True(t, names["version"])
}

func TestVersionCmd(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "smartsearch")
}

func TestSetupLogging_InstallsDefaultLogger(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	prev := slog.Default()
	defer slog.SetDefault(prev)

	debugMode = true
	defer func() { debugMode = false }()

	require.NoError(t, setupLogging(nil, nil))
	defer loggingCleanup()

	ctx := context.Background()
	assert.True(t, slog.Default().Enabled(ctx, slog.LevelDebug),
		"--debug must make the installed default logger debug-enabled")
	assert.NotSame(t, prev, slog.Default(), "setupLogging must install its logger as the default")
}

func TestSetupLogging_DefaultLevelIsInfo(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	prev := slog.Default()
	defer slog.SetDefault(prev)

	require.NoError(t, setupLogging(nil, nil))
	defer loggingCleanup()

	ctx := context.Background()
	assert.False(t, slog.Default().Enabled(ctx, slog.LevelDebug))
	assert.True(t, slog.Default().Enabled(ctx, slog.LevelInfo))
}

func TestLoadProducts(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "products.json")
		payload := `[{"id":"p1","title":"Samsung Galaxy Phone","brand":"samsung","category":"phone","price":25000,"rating":4.4,"num_ratings":2100,"in_stock":true}]`
		require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

		products, err := loadProducts(path)
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, "p1", products[0].ID)
		assert.Equal(t, 25000.0, products[0].Price)
	})

	t.Run("missing id rejected", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"title":"No ID"}]`), 0o644))

		_, err := loadProducts(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadProducts(filepath.Join(dir, "nope.json"))
		assert.Error(t, err)
	})
}

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func testApp(before cli.BeforeFunc, action cli.ActionFunc) *cli.App {
	return &cli.App{
		Name: "trigrep",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "warn",
			},
		},
		Before: before,
		Action: action,
	}
}

func TestSetupLogger(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", "WARN", "Info"} {
			t.Run(level, func(t *testing.T) {
				app := testApp(setupLogger, func(c *cli.Context) error { return nil })
				err := app.Run([]string{"trigrep", "--log-level", level})
				require.NoError(t, err)
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		app := testApp(setupLogger, func(c *cli.Context) error { return nil })
		err := app.Run([]string{"trigrep", "--log-level", "loud"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("log-level flag has alias -l", func(t *testing.T) {
		app := testApp(setupLogger, func(c *cli.Context) error {
			assert.Equal(t, "debug", c.String("log-level"))
			return nil
		})
		err := app.Run([]string{"trigrep", "-l", "debug"})
		require.NoError(t, err)
	})
}

func TestRootArg(t *testing.T) {
	app := testApp(nil, func(c *cli.Context) error {
		assert.Equal(t, ".", rootArg(c, 0))
		return nil
	})
	require.NoError(t, app.Run([]string{"trigrep"}))

	app = testApp(nil, func(c *cli.Context) error {
		assert.Equal(t, "/some/root", rootArg(c, 0))
		return nil
	})
	require.NoError(t, app.Run([]string{"trigrep", "/some/root"}))
}

func TestIndexThenSearch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello world"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("goodbye world"), 0o644))
	storeDir := t.TempDir()

	app := &cli.App{
		Name: "trigrep",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "error"},
			&cli.StringFlag{Name: "store-dir"},
			&cli.BoolFlag{Name: "cache-content"},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "index",
				Action: indexCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "fold-case"},
					&cli.StringSliceFlag{Name: "exclude", Aliases: []string{"x"}},
					&cli.Int64Flag{Name: "max-file-size", Value: 10 << 20},
				},
			},
			{
				Name:   "search",
				Action: searchCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "regexp", Aliases: []string{"e"}},
					&cli.BoolFlag{Name: "ranked"},
					&cli.BoolFlag{Name: "count", Aliases: []string{"c"}},
				},
			},
		},
	}

	err := app.Run([]string{"trigrep", "--store-dir", storeDir, "index", root})
	require.NoError(t, err)

	entries, err := os.ReadDir(storeDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	err = app.Run([]string{"trigrep", "--store-dir", storeDir, "search", "--count", "world", root})
	require.NoError(t, err)

	err = app.Run([]string{"trigrep", "--store-dir", storeDir, "search", "", root})
	require.Error(t, err)
}

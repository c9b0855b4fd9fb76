// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/trigrep"
	"github.com/poiesic/trigrep/index"
	"github.com/poiesic/trigrep/search"
	"github.com/poiesic/trigrep/watch"
)

func main() {
	app := &cli.App{
		Name:  "trigrep",
		Usage: "Trigram-indexed code search for local directory trees",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
			&cli.StringFlag{
				Name:  "store-dir",
				Usage: "Directory holding index files (default ~/.trigrep)",
			},
			&cli.BoolFlag{
				Name:  "cache-content",
				Usage: "Keep a copy of indexed content for verification against build-time bytes",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "index",
				Usage:     "Build (or rebuild) the index for a directory tree",
				ArgsUsage: "[root]",
				Action:    indexCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "fold-case",
						Usage: "Index case-insensitively (ASCII)",
					},
					&cli.StringSliceFlag{
						Name:    "exclude",
						Aliases: []string{"x"},
						Usage:   "Glob pattern to exclude (repeatable)",
					},
					&cli.Int64Flag{
						Name:  "max-file-size",
						Usage: "Skip files larger than this many bytes",
						Value: index.DefaultMaxFileSize,
					},
				},
			},
			{
				Name:      "refresh",
				Usage:     "Incrementally update the index, re-reading only changed files",
				ArgsUsage: "[root]",
				Action:    refreshCommand,
			},
			{
				Name:      "search",
				Usage:     "Search an indexed tree",
				ArgsUsage: "PATTERN [root]",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "regexp",
						Aliases: []string{"e"},
						Usage:   "Treat the pattern as a regular expression",
					},
					&cli.BoolFlag{
						Name:  "ranked",
						Usage: "Order results by relevance instead of file order",
					},
					&cli.BoolFlag{
						Name:    "count",
						Aliases: []string{"c"},
						Usage:   "Print only the match count",
					},
				},
			},
			{
				Name:      "status",
				Usage:     "Report whether the index lags the tree",
				ArgsUsage: "[root]",
				Action:    statusCommand,
			},
			{
				Name:      "remove",
				Usage:     "Delete the persisted index for a tree",
				ArgsUsage: "[root]",
				Action:    removeCommand,
			},
			{
				Name:      "watch",
				Usage:     "Watch a tree and refresh its index as files change",
				ArgsUsage: "[root]",
				Action:    watchCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// rootArg resolves the positional root argument, defaulting to the current
// directory.
func rootArg(c *cli.Context, position int) string {
	if root := c.Args().Get(position); root != "" {
		return root
	}
	return "."
}

func newEngine(c *cli.Context, builderOpts ...index.Option) (*trigrep.Engine, error) {
	opts := []trigrep.EngineOption{
		trigrep.WithBuilderOptions(builderOpts...),
	}
	if dir := c.String("store-dir"); dir != "" {
		opts = append(opts, trigrep.WithStoreDir(dir))
	}
	if c.Bool("cache-content") {
		opts = append(opts, trigrep.WithContentCache())
	}
	return trigrep.NewEngine(opts...)
}

func indexCommand(c *cli.Context) error {
	root := rootArg(c, 0)

	walkerOpts := []index.WalkerOption{
		index.WithMaxFileSize(c.Int64("max-file-size")),
	}
	if patterns := c.StringSlice("exclude"); len(patterns) > 0 {
		walkerOpts = append(walkerOpts, index.WithExcludeGlobs(patterns...))
	}
	walker, err := index.NewWalker(walkerOpts...)
	if err != nil {
		return err
	}

	builderOpts := []index.Option{index.WithWalker(walker)}
	if c.Bool("fold-case") {
		builderOpts = append(builderOpts, index.WithFoldCase())
	}

	engine, err := newEngine(c, builderOpts...)
	if err != nil {
		return err
	}
	defer engine.Close()

	snapshot, report, err := engine.BuildIndex(c.Context, root)
	if err != nil {
		return err
	}

	fmt.Printf("indexed %d files, %d trigrams in %s\n",
		snapshot.FileCount(), snapshot.TrigramCount(), report.Duration.Round(timePrecision))
	for _, skipped := range report.Skipped {
		fmt.Printf("skipped %s (%s)\n", skipped.Path, skipped.Reason)
	}
	return nil
}

func refreshCommand(c *cli.Context) error {
	engine, err := newEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	snapshot, report, err := engine.RefreshIndex(c.Context, rootArg(c, 0))
	if err != nil {
		return err
	}

	fmt.Printf("refreshed: %d files re-read, %d reused, %d total in %s\n",
		report.Indexed, report.Reused, snapshot.FileCount(), report.Duration.Round(timePrecision))
	return nil
}

func searchCommand(c *cli.Context) error {
	pattern := c.Args().Get(0)
	if pattern == "" {
		return fmt.Errorf("pattern is required")
	}
	root := rootArg(c, 1)

	engine, err := newEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	searcher, err := engine.NewSearcher(root)
	if err != nil {
		return err
	}

	var queryOpts []search.QueryOption
	if c.Bool("regexp") {
		queryOpts = append(queryOpts, search.AsRegexp())
	}
	if c.Bool("ranked") {
		queryOpts = append(queryOpts, search.Ranked())
	}

	matches, report, err := searcher.Query(c.Context, pattern, queryOpts...)
	if err != nil {
		return err
	}

	if c.Bool("count") {
		fmt.Println(len(matches))
	} else {
		for _, m := range matches {
			fmt.Printf("%s:%d:%s\n", m.Path, m.Line, m.Text)
		}
	}
	for _, stale := range report.Stale {
		fmt.Fprintf(os.Stderr, "stale: %s (%s)\n", stale.Path, stale.Reason)
	}
	if len(report.Stale) > 0 {
		fmt.Fprintln(os.Stderr, "index lags the tree; run 'trigrep refresh'")
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	engine, err := newEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	root := rootArg(c, 0)
	snapshot, err := engine.Load(root)
	if err != nil {
		return err
	}

	stale, err := engine.IsStale(c.Context, root)
	if err != nil {
		return err
	}

	fmt.Printf("root: %s\n", snapshot.Root)
	fmt.Printf("built: %s\n", snapshot.BuiltAt.Format(timeFormat))
	fmt.Printf("files: %d\n", snapshot.FileCount())
	fmt.Printf("trigrams: %d\n", snapshot.TrigramCount())
	if stale {
		fmt.Println("status: stale")
	} else {
		fmt.Println("status: current")
	}
	return nil
}

func removeCommand(c *cli.Context) error {
	engine, err := newEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()
	return engine.Remove(rootArg(c, 0))
}

func watchCommand(c *cli.Context) error {
	root := rootArg(c, 0)

	engine, err := newEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	// Make sure an index exists before reacting to changes.
	if _, _, err := engine.RefreshIndex(c.Context, root); err != nil {
		return err
	}

	watcher, err := watch.NewWatcher(root)
	if err != nil {
		return err
	}
	defer watcher.Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events, err := watcher.Start(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "watching %s\n", root)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			slog.Debug("change detected", "path", ev.Path, "op", ev.Op)
			if _, report, err := engine.RefreshIndex(ctx, root); err != nil {
				slog.Error("refresh failed", "err", err)
			} else if report.Indexed > 0 || report.Reused > 0 {
				fmt.Fprintf(os.Stderr, "refreshed: %d re-read, %d reused\n",
					report.Indexed, report.Reused)
			}
		}
	}
}

const (
	timeFormat    = "2006-01-02 15:04:05"
	timePrecision = time.Millisecond
)

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

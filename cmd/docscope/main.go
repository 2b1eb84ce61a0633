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
	"strings"
	"time"

	"github.com/poiesic/docscope/search"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docscope",
		Usage: "Index documents and search them with owner-scoped access",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML configuration file",
				EnvVars: []string{"DOCSCOPE_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "Path to BadgerDB database directory (overrides storage.path)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "index",
				Usage:     "Extract, chunk, embed and index a document",
				ArgsUsage: "<file>",
				Action:    indexCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "owner",
						Aliases: []string{"o"},
						Usage:   "Owner the document is scoped to",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Filename to record (defaults to the file's base name)",
					},
					&cli.BoolFlag{
						Name:  "async",
						Usage: "Process in the background and poll until done",
					},
					&cli.DurationFlag{
						Name:  "poll-interval",
						Usage: "Status poll interval with --async",
						Value: 500 * time.Millisecond,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search indexed documents",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "owner",
						Aliases: []string{"o"},
						Usage:   "Owner whose documents are searched",
					},
					&cli.StringFlag{
						Name:  "document",
						Usage: "Restrict results to one filename",
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Scope mode (guarded, unguarded); defaults to search.mode",
					},
					&cli.IntFlag{
						Name:  "top",
						Usage: "Number of results",
						Value: search.DefaultTop,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the response as JSON",
					},
				},
			},
			{
				Name:      "status",
				Usage:     "Show a document's processing status",
				ArgsUsage: "<document-id>",
				Action:    statusCommand,
			},
			{
				Name:   "documents",
				Usage:  "List registered documents",
				Action: documentsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "owner",
						Aliases: []string{"o"},
						Usage:   "Only list documents of this owner",
					},
				},
			},
			{
				Name:      "stats",
				Usage:     "Show chunk statistics for a document",
				ArgsUsage: "<document-id>",
				Action:    statsCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Replace fallback embeddings with primary embeddings",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
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

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

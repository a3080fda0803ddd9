// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

func weightFlags() []cli.Flag {
	return []cli.Flag{
		&cli.FloatFlag{
			Name:  "lyrics",
			Usage: "Weight of lyric similarity",
		},
		&cli.FloatFlag{
			Name:  "audio",
			Usage: "Weight of audio feature similarity",
		},
		&cli.FloatFlag{
			Name:  "spotify",
			Usage: "Weight of catalog similarity",
		},
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write config.toml from the bundled template",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand handles the Spotify session
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Spotify session",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize with Spotify in the browser and save tokens",
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Show the current session",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "verify",
						Usage: "Call the Spotify profile endpoint to confirm the session works",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "refresh",
				Usage:  "Force a token refresh",
				Action: r.AuthRefresh,
			},
		},
	}
}

func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search Spotify for tracks",
		ArgsUsage: "<query>",
		Flags:     outputFlags(),
		Action:    r.Search,
	}
}

func recommendCommand(r *Runner) *cli.Command {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"n"},
			Usage:   "Number of recommendations (at least the configured minimum)",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Export format: json, csv, markdown, txt",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Export directory",
			Value:   ".",
		},
		&cli.BoolFlag{
			Name:  "covers",
			Usage: "Download album art for markdown exports",
		},
	}

	return &cli.Command{
		Name:    "recommend",
		Aliases: []string{"rec"},
		Usage:   "Recommend tracks similar to a Spotify track",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "track"},
		},
		Flags:  append(append(flags, weightFlags()...), outputFlags()...),
		Action: r.Recommend,
	}
}

func analyzeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Show a track's audio features and candidate pool",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "track"},
		},
		Flags:  outputFlags(),
		Action: r.Analyze,
	}
}

func batchCommand(r *Runner) *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "file",
			Usage: "File with one track id or URL per line",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Export format: json, csv, markdown, txt",
			Value:   "json",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output directory (default: echoes_batch_<epoch>)",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Concurrent workers (max 10)",
			Value: 3,
		},
		&cli.FloatFlag{
			Name:  "rate",
			Usage: "Recommendations started per second",
			Value: 1,
		},
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"n"},
			Usage:   "Recommendations per track",
		},
		&cli.BoolFlag{
			Name:  "covers",
			Usage: "Download album art for markdown exports",
		},
	}

	return &cli.Command{
		Name:      "batch",
		Usage:     "Recommend for many tracks and export each result",
		ArgsUsage: "[track...]",
		Flags:     append(flags, weightFlags()...),
		Action:    r.Batch,
	}
}

func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlist",
		Usage: "Spotify playlist operations",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a private playlist from a track and its recommendations",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track"},
				},
				Flags: append([]cli.Flag{
					&cli.StringSliceFlag{
						Name:    "tracks",
						Aliases: []string{"t"},
						Usage:   "Track ids to add (default: run a recommendation)",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Playlist name",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Recommendations to add when --tracks is empty",
					},
				}, outputFlags()...),
				Action: r.PlaylistCreate,
			},
		},
	}
}

// cacheCommand inspects the sqlite cache backend
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and clear the lyrics, embedding and feature caches",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show entry counts per namespace",
				Action: r.CacheStats,
			},
			{
				Name:  "purge",
				Usage: "Delete cached entries",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "namespace",
						Usage: "Only purge one namespace (lyrics, embeddings, features)",
					},
				},
				Action: r.CachePurge,
			},
			{
				Name:  "prune",
				Usage: "Delete entries older than the cache TTL",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "older-than",
						Usage: "Age in hours (default: cache.ttl_hours)",
					},
				},
				Action: r.CachePrune,
			},
		},
	}
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Recorded recommendations (engine.record_history)",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded recommendations, newest first",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "source",
						Usage: "Filter by source track id",
					},
					&cli.StringFlag{
						Name:  "method",
						Usage: "Filter by acquisition method",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum entries",
						Value:   20,
					},
				}, outputFlags()...),
				Action: r.HistoryList,
			},
		},
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (default: server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (default: server.port)",
			},
		},
		Action: r.Serve,
	}
}

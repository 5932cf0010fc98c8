// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "Local user ID (default: user.default_id from config)",
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

// setupCommand handles setup operations for the database, users and config.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml template",
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "status", Usage: "List migrations and whether they are applied (sqlite)"},
					&cli.BoolFlag{Name: "rollback", Usage: "Revert the latest migration (sqlite)"},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "user",
				Usage: "Create a local user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "Email address", Required: true},
					&cli.StringFlag{Name: "name", Usage: "Display name", Required: true},
					&cli.StringFlag{Name: "tier", Usage: "Subscription tier (free or premium)", Value: "free"},
					&cli.StringFlag{Name: "external-id", Usage: "Spotify user ID that will own generated playlists"},
					&cli.BoolFlag{Name: "default", Usage: "Save as user.default_id in config"},
				},
				Action: r.SetupUser,
			},
		},
	}
}

// authCommand handles authentication with Spotify and the local API.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:   "spotify",
				Usage:  "Authenticate with Spotify using OAuth2",
				Action: r.SpotifyAuth,
			},
			{
				Name:  "token",
				Usage: "Issue a bearer token for the HTTP API",
				Flags: []cli.Flag{
					userFlag(),
					&cli.DurationFlag{Name: "ttl", Usage: "Token lifetime", Value: 24 * time.Hour},
				},
				Action: r.AuthToken,
			},
		},
	}
}

// generateCommand runs the playlist pipeline.
func generateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "generate",
		Aliases: []string{"gen"},
		Usage:   "Generate a playlist and create it on Spotify",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{Name: "from", Usage: "Load criteria from a TOML file; flags override it"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Playlist name"},
			&cli.StringFlag{Name: "description", Usage: "Playlist description"},
			&cli.StringSliceFlag{Name: "genre", Aliases: []string{"g"}, Usage: "Genre (repeatable)"},
			&cli.StringSliceFlag{Name: "sub-genre", Usage: "Sub-genre (repeatable)"},
			&cli.StringSliceFlag{Name: "mood", Aliases: []string{"m"}, Usage: "Mood (repeatable)"},
			&cli.StringSliceFlag{Name: "era", Usage: "Era, e.g. 1990s (repeatable)"},
			&cli.StringSliceFlag{Name: "region", Usage: "Region (repeatable)"},
			&cli.StringSliceFlag{Name: "language", Usage: "Lyric language (repeatable)"},
			&cli.StringFlag{Name: "prompt", Aliases: []string{"p"}, Usage: "Free-form request"},
			&cli.IntFlag{Name: "tracks", Aliases: []string{"t"}, Usage: "Number of tracks (10-50)", Value: 20},
			&cli.IntFlag{Name: "uniqueness", Usage: "1 (familiar) to 5 (deep cuts)", Value: 3},
			&cli.BoolFlag{Name: "public", Usage: "Make the playlist public"},
			&cli.StringFlag{Name: "cover", Usage: "Path to a cover image (jpeg, png, gif, webp or bmp)"},
			&cli.StringFlag{Name: "token", Usage: "Spotify access token (default: stored token)"},
			&cli.BoolFlag{Name: "tui", Usage: "Show live progress in an interactive view"},
			jsonFlag(),
		},
		Action: r.Generate,
	}
}

// usageCommand reports quota usage.
func usageCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "usage",
		Usage: "Show generation quota",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show usage for the current period",
				Flags:  []cli.Flag{userFlag(), jsonFlag()},
				Action: r.UsageShow,
			},
		},
	}
}

// playlistsCommand lists and exports generated playlists.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Generated playlist history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List generated playlists, newest first",
				Flags: []cli.Flag{
					userFlag(),
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of playlists", Value: 20},
					jsonFlag(),
				},
				Action: r.PlaylistsList,
			},
			{
				Name:  "export",
				Usage: "Export generated playlists",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "csv, markdown, txt or json", Value: "markdown"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file (directory for markdown)"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of playlists", Value: 100},
					&cli.BoolFlag{Name: "covers", Usage: "Download cover images (markdown only)"},
				},
				Action: r.PlaylistsExport,
			},
		},
	}
}

// serveCommand starts the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the playlist HTTP API",
		Action: r.Serve,
	}
}

// cacheCommand manages the catalog search cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the track search cache",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Count cached searches",
				Action: r.CacheStats,
			},
			{
				Name:   "purge",
				Usage:  "Delete expired cached searches",
				Action: r.CachePurge,
			},
		},
	}
}

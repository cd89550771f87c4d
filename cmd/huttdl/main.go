package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/huttdl/internal"
	"github.com/starford/huttdl/internal/api"
	"github.com/starford/huttdl/internal/dates"
	"github.com/starford/huttdl/internal/download"
	"github.com/starford/huttdl/internal/report"
	pkgconfig "github.com/starford/huttdl/pkg/config"
)

// loadApp loads the configuration and opens the store for a command run.
// On a missing config file a commented default is written and the user is
// told how to fill it in.
func loadApp(cmd *cli.Command) (*internal.App, error) {
	configPath := cmd.String("config")

	created, err := internal.EnsureConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if created {
		fmt.Printf("Created default configuration file at %q.\n", configPath)
		fmt.Println("Short instructions:")
		fmt.Println()
		fmt.Println("1. Log in to the site in your browser.")
		fmt.Println("2. Open the developer tools (F12) and go to the Network tab.")
		fmt.Println("3. Refresh the page.")
		fmt.Println("4. Find a request to any API endpoint and copy the `Cookie` header")
		fmt.Println("   into the `creator.cookie` field.")
		fmt.Println("5. Find the creator's numerical id in the `/is-live?id=...` request")
		fmt.Println("   and set `creator.id` and `creator.name`.")
		return nil, fmt.Errorf("configuration at %s needs to be filled in", configPath)
	}

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return internal.NewApp(cfg)
}

func runMetadata(ctx context.Context, cmd *cli.Command) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Harvester().Run(ctx)
}

func runDownload(ctx context.Context, cmd *cli.Command) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	stats, err := app.DownloadRunner().Run(ctx, download.Options{
		DryRun:   cmd.Bool("dry-run"),
		FailFast: cmd.Bool("fail-fast"),
	})
	app.Logger.Info("download run finished",
		slog.Int("succeeded", stats.Succeeded),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed),
		slog.Int("planned", stats.Planned))
	return err
}

func runRename(ctx context.Context, cmd *cli.Command) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.RenameCoordinator().Run(ctx, cmd.Bool("dry-run"))
}

func runResetDownloads(_ context.Context, cmd *cli.Command) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Store.ResetDownloads()
}

func runBackup(_ context.Context, cmd *cli.Command) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	dst := app.BackupPath(time.Now())
	if err := app.Store.Backup(dst); err != nil {
		return err
	}
	fmt.Printf("Backed up database to %s\n", dst)
	return nil
}

func runReport(_ context.Context, cmd *cli.Command) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	posts, err := app.Store.FetchAll()
	if err != nil {
		return err
	}
	report.Build(posts).Print(os.Stdout)
	return nil
}

func runSetDates(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("set-dates requires exactly two arguments: <start> <end>")
	}
	start, end, err := dates.ParseRange(cmd.Args().Get(0), cmd.Args().Get(1))
	if err != nil {
		return err
	}

	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	return dates.Backfill(ctx, app.Store, start, end, app.Logger)
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	return api.Serve(ctx, app.Config.App.HTTP.Address(), app.Store, app.Logger)
}

func main() {
	dryRunFlag := &cli.BoolFlag{
		Name:    "dry-run",
		Aliases: []string{"d"},
		Usage:   "Resolve paths and log intended actions without touching files or the database",
	}

	cmd := &cli.Command{
		Name:  "huttdl",
		Usage: "Archives a creator's media posts into a templated local directory layout",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config.yaml",
				Value:       "config.yaml",
				Sources:     cli.EnvVars("HUTTDL_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "metadata",
				Usage:  "Gathers all the metadata for the creator into the database",
				Action: runMetadata,
			},
			{
				Name:  "download",
				Usage: "Downloads all the not-yet downloaded media stored in the database",
				Flags: []cli.Flag{
					dryRunFlag,
					&cli.BoolFlag{
						Name:  "fail-fast",
						Usage: "Abort the whole run on the first download error",
						Value: true,
					},
				},
				Action: runDownload,
			},
			{
				Name:   "rename",
				Usage:  "Moves downloaded files to match the current filename pattern",
				Flags:  []cli.Flag{dryRunFlag},
				Action: runRename,
			},
			{
				Name:   "reset-downloads",
				Usage:  "Resets the status of all downloads to pending",
				Action: runResetDownloads,
			},
			{
				Name:   "backup-database",
				Usage:  "Creates a timestamped backup of the database",
				Action: runBackup,
			},
			{
				Name:   "report",
				Usage:  "Prints link counts by download status",
				Action: runReport,
			},
			{
				Name:      "set-dates",
				Usage:     "Interpolates creation dates between <start> and <end> across all posts",
				ArgsUsage: "<start> <end>",
				Action:    runSetDates,
			},
			{
				Name:   "serve",
				Usage:  "Serves a read-only HTTP view of the archive",
				Action: runServe,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

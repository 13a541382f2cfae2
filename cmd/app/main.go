package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/archivist/internal"
	pkgconfig "github.com/starford/archivist/pkg/config"
)

var version = "dev"

// errUnsuccessful makes the process exit non-zero after a run that
// completed but reported failures.
var errUnsuccessful = errors.New("completed with errors")

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cmd.Bool("verbose") {
		cfg.App.LogLevel = slog.LevelDebug
	}
	if f := cmd.String("log-format"); f != "" {
		cfg.App.LogFormat = f
	}
	return cfg, nil
}

func appOptions(cfg *internal.Config) []internal.Option {
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}
}

func organize(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	oc := &cfg.Organizer
	if cmd.IsSet("output") {
		oc.ArchiveRoot = cmd.String("output")
	}
	if cmd.Bool("dry-run") {
		oc.DryRun = true
	}
	switch {
	case cmd.Bool("copy") && cmd.Bool("rename-only"):
		return errors.New("--copy and --rename-only are mutually exclusive")
	case cmd.Bool("copy"):
		oc.Mode = "copy"
	case cmd.Bool("rename-only"):
		oc.Mode = "rename"
	}
	if exts := cmd.StringSlice("extensions"); len(exts) > 0 {
		oc.Extensions = exts
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	input := cmd.Args().First()
	if input == "" {
		input = "."
	}
	stats, err := internal.RunOrganize(ctx, input, appOptions(cfg)...)
	if err != nil {
		return err
	}
	if stats.Errors > 0 || stats.Cancelled {
		return errUnsuccessful
	}
	return nil
}

func twoDrives(cmd *cli.Command) (string, string, error) {
	if cmd.Args().Len() != 2 {
		return "", "", fmt.Errorf("expected DRIVE_A DRIVE_B, got %d arguments", cmd.Args().Len())
	}
	return cmd.Args().Get(0), cmd.Args().Get(1), nil
}

func compare(ctx context.Context, cmd *cli.Command) error {
	a, b, err := twoDrives(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	_, err = internal.RunCompare(ctx, a, b, cmd.Bool("rescan"), appOptions(cfg)...)
	return err
}

func syncDrives(ctx context.Context, cmd *cli.Command) error {
	a, b, err := twoDrives(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	res, err := internal.RunSync(ctx, a, b, cmd.Bool("rescan"), cmd.Bool("dry-run"), appOptions(cfg)...)
	if err != nil {
		return err
	}
	if !res.OK {
		return errUnsuccessful
	}
	return nil
}

func backup(ctx context.Context, cmd *cli.Command) error {
	drives := cmd.Args().Slice()
	if len(drives) == 0 {
		return errors.New("at least one DRIVE is required")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	res, err := internal.RunBackup(ctx, cmd.String("archive"), drives, cmd.Bool("rescan"), cmd.Bool("dry-run"), appOptions(cfg)...)
	if err != nil {
		return err
	}
	if !res.OK {
		return errUnsuccessful
	}
	return nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunServe(ctx, appOptions(cfg)...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := append(appOptions(cfg), internal.WithLogOutput(os.Stderr))
	return internal.RunMCP(ctx, opts...)
}

func rescanFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "rescan",
		Usage: "Rescan drives even when an index already exists",
	}
}

func dryRunFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "dry-run",
		Usage: "Show what would be done without changing anything",
	}
}

func main() {
	// -v is --verbose here.
	cli.VersionFlag = &cli.BoolFlag{Name: "version", Usage: "print the version"}

	cmd := &cli.Command{
		Name:    "archivist",
		Usage:   "Organize photos into a dated archive and keep backup drives in sync",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format: json or text",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "organize",
				Usage:     "Rename photos by capture time and move them into the archive",
				ArgsUsage: "[INPUT_DIR]",
				Action:    organize,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Archive directory",
					},
					dryRunFlag(),
					&cli.StringSliceFlag{
						Name:    "extensions",
						Aliases: []string{"e"},
						Usage:   "File extensions to process (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "copy",
						Usage: "Copy files instead of moving them",
					},
					&cli.BoolFlag{
						Name:  "rename-only",
						Usage: "Rename files in place instead of moving them into the archive",
					},
				},
			},
			{
				Name:      "compare",
				Usage:     "Compare the contents of two drives",
				ArgsUsage: "DRIVE_A DRIVE_B",
				Action:    compare,
				Flags:     []cli.Flag{rescanFlag()},
			},
			{
				Name:      "sync",
				Usage:     "Copy files missing on either drive from the other",
				ArgsUsage: "DRIVE_A DRIVE_B",
				Action:    syncDrives,
				Flags:     []cli.Flag{rescanFlag(), dryRunFlag()},
			},
			{
				Name:      "backup",
				Usage:     "Back up the archive to one or more drives",
				ArgsUsage: "DRIVE...",
				Action:    backup,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "archive",
						Aliases:  []string{"a"},
						Usage:    "Local archive directory",
						Required: true,
					},
					rescanFlag(),
					dryRunFlag(),
				},
			},
			{
				Name:   "serve",
				Usage:  "Watch the inbox and serve the status API",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve archive tools over MCP (stdio)",
				Action: mcp,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		stop()
		if !errors.Is(err, errUnsuccessful) {
			slog.Error("application error", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/coursevault/internal"
	pkgconfig "github.com/starford/coursevault/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	configPath := cmd.String("config")
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Debug("config file not found, using defaults and environment", slog.String("path", configPath))
	}
	return cfg, nil
}

func options(cfg *internal.Config) []internal.Option {
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, options(cfg)...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func syncOnce(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	summary, err := internal.RunSync(ctx, options(cfg)...)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	internal.PrintSummary(os.Stdout, summary)
	if !summary.OK() {
		return cli.Exit("sync finished with errors", 1)
	}
	return nil
}

func daemon(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunDaemon(ctx, options(cfg)...); err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}
	return nil
}

func courses(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	list, err := internal.ListCourses(ctx, options(cfg)...)
	if err != nil {
		return fmt.Errorf("list courses: %w", err)
	}
	if len(list) == 0 {
		fmt.Println("No active courses found.")
		return nil
	}
	for _, c := range list {
		fmt.Printf("%-10s %s\n", c.ID, c.DisplayName())
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, options(cfg)...); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "coursevault",
		Usage:  "Sync Canvas assignments and calendar events into an Obsidian vault",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, the daily scheduler and the vault watcher",
				Action: serve,
			},
			{
				Name:   "sync",
				Usage:  "Run one sync and print the summary",
				Action: syncOnce,
			},
			{
				Name:   "daemon",
				Usage:  "Run the daily scheduler only, logging to a rotating file",
				Action: daemon,
			},
			{
				Name:   "courses",
				Usage:  "List active Canvas courses with their ids",
				Action: courses,
			},
			{
				Name:   "mcp",
				Usage:  "Serve sync tools over MCP on stdio",
				Action: mcp,
			},
			{
				Name:  "version",
				Usage: "Print the version",
				Action: func(context.Context, *cli.Command) error {
					fmt.Println(version)
					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

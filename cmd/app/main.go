package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/vowpost/internal"
	pkgconfig "github.com/starford/vowpost/pkg/config"
)

// loadConfig reads the config file. The default location may be absent, in
// which case the built-in defaults apply; an explicitly named file must exist.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	load := pkgconfig.LoadOptional[internal.Config]
	if cmd.IsSet("config") {
		load = pkgconfig.Load[internal.Config]
	}
	if err := load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func runSync(_ context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("sync: file argument is required")
	}
	return syncFile(os.Stdout, path, syncFlags{
		write:   cmd.Bool("write"),
		slug:    cmd.Bool("slug"),
		outline: cmd.Bool("toc"),
	})
}

func main() {
	cmd := &cli.Command{
		Name:   "vowpost",
		Usage:  "Post editing service that keeps heading ids and tables of contents in step",
		Action: run,
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
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio against the configured vault",
				Action: runMCP,
			},
			{
				Name:      "sync",
				Usage:     "Run one synchronisation pass over an HTML file",
				ArgsUsage: "<file>",
				Action:    runSync,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "write", Aliases: []string{"w"}, Usage: "Rewrite the file in place"},
					&cli.BoolFlag{Name: "slug", Usage: "Append a slug of the heading text to generated ids"},
					&cli.BoolFlag{Name: "toc", Usage: "Print the outline instead of the markup"},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/fixq/internal/logger"
)

func main() {
	app := &cli.Command{
		Name:  "fixq",
		Usage: "Integer requantization toolkit for quantized inference",
		Flags: loggingFlags(),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level, format := logLevel, logFormat
			if cfg, err := loadConfig(); err == nil {
				if cfg.LogLevel != "" && !cmd.IsSet("log-level") {
					level = cfg.LogLevel
				}
				if cfg.LogFormat != "" && !cmd.IsSet("log-format") {
					format = cfg.LogFormat
				}
			}
			if debug {
				level = "debug"
			}
			return logger.WithContext(ctx, logger.Setup(format, level)), nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			prepareCmd(),
			checkCmd(),
			inspectCmd(),
			serveCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import "github.com/urfave/cli/v3"

var (
	registerBits int64
	logLevel     string
	logFormat    string
	debug        bool
)

func registerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "register-bits",
			Aliases:     []string{"bits"},
			Usage:       "accumulator register width for shift selection",
			Value:       32,
			Destination: &registerBits,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/fixq/internal/calib"
	"github.com/samcharles93/fixq/internal/logger"
	"github.com/samcharles93/fixq/pkg/fqp"
)

func prepareCmd() *cli.Command {
	var (
		calibPath string
		outPath   string
	)

	return &cli.Command{
		Name:  "prepare",
		Usage: "Decompose layer multipliers from a calibration file into a .fqp plan",
		Flags: append(registerFlags(),
			&cli.StringFlag{
				Name:        "calibration",
				Aliases:     []string{"c"},
				Usage:       "path to calibration JSON",
				Required:    true,
				Destination: &calibPath,
			},
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output .fqp path",
				Value:       "plans.fqp",
				Destination: &outPath,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			doc, err := calib.Load(calibPath)
			if err != nil {
				return fmt.Errorf("load calibration: %w", err)
			}

			bits := applyRegisterBits(cmd, cfg)
			records, err := calib.BuildPlans(doc, bits)
			if err != nil {
				return fmt.Errorf("prepare plans: %w", err)
			}

			payload, err := fqp.Encode(records)
			if err != nil {
				return fmt.Errorf("encode plan file: %w", err)
			}
			if err := os.WriteFile(outPath, payload, 0o644); err != nil {
				return fmt.Errorf("write plan file: %w", err)
			}

			log.Info("wrote plan file",
				"path", outPath,
				"layers", len(records),
				"model", doc.Model,
				"bytes", len(payload),
			)
			return nil
		},
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/fixq/internal/calib"
	"github.com/samcharles93/fixq/internal/logger"
	"github.com/samcharles93/fixq/pkg/requant"
)

func checkCmd() *cli.Command {
	var calibPath string

	return &cli.Command{
		Name:  "check",
		Usage: "Audit per-layer accumulator bit budgets against a register width",
		Flags: append(registerFlags(),
			&cli.StringFlag{
				Name:        "calibration",
				Aliases:     []string{"c"},
				Usage:       "path to calibration JSON",
				Required:    true,
				Destination: &calibPath,
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
			if bits <= 0 {
				bits = doc.Bits()
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LAYER\tFAN-IN\tACC BITS\tMAX SHIFT\tSTATUS")

			failed := 0
			for _, l := range doc.Layers {
				accBits := requant.AccumulatorBits(l.FanIn)
				shift, err := requant.SelectShift(bits, accBits)
				status := "ok"
				shiftStr := fmt.Sprintf("%d", shift)
				if err != nil {
					failed++
					status = err.Error()
					shiftStr = "-"
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", l.Name, l.FanIn, accBits, shiftStr, status)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d layers cannot fit a %d-bit register",
					failed, len(doc.Layers), bits)
			}
			log.Info("all layers fit", "layers", len(doc.Layers), "register_bits", bits)
			return nil
		},
	}
}

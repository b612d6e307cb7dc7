package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/fixq/pkg/fqp"
)

func inspectCmd() *cli.Command {
	var (
		planPath string
		asJSON   bool
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Dump the layer records of a .fqp plan file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "plan",
				Aliases:     []string{"p"},
				Usage:       "path to .fqp file",
				Required:    true,
				Destination: &planPath,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "emit JSON instead of a table",
				Destination: &asJSON,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			f, err := fqp.Open(planPath)
			if err != nil {
				return fmt.Errorf("open plan file: %w", err)
			}
			defer func() { _ = f.Close() }()

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(f.Records())
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LAYER\tFAN-IN\tMANTISSA\tSHIFT\tM\tW SCALE\tX SCALE\tY SCALE\tY ZERO")
			for _, r := range f.Records() {
				m := r.WScale * r.XScale / r.YScale
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.10f\t%g\t%g\t%g\t%d\n",
					r.Name, r.FanIn, r.Mantissa, r.Shift, m, r.WScale, r.XScale, r.YScale, r.YZero)
			}
			return w.Flush()
		},
	}
}

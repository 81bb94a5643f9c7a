package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-reachy-face/pkg/expression"
	"github.com/teslashibe/go-reachy-face/pkg/render"
)

var renderCmd = &cobra.Command{
	Use:   "render <expression>",
	Short: "Render one expression to a PNG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		registry, _, err := loadRegistry(cfg.Expressions.Dir, false)
		if err != nil {
			return err
		}

		t, _ := cmd.Flags().GetFloat64("t")
		if t < 0 || t > 1 {
			return fmt.Errorf("--t must be within [0, 1], got %v", t)
		}
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = args[0] + ".png"
		}

		var opts []expression.Option
		if cmd.Flags().Changed("x") || cmd.Flags().Changed("y") {
			x, _ := cmd.Flags().GetFloat64("x")
			y, _ := cmd.Flags().GetFloat64("y")
			opts = append(opts, expression.WithPosition(x, y))
		}
		if cmd.Flags().Changed("scale") {
			s, _ := cmd.Flags().GetFloat64("scale")
			opts = append(opts, expression.WithScale(s))
		}
		def, err := registry.Instantiate(args[0], opts...)
		if err != nil {
			return err
		}

		w, h := cfg.Display.Width, cfg.Display.Height
		pts := def.RenderPoints(t, float64(w), float64(h))

		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := render.PNG(f, pts, render.Options{Width: w, Height: h}); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d, t=%.2f)\n", out, w, h, t)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().Float64("t", 1, "Animation progress in [0, 1]")
	renderCmd.Flags().StringP("out", "o", "", "Output file (default <expression>.png)")
	renderCmd.Flags().Float64("x", 0, "Horizontal offset")
	renderCmd.Flags().Float64("y", 0, "Vertical offset")
	renderCmd.Flags().Float64("scale", 1, "Scale factor")
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/maidr/pkg/pipeline"
	"github.com/matzehuels/maidr/pkg/tree"
)

const (
	treeOutline = "outline"
	treeDOT     = "dot"
	treeSVG     = "svg"
)

func (c *CLI) treeCommand() *cobra.Command {
	var format, output string
	var calls bool
	var width, height float64

	cmd := &cobra.Command{
		Use:   "tree [spec]",
		Short: "Show the rendered element tree of a chart",
		Long: `Render a chart and print the tree of named elements the selectors are
resolved against, as an indented outline, Graphviz DOT, or an SVG diagram.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := loadSpec(args[0], calls)
			if err != nil {
				return err
			}
			opts := pipeline.Options{Spec: spec, Width: width, Height: height, Logger: c.Logger}
			if err := opts.ValidateAndSetDefaults(); err != nil {
				return err
			}
			out, err := opts.Renderer().Render(cmd.Context(), spec)
			if err != nil {
				return err
			}
			c.Logger.Debugf("Rendered %d elements", out.Tree.Len())

			var data []byte
			switch format {
			case treeOutline:
				data = []byte(tree.Outline(out.Tree))
			case treeDOT:
				data = []byte(tree.ToDOT(out.Tree))
			case treeSVG:
				if data, err = tree.RenderSVG(cmd.Context(), tree.ToDOT(out.Tree)); err != nil {
					return err
				}
			default:
				return fmt.Errorf("invalid tree format: %s (must be 'outline', 'dot', or 'svg')", format)
			}

			if output == "" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", treeOutline, "output format: outline, dot, svg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&calls, "calls", false, "read the input as a call log regardless of extension")
	cmd.Flags().Float64Var(&width, "width", pipeline.DefaultWidth, "chart width in pixels")
	cmd.Flags().Float64Var(&height, "height", pipeline.DefaultHeight, "chart height in pixels")

	return cmd
}

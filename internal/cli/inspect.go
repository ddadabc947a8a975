package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strathmore/pipescore/pkg/layout"
	"github.com/strathmore/pipescore/pkg/render"
	"github.com/strathmore/pipescore/pkg/score"
)

// inspectCommand creates the inspect command for rendering the document
// structure tree.
func (c *CLI) inspectCommand() *cobra.Command {
	var (
		output   string
		format   string
		detailed bool
		withLay  bool
	)

	cmd := &cobra.Command{
		Use:   "inspect [score.json]",
		Short: "Render a score's structure tree as DOT or SVG",
		Long: `Render a score's structure tree as DOT or SVG.

The inspect command draws the document's containment tree (tunes, parts,
systems, and with --detailed the individual measures) plus the current page
assignment as a Graphviz diagram. With --layout, a full layout pass runs
first and computed widths and heights annotate the nodes.

DOT output goes to stdout unless --output is given; SVG always needs a file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInspect(cmd, args[0], output, format, detailed, withLay)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout for dot, <input>.svg for svg)")
	cmd.Flags().StringVarP(&format, "format", "f", "dot", "output format: dot, svg")
	cmd.Flags().BoolVarP(&detailed, "detailed", "d", false, "include measure nodes")
	cmd.Flags().BoolVar(&withLay, "layout", false, "run a layout pass and annotate nodes with computed sizes")

	return cmd
}

func (c *CLI) runInspect(cmd *cobra.Command, input, output, format string, detailed, withLayout bool) error {
	if format != "dot" && format != "svg" {
		return fmt.Errorf("invalid format: %q (must be dot or svg)", format)
	}

	doc, err := score.ReadDocumentFile(input)
	if err != nil {
		return fmt.Errorf("load score %s: %w", input, err)
	}

	opts := render.Options{Detailed: detailed}
	if withLayout {
		co := layout.NewCoordinator(layout.Config{Logger: c.Logger})
		res, err := co.CalculateDocumentLayout(cmd.Context(), doc)
		if err != nil {
			return fmt.Errorf("compute layout: %w", err)
		}
		opts.Result = res
	}

	dot := render.ToDOT(doc, opts)

	if format == "dot" {
		if output == "" {
			fmt.Fprint(cmd.OutOrStdout(), dot)
			return nil
		}
		if err := os.WriteFile(output, []byte(dot), 0o644); err != nil {
			return fmt.Errorf("write output %s: %w", output, err)
		}
		printSuccess("Structure written")
		printFile(output)
		return nil
	}

	svg, err := render.RenderSVG(dot)
	if err != nil {
		return fmt.Errorf("render SVG: %w", err)
	}
	if output == "" {
		base := strings.TrimSuffix(input, filepath.Ext(input))
		output = base + ".svg"
	}
	if err := os.WriteFile(output, svg, 0o644); err != nil {
		return fmt.Errorf("write output %s: %w", output, err)
	}
	printSuccess("Structure rendered")
	printFile(output)
	return nil
}

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strathmore/pipescore/pkg/cache"
	"github.com/strathmore/pipescore/pkg/layout"
	"github.com/strathmore/pipescore/pkg/render"
	"github.com/strathmore/pipescore/pkg/score"
)

// layoutCommand creates the layout command for computing document layouts.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		output     string
		configPath string
		noCache    bool
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "layout [score.json]",
		Short: "Compute the page layout of a score document",
		Long: `Compute the page layout of a score document.

The layout command reads a score JSON file, spaces every measure, stacks the
instrument staves into systems, assigns systems to pages, and writes the
result as a layout.json file next to the input.

Whole-document results are cached locally: re-running on an unchanged score
returns the stored result.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLayout(cmd.Context(), args[0], output, configPath, noCache, workers)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.layout.json)")
	cmd.Flags().StringVar(&configPath, "config", "", "engine config file (TOML)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the result cache")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel workers per layout level (0 = all CPUs)")

	return cmd
}

// runLayout loads the score, runs a full layout pass, and writes output.
func (c *CLI) runLayout(ctx context.Context, input, output, configPath string, noCache bool, workers int) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if workers > 0 {
		cfg.Workers = workers
	}

	raw, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read score %s: %w", input, err)
	}
	doc, err := score.UnmarshalDocument(raw)
	if err != nil {
		return fmt.Errorf("load score %s: %w", input, err)
	}
	doc.Settings = cfg.ApplySettings(doc.Settings)

	outputPath := output
	if outputPath == "" {
		base := strings.TrimSuffix(input, filepath.Ext(input))
		outputPath = base + ".layout.json"
	}

	// Whole-document memoization: an unchanged score with unchanged
	// settings reuses the stored result.
	results := newResultCache(noCache)
	defer results.Close()
	key := cache.NewDefaultKeyer().LayoutKey(cache.Hash(raw), cache.LayoutKeyOpts{
		PaperSize:     string(doc.Settings.PaperSize),
		Orientation:   string(doc.Settings.Orientation),
		SpacingFactor: doc.Settings.SpacingFactor,
		FontSize:      doc.Settings.FontSize,
	})
	if data, ok, err := results.Get(ctx, key); err == nil && ok {
		if err := os.WriteFile(outputPath, data, 0o644); err != nil {
			return fmt.Errorf("write output %s: %w", outputPath, err)
		}
		printSuccess("Layout complete")
		printFile(outputPath)
		printLayoutStats(len(doc.Pages), len(doc.Systems()), 0, true)
		return nil
	}

	co := layout.NewCoordinator(layout.Config{
		Cache:          cfg.EntityCache(),
		Logger:         c.Logger,
		Workers:        cfg.Workers,
		Tracker:        cfg.TrackerConfig(),
		AvoidTolerance: cfg.Page.AvoidTolerance,
	})

	spinner := newSpinnerWithContext(ctx, "Computing layout...")
	spinner.Start()

	prog := newProgress(c.Logger)
	res, err := co.CalculateDocumentLayout(ctx, doc)
	if err != nil {
		spinner.StopWithError("Layout failed")
		return fmt.Errorf("compute layout: %w", err)
	}
	spinner.Stop()
	prog.done(fmt.Sprintf("Laid out %d systems across %d pages", len(res.UpdatedSystems), len(res.Pages)))

	if ctx.Err() != nil {
		return ctx.Err()
	}

	data, err := render.MarshalResult(res)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}
	// Best-effort: a failed store never fails the command.
	_ = results.Set(ctx, key, data, cache.TTLLayout)

	printSuccess("Layout complete")
	printFile(outputPath)
	printLayoutStats(len(res.Pages), len(res.UpdatedSystems), len(res.Errors), false)
	for _, w := range res.Warnings {
		printWarning("%s", w)
	}
	for _, e := range res.Errors {
		printDetail("%s: %s", e.Code, e.EntityID)
	}
	printNewline()
	printNextStep("Inspect", "pipescore inspect "+input)

	return nil
}

// Package render turns score documents and layout results into
// debugging visuals: a Graphviz structure tree of the document and a
// JSON export of layout results. The printed page itself is drawn by
// the editing application; this package exists so layout behavior can
// be inspected without one.
package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/strathmore/pipescore/pkg/layout"
	"github.com/strathmore/pipescore/pkg/score"
)

// Options configures structure-tree rendering.
type Options struct {
	// Detailed includes measure nodes and computed widths/heights in
	// labels. When false the tree stops at systems.
	Detailed bool

	// Result attaches computed layout numbers to node labels when set.
	Result *layout.UpdateResult
}

// ToDOT converts a document's containment tree to Graphviz DOT: the
// document at the root, tunes, parts and systems below it, and the page
// assignment drawn as dashed edges from page nodes to their systems.
func ToDOT(doc *score.Document, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph score {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	fmt.Fprintf(&buf, "  %q [label=%q, fillcolor=lightyellow];\n", doc.ID, "document\n"+doc.Title)

	for _, t := range doc.Tunes {
		fmt.Fprintf(&buf, "  %q [label=%q];\n", t.ID, fmt.Sprintf("tune %s\n%s", t.Title, t.TimeSig))
		fmt.Fprintf(&buf, "  %q -> %q;\n", doc.ID, t.ID)
		for _, p := range t.Parts {
			fmt.Fprintf(&buf, "  %q [label=%q];\n", p.ID, "part "+p.Letter)
			fmt.Fprintf(&buf, "  %q -> %q;\n", t.ID, p.ID)
			for _, s := range p.Systems {
				fmt.Fprintf(&buf, "  %q [label=%q];\n", s.ID, systemLabel(s, opts))
				fmt.Fprintf(&buf, "  %q -> %q;\n", p.ID, s.ID)
				if opts.Detailed {
					for _, m := range s.Measures {
						fmt.Fprintf(&buf, "  %q [label=%q, fontsize=10];\n", m.ID, measureLabel(m, opts))
						fmt.Fprintf(&buf, "  %q -> %q;\n", s.ID, m.ID)
					}
				}
			}
		}
	}

	buf.WriteString("\n")
	for i, pg := range doc.Pages {
		fmt.Fprintf(&buf, "  %q [label=%q, style=\"rounded,filled,dashed\", fillcolor=lightgrey];\n",
			pg.ID, fmt.Sprintf("page %d", i+1))
		for _, ref := range pg.Lines {
			fmt.Fprintf(&buf, "  %q -> %q [style=dashed];\n", pg.ID, ref.SystemID)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func systemLabel(s *score.MusicalSystem, opts Options) string {
	label := fmt.Sprintf("system\n%d measures, %d staves", len(s.Measures), len(s.Instruments))
	if opts.Result != nil {
		if sl, ok := opts.Result.SystemLayouts[s.ID]; ok {
			label += fmt.Sprintf("\n%.0f x %.0f pt", sl.TotalWidth, sl.Height)
		}
	}
	return label
}

func measureLabel(m *score.Measure, opts Options) string {
	label := "measure"
	if m.Pickup {
		label = "pickup"
	}
	if opts.Result != nil {
		if sl, ok := layoutOf(opts.Result, m.ID); ok {
			label += fmt.Sprintf("\n%.0f pt", sl.Width)
			if sl.DurationFlagged {
				label += "\n!duration"
			}
		}
	}
	return label
}

func layoutOf(res *layout.UpdateResult, measureID string) (layout.MeasureLayout, bool) {
	for _, sl := range res.SystemLayouts {
		if ml, ok := sl.MeasureLayouts[measureID]; ok {
			return ml, true
		}
	}
	return layout.MeasureLayout{}, false
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the SVG root element to a zero-origin
// viewBox with explicit pixel dimensions, so browsers scale it sanely.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}

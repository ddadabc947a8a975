package layout

import (
	"math"

	"github.com/strathmore/pipescore/pkg/errors"
	"github.com/strathmore/pipescore/pkg/score"
)

// CalculateMeasure computes the layout of one measure across all of its
// instrument lines.
//
// The width is the maximum of every line's natural content width and
// the measure's MinWidth hint. A CompressionFactor hint scales the
// natural width but never below the minimum. The computation is
// deterministic: the same measure and context always produce a
// bit-identical MeasureLayout.
//
// When a line's durations do not sum to the effective time signature's
// bar duration the measure is laid out at its actual content width,
// flagged, and an INVALID_DURATION error is returned alongside the
// result. Pickup measures are exempt.
func CalculateMeasure(m *score.Measure, ctx MeasureContext) (MeasureLayout, error) {
	if ctx.SpacingFactor == 0 {
		ctx.SpacingFactor = 1.0
	}
	if ctx.FontSize == 0 {
		ctx.FontSize = 18
	}

	result := MeasureLayout{
		MeasureID:     m.ID,
		PerInstrument: make(map[string]float64, len(m.Lines)),
	}

	var durationErr error
	want := ctx.TimeSig.BarDuration()

	for i := range m.Lines {
		line := &m.Lines[i]
		w := lineWidth(line, ctx)
		result.PerInstrument[line.InstrumentID] = w
		if w > result.NaturalWidth {
			result.NaturalWidth = w
		}

		if !m.Pickup && want > 0 {
			if got := line.TotalDuration(); got != want {
				result.DurationFlagged = true
				if durationErr == nil {
					durationErr = errors.NewEntity(errors.ErrCodeInvalidDuration, m.ID,
						"instrument %s: durations sum to %d ticks, time signature %s wants %d",
						line.InstrumentID, got, ctx.TimeSig, want)
				}
			}
		}
	}

	// Barline allowances are part of the measure's horizontal budget.
	barlines := ctx.Metrics.GlyphWidth(barlineGlyph(ctx.Opening), ctx.FontSize) +
		ctx.Metrics.GlyphWidth(barlineGlyph(ctx.Closing), ctx.FontSize)
	result.NaturalWidth += 2*measurePadding + barlines

	width := result.NaturalWidth
	minWidth := MinMeasureWidth
	if m.Hints != nil && m.Hints.MinWidth != nil && *m.Hints.MinWidth > minWidth {
		minWidth = *m.Hints.MinWidth
	}
	if m.Hints != nil && m.Hints.CompressionFactor != nil {
		width *= *m.Hints.CompressionFactor
	}
	if width < minWidth {
		width = minWidth
	}
	result.Width = width

	return result, durationErr
}

// lineWidth computes the natural content width of one instrument line:
// the sum of element widths plus duration-proportional gaps.
func lineWidth(line *score.InstrumentLine, ctx MeasureContext) float64 {
	var w float64
	for i := range line.Elements {
		el := &line.Elements[i]
		w += elementWidth(el, ctx)

		gap := elementGap(el, ctx)
		if i == len(line.Elements)-1 {
			// The closing barline supplies the trailing space.
			gap = minGap
		}
		w += gap
	}
	return w
}

// elementWidth returns the width of a note or rest including any
// attached ornament. A Width hint overrides the natural width entirely.
func elementWidth(el *score.Element, ctx MeasureContext) float64 {
	if el.Hints != nil && el.Hints.Width != nil {
		return *el.Hints.Width
	}

	var w float64
	if el.Rest {
		w = ctx.Metrics.GlyphWidth(restFor(el.Duration), ctx.FontSize)
	} else {
		w = ctx.Metrics.GlyphWidth(noteheadFor(el.Duration), ctx.FontSize)
	}

	if isDotted(el.Duration) {
		w += ctx.Metrics.GlyphWidth(GlyphAugmentDot, ctx.FontSize) + minGap/2
	}

	if el.Ornament != nil {
		// Each written grace note of the embellishment takes its own
		// horizontal room ahead of the melody note.
		n := el.Ornament.GraceCount
		if n == 0 {
			n = defaultGraceCount(el.Ornament.Type)
		}
		grace := ctx.Metrics.GlyphWidth(GlyphGraceNote, ctx.FontSize)
		w += float64(n)*(grace+minGap/2) + minGap
	}
	return w
}

// elementGap returns the spacing after an element. Longer durations get
// proportionally more room on a square-root curve, compressed or
// stretched by the global spacing factor. A SpacingAfter hint overrides.
func elementGap(el *score.Element, ctx MeasureContext) float64 {
	if el.Hints != nil && el.Hints.SpacingAfter != nil {
		return *el.Hints.SpacingAfter
	}
	gap := baseGap * math.Sqrt(float64(el.Duration)/float64(quarterTicks)) * ctx.SpacingFactor
	if gap < minGap {
		gap = minGap
	}
	return gap
}

// isDotted reports whether d is a dotted duration (3/2 of a power-of-two
// base value).
func isDotted(d scoreTicks) bool {
	if d <= 0 || d%3 != 0 {
		return false
	}
	base := d / 3 * 2
	for _, plain := range []scoreTicks{score.Whole, score.Half, score.Quarter, score.Eighth, score.Sixteenth, score.ThirtySecond} {
		if base == plain {
			return true
		}
	}
	return false
}

// defaultGraceCount gives the written grace-note count of an
// embellishment when the score does not spell it out.
func defaultGraceCount(t score.OrnamentType) int {
	switch t {
	case score.GraceNote, score.Strike, score.Flam:
		return 1
	case score.Drag:
		return 2
	case score.Doubling, score.ThrowOnD:
		return 3
	case score.Grip, score.Birl:
		return 3
	case score.Taorluath:
		return 4
	case score.Roll:
		return 5
	}
	return 1
}

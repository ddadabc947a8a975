// Package layout implements the pagination and spacing engine for
// pipe-band scores.
//
// The engine is organized bottom-up: measure layout computes the width
// of a single bar across all instruments, system layout composes
// measures into a staff system, and pagination assigns systems to
// pages. The Coordinator on top tracks dirty regions, invalidates the
// entity cache, and recomputes the minimal scope in parallel.
//
// All computed layouts are immutable value objects, safe to hand to a
// renderer across a boundary. The entity cache is a pure optimization:
// computing with a NullEntityCache produces identical results.
package layout

import (
	"github.com/strathmore/pipescore/pkg/score"
)

// Local aliases for the duration constants the spacing math leans on.
type scoreTicks = score.Ticks

const (
	wholeTicks   = score.Whole
	halfTicks    = score.Half
	quarterTicks = score.Quarter
	eighthTicks  = score.Eighth
)

// Spacing constants in points, scaled by the document spacing factor
// where noted.
const (
	// baseGap is the duration-proportional gap after a quarter note at
	// spacing factor 1.0.
	baseGap = 14.0

	// minGap is the smallest gap allowed between two elements.
	minGap = 3.5

	// measurePadding is the fixed horizontal padding inside each barline.
	measurePadding = 5.0

	// MinMeasureWidth is the absolute lower bound on any measure width.
	MinMeasureWidth = 24.0

	// staffHeight is the printed height of one five-line staff.
	staffHeight = 28.0

	// defaultStaffSpacing is the default baseline distance between
	// adjacent staves in a system.
	defaultStaffSpacing = 72.0

	// minStaffClearance keeps glyphs on adjacent staves from colliding
	// even when hints request something tighter.
	minStaffClearance = 40.0

	// systemPadding is the vertical padding above and below a system.
	systemPadding = 12.0

	// interSystemGap is the vertical gap between systems on a page.
	interSystemGap = 20.0

	// AvoidOverflowTolerance is the fraction of usable page height a
	// page may over-pack when a tune's page-break policy is "avoid".
	// The source material never fixes this numerically; 6% keeps an
	// avoided break visually unnoticeable while still rescuing a
	// stranded final system.
	AvoidOverflowTolerance = 0.06
)

// MeasureContext carries everything measure layout needs beyond the
// measure itself. It is a value type: copying it is cheap and keeps
// sibling measure computations independent.
type MeasureContext struct {
	// TimeSig is the effective time signature after cascading lookup.
	TimeSig score.TimeSignature

	// Metrics supplies glyph widths.
	Metrics FontMetrics

	// SpacingFactor is the document-global spacing multiplier.
	SpacingFactor float64

	// FontSize is the music font size in points.
	FontSize float64

	// Opening and Closing are the barline types around the measure,
	// which change the horizontal allowance at each end.
	Opening score.BarlineType
	Closing score.BarlineType
}

// SystemContext carries the page-level inputs for system layout.
type SystemContext struct {
	// PageWidth is the usable page width in points.
	PageWidth float64

	// StaffSpacing is the default baseline distance between staves.
	// Zero means defaultStaffSpacing.
	StaffSpacing float64

	// Workers bounds the parallel fan-out across sibling measures.
	// Zero means runtime.NumCPU.
	Workers int
}

// barlineGlyph maps a barline type to the glyph used for its width
// allowance.
func barlineGlyph(t score.BarlineType) Glyph {
	switch t {
	case score.BarlineDouble:
		return GlyphBarlineDouble
	case score.BarlineRepeatStart, score.BarlineRepeatEnd:
		return GlyphBarlineRepeat
	case score.BarlineFinal:
		return GlyphBarlineFinal
	default:
		return GlyphBarlineSingle
	}
}

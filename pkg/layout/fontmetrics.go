package layout

// Glyph names follow the SMuFL convention for music notation symbols.
// Only the glyphs the spacing math consults are listed; rendering owns
// the full font.
type Glyph string

const (
	GlyphNoteheadBlack Glyph = "noteheadBlack"
	GlyphNoteheadHalf  Glyph = "noteheadHalf"
	GlyphNoteheadWhole Glyph = "noteheadWhole"
	GlyphRestQuarter   Glyph = "restQuarter"
	GlyphRestHalf      Glyph = "restHalf"
	GlyphRestWhole     Glyph = "restWhole"
	GlyphRest8th       Glyph = "rest8th"
	GlyphRest16th      Glyph = "rest16th"
	GlyphGraceNote     Glyph = "graceNoteAcciaccatura"
	GlyphAugmentDot    Glyph = "augmentationDot"
	GlyphBarlineSingle Glyph = "barlineSingle"
	GlyphBarlineDouble Glyph = "barlineDouble"
	GlyphBarlineRepeat Glyph = "barlineRepeat"
	GlyphBarlineFinal  Glyph = "barlineFinal"
	GlyphClefG         Glyph = "gClef"
	GlyphClefPerc      Glyph = "unpitchedPercussionClef1"
	GlyphAccidental    Glyph = "accidentalSharp"
	GlyphTimeSigDigit  Glyph = "timeSigDigit"
)

// FontMetrics supplies glyph widths for spacing computation. It must be
// a pure function of its arguments: the same glyph and size always
// yield the same width, which the layout determinism guarantee builds on.
type FontMetrics interface {
	// GlyphWidth returns the advance width of glyph at the given font
	// size, in points.
	GlyphWidth(glyph Glyph, size float64) float64
}

// emWidths holds advance widths in em units (fraction of font size)
// for a standard SMuFL music font. Unlisted glyphs fall back to
// defaultEmWidth.
var emWidths = map[Glyph]float64{
	GlyphNoteheadBlack: 0.295,
	GlyphNoteheadHalf:  0.295,
	GlyphNoteheadWhole: 0.430,
	GlyphRestQuarter:   0.270,
	GlyphRestHalf:      0.375,
	GlyphRestWhole:     0.375,
	GlyphRest8th:       0.250,
	GlyphRest16th:      0.320,
	GlyphGraceNote:     0.165,
	GlyphAugmentDot:    0.100,
	GlyphBarlineSingle: 0.040,
	GlyphBarlineDouble: 0.130,
	GlyphBarlineRepeat: 0.460,
	GlyphBarlineFinal:  0.220,
	GlyphClefG:         0.680,
	GlyphClefPerc:      0.380,
	GlyphAccidental:    0.250,
	GlyphTimeSigDigit:  0.430,
}

const defaultEmWidth = 0.300

// TableMetrics is a FontMetrics backed by a fixed width table. It is
// the production default and the test double at once: widths depend on
// nothing but the table, so layout stays reproducible across machines
// with no font files installed.
type TableMetrics struct{}

// NewTableMetrics returns the table-backed metrics provider.
func NewTableMetrics() TableMetrics { return TableMetrics{} }

// GlyphWidth returns the tabulated advance width scaled to size.
func (TableMetrics) GlyphWidth(glyph Glyph, size float64) float64 {
	em, ok := emWidths[glyph]
	if !ok {
		em = defaultEmWidth
	}
	return em * size
}

// noteheadFor maps a duration to its notehead glyph.
func noteheadFor(d scoreTicks) Glyph {
	switch {
	case d >= wholeTicks:
		return GlyphNoteheadWhole
	case d >= halfTicks:
		return GlyphNoteheadHalf
	default:
		return GlyphNoteheadBlack
	}
}

// restFor maps a duration to its rest glyph.
func restFor(d scoreTicks) Glyph {
	switch {
	case d >= wholeTicks:
		return GlyphRestWhole
	case d >= halfTicks:
		return GlyphRestHalf
	case d >= quarterTicks:
		return GlyphRestQuarter
	case d >= eighthTicks:
		return GlyphRest8th
	default:
		return GlyphRest16th
	}
}

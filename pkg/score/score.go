// Package score defines the musical document model for pipe-band notation.
//
// The model is a strict ownership tree: Document → Tune → Part →
// MusicalSystem → Measure → Element. Every node is owned by exactly one
// parent and carries a unique identifier so that layout results can be
// cached and invalidated per entity.
//
// Layout hints throughout the model are pointer fields with an explicit
// "nil means auto" contract: an absent hint tells the layout engine to
// compute its own default, never to substitute a sentinel value.
package score

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID returns a fresh entity identifier.
func NewID() string { return uuid.NewString() }

// =============================================================================
// Instruments
// =============================================================================

// InstrumentKind enumerates the fixed set of pipe-band instruments.
// The set is closed on purpose: the layout hot path switches over kinds
// instead of dispatching through an open interface.
type InstrumentKind int

const (
	PipeChanter InstrumentKind = iota
	SnareDrum
	TenorDrum
	BassDrum
)

// String returns the display name of the instrument kind.
func (k InstrumentKind) String() string {
	switch k {
	case PipeChanter:
		return "pipes"
	case SnareDrum:
		return "snare"
	case TenorDrum:
		return "tenor"
	case BassDrum:
		return "bass"
	}
	return fmt.Sprintf("InstrumentKind(%d)", int(k))
}

// Instrument identifies one staff line participating in a system.
type Instrument struct {
	ID   string         `json:"id" bson:"id"`
	Kind InstrumentKind `json:"kind" bson:"kind"`
	Name string         `json:"name,omitempty" bson:"name,omitempty"`
}

// =============================================================================
// Pitches and durations
// =============================================================================

// Pitch is a chanter scale degree. Drum elements use UnpitchedHigh/Low
// for stick assignment on the staff.
type Pitch int

const (
	LowG Pitch = iota
	LowA
	B
	C
	D
	E
	F
	HighG
	HighA

	// UnpitchedHigh and UnpitchedLow place drum notes above or below
	// the staff midline.
	UnpitchedHigh
	UnpitchedLow
)

var pitchNames = map[Pitch]string{
	LowG: "LG", LowA: "LA", B: "B", C: "C", D: "D", E: "E", F: "F",
	HighG: "HG", HighA: "HA", UnpitchedHigh: "uh", UnpitchedLow: "ul",
}

// String returns the conventional short name for the pitch.
func (p Pitch) String() string {
	if s, ok := pitchNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Pitch(%d)", int(p))
}

// Ticks measures musical duration. A quarter note is TicksPerQuarter;
// the resolution is fine enough for demisemiquavers, dots and triplets
// without fractional values.
type Ticks int

// TicksPerQuarter is the duration resolution of the model.
const TicksPerQuarter Ticks = 480

// Common note durations.
const (
	Whole        = TicksPerQuarter * 4
	Half         = TicksPerQuarter * 2
	Quarter      = TicksPerQuarter
	Eighth       = TicksPerQuarter / 2
	Sixteenth    = TicksPerQuarter / 4
	ThirtySecond = TicksPerQuarter / 8
)

// Dotted returns the duration extended by half its value.
func Dotted(d Ticks) Ticks { return d + d/2 }

// =============================================================================
// Elements
// =============================================================================

// OrnamentType enumerates pipe embellishments and drum rudiments.
type OrnamentType int

const (
	GraceNote OrnamentType = iota
	Doubling
	ThrowOnD
	Birl
	Grip
	Taorluath
	Strike
	Flam
	Drag
	Roll
)

var ornamentNames = map[OrnamentType]string{
	GraceNote: "grace", Doubling: "doubling", ThrowOnD: "throw",
	Birl: "birl", Grip: "grip", Taorluath: "taorluath",
	Strike: "strike", Flam: "flam", Drag: "drag", Roll: "roll",
}

// String returns the ornament's conventional name.
func (o OrnamentType) String() string {
	if s, ok := ornamentNames[o]; ok {
		return s
	}
	return fmt.Sprintf("OrnamentType(%d)", int(o))
}

// Ornament is an embellishment attached to a melody or drum note.
// GraceCount is the number of written grace notes the figure expands to;
// it drives the ornament's horizontal space requirement.
type Ornament struct {
	Type       OrnamentType `json:"type" bson:"type"`
	GraceCount int          `json:"grace_count,omitempty" bson:"grace_count,omitempty"`
}

// ElementHints carries optional per-element layout overrides.
// Nil fields mean auto-calculate.
type ElementHints struct {
	// Width overrides the element's natural width in points.
	Width *float64 `json:"width,omitempty" bson:"width,omitempty"`
	// SpacingAfter overrides the gap to the following element in points.
	SpacingAfter *float64 `json:"spacing_after,omitempty" bson:"spacing_after,omitempty"`
}

// Element is a single note or rest on one instrument's line.
type Element struct {
	ID       string        `json:"id" bson:"id"`
	Rest     bool          `json:"rest,omitempty" bson:"rest,omitempty"`
	Pitch    Pitch         `json:"pitch,omitempty" bson:"pitch,omitempty"`
	Duration Ticks         `json:"duration" bson:"duration"`
	Ornament *Ornament     `json:"ornament,omitempty" bson:"ornament,omitempty"`
	Hints    *ElementHints `json:"hints,omitempty" bson:"hints,omitempty"`
}

// =============================================================================
// Measures
// =============================================================================

// BarlineType enumerates the barline styles around a measure.
type BarlineType int

const (
	BarlineNormal BarlineType = iota
	BarlineDouble
	BarlineRepeatStart
	BarlineRepeatEnd
	BarlineFinal
)

// InstrumentLine holds one instrument's contents within a measure.
type InstrumentLine struct {
	InstrumentID string    `json:"instrument_id" bson:"instrument_id"`
	Elements     []Element `json:"elements" bson:"elements"`
}

// TotalDuration returns the summed duration of all elements on the line.
func (l *InstrumentLine) TotalDuration() Ticks {
	var total Ticks
	for i := range l.Elements {
		total += l.Elements[i].Duration
	}
	return total
}

// MeasureHints carries optional per-measure layout overrides.
// Nil fields mean auto-calculate.
type MeasureHints struct {
	// MinWidth is a lower bound on the measure width in points.
	MinWidth *float64 `json:"min_width,omitempty" bson:"min_width,omitempty"`
	// CompressionFactor scales the computed width. Values below 1.0
	// compress; the result never drops below MinWidth.
	CompressionFactor *float64 `json:"compression_factor,omitempty" bson:"compression_factor,omitempty"`
	// BreakAfter asks pagination to prefer a line break after this measure.
	BreakAfter *bool `json:"break_after,omitempty" bson:"break_after,omitempty"`
}

// Measure is one bar across all participating instruments.
//
// TimeSig is optional: when nil the effective time signature is resolved
// by the cascading lookup in [Index.EffectiveTimeSignature].
type Measure struct {
	ID      string           `json:"id" bson:"id"`
	TimeSig *TimeSignature   `json:"time_sig,omitempty" bson:"time_sig,omitempty"`
	Pickup  bool             `json:"pickup,omitempty" bson:"pickup,omitempty"`
	Opening BarlineType      `json:"opening,omitempty" bson:"opening,omitempty"`
	Closing BarlineType      `json:"closing,omitempty" bson:"closing,omitempty"`
	Lines   []InstrumentLine `json:"lines" bson:"lines"`
	Hints   *MeasureHints    `json:"hints,omitempty" bson:"hints,omitempty"`
}

// Line returns the line for the given instrument, or nil if absent.
func (m *Measure) Line(instrumentID string) *InstrumentLine {
	for i := range m.Lines {
		if m.Lines[i].InstrumentID == instrumentID {
			return &m.Lines[i]
		}
	}
	return nil
}

// =============================================================================
// Systems
// =============================================================================

// SystemHints carries optional per-system layout overrides.
// Nil fields mean auto-calculate.
type SystemHints struct {
	// StaffSpacing overrides the default distance between staves in points.
	StaffSpacing *float64 `json:"staff_spacing,omitempty" bson:"staff_spacing,omitempty"`
	// Clearance maps instrument id to a minimum clearance below that
	// staff. Conflicting requests resolve to the larger value.
	Clearance map[string]float64 `json:"clearance,omitempty" bson:"clearance,omitempty"`
	// ForcedBreak forces a page break after this system.
	ForcedBreak bool `json:"forced_break,omitempty" bson:"forced_break,omitempty"`
}

// StartElements describes the clef and key material printed at the
// start of one instrument's staff in a system.
type StartElements struct {
	InstrumentID string `json:"instrument_id" bson:"instrument_id"`
	Clef         string `json:"clef,omitempty" bson:"clef,omitempty"`
	Accidentals  int    `json:"accidentals,omitempty" bson:"accidentals,omitempty"`
}

// MusicalSystem is one horizontal grouping of all instrument staves for
// an ordered run of measures, laid out together and treated as the
// atomic unit of page assignment.
type MusicalSystem struct {
	ID          string          `json:"id" bson:"id"`
	Instruments []Instrument    `json:"instruments" bson:"instruments"`
	Starts      []StartElements `json:"starts,omitempty" bson:"starts,omitempty"`
	Measures    []*Measure      `json:"measures" bson:"measures"`
	Hints       *SystemHints    `json:"hints,omitempty" bson:"hints,omitempty"`
}

// HasInstrument reports whether the instrument participates in the system.
func (s *MusicalSystem) HasInstrument(id string) bool {
	for i := range s.Instruments {
		if s.Instruments[i].ID == id {
			return true
		}
	}
	return false
}

// =============================================================================
// Parts and tunes
// =============================================================================

// Part is a lettered section of a tune ("A", "B", ...).
type Part struct {
	ID      string           `json:"id" bson:"id"`
	Letter  string           `json:"letter" bson:"letter"`
	Systems []*MusicalSystem `json:"systems" bson:"systems"`
}

// PageBreakPolicy controls how pagination treats a tune's boundaries.
type PageBreakPolicy string

const (
	// BreakAllowed is the default greedy behavior.
	BreakAllowed PageBreakPolicy = "allowed"
	// BreakPreferred behaves like allowed; declared boundaries are
	// favored when a break is needed anyway.
	BreakPreferred PageBreakPolicy = "preferred"
	// BreakMandatory forces a page break at the tune boundary.
	BreakMandatory PageBreakPolicy = "mandatory"
	// BreakAvoid pulls the next line onto the current page within a
	// bounded overflow tolerance rather than stranding it.
	BreakAvoid PageBreakPolicy = "avoid"
)

// TuneLayoutPreference carries optional per-tune pagination preferences.
type TuneLayoutPreference struct {
	PageBreak   PageBreakPolicy `json:"page_break,omitempty" bson:"page_break,omitempty"`
	Compression *float64        `json:"compression,omitempty" bson:"compression,omitempty"`
}

// Tune is a single piece of music with its parts and default signatures.
type Tune struct {
	ID       string                `json:"id" bson:"id"`
	Title    string                `json:"title" bson:"title"`
	TuneType string                `json:"tune_type,omitempty" bson:"tune_type,omitempty"`
	Composer string                `json:"composer,omitempty" bson:"composer,omitempty"`
	Tempo    int                   `json:"tempo,omitempty" bson:"tempo,omitempty"`
	Key      string                `json:"key,omitempty" bson:"key,omitempty"`
	TimeSig  TimeSignature         `json:"time_sig" bson:"time_sig"`
	Pref     *TuneLayoutPreference `json:"pref,omitempty" bson:"pref,omitempty"`
	Parts    []*Part               `json:"parts" bson:"parts"`
}

// =============================================================================
// Pages and documents
// =============================================================================

// TuneLineRef identifies one renderable tune-line (a system within a
// part within a tune) assigned to a page.
type TuneLineRef struct {
	TuneID   string `json:"tune_id" bson:"tune_id"`
	PartID   string `json:"part_id" bson:"part_id"`
	SystemID string `json:"system_id" bson:"system_id"`
}

// Page is an ordered list of tune-lines assigned to one physical page.
type Page struct {
	ID    string        `json:"id" bson:"id"`
	Lines []TuneLineRef `json:"lines" bson:"lines"`
}

// Metadata stores free-form document attributes (band name, arranger, ...).
type Metadata map[string]string

// Document is the root of the score model.
type Document struct {
	ID       string                 `json:"id" bson:"_id"`
	Title    string                 `json:"title" bson:"title"`
	Meta     Metadata               `json:"meta,omitempty" bson:"meta,omitempty"`
	Settings DocumentLayoutSettings `json:"settings" bson:"settings"`
	Tunes    []*Tune                `json:"tunes" bson:"tunes"`
	Pages    []*Page                `json:"pages,omitempty" bson:"pages,omitempty"`
}

// Systems yields every system in document order along with its tune-line
// reference. This is the traversal order pagination uses.
func (d *Document) Systems() []TuneLineRef {
	var refs []TuneLineRef
	for _, t := range d.Tunes {
		for _, p := range t.Parts {
			for _, s := range p.Systems {
				refs = append(refs, TuneLineRef{TuneID: t.ID, PartID: p.ID, SystemID: s.ID})
			}
		}
	}
	return refs
}

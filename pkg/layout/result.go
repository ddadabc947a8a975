package layout

import (
	"github.com/strathmore/pipescore/pkg/score"
)

// MeasureLayout is the computed layout of one measure. It is an
// immutable value object; identical inputs produce identical values.
type MeasureLayout struct {
	MeasureID string `json:"measure_id"`

	// Width is the final measure width in points after hints.
	Width float64 `json:"width"`

	// NaturalWidth is the widest instrument line's content width
	// before the compression and minimum-width hints apply.
	NaturalWidth float64 `json:"natural_width"`

	// PerInstrument maps instrument id to that line's natural content
	// width. The renderer distributes slack from Width proportionally.
	PerInstrument map[string]float64 `json:"per_instrument"`

	// DurationFlagged marks a measure whose contents do not fill its
	// effective time signature. The measure still lays out at its
	// actual width.
	DurationFlagged bool `json:"duration_flagged,omitempty"`
}

// SystemLayout is the computed layout of one staff system.
type SystemLayout struct {
	SystemID string `json:"system_id"`

	// MeasureLayouts holds the layout of every measure, keyed by id.
	MeasureLayouts map[string]MeasureLayout `json:"measure_layouts"`

	// StaffSpacing is the baseline distance between adjacent staves.
	StaffSpacing float64 `json:"staff_spacing"`

	// TotalWidth is the sum of measure widths plus the system's start
	// elements (clef, accidentals).
	TotalWidth float64 `json:"total_width"`

	// Height is the system's printed height including padding, the
	// quantity pagination packs against.
	Height float64 `json:"height"`
}

// PlacedLine is one tune-line placed on a page.
type PlacedLine struct {
	Ref score.TuneLineRef `json:"ref"`

	// Y is the line's top offset from the page's usable area origin.
	Y float64 `json:"y"`

	// Height is the placed system's height.
	Height float64 `json:"height"`
}

// PageLayout is the computed layout of one page.
type PageLayout struct {
	PageID string       `json:"page_id"`
	Lines  []PlacedLine `json:"lines"`

	// UsedHeight is the total height consumed on the page.
	UsedHeight float64 `json:"used_height"`

	// Overflow marks a page whose content exceeds the usable height
	// (an oversized lone system, or an accepted "avoid" over-pack).
	Overflow bool `json:"overflow,omitempty"`
}

// UpdateResult is what a coordinator pass returns: the set of updated
// regions, their computed layouts, and the per-entity errors collected
// along the way. Partial success is the norm; a malformed measure never
// blocks layout of the rest of the document.
type UpdateResult struct {
	// UpdatedMeasures, UpdatedSystems and UpdatedPages list the entity
	// ids whose layout changed in this pass.
	UpdatedMeasures []string `json:"updated_measures,omitempty"`
	UpdatedSystems  []string `json:"updated_systems,omitempty"`
	UpdatedPages    []string `json:"updated_pages,omitempty"`

	// SystemLayouts holds the recomputed system layouts by id.
	SystemLayouts map[string]SystemLayout `json:"system_layouts,omitempty"`

	// PageLayouts holds the recomputed page layouts by id.
	PageLayouts map[string]PageLayout `json:"page_layouts,omitempty"`

	// Pages is the full revised page assignment after the pass.
	Pages []*score.Page `json:"pages,omitempty"`

	// Errors collects non-fatal per-entity errors (invalid durations,
	// page overflows).
	Errors []*EntityError `json:"errors,omitempty"`

	// Warnings collects pass-level performance warnings such as scope
	// escalation thrashing.
	Warnings []string `json:"warnings,omitempty"`
}

// EntityError is a non-fatal error attributed to one entity, in a
// serialization-friendly shape for the HTTP API.
type EntityError struct {
	EntityID string `json:"entity_id"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// Error implements the error interface.
func (e *EntityError) Error() string {
	return e.Code + ": " + e.EntityID + ": " + e.Message
}

package score

import (
	"github.com/strathmore/pipescore/pkg/errors"
)

// Validate checks the document's structural invariants:
//
//   - every entity has a non-empty, unique id
//   - every measure carries exactly one line per participating
//     instrument of its system, and no line for a foreign instrument
//   - when pages are assigned, every system is referenced by exactly
//     one page's tune-line list (no orphaned or duplicated lines)
//
// Violations are contract errors, not musical-content errors: a layout
// pass aborts on them instead of collecting them per entity.
func (d *Document) Validate() error {
	if d.ID == "" {
		return errors.New(errors.ErrCodeInvalidDocument, "document id is empty")
	}

	seen := map[string]bool{d.ID: true}
	register := func(id, what string) error {
		if id == "" {
			return errors.New(errors.ErrCodeInvalidDocument, "%s id is empty", what)
		}
		if seen[id] {
			return errors.NewEntity(errors.ErrCodeInvalidDocument, id, "duplicate %s id", what)
		}
		seen[id] = true
		return nil
	}

	for _, t := range d.Tunes {
		if err := register(t.ID, "tune"); err != nil {
			return err
		}
		for _, p := range t.Parts {
			if err := register(p.ID, "part"); err != nil {
				return err
			}
			for _, s := range p.Systems {
				if err := register(s.ID, "system"); err != nil {
					return err
				}
				if err := validateSystem(s, register); err != nil {
					return err
				}
			}
		}
	}

	if len(d.Pages) > 0 {
		return d.validatePageAssignment()
	}
	return nil
}

// validateSystem checks the instrument coverage invariant for every
// measure of the system.
func validateSystem(s *MusicalSystem, register func(id, what string) error) error {
	for _, m := range s.Measures {
		if err := register(m.ID, "measure"); err != nil {
			return err
		}
		if len(m.Lines) != len(s.Instruments) {
			return errors.NewEntity(errors.ErrCodeStructuralIntegrity, m.ID,
				"measure has %d instrument lines, system declares %d instruments",
				len(m.Lines), len(s.Instruments))
		}
		lineSeen := make(map[string]bool, len(m.Lines))
		for i := range m.Lines {
			id := m.Lines[i].InstrumentID
			if !s.HasInstrument(id) {
				return errors.NewEntity(errors.ErrCodeStructuralIntegrity, m.ID,
					"measure references instrument %s not present in its system", id)
			}
			if lineSeen[id] {
				return errors.NewEntity(errors.ErrCodeStructuralIntegrity, m.ID,
					"measure has duplicate line for instrument %s", id)
			}
			lineSeen[id] = true
		}
	}
	return nil
}

// validatePageAssignment enforces the exactly-once page assignment
// invariant over all systems of the document.
func (d *Document) validatePageAssignment() error {
	assigned := make(map[string]int)
	for _, pg := range d.Pages {
		for _, ref := range pg.Lines {
			assigned[ref.SystemID]++
		}
	}
	for _, ref := range d.Systems() {
		switch n := assigned[ref.SystemID]; {
		case n == 0:
			return errors.NewEntity(errors.ErrCodeStructuralIntegrity, ref.SystemID,
				"system is not assigned to any page")
		case n > 1:
			return errors.NewEntity(errors.ErrCodeStructuralIntegrity, ref.SystemID,
				"system is assigned to %d pages", n)
		}
		delete(assigned, ref.SystemID)
	}
	for id := range assigned {
		return errors.NewEntity(errors.ErrCodeStructuralIntegrity, id,
			"page references unknown system")
	}
	return nil
}

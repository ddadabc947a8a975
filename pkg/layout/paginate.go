package layout

import (
	"github.com/strathmore/pipescore/pkg/errors"
	"github.com/strathmore/pipescore/pkg/score"
)

// Paginator assigns tune-lines to pages. A system is the atomic unit:
// it is never split across pages, and its measures always stay together.
type Paginator struct {
	settings  score.DocumentLayoutSettings
	tolerance float64
}

// NewPaginator creates a paginator for the given document settings.
func NewPaginator(settings score.DocumentLayoutSettings) *Paginator {
	return &Paginator{
		settings:  settings.WithDefaults(),
		tolerance: AvoidOverflowTolerance,
	}
}

// WithTolerance overrides the avoid-policy overflow tolerance as a
// fraction of usable page height. Non-positive values keep the default.
func (p *Paginator) WithTolerance(f float64) *Paginator {
	if f > 0 {
		p.tolerance = f
	}
	return p
}

// PaginationResult carries the revised page assignment and the layout
// of each page, along with the ids of pages whose line composition
// changed relative to the previous assignment.
type PaginationResult struct {
	Pages        []*score.Page
	PageLayouts  map[string]PageLayout
	ChangedPages []string
	Errors       []*EntityError
}

// Paginate walks the document's tune-lines in order and packs them onto
// pages with a greedy fill, honoring per-tune page-break policies:
//
//   - mandatory: always break at the tune boundary
//   - avoid: pull the next line onto the current page when it fits
//     within AvoidOverflowTolerance, rather than stranding it
//   - preferred, allowed: default greedy behavior
//
// A system taller than the usable page height is placed alone on its
// own page and reported as a PAGE_OVERFLOW error; musical content is
// never truncated.
//
// Page identity is preserved where composition is unchanged: a page
// whose line list matches the previous assignment keeps its id and is
// not reported as changed, so a renderer can redraw selectively.
func (p *Paginator) Paginate(idx *score.Index, heights map[string]float64) PaginationResult {
	doc := idx.Document()
	usable := p.settings.UsableHeight()
	tolerance := usable * p.tolerance

	var result PaginationResult
	result.PageLayouts = make(map[string]PageLayout)

	refs := doc.Systems()

	var pages [][]score.TuneLineRef
	var current []score.TuneLineRef
	var used float64

	flush := func() {
		if len(current) > 0 {
			pages = append(pages, current)
			current = nil
			used = 0
		}
	}

	for i, ref := range refs {
		h := heights[ref.SystemID] + interSystemGap
		tune := idx.Tune(ref.TuneID)
		policy := breakPolicy(tune)

		// Mandatory boundary breaks apply at tune and part boundaries
		// regardless of remaining space, whether declared by the tune
		// being left or the tune being entered.
		if i > 0 {
			prevPolicy := breakPolicy(idx.Tune(refs[i-1].TuneID))
			atBoundary := refs[i-1].TuneID != ref.TuneID || refs[i-1].PartID != ref.PartID
			if atBoundary && (policy == score.BreakMandatory || prevPolicy == score.BreakMandatory) {
				flush()
			}
		}

		if used+h > usable && len(current) > 0 {
			// Over-pack within tolerance instead of stranding a tune's
			// final line on a near-empty page.
			pulled := policy == score.BreakAvoid &&
				used+h <= usable+tolerance &&
				isLastLineOfTune(refs, i)
			if !pulled {
				flush()
			}
		}
		current = append(current, ref)
		used += h

		if sys := idx.System(ref.SystemID); sys != nil && sys.Hints != nil && sys.Hints.ForcedBreak {
			flush()
		}
	}
	flush()

	result.Pages = p.assignPageIDs(doc, pages)

	for _, pg := range result.Pages {
		pl := PageLayout{PageID: pg.ID}
		var y float64
		for _, ref := range pg.Lines {
			h := heights[ref.SystemID]
			pl.Lines = append(pl.Lines, PlacedLine{Ref: ref, Y: y, Height: h})
			y += h + interSystemGap
		}
		pl.UsedHeight = y
		if y > usable {
			pl.Overflow = true
			for _, ref := range pg.Lines {
				if heights[ref.SystemID] > usable {
					result.Errors = append(result.Errors, toEntityError(
						errors.NewEntity(errors.ErrCodePageOverflow, ref.SystemID,
							"system height %.1f exceeds usable page height %.1f; placed alone and flagged",
							heights[ref.SystemID], usable)))
				}
			}
		}
		result.PageLayouts[pg.ID] = pl
	}

	result.ChangedPages = changedPages(doc.Pages, result.Pages)
	return result
}

// breakPolicy resolves a tune's page-break policy, defaulting to allowed.
func breakPolicy(t *score.Tune) score.PageBreakPolicy {
	if t == nil || t.Pref == nil || t.Pref.PageBreak == "" {
		return score.BreakAllowed
	}
	return t.Pref.PageBreak
}

// isLastLineOfTune reports whether refs[i] is the final tune-line of
// its tune. The avoid policy only over-packs to rescue a tune's last
// line; earlier lines flow normally.
func isLastLineOfTune(refs []score.TuneLineRef, i int) bool {
	return i == len(refs)-1 || refs[i+1].TuneID != refs[i].TuneID
}

// assignPageIDs builds the new Pages slice, reusing the id of any
// previous page whose line composition is unchanged at the same
// position.
func (p *Paginator) assignPageIDs(doc *score.Document, pages [][]score.TuneLineRef) []*score.Page {
	out := make([]*score.Page, len(pages))
	for i, lines := range pages {
		var id string
		if i < len(doc.Pages) && sameLines(doc.Pages[i].Lines, lines) {
			id = doc.Pages[i].ID
		} else {
			id = score.NewID()
		}
		out[i] = &score.Page{ID: id, Lines: lines}
	}
	return out
}

// sameLines reports whether two line lists are identical.
func sameLines(a, b []score.TuneLineRef) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// changedPages lists ids of pages that are new or whose composition
// changed relative to the previous assignment.
func changedPages(prev, next []*score.Page) []string {
	prevByID := make(map[string][]score.TuneLineRef, len(prev))
	for _, pg := range prev {
		prevByID[pg.ID] = pg.Lines
	}
	var changed []string
	for _, pg := range next {
		if lines, ok := prevByID[pg.ID]; !ok || !sameLines(lines, pg.Lines) {
			changed = append(changed, pg.ID)
		}
	}
	return changed
}

package layout

import (
	"fmt"
	"testing"

	"github.com/strathmore/pipescore/pkg/score"
)

// uniformHeights assigns every system of the document the same height.
func uniformHeights(doc *score.Document, h float64) map[string]float64 {
	heights := make(map[string]float64)
	for _, ref := range doc.Systems() {
		heights[ref.SystemID] = h
	}
	return heights
}

// twoTuneDoc builds a document with two tunes of the given system
// counts; system ids are "t1-sys-N" and "t2-sys-N".
func twoTuneDoc(first, second int) *score.Document {
	tune := func(id string, n int) *score.Tune {
		var systems []*score.MusicalSystem
		for i := 0; i < n; i++ {
			systems = append(systems, systemOfMeasures(fmt.Sprintf("%s-sys-%d", id, i), 4))
		}
		return &score.Tune{
			ID:      id,
			Title:   id,
			TimeSig: score.TimeSignature{Beats: 4, Value: 4},
			Parts:   []*score.Part{{ID: id + "-part-a", Letter: "A", Systems: systems}},
		}
	}
	return &score.Document{
		ID:    "doc-2",
		Title: "Two Tune Set",
		Tunes: []*score.Tune{tune("t1", first), tune("t2", second)},
	}
}

func TestPaginateGreedyFill(t *testing.T) {
	doc := docWithSystems(6)
	idx := score.NewIndex(doc)
	settings := testSettings()

	// Five 130pt systems (plus 20pt gap each) fill a 770pt page; the
	// sixth spills to page two.
	res := NewPaginator(settings).Paginate(idx, uniformHeights(doc, 130))
	if len(res.Pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(res.Pages))
	}
	if got := len(res.Pages[0].Lines); got != 5 {
		t.Errorf("page 1 holds %d lines, want 5", got)
	}
	if got := len(res.Pages[1].Lines); got != 1 {
		t.Errorf("page 2 holds %d lines, want 1", got)
	}

	// Document order is preserved across the break.
	var got []string
	for _, pg := range res.Pages {
		for _, ref := range pg.Lines {
			got = append(got, ref.SystemID)
		}
	}
	for i, id := range got {
		if want := fmt.Sprintf("sys-%d", i); id != want {
			t.Fatalf("order violated at %d: got %s", i, id)
		}
	}
	if len(res.Errors) != 0 {
		t.Errorf("unexpected errors: %v", res.Errors)
	}
}

func TestPaginateSystemsAreAtomic(t *testing.T) {
	doc := docWithSystems(3)
	idx := score.NewIndex(doc)

	// 400pt systems: each page takes exactly one, none is ever split.
	res := NewPaginator(testSettings()).Paginate(idx, uniformHeights(doc, 400))
	if len(res.Pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(res.Pages))
	}
	for i, pg := range res.Pages {
		if len(pg.Lines) != 1 {
			t.Errorf("page %d holds %d lines, want 1", i, len(pg.Lines))
		}
	}
}

func TestPaginateMandatoryBreak(t *testing.T) {
	doc := twoTuneDoc(1, 1)
	doc.Tunes[1].Pref = &score.TuneLayoutPreference{PageBreak: score.BreakMandatory}
	idx := score.NewIndex(doc)

	// Both tunes would fit on one page; the mandatory policy forbids it.
	res := NewPaginator(testSettings()).Paginate(idx, uniformHeights(doc, 100))
	if len(res.Pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(res.Pages))
	}
	if res.Pages[0].Lines[0].TuneID != "t1" || res.Pages[1].Lines[0].TuneID != "t2" {
		t.Error("tunes must not share a page under a mandatory break")
	}

	// The policy binds from the departing side as well.
	doc = twoTuneDoc(1, 1)
	doc.Tunes[0].Pref = &score.TuneLayoutPreference{PageBreak: score.BreakMandatory}
	idx = score.NewIndex(doc)
	res = NewPaginator(testSettings()).Paginate(idx, uniformHeights(doc, 100))
	if len(res.Pages) != 2 {
		t.Fatalf("departing mandatory: got %d pages, want 2", len(res.Pages))
	}
}

func TestPaginateMandatoryBreakBetweenParts(t *testing.T) {
	doc := docWithSystems(2)
	parts := doc.Tunes[0].Parts
	// Split the two systems across two parts of the same tune.
	doc.Tunes[0].Parts = []*score.Part{
		{ID: "part-a", Letter: "A", Systems: parts[0].Systems[:1]},
		{ID: "part-b", Letter: "B", Systems: parts[0].Systems[1:]},
	}
	doc.Tunes[0].Pref = &score.TuneLayoutPreference{PageBreak: score.BreakMandatory}
	idx := score.NewIndex(doc)

	res := NewPaginator(testSettings()).Paginate(idx, uniformHeights(doc, 100))
	if len(res.Pages) != 2 {
		t.Fatalf("got %d pages, want a break at the part boundary", len(res.Pages))
	}
}

func TestPaginateAvoidPullsFinalLine(t *testing.T) {
	doc := docWithSystems(4)
	idx := score.NewIndex(doc)
	settings := testSettings()
	heights := uniformHeights(doc, 180) // 4 x 200 = 800 on a 770pt page

	// Default policy: the fourth line is stranded on its own page.
	res := NewPaginator(settings).Paginate(idx, heights)
	if len(res.Pages) != 2 {
		t.Fatalf("allowed policy: got %d pages, want 2", len(res.Pages))
	}

	// Avoid: the overshoot is within tolerance, so the final line of
	// the tune is pulled onto the page instead.
	doc.Tunes[0].Pref = &score.TuneLayoutPreference{PageBreak: score.BreakAvoid}
	idx = score.NewIndex(doc)
	res = NewPaginator(settings).Paginate(idx, heights)
	if len(res.Pages) != 1 {
		t.Fatalf("avoid policy: got %d pages, want 1", len(res.Pages))
	}
	pl := res.PageLayouts[res.Pages[0].ID]
	if !pl.Overflow {
		t.Error("an accepted over-pack must still be marked as overflowing")
	}
	if len(res.Errors) != 0 {
		t.Errorf("tolerated over-pack is not an error: %v", res.Errors)
	}

	// Far past tolerance the avoid policy gives up.
	heights = uniformHeights(doc, 250)
	res = NewPaginator(settings).Paginate(idx, heights)
	if len(res.Pages) != 2 {
		t.Fatalf("beyond tolerance: got %d pages, want 2", len(res.Pages))
	}
}

func TestPaginatorWithTolerance(t *testing.T) {
	doc := docWithSystems(4)
	doc.Tunes[0].Pref = &score.TuneLayoutPreference{PageBreak: score.BreakAvoid}
	idx := score.NewIndex(doc)
	settings := testSettings()
	heights := uniformHeights(doc, 190) // 4 x 210 = 840, 70pt over

	// The 70pt overshoot exceeds the default 6% allowance (46.2pt).
	res := NewPaginator(settings).Paginate(idx, heights)
	if len(res.Pages) != 2 {
		t.Fatalf("default tolerance: got %d pages, want 2", len(res.Pages))
	}

	// A widened allowance pulls the final line on.
	res = NewPaginator(settings).WithTolerance(0.10).Paginate(idx, heights)
	if len(res.Pages) != 1 {
		t.Fatalf("widened tolerance: got %d pages, want 1", len(res.Pages))
	}
	if !res.PageLayouts[res.Pages[0].ID].Overflow {
		t.Error("over-packed page must be marked as overflowing")
	}

	// Non-positive overrides keep the default.
	res = NewPaginator(settings).WithTolerance(0).Paginate(idx, heights)
	if len(res.Pages) != 2 {
		t.Fatalf("zero override: got %d pages, want 2", len(res.Pages))
	}
}

func TestPaginateOversizedSystem(t *testing.T) {
	doc := docWithSystems(3)
	idx := score.NewIndex(doc)
	heights := uniformHeights(doc, 120)
	heights["sys-1"] = 900 // taller than any page

	res := NewPaginator(testSettings()).Paginate(idx, heights)
	if len(res.Pages) != 3 {
		t.Fatalf("got %d pages, want the giant alone on its own", len(res.Pages))
	}
	if len(res.Pages[1].Lines) != 1 || res.Pages[1].Lines[0].SystemID != "sys-1" {
		t.Fatalf("page 2 must hold exactly the oversized system: %+v", res.Pages[1].Lines)
	}
	pl := res.PageLayouts[res.Pages[1].ID]
	if !pl.Overflow {
		t.Error("oversized page must be flagged")
	}
	if len(res.Errors) != 1 || res.Errors[0].Code != "PAGE_OVERFLOW" || res.Errors[0].EntityID != "sys-1" {
		t.Fatalf("want one PAGE_OVERFLOW for sys-1, got %v", res.Errors)
	}
	// Content is flagged, never dropped.
	total := 0
	for _, pg := range res.Pages {
		total += len(pg.Lines)
	}
	if total != 3 {
		t.Errorf("lines lost: %d of 3 placed", total)
	}
}

func TestPaginateForcedBreak(t *testing.T) {
	doc := docWithSystems(3)
	doc.Tunes[0].Parts[0].Systems[0].Hints = &score.SystemHints{ForcedBreak: true}
	idx := score.NewIndex(doc)

	res := NewPaginator(testSettings()).Paginate(idx, uniformHeights(doc, 100))
	if len(res.Pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(res.Pages))
	}
	if len(res.Pages[0].Lines) != 1 {
		t.Errorf("forced break must close the page after sys-0")
	}
}

func TestPaginateForcedBreakOnPulledLine(t *testing.T) {
	doc := twoTuneDoc(4, 1)
	doc.Tunes[0].Pref = &score.TuneLayoutPreference{PageBreak: score.BreakAvoid}
	doc.Tunes[1].Pref = &score.TuneLayoutPreference{PageBreak: score.BreakAvoid}
	doc.Tunes[0].Parts[0].Systems[3].Hints = &score.SystemHints{ForcedBreak: true}
	idx := score.NewIndex(doc)

	// The fourth line of t1 overshoots within tolerance and is pulled
	// onto the page; its forced break must still close that page, so
	// t2 never shares it.
	heights := uniformHeights(doc, 180)
	heights["t2-sys-0"] = 25

	res := NewPaginator(testSettings()).WithTolerance(0.10).Paginate(idx, heights)
	if len(res.Pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(res.Pages))
	}
	if got := len(res.Pages[0].Lines); got != 4 {
		t.Errorf("first page holds %d lines, want all 4 of t1", got)
	}
	if res.Pages[1].Lines[0].SystemID != "t2-sys-0" {
		t.Errorf("second page opens with %s, want t2-sys-0", res.Pages[1].Lines[0].SystemID)
	}
}

func TestPaginatePageIdentity(t *testing.T) {
	doc := docWithSystems(6)
	idx := score.NewIndex(doc)
	settings := testSettings()
	heights := uniformHeights(doc, 130)

	first := NewPaginator(settings).Paginate(idx, heights)
	if len(first.ChangedPages) != len(first.Pages) {
		t.Fatalf("initial pagination must report every page as changed")
	}
	doc.Pages = first.Pages

	// Same inputs: ids are stable and nothing is reported.
	again := NewPaginator(settings).Paginate(idx, heights)
	for i := range again.Pages {
		if again.Pages[i].ID != first.Pages[i].ID {
			t.Errorf("page %d id churned without a composition change", i)
		}
	}
	if len(again.ChangedPages) != 0 {
		t.Errorf("unchanged pagination reported pages: %v", again.ChangedPages)
	}

	// Growing one system pushes a line across the break: only pages
	// whose composition changed get new ids.
	heights["sys-4"] = 300
	moved := NewPaginator(settings).Paginate(idx, heights)
	if len(moved.ChangedPages) == 0 {
		t.Fatal("composition change must be reported")
	}
	for _, pg := range moved.Pages {
		for _, prev := range first.Pages {
			if pg.ID == prev.ID && !sameLines(pg.Lines, prev.Lines) {
				t.Errorf("page %s reused its id across a composition change", pg.ID)
			}
		}
	}
}

func TestPaginatePlacement(t *testing.T) {
	doc := docWithSystems(2)
	idx := score.NewIndex(doc)
	heights := uniformHeights(doc, 100)

	res := NewPaginator(testSettings()).Paginate(idx, heights)
	if len(res.Pages) != 1 {
		t.Fatalf("got %d pages", len(res.Pages))
	}
	pl := res.PageLayouts[res.Pages[0].ID]
	if len(pl.Lines) != 2 {
		t.Fatalf("got %d placed lines", len(pl.Lines))
	}
	if pl.Lines[0].Y != 0 {
		t.Errorf("first line starts at %.1f", pl.Lines[0].Y)
	}
	if want := 100 + interSystemGap; pl.Lines[1].Y != want {
		t.Errorf("second line at %.1f, want %v", pl.Lines[1].Y, want)
	}
	if pl.Overflow {
		t.Error("page is comfortably underfull")
	}
}

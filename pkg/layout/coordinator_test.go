package layout

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/strathmore/pipescore/pkg/cache"
	"github.com/strathmore/pipescore/pkg/errors"
	"github.com/strathmore/pipescore/pkg/score"
)

func TestCoordinatorInitialLayout(t *testing.T) {
	doc := docWithSystems(1)
	c := cache.NewLRUCache()
	co := NewCoordinator(Config{Cache: c, Workers: 4})

	res, err := co.CalculateDocumentLayout(context.Background(), doc)
	if err != nil {
		t.Fatalf("CalculateDocumentLayout: %v", err)
	}

	if len(res.Pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(res.Pages))
	}
	if len(res.Pages[0].Lines) != 1 || res.Pages[0].Lines[0].SystemID != "sys-0" {
		t.Fatalf("page composition: %+v", res.Pages[0].Lines)
	}
	if len(res.Errors) != 0 {
		t.Errorf("well-formed document produced errors: %v", res.Errors)
	}
	if doc.Pages == nil || doc.Pages[0].ID != res.Pages[0].ID {
		t.Error("page assignment must be written back to the document")
	}

	// Four measures and one system land in the cache.
	if got := c.Stats().Size; got != 5 {
		t.Errorf("cache holds %d entries, want 5", got)
	}
	if co.Tracker().HasDirty() {
		t.Error("completed pass must consume the dirty set")
	}
}

func TestCoordinatorUnderfilledMeasure(t *testing.T) {
	band := testBand()
	sys := newSystem("sys-0",
		fullMeasure("m-ok", band),
		measureWithBeats("m-short", band, 3),
	)
	doc := singleTuneDoc(sys)
	co := NewCoordinator(Config{Cache: cache.NewLRUCache(), Workers: 2})

	res, err := co.CalculateDocumentLayout(context.Background(), doc)
	if err != nil {
		t.Fatalf("duration problems are not fatal: %v", err)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("want 1 error, got %v", res.Errors)
	}
	if e := res.Errors[0]; e.Code != "INVALID_DURATION" || e.EntityID != "m-short" {
		t.Errorf("error misattributed: %+v", e)
	}
	// The rest of the document still lays out and paginates.
	if len(res.Pages) != 1 {
		t.Errorf("got %d pages", len(res.Pages))
	}
	sl := res.SystemLayouts["sys-0"]
	if len(sl.MeasureLayouts) != 2 {
		t.Errorf("flagged measure dropped from the layout")
	}
}

func TestCoordinatorScopeMinimality(t *testing.T) {
	doc := docWithSystems(3)
	c := cache.NewLRUCache()
	co := NewCoordinator(Config{Cache: c, Workers: 4})

	if _, err := co.CalculateDocumentLayout(context.Background(), doc); err != nil {
		t.Fatalf("initial layout: %v", err)
	}

	res, err := co.OnScoreChanged(context.Background(), doc, ChangeSet{EntityIDs: []string{"sys-1-m2"}})
	if err != nil {
		t.Fatalf("OnScoreChanged: %v", err)
	}
	if !reflect.DeepEqual(res.UpdatedMeasures, []string{"sys-1-m2"}) {
		t.Errorf("UpdatedMeasures = %v, want exactly the edited measure", res.UpdatedMeasures)
	}
	if len(res.UpdatedSystems) != 0 {
		t.Errorf("a measure-scope edit reports no systems: %v", res.UpdatedSystems)
	}
	// Nothing moved, so no page changed.
	if len(res.UpdatedPages) != 0 {
		t.Errorf("UpdatedPages = %v", res.UpdatedPages)
	}
}

func TestCoordinatorGlobalSettingsChange(t *testing.T) {
	doc := docWithSystems(2)
	c := cache.NewLRUCache()
	co := NewCoordinator(Config{Cache: c, Workers: 4})

	if _, err := co.CalculateDocumentLayout(context.Background(), doc); err != nil {
		t.Fatalf("initial layout: %v", err)
	}
	statsBefore := c.Stats()

	doc.Settings.PaperSize = score.PaperA3
	res, err := co.OnScoreChanged(context.Background(), doc, ChangeSet{GlobalSettings: true})
	if err != nil {
		t.Fatalf("OnScoreChanged: %v", err)
	}

	// Document scope: every system recomputes.
	if len(res.UpdatedSystems) != 2 {
		t.Errorf("UpdatedSystems = %v, want both", res.UpdatedSystems)
	}
	if len(res.UpdatedMeasures) != 8 {
		t.Errorf("UpdatedMeasures = %v, want all 8", res.UpdatedMeasures)
	}

	// The cache was fully invalidated, then repopulated by the pass:
	// entry count is back but the miss counter moved.
	statsAfter := c.Stats()
	if statsAfter.Misses <= statsBefore.Misses {
		t.Error("full invalidation must force recomputation")
	}
}

func TestCoordinatorCacheTransparency(t *testing.T) {
	build := func() *score.Document { return docWithSystems(3) }

	withCache := NewCoordinator(Config{Cache: cache.NewLRUCache(), Workers: 4})
	withoutCache := NewCoordinator(Config{Workers: 4})

	a, err := withCache.CalculateDocumentLayout(context.Background(), build())
	if err != nil {
		t.Fatal(err)
	}
	b, err := withoutCache.CalculateDocumentLayout(context.Background(), build())
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(a.SystemLayouts, b.SystemLayouts) {
		t.Error("caching changed the computed system layouts")
	}
	if len(a.Pages) != len(b.Pages) {
		t.Fatalf("page counts diverge: %d vs %d", len(a.Pages), len(b.Pages))
	}
	for i := range a.Pages {
		if !sameLines(a.Pages[i].Lines, b.Pages[i].Lines) {
			t.Errorf("page %d composition diverges", i)
		}
	}
}

func TestCoordinatorNoPendingChanges(t *testing.T) {
	doc := docWithSystems(1)
	co := NewCoordinator(Config{Workers: 2})
	if _, err := co.CalculateDocumentLayout(context.Background(), doc); err != nil {
		t.Fatal(err)
	}

	res, err := co.OnScoreChanged(context.Background(), doc, ChangeSet{})
	if err != nil {
		t.Fatalf("empty change set: %v", err)
	}
	if len(res.UpdatedMeasures)+len(res.UpdatedSystems)+len(res.UpdatedPages) != 0 {
		t.Errorf("nothing was dirty, yet something updated: %+v", res)
	}
}

func TestCoordinatorInvalidDocumentFatal(t *testing.T) {
	doc := docWithSystems(1)
	// Remove one instrument line: a structural violation.
	m := doc.Tunes[0].Parts[0].Systems[0].Measures[0]
	m.Lines = m.Lines[:1]

	co := NewCoordinator(Config{})
	_, err := co.CalculateDocumentLayout(context.Background(), doc)
	if !errors.Is(err, errors.ErrCodeStructuralIntegrity) {
		t.Fatalf("want STRUCTURAL_INTEGRITY, got %v", err)
	}
}

func TestCoordinatorThrashWarning(t *testing.T) {
	doc := docWithSystems(1)
	co := NewCoordinator(Config{Tracker: TrackerConfig{ThrashLimit: 2}, Workers: 2})

	ctx := context.Background()
	change := ChangeSet{EntityIDs: []string{"element-level-id"}}
	if _, err := co.OnScoreChanged(ctx, doc, change); err != nil {
		t.Fatal(err)
	}
	res, err := co.OnScoreChanged(ctx, doc, change)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], string(errors.ErrCodeScopeThrashing)) {
		t.Errorf("want a scope-thrashing warning, got %v", res.Warnings)
	}
}

func TestCoordinatorCancellation(t *testing.T) {
	doc := docWithSystems(2)
	co := NewCoordinator(Config{Cache: cache.NewLRUCache(), Workers: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := co.CalculateDocumentLayout(ctx, doc)
	if err == nil {
		t.Fatal("canceled pass must fail")
	}

	// The dirty set survives, so the next pass redoes the work.
	if !co.Tracker().HasDirty() {
		t.Error("canceled pass must not consume the dirty set")
	}
	res, err := co.CalculateDocumentLayout(context.Background(), doc)
	if err != nil {
		t.Fatalf("retry after cancellation: %v", err)
	}
	if len(res.Pages) != 1 {
		t.Errorf("retry produced %d pages", len(res.Pages))
	}
}

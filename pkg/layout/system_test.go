package layout

import (
	"context"
	"reflect"
	"testing"

	"github.com/strathmore/pipescore/pkg/cache"
	"github.com/strathmore/pipescore/pkg/score"
)

func testSettings() score.DocumentLayoutSettings {
	return score.DocumentLayoutSettings{}.WithDefaults()
}

func TestSystemCalculatePopulatesCache(t *testing.T) {
	doc := docWithSystems(1)
	idx := score.NewIndex(doc)
	sys := idx.System("sys-0")

	c := cache.NewLRUCache()
	sc := NewSystemCalculator(c, NewTableMetrics())

	sl, errs, err := sc.Calculate(context.Background(), idx, sys, SystemContext{Workers: 4}, testSettings())
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("unexpected entity errors: %v", errs)
	}
	if len(sl.MeasureLayouts) != 4 {
		t.Fatalf("got %d measure layouts", len(sl.MeasureLayouts))
	}

	// Every measure and the system itself must now be cached.
	if _, ok := c.Get(cache.EntityKey{EntityID: "sys-0", Kind: cache.KindSystem}); !ok {
		t.Error("system layout not cached")
	}
	for _, m := range sys.Measures {
		if _, ok := c.Get(cache.EntityKey{EntityID: m.ID, Kind: cache.KindMeasure}); !ok {
			t.Errorf("measure %s not cached", m.ID)
		}
	}
}

func TestSystemCalculateDeterministicAcrossWorkers(t *testing.T) {
	doc := docWithSystems(1)
	idx := score.NewIndex(doc)
	sys := idx.System("sys-0")
	settings := testSettings()

	var baseline SystemLayout
	for run, workers := range []int{1, 2, 8, 8, 8} {
		sc := NewSystemCalculator(cache.NewNullEntityCache(), NewTableMetrics())
		sl, _, err := sc.Calculate(context.Background(), idx, sys, SystemContext{Workers: workers}, settings)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if run == 0 {
			baseline = sl
			continue
		}
		if !reflect.DeepEqual(baseline, sl) {
			t.Fatalf("run %d (workers=%d) diverged from baseline", run, workers)
		}
	}
}

func TestSystemCalculateCacheTransparent(t *testing.T) {
	doc := docWithSystems(1)
	idx := score.NewIndex(doc)
	sys := idx.System("sys-0")
	settings := testSettings()

	cached := NewSystemCalculator(cache.NewLRUCache(), NewTableMetrics())
	warm, _, err := cached.Calculate(context.Background(), idx, sys, SystemContext{Workers: 4}, settings)
	if err != nil {
		t.Fatalf("warm: %v", err)
	}
	// Second call is served from the cache.
	hit, _, err := cached.Calculate(context.Background(), idx, sys, SystemContext{Workers: 4}, settings)
	if err != nil {
		t.Fatalf("hit: %v", err)
	}
	uncached := NewSystemCalculator(cache.NewNullEntityCache(), NewTableMetrics())
	cold, _, err := uncached.Calculate(context.Background(), idx, sys, SystemContext{Workers: 4}, settings)
	if err != nil {
		t.Fatalf("cold: %v", err)
	}

	if !reflect.DeepEqual(warm, hit) || !reflect.DeepEqual(warm, cold) {
		t.Error("cached and uncached layouts must be identical")
	}
}

func TestSystemCalculateCollectsDurationErrors(t *testing.T) {
	band := testBand()
	sys := newSystem("sys-bad",
		fullMeasure("ok-1", band),
		measureWithBeats("bad-1", band, 3),
		fullMeasure("ok-2", band),
		measureWithBeats("bad-2", band, 5),
	)
	doc := singleTuneDoc(sys)
	idx := score.NewIndex(doc)

	sc := NewSystemCalculator(nil, NewTableMetrics())
	sl, errs, err := sc.Calculate(context.Background(), idx, sys, SystemContext{Workers: 2}, testSettings())
	if err != nil {
		t.Fatalf("duration problems must not fail the system: %v", err)
	}
	if len(sl.MeasureLayouts) != 4 {
		t.Fatalf("all measures must lay out, got %d", len(sl.MeasureLayouts))
	}
	if len(errs) != 2 {
		t.Fatalf("want 2 entity errors, got %d: %v", len(errs), errs)
	}
	flagged := map[string]bool{}
	for _, e := range errs {
		if e.Code != "INVALID_DURATION" {
			t.Errorf("unexpected code %s", e.Code)
		}
		flagged[e.EntityID] = true
	}
	if !flagged["bad-1"] || !flagged["bad-2"] {
		t.Errorf("errors misattributed: %v", errs)
	}
	if !sl.MeasureLayouts["bad-1"].DurationFlagged || sl.MeasureLayouts["ok-1"].DurationFlagged {
		t.Error("flags must follow the offending measures")
	}
}

func TestStaffSpacingMaxWins(t *testing.T) {
	sys := systemOfMeasures("sys-0", 1)
	base := staffSpacing(sys, SystemContext{})

	// Clearance requests below the current spacing change nothing.
	sys.Hints = &score.SystemHints{Clearance: map[string]float64{"pipes": 10}}
	if got := staffSpacing(sys, SystemContext{}); got != base {
		t.Errorf("small clearance changed spacing: %.2f != %.2f", got, base)
	}

	// Conflicting requests resolve to the larger, never an average.
	sys.Hints.Clearance = map[string]float64{"pipes": 60, "snare": 90}
	want := 90 + staffHeight
	if got := staffSpacing(sys, SystemContext{}); got != want {
		t.Errorf("spacing %.2f, want max clearance %v", got, want)
	}

	// A StaffSpacing hint only ever widens.
	sys.Hints = &score.SystemHints{StaffSpacing: floatPtr(30)}
	if got := staffSpacing(sys, SystemContext{}); got != base {
		t.Errorf("narrow hint must not shrink below the floor: %.2f", got)
	}
	sys.Hints.StaffSpacing = floatPtr(150)
	if got := staffSpacing(sys, SystemContext{}); got != 150 {
		t.Errorf("wide hint ignored: %.2f", got)
	}
}

func TestSystemHeightScalesWithInstruments(t *testing.T) {
	solo := &score.MusicalSystem{ID: "solo", Instruments: testBand()[:1]}
	duo := &score.MusicalSystem{ID: "duo", Instruments: testBand()}

	spacing := staffSpacing(duo, SystemContext{})
	if systemHeight(duo, spacing) <= systemHeight(solo, spacing) {
		t.Error("more staves must make a taller system")
	}
}

func TestSystemCalculateCanceled(t *testing.T) {
	doc := docWithSystems(1)
	idx := score.NewIndex(doc)
	sys := idx.System("sys-0")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sc := NewSystemCalculator(cache.NewLRUCache(), NewTableMetrics())
	_, _, err := sc.Calculate(ctx, idx, sys, SystemContext{Workers: 2}, testSettings())
	if err == nil {
		t.Fatal("canceled context must fail the calculation")
	}
}

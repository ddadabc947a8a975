package layout

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/strathmore/pipescore/pkg/cache"
	"github.com/strathmore/pipescore/pkg/errors"
	"github.com/strathmore/pipescore/pkg/score"
)

// SystemCalculator composes measure layouts into staff systems,
// consulting and populating the entity cache.
type SystemCalculator struct {
	cache   cache.EntityCache
	metrics FontMetrics
}

// NewSystemCalculator creates a calculator over the given cache and
// font metrics. A nil cache disables caching via NullEntityCache.
func NewSystemCalculator(c cache.EntityCache, metrics FontMetrics) *SystemCalculator {
	if c == nil {
		c = cache.NewNullEntityCache()
	}
	return &SystemCalculator{cache: c, metrics: metrics}
}

// Calculate lays out one system. Measures missing from the cache are
// computed concurrently: sibling measures within a system have no data
// dependency on each other, so the fan-out is bounded only by
// sysCtx.Workers. Results are merged by measure id, never by
// completion order, which keeps the output deterministic.
//
// Per-measure duration errors are collected and returned alongside the
// layout; they do not fail the system. They are reported only by the
// pass that computes the layout: a system-level cache hit returns the
// stored layout with no errors, so callers that need the flags for an
// unchanged region must read them off the cached MeasureLayouts
// (DurationFlagged) rather than the error list.
func (sc *SystemCalculator) Calculate(ctx context.Context, idx *score.Index, sys *score.MusicalSystem, sysCtx SystemContext, settings score.DocumentLayoutSettings) (SystemLayout, []*EntityError, error) {
	if v, ok := sc.cache.Get(cache.EntityKey{EntityID: sys.ID, Kind: cache.KindSystem}); ok {
		if cached, ok := v.(SystemLayout); ok {
			return cached, nil, nil
		}
	}

	layouts := make(map[string]MeasureLayout, len(sys.Measures))
	var entityErrs []*EntityError

	// Cache pass first: only misses go to the worker pool.
	var missing []*score.Measure
	for _, m := range sys.Measures {
		if v, ok := sc.cache.Get(cache.EntityKey{EntityID: m.ID, Kind: cache.KindMeasure}); ok {
			if cached, ok := v.(MeasureLayout); ok {
				layouts[m.ID] = cached
				continue
			}
		}
		missing = append(missing, m)
	}

	workers := sysCtx.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	type computed struct {
		layout MeasureLayout
		err    error
	}
	results := make([]computed, len(missing))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, m := range missing {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			mctx := MeasureContext{
				TimeSig:       idx.EffectiveTimeSignature(m.ID),
				Metrics:       sc.metrics,
				SpacingFactor: settings.SpacingFactor,
				FontSize:      settings.FontSize,
				Opening:       m.Opening,
				Closing:       m.Closing,
			}
			ml, err := CalculateMeasure(m, mctx)
			results[i] = computed{layout: ml, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Cancellation between levels: nothing partial was published
		// to the cache for this system.
		return SystemLayout{}, nil, errors.Wrap(errors.ErrCodeCanceled, err, "system %s layout canceled", sys.ID)
	}

	// Merge by measure id and publish to the cache; each Put is atomic
	// per entity id.
	for i, m := range missing {
		res := results[i]
		layouts[m.ID] = res.layout
		sc.cache.Put(cache.EntityKey{EntityID: m.ID, Kind: cache.KindMeasure}, res.layout)
		if res.err != nil {
			entityErrs = append(entityErrs, toEntityError(res.err))
		}
	}

	sl := SystemLayout{
		SystemID:       sys.ID,
		MeasureLayouts: layouts,
		StaffSpacing:   staffSpacing(sys, sysCtx),
		TotalWidth:     startElementsWidth(sys, sc.metrics, settings.FontSize),
	}
	for _, m := range sys.Measures {
		sl.TotalWidth += layouts[m.ID].Width
	}
	sl.Height = systemHeight(sys, sl.StaffSpacing)

	sc.cache.Put(cache.EntityKey{EntityID: sys.ID, Kind: cache.KindSystem}, sl)
	return sl, entityErrs, nil
}

// staffSpacing resolves the baseline distance between adjacent staves.
// The default is widened by a StaffSpacing hint and by per-instrument
// clearance requests; when requests conflict the larger one wins, since
// averaging can reintroduce glyph collisions.
func staffSpacing(sys *score.MusicalSystem, sysCtx SystemContext) float64 {
	spacing := sysCtx.StaffSpacing
	if spacing <= 0 {
		spacing = defaultStaffSpacing
	}
	if sys.Hints != nil {
		if sys.Hints.StaffSpacing != nil && *sys.Hints.StaffSpacing > spacing {
			spacing = *sys.Hints.StaffSpacing
		}
		// Deterministic iteration: sort instrument ids before folding.
		ids := make([]string, 0, len(sys.Hints.Clearance))
		for id := range sys.Hints.Clearance {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if c := sys.Hints.Clearance[id] + staffHeight; c > spacing {
				spacing = c
			}
		}
	}
	if spacing < minStaffClearance+staffHeight {
		spacing = minStaffClearance + staffHeight
	}
	return spacing
}

// systemHeight computes the printed height of a system: one staff plus
// the spacing for each additional instrument, padded top and bottom.
func systemHeight(sys *score.MusicalSystem, spacing float64) float64 {
	n := len(sys.Instruments)
	if n == 0 {
		n = 1
	}
	return 2*systemPadding + staffHeight + float64(n-1)*spacing
}

// startElementsWidth sums the widths of the clef and key material
// printed at the start of the system's staves. The widest staff wins.
func startElementsWidth(sys *score.MusicalSystem, metrics FontMetrics, fontSize float64) float64 {
	var widest float64
	for _, st := range sys.Starts {
		var w float64
		switch st.Clef {
		case "", "treble":
			w += metrics.GlyphWidth(GlyphClefG, fontSize)
		default:
			w += metrics.GlyphWidth(GlyphClefPerc, fontSize)
		}
		if st.Accidentals != 0 {
			n := st.Accidentals
			if n < 0 {
				n = -n
			}
			w += float64(n) * metrics.GlyphWidth(GlyphAccidental, fontSize)
		}
		if w > widest {
			widest = w
		}
	}
	if widest == 0 && len(sys.Starts) == 0 {
		// Systems without explicit start elements still print a clef.
		widest = metrics.GlyphWidth(GlyphClefG, fontSize)
	}
	return widest + measurePadding
}

// toEntityError converts a structured error to its serializable form.
func toEntityError(err error) *EntityError {
	return &EntityError{
		EntityID: errors.Entity(err),
		Code:     string(errors.GetCode(err)),
		Message:  errors.UserMessage(err),
	}
}

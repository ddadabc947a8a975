package layout

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/strathmore/pipescore/pkg/cache"
	"github.com/strathmore/pipescore/pkg/errors"
	"github.com/strathmore/pipescore/pkg/observability"
	"github.com/strathmore/pipescore/pkg/score"
)

// ChangeSet describes one batch of score mutations reported by the
// editing layer. Entity ids may be measures, systems, parts, tunes or
// pages; mutations below measure granularity are reported via their
// measure id.
type ChangeSet struct {
	EntityIDs []string `json:"entity_ids,omitempty"`

	// GlobalSettings marks a change to DocumentLayoutSettings (paper
	// size, orientation, global font size). It escalates the pass to
	// document scope and fully invalidates the cache.
	GlobalSettings bool `json:"global_settings,omitempty"`
}

// Config configures a Coordinator.
type Config struct {
	// Cache is the entity cache. Nil disables caching.
	Cache cache.EntityCache

	// Metrics supplies glyph widths. Nil means the built-in table.
	Metrics FontMetrics

	// Logger receives structured pass logging. Nil discards.
	Logger *log.Logger

	// Workers bounds parallel fan-out per level. Zero means NumCPU.
	Workers int

	// Tracker tunes dirty-scope escalation.
	Tracker TrackerConfig

	// AvoidTolerance overrides the avoid-policy overflow tolerance as
	// a fraction of usable page height. Zero means the default.
	AvoidTolerance float64
}

// Coordinator is the public entry point of the layout engine. It owns
// the dirty tracker and orchestrates incremental recalculation:
// determine scope, invalidate exactly the cache entries within it, then
// recompute bottom-up with parallel fan-out per level and strict
// barriers between levels.
//
// A coordinator assumes single-writer access per document: concurrent
// edits must be serialized by the caller before they reach
// OnScoreChanged. An in-flight pass is cancelled through its context;
// cancellation never leaves partially-written cache entries because
// every cache put is atomic per entity id.
type Coordinator struct {
	cache     cache.EntityCache
	metrics   FontMetrics
	logger    *log.Logger
	workers   int
	tolerance float64
	tracker   *Tracker
	systems   *SystemCalculator
}

// NewCoordinator creates a coordinator from the config.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Cache == nil {
		cfg.Cache = cache.NewNullEntityCache()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewTableMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	return &Coordinator{
		cache:     cfg.Cache,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		workers:   cfg.Workers,
		tolerance: cfg.AvoidTolerance,
		tracker:   NewTracker(cfg.Tracker),
		systems:   NewSystemCalculator(cfg.Cache, cfg.Metrics),
	}
}

// Tracker exposes the coordinator's dirty tracker so the editing layer
// can mark entities dirty as mutations happen.
func (co *Coordinator) Tracker() *Tracker { return co.tracker }

// CacheStats returns the entity cache diagnostics.
func (co *Coordinator) CacheStats() cache.Stats { return co.cache.Stats() }

// CalculateDocumentLayout runs a full document-scope pass, used for the
// initial layout of a freshly loaded document.
func (co *Coordinator) CalculateDocumentLayout(ctx context.Context, doc *score.Document) (*UpdateResult, error) {
	return co.OnScoreChanged(ctx, doc, ChangeSet{GlobalSettings: true})
}

// OnScoreChanged runs one incremental recalculation pass for the given
// change set and returns the updated regions plus collected per-entity
// errors. Structural integrity violations abort the pass; musical
// content errors do not.
func (co *Coordinator) OnScoreChanged(ctx context.Context, doc *score.Document, change ChangeSet) (*UpdateResult, error) {
	start := time.Now()

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	settings := doc.Settings.WithDefaults()

	co.tracker.MarkDirty(change.EntityIDs...)
	if change.GlobalSettings {
		co.tracker.MarkGlobal()
	}

	idx := score.NewIndex(doc)
	scope, thrashing := co.tracker.DetermineScope(idx)
	if scope.Level == ScopeNone {
		return &UpdateResult{}, nil
	}

	observability.Layout().OnPassStart(ctx, scope.Level.String(), len(change.EntityIDs))
	co.logger.Debug("layout pass started",
		"scope", scope.Level,
		"measures", len(scope.MeasureIDs),
		"systems", len(scope.SystemIDs))

	co.invalidate(idx, scope)

	result := &UpdateResult{
		SystemLayouts: make(map[string]SystemLayout),
	}
	if thrashing {
		result.Warnings = append(result.Warnings,
			string(errors.ErrCodeScopeThrashing)+": fine-grained edits keep escalating to document scope")
	}

	// Level 1+2: system layouts (measure fan-out happens inside the
	// system calculator). All systems must complete before pagination.
	affected := co.affectedSystems(idx, scope)
	sysCtx := SystemContext{
		PageWidth: settings.UsableWidth(),
		Workers:   co.workers,
	}

	heights, err := co.computeSystems(ctx, idx, sysCtx, settings, affected, result)
	if err != nil {
		observability.Layout().OnPassComplete(ctx, scope.Level.String(), time.Since(start), err)
		return nil, err
	}

	// Barrier before pagination: a cancellation here leaves the cache
	// consistent, only the page assignment is stale.
	if err := ctx.Err(); err != nil {
		observability.Layout().OnPassComplete(ctx, scope.Level.String(), time.Since(start), err)
		return nil, errors.Wrap(errors.ErrCodeCanceled, err, "layout pass canceled before pagination")
	}

	// Level 3: pagination over the full document order.
	pag := NewPaginator(settings).WithTolerance(co.tolerance).Paginate(idx, heights)
	doc.Pages = pag.Pages
	result.Pages = pag.Pages
	result.PageLayouts = pag.PageLayouts
	result.UpdatedPages = pag.ChangedPages
	result.Errors = append(result.Errors, pag.Errors...)
	observability.Layout().OnPagination(ctx, len(pag.Pages), len(pag.ChangedPages))

	co.reportUpdated(scope, affected, result)
	co.tracker.Consume()

	observability.Layout().OnPassComplete(ctx, scope.Level.String(), time.Since(start), nil)
	co.logger.Info("layout pass completed",
		"scope", scope.Level,
		"updated_systems", len(result.UpdatedSystems),
		"updated_pages", len(result.UpdatedPages),
		"errors", len(result.Errors),
		"duration", time.Since(start))

	return result, nil
}

// invalidate removes exactly the cache entries within scope. The
// invalidation set never cascades implicitly; it is computed here from
// the scope the tracker determined.
func (co *Coordinator) invalidate(idx *score.Index, scope Scope) {
	if scope.Level == ScopeDocument {
		co.cache.InvalidateAll()
		return
	}

	ids := append([]string{}, scope.MeasureIDs...)
	for _, sysID := range scope.SystemIDs {
		ids = append(ids, sysID)
		if scope.Level >= ScopeSystem {
			// Full-system recomputation invalidates its measures too.
			if sys := idx.System(sysID); sys != nil {
				for _, m := range sys.Measures {
					ids = append(ids, m.ID)
				}
			}
		}
	}
	ids = append(ids, scope.PageIDs...)
	co.cache.Invalidate(ids)
}

// affectedSystems lists the system ids requiring recomputation for the
// scope, in document order.
func (co *Coordinator) affectedSystems(idx *score.Index, scope Scope) []string {
	if scope.Level == ScopeDocument {
		var all []string
		for _, ref := range idx.Document().Systems() {
			all = append(all, ref.SystemID)
		}
		return all
	}

	want := make(map[string]struct{}, len(scope.SystemIDs))
	for _, id := range scope.SystemIDs {
		want[id] = struct{}{}
	}
	for _, pageID := range scope.PageIDs {
		if pg := idx.Page(pageID); pg != nil {
			for _, ref := range pg.Lines {
				want[ref.SystemID] = struct{}{}
			}
		}
	}

	// Document order keeps downstream merging deterministic.
	var ordered []string
	for _, ref := range idx.Document().Systems() {
		if _, ok := want[ref.SystemID]; ok {
			ordered = append(ordered, ref.SystemID)
		}
	}
	return ordered
}

// computeSystems lays out the affected systems in parallel, then fills
// in heights for every remaining system from the cache (or by
// recomputation on eviction) since pagination needs all of them.
// Results are merged by system id, independent of completion order.
func (co *Coordinator) computeSystems(ctx context.Context, idx *score.Index, sysCtx SystemContext, settings score.DocumentLayoutSettings, affected []string, result *UpdateResult) (map[string]float64, error) {
	type sysResult struct {
		layout SystemLayout
		errs   []*EntityError
	}
	results := make([]sysResult, len(affected))

	workers := sysCtx.Workers
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, sysID := range affected {
		sys := idx.System(sysID)
		if sys == nil {
			return nil, errors.NewEntity(errors.ErrCodeStructuralIntegrity, sysID, "scope references unknown system")
		}
		g.Go(func() error {
			sl, errs, err := co.systems.Calculate(gctx, idx, sys, sysCtx, settings)
			if err != nil {
				return err
			}
			results[i] = sysResult{layout: sl, errs: errs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	heights := make(map[string]float64)
	for i, sysID := range affected {
		result.SystemLayouts[sysID] = results[i].layout
		result.Errors = append(result.Errors, results[i].errs...)
		heights[sysID] = results[i].layout.Height
	}

	// Clean systems: pagination still needs their heights. Cache hits
	// make this cheap; a miss after eviction recomputes, which by the
	// cache-transparency guarantee changes nothing but cost.
	for _, ref := range idx.Document().Systems() {
		if _, ok := heights[ref.SystemID]; ok {
			continue
		}
		sys := idx.System(ref.SystemID)
		sl, errs, err := co.systems.Calculate(ctx, idx, sys, sysCtx, settings)
		if err != nil {
			return nil, err
		}
		result.Errors = append(result.Errors, errs...)
		heights[ref.SystemID] = sl.Height
	}
	return heights, nil
}

// reportUpdated fills the updated-region id lists at the scope's
// granularity: a measure-scope pass reports exactly the dirty measures,
// wider scopes report the recomputed systems.
func (co *Coordinator) reportUpdated(scope Scope, affected []string, result *UpdateResult) {
	switch scope.Level {
	case ScopeMeasure:
		result.UpdatedMeasures = scope.MeasureIDs
	default:
		result.UpdatedSystems = affected
		for _, sl := range result.SystemLayouts {
			for id := range sl.MeasureLayouts {
				result.UpdatedMeasures = append(result.UpdatedMeasures, id)
			}
		}
		result.UpdatedMeasures = dedupSorted(result.UpdatedMeasures)
	}
}

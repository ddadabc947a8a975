package layout

import (
	"sort"
	"sync"

	"github.com/strathmore/pipescore/pkg/score"
)

// ScopeLevel is the granularity of a recalculation pass.
type ScopeLevel int

const (
	ScopeNone ScopeLevel = iota
	ScopeMeasure
	ScopeSystem
	ScopePage
	ScopeDocument
)

// String returns the scope level's name.
func (l ScopeLevel) String() string {
	switch l {
	case ScopeNone:
		return "none"
	case ScopeMeasure:
		return "measure"
	case ScopeSystem:
		return "system"
	case ScopePage:
		return "page"
	case ScopeDocument:
		return "document"
	}
	return "unknown"
}

// Scope is the minimal recalculation scope for a set of dirty entities.
// Id lists are sorted for deterministic downstream processing.
type Scope struct {
	Level ScopeLevel

	// MeasureIDs are dirty measures that stay at measure granularity.
	MeasureIDs []string

	// SystemIDs are systems requiring full recomputation, either
	// because they were dirtied directly or through escalation.
	SystemIDs []string

	// PageIDs are pages whose composition must be revisited.
	PageIDs []string
}

// Escalation fractions: when dirty children cover more than this share
// of a parent, recalculation escalates to the parent as a whole. Values
// are tunable via TrackerConfig.
const (
	// DefaultSystemEscalation escalates measure scope to system scope.
	DefaultSystemEscalation = 0.5

	// DefaultPageEscalation escalates system scope to page scope.
	DefaultPageEscalation = 0.5

	// DefaultThrashLimit is how many consecutive non-global passes may
	// land at document scope before a thrashing warning is raised.
	DefaultThrashLimit = 3
)

// TrackerConfig tunes scope escalation.
type TrackerConfig struct {
	SystemEscalation float64
	PageEscalation   float64
	ThrashLimit      int
}

// WithDefaults fills unset fields.
func (c TrackerConfig) WithDefaults() TrackerConfig {
	if c.SystemEscalation <= 0 {
		c.SystemEscalation = DefaultSystemEscalation
	}
	if c.PageEscalation <= 0 {
		c.PageEscalation = DefaultPageEscalation
	}
	if c.ThrashLimit <= 0 {
		c.ThrashLimit = DefaultThrashLimit
	}
	return c
}

// Tracker records which entities changed since the last completed
// layout pass. Entities move Clean → Dirty on mutation and Dirty →
// Clean when a pass consumes them.
//
// Tracker is safe for concurrent marking; DetermineScope and Consume
// are called from the single-writer coordinator.
type Tracker struct {
	cfg TrackerConfig

	mu          sync.Mutex
	dirty       map[string]struct{}
	globalDirty bool

	// consecutiveDocScopes counts non-global passes that still
	// escalated to document scope, for thrash detection.
	consecutiveDocScopes int
}

// NewTracker creates a tracker with the given escalation tuning.
func NewTracker(cfg TrackerConfig) *Tracker {
	return &Tracker{
		cfg:   cfg.WithDefaults(),
		dirty: make(map[string]struct{}),
	}
}

// MarkDirty records the given entity ids as changed.
func (t *Tracker) MarkDirty(ids ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		if id != "" {
			t.dirty[id] = struct{}{}
		}
	}
}

// MarkGlobal records a change to global settings (paper size, global
// font size), which immediately escalates the next pass to document
// scope.
func (t *Tracker) MarkGlobal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.globalDirty = true
}

// HasDirty reports whether anything is pending.
func (t *Tracker) HasDirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.globalDirty || len(t.dirty) > 0
}

// DetermineScope computes the minimal recalculation scope for the
// current dirty set against the document index.
//
// Escalation works outward: dirty measures covering more than the
// configured fraction of a system dirty the whole system; dirty systems
// covering more than the configured fraction of a page escalate to page
// scope; a global-settings change escalates straight to document scope.
//
// Thrashing reports true when fine-grained edits have escalated to
// document scope for ThrashLimit consecutive passes.
func (t *Tracker) DetermineScope(idx *score.Index) (Scope, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.globalDirty {
		t.consecutiveDocScopes = 0
		return Scope{Level: ScopeDocument}, false
	}
	if len(t.dirty) == 0 {
		return Scope{Level: ScopeNone}, false
	}

	// Normalize every dirty id to the measures and systems it touches.
	dirtyMeasuresBySystem := make(map[string]map[string]struct{})
	dirtySystems := make(map[string]struct{})

	markMeasure := func(measureID string) {
		sys := idx.SystemOf(measureID)
		if sys == nil {
			return
		}
		set := dirtyMeasuresBySystem[sys.ID]
		if set == nil {
			set = make(map[string]struct{})
			dirtyMeasuresBySystem[sys.ID] = set
		}
		set[measureID] = struct{}{}
	}

	for id := range t.dirty {
		switch {
		case idx.Measure(id) != nil:
			markMeasure(id)
		case idx.System(id) != nil:
			dirtySystems[id] = struct{}{}
		case idx.Part(id) != nil:
			for _, s := range idx.Part(id).Systems {
				dirtySystems[s.ID] = struct{}{}
			}
		case idx.Tune(id) != nil:
			for _, p := range idx.Tune(id).Parts {
				for _, s := range p.Systems {
					dirtySystems[s.ID] = struct{}{}
				}
			}
		case idx.Page(id) != nil:
			for _, ref := range idx.Page(id).Lines {
				dirtySystems[ref.SystemID] = struct{}{}
			}
		default:
			// An element id or an unknown id: a mutation below measure
			// granularity must be reported via its measure id, so an
			// unresolvable id escalates to document scope.
			t.consecutiveDocScopes++
			thrash := t.consecutiveDocScopes >= t.cfg.ThrashLimit
			return Scope{Level: ScopeDocument}, thrash
		}
	}

	// Escalate measure scope to system scope where coverage is high.
	scope := Scope{Level: ScopeMeasure}
	for sysID, measures := range dirtyMeasuresBySystem {
		sys := idx.System(sysID)
		if sys != nil && len(sys.Measures) > 0 &&
			float64(len(measures)) > t.cfg.SystemEscalation*float64(len(sys.Measures)) {
			dirtySystems[sysID] = struct{}{}
			continue
		}
		for id := range measures {
			scope.MeasureIDs = append(scope.MeasureIDs, id)
		}
		scope.SystemIDs = append(scope.SystemIDs, sysID)
	}

	if len(dirtySystems) > 0 {
		scope.Level = ScopeSystem
		for id := range dirtySystems {
			scope.SystemIDs = append(scope.SystemIDs, id)
		}

		// Escalate system scope to page scope where coverage is high.
		dirtySystemsByPage := make(map[string]int)
		for id := range dirtySystems {
			if pg := idx.PageOf(id); pg != nil {
				dirtySystemsByPage[pg.ID]++
			}
		}
		for pageID, n := range dirtySystemsByPage {
			pg := idx.Page(pageID)
			if pg != nil && len(pg.Lines) > 0 &&
				float64(n) > t.cfg.PageEscalation*float64(len(pg.Lines)) {
				scope.Level = ScopePage
				scope.PageIDs = append(scope.PageIDs, pageID)
			}
		}
	}

	sort.Strings(scope.MeasureIDs)
	scope.SystemIDs = dedupSorted(scope.SystemIDs)
	sort.Strings(scope.PageIDs)

	t.consecutiveDocScopes = 0
	return scope, false
}

// Consume transitions the current dirty set back to clean. Called by
// the coordinator once a pass has completed.
func (t *Tracker) Consume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dirty = make(map[string]struct{})
	t.globalDirty = false
}

// dedupSorted sorts ids and removes duplicates.
func dedupSorted(ids []string) []string {
	sort.Strings(ids)
	out := ids[:0]
	var prev string
	for i, id := range ids {
		if i == 0 || id != prev {
			out = append(out, id)
		}
		prev = id
	}
	return out
}

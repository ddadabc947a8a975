package score

// Index provides id-based lookup into a document tree along with parent
// links. The layout engine builds one per pass; the index holds plain
// pointers into the document, so it is only valid while the document is
// not structurally mutated.
type Index struct {
	doc *Document

	tunes    map[string]*Tune
	parts    map[string]*Part
	systems  map[string]*MusicalSystem
	measures map[string]*Measure
	pages    map[string]*Page

	partTune      map[string]string // part id → tune id
	systemPart    map[string]string // system id → part id
	measureSystem map[string]string // measure id → system id
	systemPage    map[string]string // system id → page id
}

// NewIndex walks the document and builds the lookup tables.
func NewIndex(doc *Document) *Index {
	idx := &Index{
		doc:           doc,
		tunes:         make(map[string]*Tune),
		parts:         make(map[string]*Part),
		systems:       make(map[string]*MusicalSystem),
		measures:      make(map[string]*Measure),
		pages:         make(map[string]*Page),
		partTune:      make(map[string]string),
		systemPart:    make(map[string]string),
		measureSystem: make(map[string]string),
		systemPage:    make(map[string]string),
	}
	for _, t := range doc.Tunes {
		idx.tunes[t.ID] = t
		for _, p := range t.Parts {
			idx.parts[p.ID] = p
			idx.partTune[p.ID] = t.ID
			for _, s := range p.Systems {
				idx.systems[s.ID] = s
				idx.systemPart[s.ID] = p.ID
				for _, m := range s.Measures {
					idx.measures[m.ID] = m
					idx.measureSystem[m.ID] = s.ID
				}
			}
		}
	}
	for _, pg := range doc.Pages {
		idx.pages[pg.ID] = pg
		for _, ref := range pg.Lines {
			idx.systemPage[ref.SystemID] = pg.ID
		}
	}
	return idx
}

// Document returns the indexed document.
func (idx *Index) Document() *Document { return idx.doc }

// Tune looks up a tune by id.
func (idx *Index) Tune(id string) *Tune { return idx.tunes[id] }

// Part looks up a part by id.
func (idx *Index) Part(id string) *Part { return idx.parts[id] }

// System looks up a system by id.
func (idx *Index) System(id string) *MusicalSystem { return idx.systems[id] }

// Measure looks up a measure by id.
func (idx *Index) Measure(id string) *Measure { return idx.measures[id] }

// Page looks up a page by id.
func (idx *Index) Page(id string) *Page { return idx.pages[id] }

// SystemOf returns the system containing the measure, or nil.
func (idx *Index) SystemOf(measureID string) *MusicalSystem {
	return idx.systems[idx.measureSystem[measureID]]
}

// PartOf returns the part containing the system, or nil.
func (idx *Index) PartOf(systemID string) *Part {
	return idx.parts[idx.systemPart[systemID]]
}

// TuneOf returns the tune containing the part, or nil.
func (idx *Index) TuneOf(partID string) *Tune {
	return idx.tunes[idx.partTune[partID]]
}

// PageOf returns the page a system is assigned to, or nil when the
// document has not been paginated yet.
func (idx *Index) PageOf(systemID string) *Page {
	return idx.pages[idx.systemPage[systemID]]
}

// TuneOfSystem resolves the tune a system belongs to, or nil.
func (idx *Index) TuneOfSystem(systemID string) *Tune {
	if p := idx.PartOf(systemID); p != nil {
		return idx.TuneOf(p.ID)
	}
	return nil
}

// EffectiveTimeSignature resolves the time signature governing a
// measure using the cascading lookup: the measure's own signature, else
// the nearest earlier measure in the same system, else the nearest
// earlier system in the same part, else the tune default, else 4/4.
func (idx *Index) EffectiveTimeSignature(measureID string) TimeSignature {
	sys := idx.SystemOf(measureID)
	if sys == nil {
		return CommonTime
	}

	// Scan backward from the measure within its own system.
	pos := -1
	for i, m := range sys.Measures {
		if m.ID == measureID {
			pos = i
			break
		}
	}
	for i := pos; i >= 0; i-- {
		if ts := sys.Measures[i].TimeSig; ts != nil {
			return *ts
		}
	}

	// Scan earlier systems in the same part, last measure first.
	part := idx.PartOf(sys.ID)
	if part != nil {
		sysPos := -1
		for i, s := range part.Systems {
			if s.ID == sys.ID {
				sysPos = i
				break
			}
		}
		for i := sysPos - 1; i >= 0; i-- {
			ms := part.Systems[i].Measures
			for j := len(ms) - 1; j >= 0; j-- {
				if ts := ms[j].TimeSig; ts != nil {
					return *ts
				}
			}
		}
		if t := idx.TuneOf(part.ID); t != nil && !t.TimeSig.IsZero() {
			return t.TimeSig
		}
	}
	return CommonTime
}

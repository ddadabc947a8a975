package layout

import (
	"fmt"

	"github.com/strathmore/pipescore/pkg/score"
)

// Test fixtures: small but structurally complete pipe-band documents.

func testBand() []score.Instrument {
	return []score.Instrument{
		{ID: "pipes", Kind: score.PipeChanter},
		{ID: "snare", Kind: score.SnareDrum},
	}
}

// fullMeasure builds a measure filled with quarter notes to exactly one
// 4/4 bar on every instrument line.
func fullMeasure(id string, band []score.Instrument) *score.Measure {
	return measureWithBeats(id, band, 4)
}

// measureWithBeats builds a measure with the given number of quarter
// notes per line; a count other than 4 underfills or overfills a 4/4
// bar.
func measureWithBeats(id string, band []score.Instrument, beats int) *score.Measure {
	m := &score.Measure{ID: id}
	for _, in := range band {
		line := score.InstrumentLine{InstrumentID: in.ID}
		for i := 0; i < beats; i++ {
			line.Elements = append(line.Elements, score.Element{
				ID:       fmt.Sprintf("%s-%s-e%d", id, in.ID, i),
				Pitch:    score.LowA,
				Duration: score.Quarter,
			})
		}
		m.Lines = append(m.Lines, line)
	}
	return m
}

// newSystem builds a system with the given measures over the standard
// test band.
func newSystem(id string, measures ...*score.Measure) *score.MusicalSystem {
	return &score.MusicalSystem{
		ID:          id,
		Instruments: testBand(),
		Measures:    measures,
	}
}

// systemOfMeasures builds a system id "sys-N" with n full measures
// named "sys-N-mJ".
func systemOfMeasures(sysID string, n int) *score.MusicalSystem {
	band := testBand()
	var measures []*score.Measure
	for j := 0; j < n; j++ {
		measures = append(measures, fullMeasure(fmt.Sprintf("%s-m%d", sysID, j), band))
	}
	return newSystem(sysID, measures...)
}

// singleTuneDoc builds a document with one tune and one part containing
// the given systems.
func singleTuneDoc(systems ...*score.MusicalSystem) *score.Document {
	return &score.Document{
		ID:    "doc-1",
		Title: "Test Set",
		Tunes: []*score.Tune{{
			ID:      "tune-1",
			Title:   "The 79th's Farewell",
			TimeSig: score.TimeSignature{Beats: 4, Value: 4},
			Parts: []*score.Part{{
				ID:      "part-a",
				Letter:  "A",
				Systems: systems,
			}},
		}},
	}
}

// docWithSystems builds a single-tune document with n systems of 4 full
// measures each, ids "sys-0" .. "sys-N".
func docWithSystems(n int) *score.Document {
	var systems []*score.MusicalSystem
	for i := 0; i < n; i++ {
		systems = append(systems, systemOfMeasures(fmt.Sprintf("sys-%d", i), 4))
	}
	return singleTuneDoc(systems...)
}

// defaultMeasureContext is the 4/4 context used by most measure tests.
func defaultMeasureContext() MeasureContext {
	return MeasureContext{
		TimeSig:       score.TimeSignature{Beats: 4, Value: 4},
		Metrics:       NewTableMetrics(),
		SpacingFactor: 1.0,
		FontSize:      18,
	}
}

func floatPtr(v float64) *float64 { return &v }

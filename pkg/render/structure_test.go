package render

import (
	"strings"
	"testing"

	"github.com/strathmore/pipescore/pkg/layout"
	"github.com/strathmore/pipescore/pkg/score"
)

func testDoc() *score.Document {
	band := []score.Instrument{{ID: "pipes", Kind: score.PipeChanter}}
	line := score.InstrumentLine{InstrumentID: "pipes"}
	for i := 0; i < 4; i++ {
		line.Elements = append(line.Elements, score.Element{
			ID: score.NewID(), Pitch: score.LowA, Duration: score.Quarter,
		})
	}
	sys := &score.MusicalSystem{
		ID:          "sys-1",
		Instruments: band,
		Measures:    []*score.Measure{{ID: "m1", Lines: []score.InstrumentLine{line}}},
	}
	return &score.Document{
		ID:    "doc-1",
		Title: "Render Me",
		Tunes: []*score.Tune{{
			ID:      "tune-1",
			Title:   "The Rendering Reel",
			TimeSig: score.TimeSignature{Beats: 4, Value: 4},
			Parts:   []*score.Part{{ID: "part-a", Letter: "A", Systems: []*score.MusicalSystem{sys}}},
		}},
		Pages: []*score.Page{{
			ID:    "page-1",
			Lines: []score.TuneLineRef{{TuneID: "tune-1", PartID: "part-a", SystemID: "sys-1"}},
		}},
	}
}

func TestToDOTStructure(t *testing.T) {
	dot := ToDOT(testDoc(), Options{})

	for _, want := range []string{
		`"doc-1"`,
		`"tune-1"`,
		`"part-a"`,
		`"sys-1"`,
		`"doc-1" -> "tune-1"`,
		`"tune-1" -> "part-a"`,
		`"part-a" -> "sys-1"`,
		`"page-1" -> "sys-1" [style=dashed]`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %s:\n%s", want, dot)
		}
	}
	// Measures only appear in detailed mode.
	if strings.Contains(dot, `"m1"`) {
		t.Error("measure node leaked into a non-detailed tree")
	}
}

func TestToDOTDetailed(t *testing.T) {
	res := &layout.UpdateResult{
		SystemLayouts: map[string]layout.SystemLayout{
			"sys-1": {
				SystemID:   "sys-1",
				TotalWidth: 420,
				Height:     124,
				MeasureLayouts: map[string]layout.MeasureLayout{
					"m1": {MeasureID: "m1", Width: 180, DurationFlagged: true},
				},
			},
		},
	}
	dot := ToDOT(testDoc(), Options{Detailed: true, Result: res})

	for _, want := range []string{
		`"m1"`,
		"420 x 124 pt",
		"180 pt",
		"!duration",
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("detailed DOT missing %q", want)
		}
	}
}

func TestToDOTDeterministic(t *testing.T) {
	doc := testDoc()
	if ToDOT(doc, Options{}) != ToDOT(doc, Options{}) {
		t.Error("DOT output must be stable")
	}
}

func TestMarshalResult(t *testing.T) {
	res := &layout.UpdateResult{UpdatedSystems: []string{"sys-1"}}
	data, err := MarshalResult(res)
	if err != nil {
		t.Fatalf("MarshalResult: %v", err)
	}
	if !strings.Contains(string(data), `"sys-1"`) {
		t.Errorf("export missing content: %s", data)
	}
}

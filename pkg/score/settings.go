package score

// PaperSize enumerates supported paper formats.
type PaperSize string

const (
	PaperA4     PaperSize = "a4"
	PaperA3     PaperSize = "a3"
	PaperLetter PaperSize = "letter"
	PaperLegal  PaperSize = "legal"
)

// Orientation is the page orientation.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// paperDims maps paper sizes to portrait dimensions in points (1/72 inch).
var paperDims = map[PaperSize][2]float64{
	PaperA4:     {595, 842},
	PaperA3:     {842, 1191},
	PaperLetter: {612, 792},
	PaperLegal:  {612, 1008},
}

// Dimensions returns the paper's width and height in points for the
// given orientation. Unknown sizes fall back to A4.
func (p PaperSize) Dimensions(o Orientation) (w, h float64) {
	dims, ok := paperDims[p]
	if !ok {
		dims = paperDims[PaperA4]
	}
	if o == Landscape {
		return dims[1], dims[0]
	}
	return dims[0], dims[1]
}

// Margins are page margins in points.
type Margins struct {
	Top    float64 `json:"top" bson:"top"`
	Bottom float64 `json:"bottom" bson:"bottom"`
	Left   float64 `json:"left" bson:"left"`
	Right  float64 `json:"right" bson:"right"`
}

// DocumentLayoutSettings are the global layout parameters. Changing any
// of them invalidates every cached layout in the document.
type DocumentLayoutSettings struct {
	PaperSize     PaperSize   `json:"paper_size" bson:"paper_size"`
	Orientation   Orientation `json:"orientation" bson:"orientation"`
	Margins       Margins     `json:"margins" bson:"margins"`
	SpacingFactor float64     `json:"spacing_factor" bson:"spacing_factor"`
	FontSize      float64     `json:"font_size" bson:"font_size"`
}

// WithDefaults fills unset fields with sensible defaults.
func (s DocumentLayoutSettings) WithDefaults() DocumentLayoutSettings {
	if s.PaperSize == "" {
		s.PaperSize = PaperA4
	}
	if s.Orientation == "" {
		s.Orientation = Portrait
	}
	if s.Margins == (Margins{}) {
		s.Margins = Margins{Top: 36, Bottom: 36, Left: 28, Right: 28}
	}
	if s.SpacingFactor == 0 {
		s.SpacingFactor = 1.0
	}
	if s.FontSize == 0 {
		s.FontSize = 18
	}
	return s
}

// UsableWidth returns the page width available for music.
func (s DocumentLayoutSettings) UsableWidth() float64 {
	w, _ := s.PaperSize.Dimensions(s.Orientation)
	return w - s.Margins.Left - s.Margins.Right
}

// UsableHeight returns the page height available for music.
func (s DocumentLayoutSettings) UsableHeight() float64 {
	_, h := s.PaperSize.Dimensions(s.Orientation)
	return h - s.Margins.Top - s.Margins.Bottom
}

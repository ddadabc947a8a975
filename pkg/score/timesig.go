package score

import "fmt"

// TimeSignature is a conventional meter: Beats per bar over a note value.
type TimeSignature struct {
	Beats int `json:"beats" bson:"beats"`
	Value int `json:"value" bson:"value"`
}

// String formats the signature as "6/8".
func (ts TimeSignature) String() string {
	return fmt.Sprintf("%d/%d", ts.Beats, ts.Value)
}

// IsZero reports whether the signature is unset.
func (ts TimeSignature) IsZero() bool { return ts.Beats == 0 && ts.Value == 0 }

// BarDuration returns the nominal duration of a full bar in ticks.
// A 4/4 bar is four quarters; a 6/8 bar is six eighths.
func (ts TimeSignature) BarDuration() Ticks {
	if ts.Value == 0 {
		return 0
	}
	return Ticks(ts.Beats) * (TicksPerQuarter * 4 / Ticks(ts.Value))
}

// CommonTime is the 4/4 default applied when a tune declares nothing.
var CommonTime = TimeSignature{Beats: 4, Value: 4}

// Package hsm decodes HSM tracker modules exported as nested array documents
package hsm

// TrackCount is the fixed number of tracks in every pattern
const TrackCount = 5

// Audible ranges of the format
const (
	MinSample = 1
	MaxSample = 26
	MinNote   = 0
	MaxNote   = 59
)

// Metadata holds the informational header stored in row 0
type Metadata struct {
	Title        string `yaml:"title" json:"title"`
	Author       string `yaml:"author" json:"author"`
	Filename     string `yaml:"filename" json:"filename"`
	Multisamples int    `yaml:"multisamples" json:"multisamples"`
	Lawbroken    int    `yaml:"lawbroken" json:"lawbroken"`
	LoopCount    int    `yaml:"loopCount" json:"loopCount"`
}

// Sample describes one instrument sample. The envelope fields are decoded
// but not used by the MIDI conversion.
type Sample struct {
	Filename string `yaml:"filename" json:"filename"`
	Loop     int    `yaml:"loop" json:"loop"`
	Decay    int    `yaml:"decay" json:"decay"`
	Sustain  int    `yaml:"sustain" json:"sustain"`
	Attack   int    `yaml:"attack" json:"attack"`
}

// Step represents a single time slot of a track
type Step struct {
	Sample  int // 1-based sample reference, 0 or >26 means silence
	Note    int
	Pan     int
	Volume  int
	Echo    int
	EchoAmt int
	Vibrato int
	VibAmt  int
	Tremolo int
	TremAmt int
	Offset  int

	// Missing from older exports, zero when absent
	ArpegSteps    int
	ArpegSequence int
	PitchSteps    int
	PitchNotes    int
	SkipSteps     int
}

// IsAudible reports whether the step references a sample and a playable note
func (s Step) IsAudible() bool {
	return s.Sample >= MinSample && s.Sample <= MaxSample &&
		s.Note >= MinNote && s.Note <= MaxNote
}

// Track is one of the five step lanes of a pattern
type Track struct {
	Pan    int
	Volume int
	Steps  []Step
}

// Pattern is a block of tracks sharing one tempo
type Pattern struct {
	BPM        int
	Steps      int // Number of active steps per track
	Highlights int
	Color      int
	Tracks     [TrackCount]Track
}

// Size holds the declared extents of the source document
type Size struct {
	Rows    int `yaml:"rows" json:"rows"`       // 1 + number of samples
	Columns int `yaml:"columns" json:"columns"` // 1 + 5 * number of patterns
	Fields  int `yaml:"fields" json:"fields"`   // per-cell field count
}

// Module is a decoded HSM module. It is not modified after Decode returns.
type Module struct {
	Metadata Metadata
	Samples  []Sample
	Patterns []Pattern // storage order
	Sequence []int     // song order, one entry per row including row 0
	Size     Size
}

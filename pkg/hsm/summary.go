package hsm

// PatternSummary is the overview of one pattern shown by Summarize
type PatternSummary struct {
	Index      int             `yaml:"index" json:"index"`
	BPM        int             `yaml:"bpm" json:"bpm"`
	Steps      int             `yaml:"steps" json:"steps"`
	Highlights int             `yaml:"highlights" json:"highlights"`
	Color      int             `yaml:"color" json:"color"`
	Audible    [TrackCount]int `yaml:"audible" json:"audible"` // audible active steps per track
}

// Summary is a printable overview of a module
type Summary struct {
	Metadata Metadata         `yaml:"metadata" json:"metadata"`
	Size     Size             `yaml:"size" json:"size"`
	Samples  []Sample         `yaml:"samples" json:"samples"`
	Patterns []PatternSummary `yaml:"patterns" json:"patterns"`
	Sequence []int            `yaml:"sequence" json:"sequence"`
}

// Summarize returns an overview of m
func (m *Module) Summarize() Summary {
	s := Summary{
		Metadata: m.Metadata,
		Size:     m.Size,
		Samples:  m.Samples,
		Sequence: m.Sequence,
		Patterns: make([]PatternSummary, 0, len(m.Patterns)),
	}
	for i, p := range m.Patterns {
		ps := PatternSummary{
			Index:      i,
			BPM:        p.BPM,
			Steps:      p.Steps,
			Highlights: p.Highlights,
			Color:      p.Color,
		}
		for ti, track := range p.Tracks {
			for si, step := range track.Steps {
				if si >= p.Steps {
					break
				}
				if step.IsAudible() {
					ps.Audible[ti]++
				}
			}
		}
		s.Patterns = append(s.Patterns, ps)
	}
	return s
}

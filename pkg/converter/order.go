package converter

import "github.com/hsm2midi/hsm2midi/pkg/hsm"

// SequencedPatterns resolves the module's song order into the patterns
// that are rendered, in rendering order.
//
// With OrderSong, entry 0 of the song order (read from the metadata row) is
// ignored. Every following entry v with 1 <= v <= len(Patterns) selects
// Patterns[v-1]; any other value marks an unused slot and is skipped. When
// no entry selects a pattern the module is played in storage order.
//
// The 1-based mapping is provisional: it is derived from the layout of the
// song order column and has only been exercised with synthetic modules.
// OrderStorage bypasses it.
// TODO: confirm the mapping against a module exported by the tracker and add
// it to testdata with its expected pattern order.
func SequencedPatterns(m *hsm.Module, policy OrderPolicy) []*hsm.Pattern {
	if policy != OrderStorage {
		var out []*hsm.Pattern
		for i, v := range m.Sequence {
			if i == 0 || v < 1 || v > len(m.Patterns) {
				continue
			}
			out = append(out, &m.Patterns[v-1])
		}
		if len(out) > 0 {
			return out
		}
	}

	out := make([]*hsm.Pattern, len(m.Patterns))
	for i := range m.Patterns {
		out[i] = &m.Patterns[i]
	}
	return out
}

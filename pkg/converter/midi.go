package converter

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Status and meta bytes inspected when reading files back
const (
	metaStatus    = 0xFF
	metaTempo     = 0x51
	metaTempoSize = 0x03
)

// MIDIConverter encodes timelines as Standard MIDI Files and reads them back
type MIDIConverter struct {
	ticksPerQuarter uint16
}

// NewMIDIConverter creates a new MIDI converter
func NewMIDIConverter() *MIDIConverter {
	return &MIDIConverter{
		ticksPerQuarter: Resolution,
	}
}

// GenerateMIDI encodes tl as a format 1 file with one MIDI track per
// timeline track. Track i sends on channel i.
func (m *MIDIConverter) GenerateMIDI(tl *Timeline) ([]byte, error) {
	if tl == nil {
		return nil, errors.New("nil timeline")
	}

	s := smf.New()
	tpq := m.ticksPerQuarter
	if tl.Resolution != 0 {
		tpq = tl.Resolution
	}
	s.TimeFormat = smf.MetricTicks(tpq)

	for ti, events := range tl.Tracks {
		var track smf.Track
		var last uint64
		for _, te := range events {
			msg, err := encodeEvent(uint8(ti), te.Event)
			if err != nil {
				return nil, fmt.Errorf("%w: track %d tick %d: %v", ErrEncodingFailure, ti, te.Tick, err)
			}
			if te.Tick < last {
				return nil, fmt.Errorf("%w: track %d tick %d before %d", ErrEncodingFailure, ti, te.Tick, last)
			}
			delta := te.Tick - last
			if delta > uint64(^uint32(0)) {
				return nil, fmt.Errorf("%w: track %d delta %d too large", ErrEncodingFailure, ti, delta)
			}
			track.Add(uint32(delta), msg)
			last = te.Tick
		}
		track.Close(0)

		if err := s.Add(track); err != nil {
			return nil, fmt.Errorf("%w: failed to add track %d: %v", ErrEncodingFailure, ti, err)
		}
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("%w: failed to write MIDI: %v", ErrEncodingFailure, err)
	}
	return buf.Bytes(), nil
}

func encodeEvent(channel uint8, e Event) ([]byte, error) {
	switch e.Kind {
	case KindControlChange:
		ctrl, err := dataByte("controller", e.Controller)
		if err != nil {
			return nil, err
		}
		val, err := dataByte("value", e.Value)
		if err != nil {
			return nil, err
		}
		return midi.ControlChange(channel, ctrl, val), nil
	case KindProgramChange:
		prog, err := dataByte("program", e.Program)
		if err != nil {
			return nil, err
		}
		return midi.ProgramChange(channel, prog), nil
	case KindTempo:
		us := e.MicrosecondsPerQuarter
		return smf.Message([]byte{
			metaStatus, metaTempo, metaTempoSize,
			byte(us >> 16),
			byte(us >> 8),
			byte(us),
		}), nil
	case KindNoteOn, KindNoteOff:
		key, err := dataByte("note", e.Note)
		if err != nil {
			return nil, err
		}
		vel, err := dataByte("velocity", e.Velocity)
		if err != nil {
			return nil, err
		}
		if e.Kind == KindNoteOn {
			return midi.NoteOn(channel, key, vel), nil
		}
		return midi.NoteOffVelocity(channel, key, vel), nil
	default:
		return nil, fmt.Errorf("unknown event kind %s", e.Kind)
	}
}

// dataByte checks that v fits a 7 bit MIDI data byte
func dataByte(name string, v int) (uint8, error) {
	if v < 0 || v > 127 {
		return 0, fmt.Errorf("%s %d out of range 0-127", name, v)
	}
	return uint8(v), nil
}

// ParseMIDI reads a Standard MIDI File back into a timeline. Only the event
// kinds produced by GenerateMIDI are kept and at most TrackCount tracks are
// read.
func (m *MIDIConverter) ParseMIDI(data []byte) (*Timeline, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	tl := &Timeline{Resolution: m.ticksPerQuarter}
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		tl.Resolution = mt.Resolution()
	}

	for ti, track := range s.Tracks {
		if ti >= TrackCount {
			break
		}
		var tick uint64
		for _, ev := range track {
			tick += uint64(ev.Delta)
			if e, ok := decodeMessage(ev.Message); ok {
				tl.Tracks[ti] = append(tl.Tracks[ti], TimedEvent{Tick: tick, Event: e})
			}
		}
		tl.End[ti] = tick
	}
	return tl, nil
}

func decodeMessage(msg []byte) (Event, bool) {
	if len(msg) >= 6 && msg[0] == metaStatus && msg[1] == metaTempo && msg[2] == metaTempoSize {
		us := uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5])
		return Tempo(us), true
	}
	if len(msg) < 2 || msg[0] < 0x80 || msg[0] >= 0xF0 {
		return Event{}, false
	}

	status := msg[0] & 0xF0
	switch {
	case status == 0xC0:
		return ProgramChange(int(msg[1])), true
	case len(msg) < 3:
		return Event{}, false
	case status == 0xB0:
		return ControlChange(int(msg[1]), int(msg[2])), true
	case status == 0x90:
		return NoteOn(int(msg[1]), int(msg[2])), true
	case status == 0x80:
		return NoteOff(int(msg[1]), int(msg[2])), true
	}
	return Event{}, false
}

// WriteMIDIFile encodes tl and writes it to filename
func (m *MIDIConverter) WriteMIDIFile(tl *Timeline, filename string) error {
	data, err := m.GenerateMIDI(tl)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

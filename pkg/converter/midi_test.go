package converter

import (
	"encoding/binary"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func TestGenerateMIDIHeader(t *testing.T) {
	tl, err := Convert(singleStepModule(120, audibleStep), DefaultOptions())
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	data, err := NewMIDIConverter().GenerateMIDI(tl)
	if err != nil {
		t.Fatalf("GenerateMIDI() error = %v", err)
	}

	if len(data) < 14 || string(data[:4]) != "MThd" {
		t.Fatalf("GenerateMIDI() output has no MThd header")
	}
	if format := binary.BigEndian.Uint16(data[8:10]); format != 1 {
		t.Errorf("format = %d, want 1", format)
	}
	if tracks := binary.BigEndian.Uint16(data[10:12]); tracks != TrackCount {
		t.Errorf("tracks = %d, want %d", tracks, TrackCount)
	}
	if division := binary.BigEndian.Uint16(data[12:14]); division != Resolution {
		t.Errorf("division = %d, want %d", division, Resolution)
	}
}

func TestGenerateMIDIRoundTrip(t *testing.T) {
	tl, err := Convert(singleStepModule(7, audibleStep), Options{NoteOffset: 36, LoopCount: 2})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	mc := NewMIDIConverter()
	data, err := mc.GenerateMIDI(tl)
	if err != nil {
		t.Fatalf("GenerateMIDI() error = %v", err)
	}

	parsed, err := mc.ParseMIDI(data)
	if err != nil {
		t.Fatalf("ParseMIDI() error = %v", err)
	}

	if parsed.Resolution != Resolution {
		t.Errorf("Resolution = %d, want %d", parsed.Resolution, Resolution)
	}
	for ti := range tl.Tracks {
		if !reflect.DeepEqual(parsed.Tracks[ti], tl.Tracks[ti]) {
			t.Errorf("track %d = %v\nwant %v", ti, parsed.Tracks[ti], tl.Tracks[ti])
		}
	}
	if got := parsed.Tracks[0][2].Event.MicrosecondsPerQuarter; got != 8571428 {
		t.Errorf("tempo = %d, want 8571428", got)
	}
}

func TestGenerateMIDIEncodingFailure(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
	}{
		{"note too high", NoteOn(128, 127)},
		{"negative note", NoteOff(-1, 127)},
		{"volume too high", ControlChange(ControllerVolume, 200)},
		{"program too high", ProgramChange(128)},
		{"unknown kind", Event{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := &Timeline{Resolution: Resolution}
			tl.add(0, tt.ev, 1)

			_, err := NewMIDIConverter().GenerateMIDI(tl)
			if !errors.Is(err, ErrEncodingFailure) {
				t.Errorf("GenerateMIDI() error = %v, want %v", err, ErrEncodingFailure)
			}
		})
	}
}

func TestGenerateMIDINil(t *testing.T) {
	if _, err := NewMIDIConverter().GenerateMIDI(nil); err == nil {
		t.Error("GenerateMIDI(nil) should fail")
	}
}

func TestWriteMIDIFile(t *testing.T) {
	tl, err := Convert(singleStepModule(120, audibleStep), DefaultOptions())
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "out.mid")
	if err := NewMIDIConverter().WriteMIDIFile(tl, path); err != nil {
		t.Fatalf("WriteMIDIFile() error = %v", err)
	}
}

func TestParseMIDIInvalid(t *testing.T) {
	if _, err := NewMIDIConverter().ParseMIDI([]byte("not midi")); err == nil {
		t.Error("ParseMIDI() expected error for invalid data")
	}
}

package converter

import (
	"errors"
	"os"
	"reflect"
	"testing"

	"github.com/hsm2midi/hsm2midi/pkg/hsm"
)

// singleStepModule builds one pattern whose tracks each hold the given step
// in slot 0. Track 0 is panned to 64 at volume 100.
func singleStepModule(bpm int, step hsm.Step) *hsm.Module {
	p := hsm.Pattern{BPM: bpm, Steps: 1}
	for i := range p.Tracks {
		p.Tracks[i] = hsm.Track{Pan: 64, Volume: 100, Steps: []hsm.Step{{}}}
	}
	p.Tracks[0].Steps[0] = step
	return &hsm.Module{
		Sequence: []int{0, 1},
		Patterns: []hsm.Pattern{p},
	}
}

var audibleStep = hsm.Step{Sample: 1, Note: 0, Pan: 64, Volume: 100}

func TestConvertMinimal(t *testing.T) {
	tl, err := Convert(singleStepModule(120, audibleStep), DefaultOptions())
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	want := []TimedEvent{
		{0, ControlChange(7, 100)},
		{1, ControlChange(10, 64)},
		{2, Tempo(500000)},
		{3, ProgramChange(1)},
		{4, ControlChange(7, 100)},
		{5, ControlChange(10, 64)},
		{6, NoteOn(36, 127)},
		{25, NoteOff(36, 127)},
	}
	if !reflect.DeepEqual(tl.Tracks[0], want) {
		t.Errorf("track 0 = %v\nwant %v", tl.Tracks[0], want)
	}
	if tl.End[0] != 26 {
		t.Errorf("track 0 end = %d, want 26", tl.End[0])
	}
	if tl.Resolution != 96 {
		t.Errorf("Resolution = %d, want 96", tl.Resolution)
	}

	// silent steps still take gate + 1 ticks
	for ti := 1; ti < TrackCount; ti++ {
		events := tl.Tracks[ti]
		if len(events) != 6 {
			t.Fatalf("track %d has %d events, want 6: %v", ti, len(events), events)
		}
		for _, te := range events {
			if te.Event.Kind == KindNoteOn || te.Event.Kind == KindNoteOff {
				t.Errorf("track %d has note event %v", ti, te)
			}
		}
		if tl.End[ti] != 26 {
			t.Errorf("track %d end = %d, want 26", ti, tl.End[ti])
		}
	}
}

func TestConvertHeaderOnlyTracks(t *testing.T) {
	m := &hsm.Module{Sequence: []int{0, 1}, Patterns: []hsm.Pattern{{BPM: 120, Steps: 0}}}

	tl, err := Convert(m, DefaultOptions())
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	for ti := 0; ti < TrackCount; ti++ {
		want := []TimedEvent{
			{0, ControlChange(7, 0)},
			{1, ControlChange(10, 0)},
			{2, Tempo(500000)},
		}
		if !reflect.DeepEqual(tl.Tracks[ti], want) {
			t.Errorf("track %d = %v, want %v", ti, tl.Tracks[ti], want)
		}
		if tl.End[ti] != 3 {
			t.Errorf("track %d end = %d, want 3", ti, tl.End[ti])
		}
	}
}

func TestConvertLoopAccumulates(t *testing.T) {
	tl, err := Convert(singleStepModule(120, audibleStep), Options{NoteOffset: 36, LoopCount: 2})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	events := tl.Tracks[0]
	if len(events) != 16 {
		t.Fatalf("track 0 has %d events, want 16", len(events))
	}
	firstLoopLast := events[7].Tick
	secondLoopFirst := events[8]
	if secondLoopFirst.Tick != firstLoopLast+1 {
		t.Errorf("second loop starts at %d, want %d", secondLoopFirst.Tick, firstLoopLast+1)
	}
	if secondLoopFirst.Event != ControlChange(7, 100) {
		t.Errorf("second loop first event = %v, want volume", secondLoopFirst.Event)
	}
	if tl.End[0] != 52 {
		t.Errorf("track 0 end = %d, want 52", tl.End[0])
	}
}

func TestConvertNoteOffset(t *testing.T) {
	tl, err := Convert(singleStepModule(120, hsm.Step{Sample: 26, Note: 59}), Options{NoteOffset: -12, LoopCount: 1})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	if got := tl.Tracks[0][6].Event; got != NoteOn(47, 127) {
		t.Errorf("note on = %v, want NoteOn(47,127)", got)
	}
	if got := tl.Tracks[0][7].Event; got != NoteOff(47, 127) {
		t.Errorf("note off = %v, want NoteOff(47,127)", got)
	}
}

func TestConvertVelocityIgnoresVolume(t *testing.T) {
	tl, err := Convert(singleStepModule(120, hsm.Step{Sample: 2, Note: 10, Volume: 5, Pan: 3}), DefaultOptions())
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	if got := tl.Tracks[0][4].Event; got != ControlChange(ControllerVolume, 5) {
		t.Errorf("step volume = %v, want ControlChange(7,5)", got)
	}
	if got := tl.Tracks[0][5].Event; got != ControlChange(ControllerPan, 3) {
		t.Errorf("step pan = %v, want ControlChange(10,3)", got)
	}
	if got := tl.Tracks[0][6].Event.Velocity; got != 127 {
		t.Errorf("velocity = %d, want 127", got)
	}
}

func TestConvertTempo(t *testing.T) {
	tests := []struct {
		bpm  int
		want uint32
	}{
		{120, 500000},
		{200, 300000},
		{7, 8571428},
		{3, 20000000 & 0xFFFFFF},
	}

	for _, tt := range tests {
		tl, err := Convert(singleStepModule(tt.bpm, audibleStep), DefaultOptions())
		if err != nil {
			t.Fatalf("Convert(bpm=%d) error = %v", tt.bpm, err)
		}
		got := tl.Tracks[0][2].Event
		if got.Kind != KindTempo || got.MicrosecondsPerQuarter != tt.want {
			t.Errorf("bpm %d: tempo event = %v, want Tempo(%d)", tt.bpm, got, tt.want)
		}
	}
}

func TestConvertErrors(t *testing.T) {
	overfull := singleStepModule(120, audibleStep)
	overfull.Patterns[0].Steps = 2

	tests := []struct {
		name   string
		module *hsm.Module
		opts   Options
		want   error
	}{
		{"step count exceeds capacity", overfull, DefaultOptions(), ErrStepCountExceedsCapacity},
		{"zero tempo", singleStepModule(0, audibleStep), DefaultOptions(), ErrZeroTempo},
		{"zero loops", singleStepModule(120, audibleStep), Options{NoteOffset: 36}, ErrInvalidLoopCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl, err := Convert(tt.module, tt.opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("Convert() error = %v, want %v", err, tt.want)
			}
			if tl != nil {
				t.Error("Convert() returned a partial timeline")
			}
		})
	}

	if _, err := Convert(nil, DefaultOptions()); err == nil {
		t.Error("Convert(nil) should fail")
	}
}

func TestConvertDeterministicAndPure(t *testing.T) {
	data, err := os.ReadFile("testdata/minimal.hsm")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	m, err := hsm.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	pristine, err := hsm.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	opts := Options{NoteOffset: 36, LoopCount: 3}
	first, err := Convert(m, opts)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	second, err := Convert(m, opts)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("Convert() is not deterministic")
	}
	if !reflect.DeepEqual(m, pristine) {
		t.Error("Convert() modified the module")
	}
}

func TestConvertTicksNonDecreasing(t *testing.T) {
	data, err := os.ReadFile("testdata/minimal.hsm")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	tl, err := New(Options{NoteOffset: 36, LoopCount: 4}).HSMToTimeline(data)
	if err != nil {
		t.Fatalf("HSMToTimeline() error = %v", err)
	}

	for ti, events := range tl.Tracks {
		for i := 1; i < len(events); i++ {
			if events[i].Tick < events[i-1].Tick {
				t.Errorf("track %d event %d tick %d before %d", ti, i, events[i].Tick, events[i-1].Tick)
			}
		}
		if tl.End[ti] != 4*26 {
			t.Errorf("track %d end = %d, want %d", ti, tl.End[ti], 4*26)
		}
	}
	if tl.EventCount() == 0 {
		t.Error("EventCount() = 0")
	}
}

func TestEventString(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{ControlChange(7, 100), "ControlChange(7,100)"},
		{ProgramChange(3), "ProgramChange(3)"},
		{Tempo(500000), "Tempo(500000)"},
		{NoteOn(36, 127), "NoteOn(36,127)"},
		{NoteOff(36, 127), "NoteOff(36,127)"},
	}
	for _, tt := range tests {
		if got := tt.ev.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
	if got := (TimedEvent{Tick: 6, Event: NoteOn(36, 127)}).String(); got != "NoteOn(36,127)@6" {
		t.Errorf("TimedEvent.String() = %q", got)
	}
}

package converter

import "fmt"

// Timing and controller constants of the generated sequence
const (
	Resolution            = 96 // ticks per quarter note
	TrackCount            = 5
	GateTicks             = Resolution / 5
	NoteVelocity          = 127
	ControllerVolume      = 7
	ControllerPan         = 10
	MicrosecondsPerMinute = 60_000_000
)

// EventKind identifies the variant held by an Event
type EventKind uint8

const (
	KindControlChange EventKind = iota + 1
	KindProgramChange
	KindTempo
	KindNoteOn
	KindNoteOff
)

func (k EventKind) String() string {
	switch k {
	case KindControlChange:
		return "ControlChange"
	case KindProgramChange:
		return "ProgramChange"
	case KindTempo:
		return "Tempo"
	case KindNoteOn:
		return "NoteOn"
	case KindNoteOff:
		return "NoteOff"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

// Event is a single abstract MIDI event. Only the fields belonging to Kind
// are set; use the constructors below.
type Event struct {
	Kind       EventKind
	Controller int
	Value      int
	Program    int
	Note       int
	Velocity   int
	// MicrosecondsPerQuarter is already truncated to the 24 bits written
	// to the tempo meta event.
	MicrosecondsPerQuarter uint32
}

// ControlChange returns a control change event
func ControlChange(controller, value int) Event {
	return Event{Kind: KindControlChange, Controller: controller, Value: value}
}

// ProgramChange returns a program change event
func ProgramChange(program int) Event {
	return Event{Kind: KindProgramChange, Program: program}
}

// Tempo returns a tempo event, keeping the low 24 bits of us
func Tempo(us uint32) Event {
	return Event{Kind: KindTempo, MicrosecondsPerQuarter: us & 0xFFFFFF}
}

// NoteOn returns a note on event
func NoteOn(note, velocity int) Event {
	return Event{Kind: KindNoteOn, Note: note, Velocity: velocity}
}

// NoteOff returns a note off event
func NoteOff(note, velocity int) Event {
	return Event{Kind: KindNoteOff, Note: note, Velocity: velocity}
}

func (e Event) String() string {
	switch e.Kind {
	case KindControlChange:
		return fmt.Sprintf("ControlChange(%d,%d)", e.Controller, e.Value)
	case KindProgramChange:
		return fmt.Sprintf("ProgramChange(%d)", e.Program)
	case KindTempo:
		return fmt.Sprintf("Tempo(%d)", e.MicrosecondsPerQuarter)
	case KindNoteOn:
		return fmt.Sprintf("NoteOn(%d,%d)", e.Note, e.Velocity)
	case KindNoteOff:
		return fmt.Sprintf("NoteOff(%d,%d)", e.Note, e.Velocity)
	default:
		return e.Kind.String()
	}
}

// TimedEvent places an event at an absolute tick
type TimedEvent struct {
	Tick  uint64
	Event Event
}

func (te TimedEvent) String() string {
	return fmt.Sprintf("%s@%d", te.Event, te.Tick)
}

// Timeline is the converted module: five independent tracks of
// non-decreasing absolute ticks
type Timeline struct {
	Resolution uint16
	Tracks     [TrackCount][]TimedEvent
	// End is the tick cursor of each track after the last step
	End [TrackCount]uint64
}

// add appends ev to track at its cursor and advances the cursor by advance
func (tl *Timeline) add(track int, ev Event, advance uint64) {
	tl.Tracks[track] = append(tl.Tracks[track], TimedEvent{Tick: tl.End[track], Event: ev})
	tl.End[track] += advance
}

// wait advances the cursor of track without emitting anything
func (tl *Timeline) wait(track int, ticks uint64) {
	tl.End[track] += ticks
}

// EventCount returns the total number of events over all tracks
func (tl *Timeline) EventCount() int {
	n := 0
	for _, track := range tl.Tracks {
		n += len(track)
	}
	return n
}

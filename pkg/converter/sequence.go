package converter

import (
	"errors"
	"fmt"

	"github.com/hsm2midi/hsm2midi/pkg/hsm"
)

// Convert renders m into a timeline. It does not modify m and keeps no
// state between calls.
//
// Every sequenced pattern writes, per track, the track volume and pan, the
// pattern tempo and then each active step: program, volume, pan and a note
// gated for GateTicks. Each event takes one tick; silent steps take the
// same time as sounding ones. Track cursors carry over between patterns and
// loops.
func Convert(m *hsm.Module, opts Options) (*Timeline, error) {
	if m == nil {
		return nil, errors.New("nil module")
	}
	if opts.LoopCount < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLoopCount, opts.LoopCount)
	}

	patterns := SequencedPatterns(m, opts.Order)
	tl := &Timeline{Resolution: Resolution}

	for loop := 0; loop < opts.LoopCount; loop++ {
		for i, pattern := range patterns {
			tempo, err := microsecondsPerQuarter(pattern.BPM)
			if err != nil {
				return nil, fmt.Errorf("sequenced pattern %d: %w", i, err)
			}
			for ti := range pattern.Tracks {
				if err := tl.renderTrack(ti, pattern, tempo, opts.NoteOffset); err != nil {
					return nil, fmt.Errorf("sequenced pattern %d track %d: %w", i, ti, err)
				}
			}
		}
	}

	return tl, nil
}

func (tl *Timeline) renderTrack(ti int, pattern *hsm.Pattern, tempo uint32, noteOffset int) error {
	track := &pattern.Tracks[ti]
	if pattern.Steps < 0 || pattern.Steps > len(track.Steps) {
		return fmt.Errorf("%w: pattern has %d steps, track holds %d", ErrStepCountExceedsCapacity, pattern.Steps, len(track.Steps))
	}

	tl.add(ti, ControlChange(ControllerVolume, track.Volume), 1)
	tl.add(ti, ControlChange(ControllerPan, track.Pan), 1)
	tl.add(ti, Tempo(tempo), 1)

	for _, step := range track.Steps[:pattern.Steps] {
		tl.add(ti, ProgramChange(step.Sample), 1)
		tl.add(ti, ControlChange(ControllerVolume, step.Volume), 1)
		tl.add(ti, ControlChange(ControllerPan, step.Pan), 1)

		if step.IsAudible() {
			note := step.Note + noteOffset
			tl.add(ti, NoteOn(note, NoteVelocity), GateTicks)
			tl.add(ti, NoteOff(note, NoteVelocity), 1)
		} else {
			tl.wait(ti, GateTicks+1)
		}
	}
	return nil
}

// microsecondsPerQuarter converts beats per minute with integer division
// and keeps the 24 bits that fit the tempo meta event
func microsecondsPerQuarter(bpm int) (uint32, error) {
	if bpm == 0 {
		return 0, ErrZeroTempo
	}
	us := int32(MicrosecondsPerMinute / bpm)
	return uint32(us) & 0xFFFFFF, nil
}

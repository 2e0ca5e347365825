// Package converter turns decoded HSM modules into MIDI timelines and files
package converter

import (
	"errors"
	"fmt"
	"strings"
)

// Conversion errors
var (
	ErrStepCountExceedsCapacity = errors.New("pattern step count exceeds track capacity")
	ErrZeroTempo                = errors.New("pattern tempo is zero")
	ErrInvalidLoopCount         = errors.New("loop count must be at least 1")
	ErrEncodingFailure          = errors.New("midi encoding failed")
)

// Defaults used by the CLI and the web front end
const (
	DefaultNoteOffset = 36
	DefaultLoopCount  = 1
)

// OrderPolicy selects how the song order is resolved into patterns
type OrderPolicy string

const (
	// OrderSong follows the song order list, see SequencedPatterns
	OrderSong OrderPolicy = "song"
	// OrderStorage plays every pattern once in storage order
	OrderStorage OrderPolicy = "storage"
)

// ParseOrderPolicy parses a policy name, empty meaning OrderSong
func ParseOrderPolicy(s string) (OrderPolicy, error) {
	switch OrderPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", OrderSong:
		return OrderSong, nil
	case OrderStorage:
		return OrderStorage, nil
	default:
		return "", fmt.Errorf("unknown order policy %q (want %q or %q)", s, OrderSong, OrderStorage)
	}
}

// Options controls a conversion
type Options struct {
	NoteOffset int         // added to every step note
	LoopCount  int         // number of passes over the sequenced patterns
	Order      OrderPolicy // empty means OrderSong
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		NoteOffset: DefaultNoteOffset,
		LoopCount:  DefaultLoopCount,
		Order:      OrderSong,
	}
}

// Converter handles format conversions
type Converter struct {
	opts Options
}

// New creates a new Converter with the given options
func New(opts Options) *Converter {
	return &Converter{opts: opts}
}

package hsm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/goccy/go-json"
)

// Decoding errors
var (
	ErrMalformedDocument = errors.New("malformed document")
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// Field offsets within a cell
const (
	offSequence = 10

	offMetaTitle        = 0
	offMetaAuthor       = 1
	offMetaFilename     = 2
	offMetaMultisamples = 3
	offMetaLawbroken    = 4
	offMetaLoopCount    = 5

	offPatternBPM        = 0
	offPatternSteps      = 1
	offPatternHighlights = 2
	offPatternColor      = 3
	offTrackPan          = 4
	offTrackVolume       = 5

	offArpegSteps    = 12
	offArpegSequence = 13
	offPitchSteps    = 14
	offPitchNotes    = 15
	offSkipSteps     = 16
)

// cell is the textual content of one grid value. Exports store numbers as
// strings but plain JSON numbers are accepted too.
type cell string

func (c *cell) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = cell(s)
		return nil
	}
	if len(b) > 0 && (b[0] == '[' || b[0] == '{') {
		return errors.New("cell is not a primitive")
	}
	*c = cell(b)
	return nil
}

// grid is the x/y/offset addressed cell array
type grid [][][]cell

func (g grid) text(x, y, i int) (string, error) {
	if x < 0 || x >= len(g) {
		return "", fmt.Errorf("%w: row %d not present (have %d)", ErrDimensionMismatch, x, len(g))
	}
	if y < 0 || y >= len(g[x]) {
		return "", fmt.Errorf("%w: column %d not present in row %d (have %d)", ErrDimensionMismatch, y, x, len(g[x]))
	}
	if i < 0 || i >= len(g[x][y]) {
		return "", fmt.Errorf("%w: field %d not present at [%d][%d] (have %d)", ErrDimensionMismatch, i, x, y, len(g[x][y]))
	}
	return string(g[x][y][i]), nil
}

func (g grid) number(x, y, i int) (int, error) {
	s, err := g.text(x, y, i)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: field %d at [%d][%d] is not an integer: %q", ErrMalformedDocument, i, x, y, s)
	}
	return v, nil
}

// optional reads an integer field that older exports omit, defaulting to 0
func (g grid) optional(x, y, i int) int {
	s, err := g.text(x, y, i)
	if err != nil {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

// intReader collects the first error of a run of mandatory reads
type intReader struct {
	g   grid
	err error
}

func (r *intReader) number(x, y, i int) int {
	if r.err != nil {
		return 0
	}
	v, err := r.g.number(x, y, i)
	if err != nil {
		r.err = err
	}
	return v
}

func (r *intReader) text(x, y, i int) string {
	if r.err != nil {
		return ""
	}
	s, err := r.g.text(x, y, i)
	if err != nil {
		r.err = err
	}
	return s
}

// DecodeReader reads a whole document from r and decodes it
func DecodeReader(r io.Reader) (*Module, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read module: %w", err)
	}
	return Decode(data)
}

// Decode parses an HSM array document into a Module
func Decode(data []byte) (*Module, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	rawSize, ok := doc["size"]
	if !ok {
		return nil, fmt.Errorf("%w: missing \"size\"", ErrMalformedDocument)
	}
	rawData, ok := doc["data"]
	if !ok {
		return nil, fmt.Errorf("%w: missing \"data\"", ErrMalformedDocument)
	}

	size, err := decodeSize(rawSize)
	if err != nil {
		return nil, err
	}

	var g grid
	if err := json.Unmarshal(rawData, &g); err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrMalformedDocument, err)
	}
	if err := g.fits(size); err != nil {
		return nil, err
	}

	m := &Module{Size: size}
	r := &intReader{g: g}

	m.Metadata = Metadata{
		Title:        r.text(0, 0, offMetaTitle),
		Author:       r.text(0, 0, offMetaAuthor),
		Filename:     r.text(0, 0, offMetaFilename),
		Multisamples: r.number(0, 0, offMetaMultisamples),
		Lawbroken:    r.number(0, 0, offMetaLawbroken),
		LoopCount:    r.number(0, 0, offMetaLoopCount),
	}
	if r.err != nil {
		return nil, fmt.Errorf("metadata: %w", r.err)
	}

	m.Samples = make([]Sample, 0, max(size.Rows-1, 0))
	for x := 1; x < size.Rows; x++ {
		m.Samples = append(m.Samples, Sample{
			Filename: r.text(x, 0, 0),
			Loop:     r.number(x, 0, 1),
			Decay:    r.number(x, 0, 2),
			Sustain:  r.number(x, 0, 3),
			Attack:   r.number(x, 0, 4),
		})
		if r.err != nil {
			return nil, fmt.Errorf("sample %d: %w", x, r.err)
		}
	}

	m.Sequence = make([]int, 0, max(size.Rows, 0))
	for x := 0; x < size.Rows; x++ {
		m.Sequence = append(m.Sequence, r.number(x, 0, offSequence))
		if r.err != nil {
			return nil, fmt.Errorf("song order %d: %w", x, r.err)
		}
	}

	for y := 1; y < size.Columns; y += TrackCount {
		p, err := decodePattern(r, y, size.Rows)
		if err != nil {
			return nil, fmt.Errorf("pattern %d: %w", len(m.Patterns), err)
		}
		m.Patterns = append(m.Patterns, p)
	}

	return m, nil
}

// fits checks the declared extents against the cells actually present
func (g grid) fits(size Size) error {
	if size.Rows > len(g) {
		return fmt.Errorf("%w: size declares %d rows, data has %d", ErrDimensionMismatch, size.Rows, len(g))
	}
	for x := 0; x < size.Rows; x++ {
		if size.Columns > len(g[x]) {
			return fmt.Errorf("%w: size declares %d columns, row %d has %d", ErrDimensionMismatch, size.Columns, x, len(g[x]))
		}
	}
	return nil
}

func decodeSize(raw json.RawMessage) (Size, error) {
	var dims []cell
	if err := json.Unmarshal(raw, &dims); err != nil {
		return Size{}, fmt.Errorf("%w: size: %v", ErrMalformedDocument, err)
	}
	if len(dims) != 3 {
		return Size{}, fmt.Errorf("%w: size has %d extents, want 3", ErrMalformedDocument, len(dims))
	}
	var v [3]int
	for i, d := range dims {
		n, err := strconv.Atoi(string(d))
		if err != nil {
			return Size{}, fmt.Errorf("%w: size[%d] is not an integer: %q", ErrMalformedDocument, i, d)
		}
		v[i] = n
	}
	return Size{Rows: v[0], Columns: v[1], Fields: v[2]}, nil
}

func decodePattern(r *intReader, y, rows int) (Pattern, error) {
	p := Pattern{
		BPM:        r.number(0, y, offPatternBPM),
		Steps:      r.number(0, y, offPatternSteps),
		Highlights: r.number(0, y, offPatternHighlights),
		Color:      r.number(0, y, offPatternColor),
	}
	if r.err != nil {
		return Pattern{}, r.err
	}
	for t := 0; t < TrackCount; t++ {
		col := y + t
		track := Track{
			Pan:    r.number(0, col, offTrackPan),
			Volume: r.number(0, col, offTrackVolume),
			Steps:  make([]Step, 0, max(rows-1, 0)),
		}
		for x := 1; x < rows; x++ {
			track.Steps = append(track.Steps, decodeStep(r, x, col))
		}
		if r.err != nil {
			return Pattern{}, fmt.Errorf("track %d: %w", t, r.err)
		}
		p.Tracks[t] = track
	}
	return p, nil
}

func decodeStep(r *intReader, x, y int) Step {
	return Step{
		Sample:  r.number(x, y, 0),
		Note:    r.number(x, y, 1),
		Pan:     r.number(x, y, 2),
		Volume:  r.number(x, y, 3),
		Echo:    r.number(x, y, 4),
		EchoAmt: r.number(x, y, 5),
		Vibrato: r.number(x, y, 6),
		VibAmt:  r.number(x, y, 7),
		Tremolo: r.number(x, y, 8),
		TremAmt: r.number(x, y, 9),
		Offset:  r.number(x, y, 10),

		ArpegSteps:    r.g.optional(x, y, offArpegSteps),
		ArpegSequence: r.g.optional(x, y, offArpegSequence),
		PitchSteps:    r.g.optional(x, y, offPitchSteps),
		PitchNotes:    r.g.optional(x, y, offPitchNotes),
		SkipSteps:     r.g.optional(x, y, offSkipSteps),
	}
}

package converter

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hsm2midi/hsm2midi/pkg/hsm"
)

// Format represents a file format
type Format string

const (
	FormatHSM     Format = "hsm"
	FormatMIDI    Format = "midi"
	FormatUnknown Format = "unknown"
)

// DetectFormat detects the format of a file based on extension
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".hsm", ".json":
		return FormatHSM
	case ".mid", ".midi":
		return FormatMIDI
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	if len(data) >= 4 && string(data[:4]) == "MThd" {
		return FormatMIDI
	}

	// Module exports are JSON objects
	trimmed := bytes.TrimLeft(data, " \t\r\n\uFEFF")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatHSM
	}

	return FormatUnknown
}

// ConvertFile converts a module file to a MIDI file
func (c *Converter) ConvertFile(inputPath, outputPath string) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	inputFormat := DetectFormat(inputPath)
	if inputFormat == FormatUnknown {
		inputFormat = DetectFormatFromContent(data)
	}
	outputFormat := DetectFormat(outputPath)
	if outputFormat == FormatUnknown {
		return errors.New("cannot determine output format from filename")
	}

	if inputFormat != FormatHSM || outputFormat != FormatMIDI {
		return fmt.Errorf("unsupported conversion: %s to %s", inputFormat, outputFormat)
	}

	outputData, err := c.HSMToMIDI(data)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}

	if err := os.WriteFile(outputPath, outputData, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	return nil
}

// HSMToTimeline decodes module data and converts it to a timeline
func (c *Converter) HSMToTimeline(data []byte) (*Timeline, error) {
	module, err := hsm.Decode(data)
	if err != nil {
		return nil, err
	}
	return Convert(module, c.opts)
}

// HSMToMIDI converts module data to MIDI file bytes
func (c *Converter) HSMToMIDI(data []byte) ([]byte, error) {
	tl, err := c.HSMToTimeline(data)
	if err != nil {
		return nil, err
	}
	return NewMIDIConverter().GenerateMIDI(tl)
}

// OutputPath derives the MIDI file name for a module file name
func OutputPath(input string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	if base == "" {
		base = "output"
	}
	return base + ".mid"
}

// GetSupportedConversions returns a list of supported conversion paths
func GetSupportedConversions() []string {
	return []string{
		"hsm -> midi",
	}
}

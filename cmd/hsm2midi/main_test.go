package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, stdin []byte, args ...string) (string, error) {
	t.Helper()
	outputFile = ""
	var out bytes.Buffer
	rootCmd.SetIn(bytes.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConvertStdinToStdout(t *testing.T) {
	data, err := os.ReadFile("testdata/minimal.hsm")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	out, err := execute(t, data, "convert")
	if err != nil {
		t.Fatalf("convert error = %v", err)
	}
	if !strings.HasPrefix(out, "MThd") {
		t.Errorf("convert output is not MIDI: %q", out[:min(len(out), 16)])
	}
}

func TestConvertToFile(t *testing.T) {
	output := filepath.Join(t.TempDir(), "song.mid")

	if _, err := execute(t, nil, "convert", "testdata/minimal.hsm", "-o", output); err != nil {
		t.Fatalf("convert error = %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("MThd")) {
		t.Error("output file is not MIDI")
	}

	out, err := execute(t, nil, "inspect", output)
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	if !strings.Contains(out, "resolution: 96") {
		t.Errorf("inspect output = %s", out)
	}
}

func TestConvertToFileWithoutExtension(t *testing.T) {
	output := filepath.Join(t.TempDir(), "song")

	if _, err := execute(t, nil, "convert", "testdata/minimal.hsm", "-o", output); err != nil {
		t.Fatalf("convert error = %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("MThd")) {
		t.Error("output file is not MIDI")
	}
}

func TestConvertFileErrors(t *testing.T) {
	output := filepath.Join(t.TempDir(), "song.mid")

	if _, err := execute(t, nil, "convert", "testdata/missing.hsm", "-o", output); err == nil {
		t.Error("convert of a missing file should fail")
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Errorf("output written after failed conversion: %v", err)
	}
}

func TestConvertEmptyInput(t *testing.T) {
	if _, err := execute(t, nil, "convert"); err == nil {
		t.Error("convert with empty stdin should fail")
	}
}

func TestInspectModule(t *testing.T) {
	out, err := execute(t, nil, "inspect", "testdata/minimal.hsm")
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	if !strings.Contains(out, "title: Minimal") || !strings.Contains(out, "bpm: 120") {
		t.Errorf("inspect output = %s", out)
	}
}

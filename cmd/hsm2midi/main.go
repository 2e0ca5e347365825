// Package main is the entry point for the hsm2midi CLI
package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hsm2midi/hsm2midi/pkg/api"
	"github.com/hsm2midi/hsm2midi/pkg/config"
	"github.com/hsm2midi/hsm2midi/pkg/converter"
	"github.com/hsm2midi/hsm2midi/pkg/hsm"
	"github.com/hsm2midi/hsm2midi/pkg/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	verbose    bool
	outputFile string
	noteOffset int
	loopCount  int
	order      string
	serverPort int
)

// logger is replaced by initLogger once flags are parsed
var logger = slog.Default()

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hsm2midi",
	Short: "Convert HSM tracker modules to MIDI files",
	Long: `hsm2midi converts HSM tracker modules, exported as nested array
documents, into format 1 Standard MIDI Files with one track per module track.

Examples:
  hsm2midi convert song.hsm -o song.mid
  hsm2midi convert < song.hsm > song.mid
  hsm2midi convert song.hsm --note-offset 24 --loop-count 2
  hsm2midi inspect song.hsm
  hsm2midi tui
  hsm2midi serve --port 8080`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:      true,
	PersistentPreRunE: initLogger,
}

var convertCmd = &cobra.Command{
	Use:   "convert [input.hsm]",
	Short: "Convert a module to MIDI",
	Long: `Converts a module to MIDI. The module is read from the named file or from
standard input; the MIDI file is written to --output or standard output.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConvert,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <input>",
	Short: "Print a summary of a module or a converted MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE:  runServe,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.PersistentFlags().IntVar(&noteOffset, "note-offset", converter.DefaultNoteOffset, "Semitones added to every note")
	rootCmd.PersistentFlags().IntVar(&loopCount, "loop-count", converter.DefaultLoopCount, "Number of times the song is rendered")
	rootCmd.PersistentFlags().StringVar(&order, "order", string(converter.OrderSong), "Pattern order: song or storage")

	// convert command
	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mid file path (default: standard output)")

	// serve command
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Server port")

	// Add commands
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

// initLogger configures the shared slog logger on standard error
func initLogger(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// loadConfig reads the config file and applies explicitly set flags on top
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("note-offset") {
		cfg.Convert.NoteOffset = noteOffset
	}
	if flags.Changed("loop-count") {
		cfg.Convert.LoopCount = loopCount
	}
	if flags.Changed("order") {
		cfg.Convert.Order = order
	}
	if flags.Changed("port") {
		cfg.Server.Port = serverPort
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func conversionOptions(cmd *cobra.Command) (converter.Options, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return converter.Options{}, err
	}
	return cfg.Convert.Options()
}

func readInput(args []string, stdin io.Reader) ([]byte, string, error) {
	if len(args) == 0 {
		data, err := io.ReadAll(stdin)
		return data, "stdin", err
	}
	data, err := os.ReadFile(args[0])
	return data, args[0], err
}

func runConvert(cmd *cobra.Command, args []string) error {
	opts, err := conversionOptions(cmd)
	if err != nil {
		return err
	}

	if len(args) > 0 && converter.DetectFormat(outputFile) == converter.FormatMIDI {
		logger.Debug("converting", "input", args[0], "output", outputFile, "noteOffset", opts.NoteOffset, "loopCount", opts.LoopCount, "order", opts.Order)
		if err := converter.New(opts).ConvertFile(args[0], outputFile); err != nil {
			return err
		}
		logger.Info("converted", "input", args[0], "output", outputFile)
		return nil
	}

	data, input, err := readInput(args, cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("no module data in %s", input)
	}

	logger.Debug("converting", "input", input, "noteOffset", opts.NoteOffset, "loopCount", opts.LoopCount, "order", opts.Order)
	result, err := converter.New(opts).HSMToMIDI(data)
	if err != nil {
		return err
	}

	if outputFile == "" {
		_, err := cmd.OutOrStdout().Write(result)
		return err
	}
	if err := os.WriteFile(outputFile, result, 0644); err != nil {
		return err
	}

	logger.Info("converted", "input", input, "output", outputFile, "bytes", len(result))
	return nil
}

// inspectReport is what inspect prints for a converted MIDI file
type inspectReport struct {
	Resolution uint16   `yaml:"resolution"`
	Tracks     []int    `yaml:"eventsPerTrack"`
	Ticks      []uint64 `yaml:"lastTickPerTrack"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	format := converter.DetectFormat(args[0])
	if format == converter.FormatUnknown {
		format = converter.DetectFormatFromContent(data)
	}

	var report any
	switch format {
	case converter.FormatHSM:
		module, err := hsm.Decode(data)
		if err != nil {
			return err
		}
		report = module.Summarize()
	case converter.FormatMIDI:
		tl, err := converter.NewMIDIConverter().ParseMIDI(data)
		if err != nil {
			return err
		}
		r := inspectReport{Resolution: tl.Resolution}
		for i, track := range tl.Tracks {
			r.Tracks = append(r.Tracks, len(track))
			r.Ticks = append(r.Ticks, tl.End[i])
		}
		report = r
	default:
		return fmt.Errorf("cannot determine format of %s", args[0])
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}

func runTUI(cmd *cobra.Command, args []string) error {
	opts, err := conversionOptions(cmd)
	if err != nil {
		return err
	}
	return tui.Run(opts)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return api.StartServer(cfg, logger)
}

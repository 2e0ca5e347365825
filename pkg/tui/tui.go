// Package tui provides a terminal user interface for hsm2midi
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hsm2midi/hsm2midi/pkg/converter"
	"github.com/hsm2midi/hsm2midi/pkg/hsm"
)

// Tracker-inspired color scheme
var (
	trackerCyan  = lipgloss.Color("#00E5FF")
	trackerAmber = lipgloss.Color("#FFB000")
	silverGray   = lipgloss.Color("#C0C0C0")
	darkGray     = lipgloss.Color("#333333")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(trackerCyan).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(silverGray).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(trackerCyan).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(trackerAmber).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(trackerCyan).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(trackerCyan).
			Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateFilePicker
	StateConverting
	StateResult
)

// MenuAction identifies what a menu entry does
type MenuAction int

const (
	ActionConvert MenuAction = iota
	ActionNoteOffset
	ActionLoopCount
	ActionOrder
	ActionExit
)

// MenuItem represents a menu option
type MenuItem struct {
	Title       string
	Description string
	Action      MenuAction
}

var menuItems = []MenuItem{
	{Title: "HSM → MIDI", Description: "Convert an HSM tracker module to a MIDI file", Action: ActionConvert},
	{Title: "Note offset", Description: "Semitones added to every note (←/→ to change)", Action: ActionNoteOffset},
	{Title: "Loop count", Description: "Times the song is repeated (←/→ to change)", Action: ActionLoopCount},
	{Title: "Song order", Description: "Follow the song order or play patterns as stored (←/→ to change)", Action: ActionOrder},
	{Title: "Exit", Description: "Exit the application", Action: ActionExit},
}

// Model represents the TUI model
type Model struct {
	state        State
	menuIndex    int
	opts         converter.Options
	filePicker   filepicker.Model
	spinner      spinner.Model
	selectedFile string
	outputFile   string
	summary      *hsm.Summary
	events       int
	err          error
	width        int
	height       int
}

// conversionDoneMsg signals conversion completion
type conversionDoneMsg struct {
	outputFile string
	summary    *hsm.Summary
	events     int
	err        error
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick)
}

// New creates a new TUI model
func New(opts converter.Options) Model {
	// Initialize file picker
	fp := filepicker.New()
	fp.AllowedTypes = []string{".hsm", ".json"}
	fp.CurrentDirectory, _ = os.Getwd()

	// Initialize spinner
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(trackerCyan)

	if opts.LoopCount < 1 {
		opts.LoopCount = converter.DefaultLoopCount
	}
	if opts.Order == "" {
		opts.Order = converter.OrderSong
	}

	return Model{
		state:      StateMenu,
		menuIndex:  0,
		opts:       opts,
		filePicker: fp,
		spinner:    s,
	}
}

// Options returns the conversion options currently selected
func (m Model) Options() converter.Options {
	return m.opts
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Handle file picker state first - it needs to receive all messages
	if m.state == StateFilePicker {
		// Check for escape/quit keys first
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateMenu
				return m, nil
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}

		// Pass all other messages to the file picker
		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		// Check if file was selected
		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			m.selectedFile = path
			m.state = StateConverting
			return m, tea.Batch(m.spinner.Tick, m.performConversion())
		}

		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.Height = msg.Height - 10
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StateResult:
			return m.updateResult(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case conversionDoneMsg:
		m.state = StateResult
		m.outputFile = msg.outputFile
		m.summary = msg.summary
		m.events = msg.events
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	item := menuItems[m.menuIndex]
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < len(menuItems)-1 {
			m.menuIndex++
		}
	case "left", "h":
		m.adjust(item.Action, -1)
	case "right", "l":
		m.adjust(item.Action, 1)
	case "enter":
		switch item.Action {
		case ActionExit:
			return m, tea.Quit
		case ActionConvert:
			m.state = StateFilePicker
			return m, m.filePicker.Init()
		default:
			m.adjust(item.Action, 1)
		}
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

// adjust steps the setting behind action by delta
func (m *Model) adjust(action MenuAction, delta int) {
	switch action {
	case ActionNoteOffset:
		m.opts.NoteOffset += delta
	case ActionLoopCount:
		if m.opts.LoopCount+delta >= 1 {
			m.opts.LoopCount += delta
		}
	case ActionOrder:
		if m.opts.Order == converter.OrderStorage {
			m.opts.Order = converter.OrderSong
		} else {
			m.opts.Order = converter.OrderStorage
		}
	}
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.state = StateMenu
		m.err = nil
		m.selectedFile = ""
		m.outputFile = ""
		m.summary = nil
		m.events = 0
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) performConversion() tea.Cmd {
	path, opts := m.selectedFile, m.opts
	return func() tea.Msg {
		return convertFile(path, opts)
	}
}

func convertFile(path string, opts converter.Options) conversionDoneMsg {
	f, err := os.Open(path)
	if err != nil {
		return conversionDoneMsg{err: err}
	}
	defer f.Close()

	module, err := hsm.DecodeReader(f)
	if err != nil {
		return conversionDoneMsg{err: err}
	}
	summary := module.Summarize()

	tl, err := converter.Convert(module, opts)
	if err != nil {
		return conversionDoneMsg{summary: &summary, err: err}
	}

	outputFile := converter.OutputPath(path)
	if err := converter.NewMIDIConverter().WriteMIDIFile(tl, outputFile); err != nil {
		return conversionDoneMsg{summary: &summary, err: err}
	}

	return conversionDoneMsg{outputFile: outputFile, summary: &summary, events: tl.EventCount()}
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	// Header
	header := asciiLogo()
	s.WriteString(header)
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateConverting:
		s.WriteString(m.viewConverting())
	case StateResult:
		s.WriteString(m.viewResult())
	}

	// Footer help
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: navigate • ←/→: change • enter: select • q: quit"))

	return s.String()
}

func (m Model) menuTitle(item MenuItem) string {
	switch item.Action {
	case ActionNoteOffset:
		return fmt.Sprintf("%s: %d", item.Title, m.opts.NoteOffset)
	case ActionLoopCount:
		return fmt.Sprintf("%s: %d", item.Title, m.opts.LoopCount)
	case ActionOrder:
		return fmt.Sprintf("%s: %s", item.Title, m.opts.Order)
	default:
		return item.Title
	}
}

func (m Model) viewMenu() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" HSM2MIDI "))
	s.WriteString("\n\n")

	for i, item := range menuItems {
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render(fmt.Sprintf("▸ %s", m.menuTitle(item))))
			s.WriteString("\n")
			s.WriteString(lipgloss.NewStyle().Foreground(trackerAmber).PaddingLeft(4).Render(item.Description))
		} else {
			s.WriteString(menuStyle.Render(fmt.Sprintf("  %s", m.menuTitle(item))))
		}
		s.WriteString("\n")
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SELECT HSM MODULE "))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("esc: back to menu"))

	return s.String()
}

func (m Model) viewConverting() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" CONVERTING "))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s Converting %s...\n", m.spinner.View(), filepath.Base(m.selectedFile)))
	s.WriteString(statusStyle.Render(fmt.Sprintf("  note offset %d • %d loop(s) • %s order", m.opts.NoteOffset, m.opts.LoopCount, m.opts.Order)))

	return boxStyle.Render(s.String())
}

func (m Model) viewResult() string {
	var s strings.Builder

	if m.err != nil {
		s.WriteString(titleStyle.Render(" ERROR "))
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ Conversion failed: %s", m.err.Error())))
	} else {
		s.WriteString(titleStyle.Render(" SUCCESS "))
		s.WriteString("\n\n")
		s.WriteString(successStyle.Render("✓ Conversion complete!"))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("Input:  %s\n", filepath.Base(m.selectedFile)))
		s.WriteString(fmt.Sprintf("Output: %s\n", filepath.Base(m.outputFile)))
		s.WriteString(fmt.Sprintf("Events: %d", m.events))
	}

	if m.summary != nil {
		s.WriteString("\n")
		s.WriteString(statusStyle.Render(fmt.Sprintf("%s by %s • %d samples • %d patterns",
			m.summary.Metadata.Title, m.summary.Metadata.Author, len(m.summary.Samples), len(m.summary.Patterns))))
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Press enter to continue"))

	return boxStyle.Render(s.String())
}

func asciiLogo() string {
	logo := `
  _                ____            _     _ _
 | |__  ___ _ __ _|___ \ _ __ ___ (_) __| (_)
 | '_ \/ __| '_ ` + "`" + ` _ \ __) | '_ ` + "`" + ` _ \| |/ _` + "`" + ` | |
 | | | \__ \ | | | | / __/| | | | | | | (_| | |
 |_| |_|___/_| |_| |_|_____|_| |_| |_|_|\__,_|_|
`
	return lipgloss.NewStyle().Foreground(trackerCyan).Render(logo)
}

// Run starts the TUI application
func Run(opts converter.Options) error {
	p := tea.NewProgram(New(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

package tui

import (
	"context"
	"io"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/aymanbagabas/go-osc52/v2"
	tea "github.com/charmbracelet/bubbletea"

	"otpdeck/internal/agent"
	"otpdeck/internal/logging"
)

const (
	down = "down"

	opTimeout      = 5 * time.Second
	copiedDuration = 1500 * time.Millisecond
)

// Model is the code list screen
type Model struct {
	ctl       Controller
	logger    *logging.Logger
	clipboard io.Writer

	frame    agent.Frame
	hasFrame bool
	quitting bool

	mode         Mode
	selection    int
	input        string
	pendingLabel string

	copiedIndex   int
	statusMessage string
	lastError     string
}

// NewModel creates the code list bound to ctl. OSC 52 clipboard sequences
// are written to stderr so they bypass the renderer.
func NewModel(ctl Controller, logger *logging.Logger) Model {
	return Model{
		ctl:         ctl,
		logger:      logger,
		clipboard:   os.Stderr,
		mode:        ModeList,
		copiedIndex: -1,
	}
}

// WithClipboard sets where OSC 52 sequences are written
func (m Model) WithClipboard(w io.Writer) Model {
	m.clipboard = w
	return m
}

// Init starts listening for frames
func (m Model) Init() tea.Cmd {
	return waitForFrame(m.ctl.Frames())
}

func waitForFrame(frames <-chan agent.Frame) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-frames
		if !ok {
			return framesClosedMsg{}
		}
		return frameMsg(f)
	}
}

// Update handles frames, operation results and keys
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m = m.applyFrame(agent.Frame(msg))
		return m, waitForFrame(m.ctl.Frames())

	case framesClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case opResultMsg:
		return m.applyOpResult(msg), nil

	case panelMsg:
		return m.applyPanel(msg), nil

	case copyResultMsg:
		return m.applyCopyResult(msg)

	case clearCopiedMsg:
		if m.copiedIndex == msg.index {
			m.copiedIndex = -1
			m.statusMessage = ""
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) applyFrame(f agent.Frame) Model {
	m.frame = f
	m.hasFrame = true
	m.selection = clamp(m.selection, len(f.Entries))
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.mode {
	case ModeAddLabel, ModeAddSecret, ModeRename:
		return m.handleInputKeys(msg)
	case ModeConfirmDelete:
		return m.handleConfirmDeleteKeys(key)
	}

	if next, handled, cmd := m.handleQuitKeys(key); handled {
		return next, cmd
	}
	if next, handled := m.handleNavigationKeys(key); handled {
		return next, nil
	}
	if next, handled, cmd := m.handleEditKeys(key); handled {
		return next, cmd
	}
	return m, nil
}

func (m Model) handleQuitKeys(key string) (tea.Model, bool, tea.Cmd) {
	if key == "q" {
		m.quitting = true
		return m, true, tea.Quit
	}
	return m, false, nil
}

func (m Model) handleNavigationKeys(key string) (tea.Model, bool) {
	n := len(m.frame.Entries)
	if n == 0 {
		return m, false
	}

	switch key {
	case "up", "k":
		if m.selection > 0 {
			m.selection--
		} else {
			m.selection = n - 1
		}
		return m, true
	case down, "j":
		if m.selection < n-1 {
			m.selection++
		} else {
			m.selection = 0
		}
		return m, true
	}
	return m, false
}

func (m Model) handleEditKeys(key string) (tea.Model, bool, tea.Cmd) {
	n := len(m.frame.Entries)

	switch key {
	case "a":
		m.lastError = ""
		return m, true, m.togglePanelCmd()
	case "i":
		if m.frame.PanelCollapsed {
			return m, false, nil
		}
		return m.startAdd(), true, nil
	}

	if n == 0 {
		return m, false, nil
	}

	switch key {
	case "r":
		m.mode = ModeRename
		m.input = m.frame.Entries[m.selection].Label
		m.lastError = ""
		return m, true, nil
	case "d":
		m.mode = ModeConfirmDelete
		m.lastError = ""
		return m, true, nil
	case "K":
		if m.selection == 0 {
			return m, true, nil
		}
		return m, true, m.moveCmd(m.selection, m.selection-1)
	case "J":
		if m.selection >= n-1 {
			return m, true, nil
		}
		return m, true, m.moveCmd(m.selection, m.selection+1)
	case "enter", "c":
		return m, true, m.copyCmd(m.selection)
	}
	return m, false, nil
}

func (m Model) startAdd() Model {
	m.mode = ModeAddLabel
	m.input = ""
	m.pendingLabel = ""
	m.lastError = ""
	return m
}

func (m Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = ModeList
		m.input = ""
		m.pendingLabel = ""
		return m, nil
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
		return m, nil
	case tea.KeySpace:
		m.input += " "
		return m, nil
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			if unicode.IsPrint(r) {
				m.input += string(r)
			}
		}
		return m, nil
	case tea.KeyEnter:
		return m.submitInput()
	}
	return m, nil
}

func (m Model) submitInput() (tea.Model, tea.Cmd) {
	switch m.mode {
	case ModeAddLabel:
		m.pendingLabel = m.input
		m.input = ""
		m.mode = ModeAddSecret
		return m, nil
	case ModeAddSecret:
		label, secret := m.pendingLabel, m.input
		m.mode = ModeList
		m.input = ""
		m.pendingLabel = ""
		return m, m.addCmd(label, secret)
	case ModeRename:
		label := m.input
		m.mode = ModeList
		m.input = ""
		return m, m.renameCmd(m.selection, label)
	}
	return m, nil
}

func (m Model) handleConfirmDeleteKeys(key string) (tea.Model, tea.Cmd) {
	m.mode = ModeList
	if key == "y" || key == "Y" {
		return m, m.deleteCmd(m.selection)
	}
	m.statusMessage = "Delete cancelled"
	return m, nil
}

func (m Model) applyOpResult(msg opResultMsg) Model {
	if msg.err != nil {
		m.lastError = msg.op + " failed: " + msg.err.Error()
		m.logger.Warn("tui.op.failed", "Operation failed", map[string]interface{}{
			"op":    msg.op,
			"error": msg.err.Error(),
		})
		return m
	}
	m.lastError = ""
	if msg.selectTo >= 0 {
		m.selection = msg.selectTo
	}
	return m
}

func (m Model) applyPanel(msg panelMsg) Model {
	if msg.err != nil {
		m.lastError = "toggle panel failed: " + msg.err.Error()
		return m
	}
	m.frame.PanelCollapsed = msg.collapsed
	if msg.collapsed {
		if m.mode == ModeAddLabel || m.mode == ModeAddSecret {
			m.mode = ModeList
			m.input = ""
		}
		return m
	}
	return m.startAdd()
}

func (m Model) applyCopyResult(msg copyResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.lastError = "copy failed: " + errorMarker(msg.err)
		return m, nil
	}
	m.copiedIndex = msg.index
	m.statusMessage = "Copied!"
	return m, tea.Tick(copiedDuration, func(time.Time) tea.Msg {
		return clearCopiedMsg{index: msg.index}
	})
}

func (m Model) addCmd(label, secret string) tea.Cmd {
	ctl := m.ctl
	last := len(m.frame.Entries)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		ok, err := ctl.Add(ctx, label, secret)
		if err == nil && !ok {
			return opResultMsg{op: "add", selectTo: -1}
		}
		return opResultMsg{op: "add", err: err, selectTo: last}
	}
}

func (m Model) renameCmd(index int, label string) tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		_, err := ctl.Rename(ctx, index, label)
		return opResultMsg{op: "rename", err: err, selectTo: -1}
	}
}

func (m Model) deleteCmd(index int) tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return opResultMsg{op: "delete", err: ctl.Delete(ctx, index), selectTo: -1}
	}
}

func (m Model) moveCmd(from, to int) tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return opResultMsg{op: "move", err: ctl.Move(ctx, from, to), selectTo: to}
	}
}

func (m Model) togglePanelCmd() tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		collapsed, err := ctl.TogglePanel(ctx)
		return panelMsg{collapsed: collapsed, err: err}
	}
}

func (m Model) copyCmd(index int) tea.Cmd {
	ctl, w := m.ctl, m.clipboard
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		code, err := ctl.Code(ctx, index)
		if err != nil {
			return copyResultMsg{index: index, err: err}
		}
		seq := osc52.New(code)
		if os.Getenv("TMUX") != "" {
			seq = seq.Tmux()
		} else if strings.HasPrefix(os.Getenv("TERM"), "screen") {
			seq = seq.Screen()
		}
		if _, err := seq.WriteTo(w); err != nil {
			return copyResultMsg{index: index, err: err}
		}
		return copyResultMsg{index: index}
	}
}

func clamp(selection, n int) int {
	if n == 0 || selection < 0 {
		return 0
	}
	if selection >= n {
		return n - 1
	}
	return selection
}

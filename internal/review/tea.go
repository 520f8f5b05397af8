package review

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type keyMap struct {
	Accept key.Binding
	Next   key.Binding
	Replay key.Binding
	Skip   key.Binding
	Quit   key.Binding
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Accept, k.Next, k.Replay, k.Skip, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultKeys = keyMap{
	Accept: key.NewBinding(
		key.WithKeys("a", "A", "enter"),
		key.WithHelp("a", "accept"),
	),
	Next: key.NewBinding(
		key.WithKeys("n", "N", "right", "tab"),
		key.WithHelp("n", "next voice"),
	),
	Replay: key.NewBinding(
		key.WithKeys("r", "R", " "),
		key.WithHelp("r", "replay"),
	),
	Skip: key.NewBinding(
		key.WithKeys("s", "S"),
		key.WithHelp("s", "skip"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "Q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

var (
	counterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	wordStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	voiceStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	wrapStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	chosenStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
)

// promptModel asks for a single decision and quits once it has one.
type promptModel struct {
	prompt   Prompt
	keys     keyMap
	help     help.Model
	decision Decision
}

func newPromptModel(p Prompt) promptModel {
	return promptModel{prompt: p, keys: defaultKeys, help: help.New()}
}

func (m promptModel) Init() tea.Cmd {
	return nil
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Accept):
			m.decision = Accept
		case key.Matches(msg, m.keys.Next):
			m.decision = Next
		case key.Matches(msg, m.keys.Replay):
			m.decision = Replay
		case key.Matches(msg, m.keys.Skip):
			m.decision = Skip
		case key.Matches(msg, m.keys.Quit):
			m.decision = Quit
		default:
			return m, nil
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m promptModel) View() string {
	p := m.prompt

	var b strings.Builder
	if p.Total > 0 {
		b.WriteString(counterStyle.Render(fmt.Sprintf("[%d/%d] ", p.Position, p.Total)))
	}
	b.WriteString(wordStyle.Render(p.Item.Text))
	b.WriteString(" ")
	b.WriteString(voiceStyle.Render(fmt.Sprintf("%s (%d/%d)", p.Voice, p.VoiceIndex, p.VoiceCount)))

	if m.decision != DecisionNone {
		b.WriteString(" " + chosenStyle.Render("→ "+m.decision.String()) + "\n")
		return b.String()
	}

	if p.Exhausted {
		b.WriteString(" " + wrapStyle.Render("all voices heard, next wraps around"))
	}
	b.WriteString("\n")
	if p.Notice != "" {
		b.WriteString(noticeStyle.Render("! "+p.Notice) + "\n")
	}
	b.WriteString(m.help.View(m.keys) + "\n")
	return b.String()
}

// TeaSource asks for each decision with a single keypress.
type TeaSource struct {
	in  io.Reader
	out io.Writer
}

// NewTeaSource reads keys from in, usually a terminal, and draws on out.
func NewTeaSource(in io.Reader, out io.Writer) *TeaSource {
	return &TeaSource{in: in, out: out}
}

// Decide implements DecisionSource.
func (s *TeaSource) Decide(ctx context.Context, p Prompt) (Decision, error) {
	program := tea.NewProgram(newPromptModel(p),
		tea.WithContext(ctx),
		tea.WithInput(s.in),
		tea.WithOutput(s.out),
	)

	final, err := program.Run()
	if err != nil {
		if ctx.Err() != nil {
			return DecisionNone, ctx.Err()
		}
		if errors.Is(err, tea.ErrProgramKilled) {
			return Quit, nil
		}
		return DecisionNone, fmt.Errorf("prompt failed: %w", err)
	}

	m, ok := final.(promptModel)
	if !ok || m.decision == DecisionNone {
		return Quit, nil
	}
	return m.decision, nil
}

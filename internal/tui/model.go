package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docrag/internal/usecase"
)

// Asker is the TUI-facing subset of the chat use case.
type Asker interface {
	Ask(ctx context.Context, query string) (*usecase.Answer, error)
}

type turn struct {
	question string
	answer   string
	sources  []string
	err      error
}

// Model is the Bubble Tea model for the chat session.
type Model struct {
	chat     Asker
	input    textinput.Model
	viewport viewport.Model
	spin     spinner.Model
	turns    []turn
	folder   string
	waiting  bool
	ready    bool
}

// New creates a chat session over the given folder.
func New(chat Asker, folder string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your documents and press Enter"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		chat:     chat,
		input:    ti,
		viewport: viewport.New(0, 0),
		spin:     sp,
		folder:   folder,
	}
}

// Run starts the interactive session and blocks until the user quits.
func Run(chat Asker, folder string) error {
	_, err := tea.NewProgram(New(chat, folder), tea.WithAltScreen()).Run()
	return err
}

type answerMsg struct {
	question string
	answer   *usecase.Answer
	err      error
}

func ask(chat Asker, question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := chat.Ask(context.Background(), question)
		return answerMsg{question: question, answer: answer, err: err}
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, frameH := transcriptStyle.GetFrameSize()
		reserved := 4 + frameH // header, input, status, spacer
		m.viewport.Width = msg.Width
		m.viewport.Height = maxInt(3, msg.Height-reserved)
		m.viewport.SetContent(m.renderTranscript())
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.String() == "esc" {
			return m, tea.Quit
		}
		if msg.String() == "enter" && !m.waiting {
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			m.input.Reset()
			m.waiting = true
			return m, tea.Batch(ask(m.chat, q), m.spin.Tick)
		}

	case answerMsg:
		m.waiting = false
		t := turn{question: msg.question, err: msg.err}
		if msg.answer != nil {
			t.answer = msg.answer.Text
			t.sources = msg.answer.Sources
		}
		m.turns = append(m.turns, t)
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		if m.waiting {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("docrag") + " " + folderStyle.Render(m.folder)
	transcript := transcriptStyle.Width(m.viewport.Width - 2).Render(m.viewport.View())

	status := "Enter to ask, Esc to quit."
	if m.waiting {
		status = m.spin.View() + " Thinking..."
	}

	return header + "\n" + transcript + "\n" + m.input.View() + "\n" + statusStyle.Render(status)
}

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return "Ask a question about the indexed documents."
	}
	var sb strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(questionStyle.Render("You: "+t.question) + "\n")
		if t.err != nil {
			sb.WriteString(errorStyle.Render("Error: " + t.err.Error()))
			continue
		}
		sb.WriteString(t.answer)
		if len(t.sources) > 0 {
			sb.WriteString("\n" + sourceStyle.Render(fmt.Sprintf("Sources: %s", strings.Join(t.sources, ", "))))
		}
	}
	return sb.String()
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	folderStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	sourceStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

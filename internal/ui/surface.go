// Package ui renders the interception screen in the terminal.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5F87"))

	appStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FF5F87")).
			Padding(1, 3)
)

// Model is the bubbletea model of one interception.
type Model struct {
	appID   string
	outcome domain.Outcome
	width   int
	height  int
}

// NewModel creates the model for appID. Until a key is pressed the outcome
// is a teardown.
func NewModel(appID string) Model {
	return Model{appID: appID, outcome: domain.OutcomeTeardown}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "b", "enter":
			m.outcome = domain.OutcomeGoBack
			return m, tea.Quit
		case "e":
			m.outcome = domain.OutcomeEndFocus
			return m, tea.Quit
		case "q", "esc", "ctrl+c":
			m.outcome = domain.OutcomeTeardown
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	body := lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render("Focus mode is on"),
		"",
		appStyle.Render(m.appID),
		"",
		"This app is blocked until focus ends.",
		"",
		helpStyle.Render("[b] go back   [e] end focus"),
	)
	box := boxStyle.Render(body)
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// Outcome is the choice the user made, or a teardown.
func (m Model) Outcome() domain.Outcome {
	return m.outcome
}

// Surface implements domain.InterceptionSurface as a full-screen terminal UI.
type Surface struct {
	in        io.Reader
	out       io.Writer
	altScreen bool
}

// NewSurface creates a surface on the process terminal.
func NewSurface() *Surface {
	return &Surface{in: os.Stdin, out: os.Stdout, altScreen: true}
}

// NewSurfaceWithIO creates a surface on the given streams (for testing).
func NewSurfaceWithIO(in io.Reader, out io.Writer) *Surface {
	return &Surface{in: in, out: out}
}

// Present runs the interception screen until a key is chosen or ctx ends.
func (s *Surface) Present(ctx context.Context, appID string) (domain.Outcome, error) {
	opts := []tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithInput(s.in),
		tea.WithOutput(s.out),
	}
	if s.altScreen {
		opts = append(opts, tea.WithAltScreen())
	}

	final, err := tea.NewProgram(NewModel(appID), opts...).Run()
	if err != nil {
		return domain.OutcomeTeardown, fmt.Errorf("interception screen closed: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return domain.OutcomeTeardown, fmt.Errorf("unexpected model %T", final)
	}
	return m.Outcome(), nil
}

// Ensure Surface implements domain.InterceptionSurface.
var _ domain.InterceptionSurface = (*Surface)(nil)

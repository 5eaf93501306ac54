package ui

import (
	"bytes"
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_Keys(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
		want domain.Outcome
	}{
		{"b goes back", runes("b"), domain.OutcomeGoBack},
		{"enter goes back", tea.KeyMsg{Type: tea.KeyEnter}, domain.OutcomeGoBack},
		{"e ends focus", runes("e"), domain.OutcomeEndFocus},
		{"q tears down", runes("q"), domain.OutcomeTeardown},
		{"ctrl+c tears down", tea.KeyMsg{Type: tea.KeyCtrlC}, domain.OutcomeTeardown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, cmd := NewModel("com.game.x").Update(tt.key)
			require.NotNil(t, cmd)
			assert.IsType(t, tea.QuitMsg{}, cmd())
			assert.Equal(t, tt.want, next.(Model).Outcome())
		})
	}
}

func TestModel_IgnoresOtherKeys(t *testing.T) {
	next, cmd := NewModel("com.game.x").Update(runes("x"))
	assert.Nil(t, cmd)
	assert.Equal(t, domain.OutcomeTeardown, next.(Model).Outcome())
}

func TestModel_ViewShowsApp(t *testing.T) {
	m := NewModel("com.game.x")
	assert.Contains(t, m.View(), "com.game.x")

	sized, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.Contains(t, sized.View(), "go back")
}

func TestSurface_Present(t *testing.T) {
	var out bytes.Buffer
	s := NewSurfaceWithIO(strings.NewReader("e"), &out)

	outcome, err := s.Present(context.Background(), "com.game.x")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeEndFocus, outcome)
}

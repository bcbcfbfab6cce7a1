package terminal

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// PickerItem is one selectable entry in the interactive picker.
type PickerItem struct {
	Name        string
	Description string
}

var (
	pickerTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	pickerCursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	pickerDimStyle      = lipgloss.NewStyle().Faint(true)
	pickerSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// PickerModel is the bubbletea model for the interactive preset picker.
type PickerModel struct {
	title    string
	items    []PickerItem
	cursor   int
	chosen   bool
	quitted  bool
}

// NewPicker creates a picker over the given items.
func NewPicker(title string, items []PickerItem) PickerModel {
	return PickerModel{title: title, items: items}
}

// Init implements tea.Model.
func (m PickerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "enter":
		if len(m.items) > 0 {
			m.chosen = true
		}
		return m, tea.Quit
	case "q", "esc", "ctrl+c":
		m.quitted = true
		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model.
func (m PickerModel) View() string {
	if m.chosen || m.quitted {
		return ""
	}

	s := pickerTitleStyle.Render(m.title) + "\n\n"
	for i, item := range m.items {
		cursor := "  "
		line := item.Name
		if i == m.cursor {
			cursor = pickerCursorStyle.Render("> ")
			line = pickerSelectedStyle.Render(line)
		}
		s += fmt.Sprintf("%s%s", cursor, line)
		if item.Description != "" {
			s += pickerDimStyle.Render("  " + item.Description)
		}
		s += "\n"
	}
	s += "\n" + pickerDimStyle.Render("up/down to move, enter to select, q to quit") + "\n"
	return s
}

// Chosen returns the selected item and true if the user confirmed a choice.
func (m PickerModel) Chosen() (PickerItem, bool) {
	if !m.chosen || m.cursor >= len(m.items) {
		return PickerItem{}, false
	}
	return m.items[m.cursor], true
}

// PickOne runs the picker on the terminal and returns the chosen item.
// Returns ok=false if the user quit without choosing.
func PickOne(title string, items []PickerItem) (PickerItem, bool, error) {
	p := tea.NewProgram(NewPicker(title, items), tea.WithOutput(os.Stderr))
	final, err := p.Run()
	if err != nil {
		return PickerItem{}, false, fmt.Errorf("picker failed: %w", err)
	}
	model, ok := final.(PickerModel)
	if !ok {
		return PickerItem{}, false, fmt.Errorf("unexpected picker model type %T", final)
	}
	item, chosen := model.Chosen()
	return item, chosen, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
)

// capture settings the user can adjust before a run
type CaptureSettings struct {
	OutputDir     string
	MaxPages      int
	Delay         float64 // seconds after each page turn
	StopUnchanged int
	Headless      bool
	BuildPdf      bool
}

var defaultSettings = CaptureSettings{
	OutputDir:     "output",
	MaxPages:      300,
	Delay:         1.0,
	StopUnchanged: 3,
}

// model state for the terminal UI
type uiModel struct {
	choices        []string
	cursor         int
	selected       bool
	url            string
	settings       CaptureSettings
	settingsMode   bool
	settingCursor  int
	settingOptions []string
	editingValue   bool
	editValue      string
}

func initialModel() uiModel {
	return uiModel{
		choices: []string{
			"Start Capture",
			"Settings",
			"Quit",
		},
		settings: defaultSettings,
		settingOptions: []string{
			"Output Folder",
			"Max Pages",
			"Delay (seconds)",
			"Stop After Unchanged",
			"Headless Browser",
			"Build PDF",
			"Back to Main Menu",
		},
	}
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			PaddingLeft(2).
			PaddingRight(2).
			MarginBottom(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A49FA5"))

	settingLabelStyle = lipgloss.NewStyle().
				Width(22).
				Foreground(lipgloss.Color("#7D56F4"))

	settingValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205"))
)

func (m uiModel) Init() tea.Cmd {
	return nil
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q":
		if !m.selected && !m.settingsMode {
			return m, tea.Quit
		}
	case "up", "k":
		if !m.selected && !m.settingsMode && m.cursor > 0 {
			m.cursor--
			return m, nil
		}
		if m.settingsMode && !m.editingValue && m.settingCursor > 0 {
			m.settingCursor--
			return m, nil
		}
	case "down", "j":
		if !m.selected && !m.settingsMode && m.cursor < len(m.choices)-1 {
			m.cursor++
			return m, nil
		}
		if m.settingsMode && !m.editingValue && m.settingCursor < len(m.settingOptions)-1 {
			m.settingCursor++
			return m, nil
		}
	case "enter":
		return m.handleEnter()
	case "esc":
		if m.settingsMode && m.editingValue {
			m.editingValue = false
		} else if m.settingsMode {
			m.settingsMode = false
		} else if m.selected {
			m.selected = false
			m.url = ""
		}
		return m, nil
	case "backspace":
		if m.selected && len(m.url) > 0 {
			m.url = m.url[:len(m.url)-1]
		} else if m.settingsMode && m.editingValue && len(m.editValue) > 0 {
			m.editValue = m.editValue[:len(m.editValue)-1]
		}
		return m, nil
	}

	// any other rune goes into whichever field is being typed
	if keyMsg.Type == tea.KeyRunes {
		if m.selected {
			m.url += string(keyMsg.Runes)
		} else if m.settingsMode && m.editingValue {
			m.editValue += string(keyMsg.Runes)
		}
	}

	return m, nil
}

func (m uiModel) handleEnter() (tea.Model, tea.Cmd) {
	if m.settingsMode {
		if m.editingValue {
			m.applyEdit()
			m.editingValue = false
			return m, nil
		}
		switch m.settingCursor {
		case 0: // output folder
			m.editValue = m.settings.OutputDir
			m.editingValue = true
		case 1: // max pages
			m.editValue = strconv.Itoa(m.settings.MaxPages)
			m.editingValue = true
		case 2: // delay
			m.editValue = strconv.FormatFloat(m.settings.Delay, 'f', -1, 64)
			m.editingValue = true
		case 3: // stop unchanged
			m.editValue = strconv.Itoa(m.settings.StopUnchanged)
			m.editingValue = true
		case 4: // headless (toggle)
			m.settings.Headless = !m.settings.Headless
		case 5: // build pdf (toggle)
			m.settings.BuildPdf = !m.settings.BuildPdf
		default: // back
			m.settingsMode = false
		}
		return m, nil
	}

	if !m.selected {
		switch m.cursor {
		case 0: // start capture
			m.selected = true
		case 1: // settings
			m.settingsMode = true
			m.settingCursor = 0
		case 2: // quit
			return m, tea.Quit
		}
		return m, nil
	}

	// URL prompt: enter with a non-empty URL launches the capture
	if m.url != "" {
		return m, tea.Quit
	}
	return m, nil
}

// applyEdit writes the edited value back into the settings, ignoring input
// that does not parse.
func (m *uiModel) applyEdit() {
	switch m.settingCursor {
	case 0:
		if m.editValue != "" {
			m.settings.OutputDir = m.editValue
		}
	case 1:
		if val, err := strconv.Atoi(m.editValue); err == nil && val > 0 {
			m.settings.MaxPages = val
		}
	case 2:
		if val, err := strconv.ParseFloat(m.editValue, 64); err == nil && val >= 0 {
			m.settings.Delay = val
		}
	case 3:
		if val, err := strconv.Atoi(m.editValue); err == nil && val > 0 {
			m.settings.StopUnchanged = val
		}
	}
}

func (m uiModel) View() string {
	if m.settingsMode {
		return m.settingsView()
	}

	if !m.selected {
		s := titleStyle.Render("Kindle Page Capture") + "\n\n"
		s += "Select an option:\n\n"

		for i, choice := range m.choices {
			cursor := " "
			if m.cursor == i {
				cursor = ">"
				choice = selectedStyle.Render(choice)
			}
			s += fmt.Sprintf("%s %s\n", cursor, choice)
		}

		s += "\n" + infoStyle.Render("Press q to quit, arrow keys to navigate, enter to select")
		return s
	}

	s := titleStyle.Render("Kindle Page Capture - New Run") + "\n\n"
	s += "Enter the web reader URL of the book to capture:\n"
	s += fmt.Sprintf("> %s\n", m.url)
	s += "\nPress Enter to start, Esc to go back\n"
	return s
}

func (m uiModel) settingsView() string {
	s := titleStyle.Render("Kindle Page Capture - Settings") + "\n\n"

	for i, option := range m.settingOptions {
		cursor := " "
		if m.settingCursor == i {
			cursor = ">"
			option = selectedStyle.Render(option)
		}

		if i == len(m.settingOptions)-1 { // the "Back" option
			s += fmt.Sprintf("%s %s\n", cursor, option)
			continue
		}

		s += fmt.Sprintf("%s %s", cursor, settingLabelStyle.Render(option))
		if m.editingValue && m.settingCursor == i {
			s += fmt.Sprintf(": %s_\n", m.editValue)
			continue
		}

		var value string
		switch i {
		case 0:
			value = m.settings.OutputDir
		case 1:
			value = strconv.Itoa(m.settings.MaxPages)
		case 2:
			value = strconv.FormatFloat(m.settings.Delay, 'f', -1, 64)
		case 3:
			value = strconv.Itoa(m.settings.StopUnchanged)
		case 4:
			value = yesNo(m.settings.Headless)
		case 5:
			value = yesNo(m.settings.BuildPdf)
		}
		s += fmt.Sprintf(": %s\n", settingValueStyle.Render(value))
	}

	s += "\n" + infoStyle.Render("Press Enter to edit or toggle a setting, Esc to go back")
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// RunTerminalUI collects a URL and settings interactively, then runs the
// capture with them.
func RunTerminalUI() {
	p := tea.NewProgram(initialModel())
	m, err := p.Run()
	if err != nil {
		fmt.Printf("Error running UI: %v\n", err)
		os.Exit(1)
	}

	finalModel := m.(uiModel)
	if !finalModel.selected || finalModel.url == "" {
		return
	}

	args := Args{
		Url:           finalModel.url,
		OutputDir:     finalModel.settings.OutputDir,
		Headless:      finalModel.settings.Headless,
		MaxPages:      finalModel.settings.MaxPages,
		Delay:         finalModel.settings.Delay,
		StopUnchanged: finalModel.settings.StopUnchanged,
		Pdf:           finalModel.settings.BuildPdf,
	}

	success := color.New(color.FgGreen).SprintFunc()
	info := color.New(color.FgCyan).SprintFunc()

	fmt.Printf("%s Capturing %s\n", info("INFO:"), args.Url)
	fmt.Printf("%s Output folder: %s\n", info("INFO:"), args.OutputDir)

	start := time.Now()
	if err := runCapture(context.Background(), &args); err != nil {
		color.Red("ERROR: %v", err)
		os.Exit(1)
	}

	fmt.Printf("%s Capture completed in %s\n", success("SUCCESS:"), time.Since(start).Round(time.Second))
}

package chat

import "github.com/charmbracelet/lipgloss"

// theme groups reusable styles for chat UI regions.
type theme struct {
	header     lipgloss.Style
	headerMeta lipgloss.Style
	divider    lipgloss.Style
	bootLine   lipgloss.Style
	bootDone   lipgloss.Style
	viewport   lipgloss.Style

	userBox        lipgloss.Style
	userTitle      lipgloss.Style
	assistantBox   lipgloss.Style
	assistantTitle lipgloss.Style
	toolBox        lipgloss.Style
	toolTitle      lipgloss.Style
	blockedBox     lipgloss.Style
	blockedTitle   lipgloss.Style
	errorBox       lipgloss.Style
	errorTitle     lipgloss.Style
	notice         lipgloss.Style

	status     lipgloss.Style
	statusBusy lipgloss.Style
	statusErr  lipgloss.Style
	hint       lipgloss.Style
	inputLabel lipgloss.Style
	input      lipgloss.Style
}

// card builds a bordered message box and its title tab in one accent color.
func card(accent lipgloss.Color, border lipgloss.Border, background lipgloss.Color) (box lipgloss.Style, title lipgloss.Style) {
	box = lipgloss.NewStyle().
		Border(border).
		BorderForeground(accent).
		Background(background).
		Padding(0, 1)
	title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("16")).
		Background(accent).
		Padding(0, 1)
	return box, title
}

// defaultTheme is the teal and violet palette of the Zeta terminal.
func defaultTheme() theme {
	userBox, userTitle := card(lipgloss.Color("141"), lipgloss.RoundedBorder(), lipgloss.Color("235"))
	assistantBox, assistantTitle := card(lipgloss.Color("37"), lipgloss.RoundedBorder(), lipgloss.Color("234"))
	toolBox, toolTitle := card(lipgloss.Color("109"), lipgloss.NormalBorder(), lipgloss.Color("236"))
	blockedBox, blockedTitle := card(lipgloss.Color("214"), lipgloss.NormalBorder(), lipgloss.Color("236"))
	errorBox, errorTitle := card(lipgloss.Color("203"), lipgloss.DoubleBorder(), lipgloss.Color("52"))

	return theme{
		header: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("30")),
		headerMeta: lipgloss.NewStyle().Foreground(lipgloss.Color("152")),
		divider:    lipgloss.NewStyle().Foreground(lipgloss.Color("30")),
		bootLine:   lipgloss.NewStyle().Foreground(lipgloss.Color("109")),
		bootDone:   lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Bold(true),
		viewport: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("30")).
			Background(lipgloss.Color("233")).
			Padding(0, 1),

		userBox:        userBox,
		userTitle:      userTitle,
		assistantBox:   assistantBox,
		assistantTitle: assistantTitle,
		toolBox:        toolBox.Foreground(lipgloss.Color("252")),
		toolTitle:      toolTitle,
		blockedBox:     blockedBox.Foreground(lipgloss.Color("222")),
		blockedTitle:   blockedTitle,
		errorBox:       errorBox.Foreground(lipgloss.Color("203")),
		errorTitle:     errorTitle.Foreground(lipgloss.Color("231")),
		notice:         lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("108")),

		status:     lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Bold(true),
		statusBusy: lipgloss.NewStyle().Foreground(lipgloss.Color("80")).Bold(true),
		statusErr:  lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
		hint:       lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		inputLabel: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("141")),
		input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("37")).
			Background(lipgloss.Color("236")).
			Padding(0, 1),
	}
}

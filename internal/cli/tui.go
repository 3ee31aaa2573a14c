package cli

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// PrinterListModel - Interactive printer selection
// =============================================================================

// PrinterListModel is the bubbletea model for picking one of the printers a
// subnet scan found.
type PrinterListModel struct {
	Hosts []netip.Addr
	Port  int
	// Known maps a host to its configured printer name, if any.
	Known map[string]string

	Cursor   int
	Selected *netip.Addr
	Height   int
	Offset   int
}

// NewPrinterListModel creates a new printer list model.
func NewPrinterListModel(hosts []netip.Addr, port int, known map[string]string) PrinterListModel {
	return PrinterListModel{
		Hosts:  hosts,
		Port:   port,
		Known:  known,
		Height: 15,
	}
}

func (m PrinterListModel) Init() tea.Cmd {
	return nil
}

func (m PrinterListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Hosts)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			if len(m.Hosts) == 0 {
				return m, tea.Quit
			}
			addr := m.Hosts[m.Cursor]
			m.Selected = &addr
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m PrinterListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Printer"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Hosts))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		host := m.Hosts[i].String()
		rows = append(rows, []string{cursor, host, strconv.Itoa(m.Port), orDash(m.Known[host])})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Host", "Port", "Configured as").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			idx := m.Offset + row
			if idx >= len(m.Hosts) {
				return lipgloss.NewStyle()
			}
			if idx == m.Cursor {
				return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
			}
			if col == 3 {
				return lipgloss.NewStyle().Foreground(colorDim)
			}
			return lipgloss.NewStyle().Foreground(colorWhite)
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Hosts))))

	return b.String()
}

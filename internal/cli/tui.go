package cli

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/mapexport/pkg/export"
	"github.com/matzehuels/mapexport/pkg/render"
	"github.com/matzehuels/mapexport/pkg/units"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// Rows of the export picker.
const (
	fieldPageSize = iota
	fieldOrientation
	fieldFormat
	fieldDPI
	fieldGenerate
)

// pickerField is one selectable setting.
type pickerField struct {
	Label   string
	Options []string
	Index   int
}

func (f pickerField) value() string { return f.Options[f.Index] }

// =============================================================================
// ExportPickerModel - Interactive export settings
// =============================================================================

// ExportPickerModel lets the user choose paper size, orientation, format and
// resolution before generating the export.
type ExportPickerModel struct {
	Fields    []pickerField
	Cursor    int
	Unit      units.Unit
	Confirmed bool
}

// NewExportPickerModel preselects the values of s. A page size that is not
// a preset is offered as an extra "WxH" entry.
func NewExportPickerModel(s export.Settings) ExportPickerModel {
	var sizes []string
	sizeIdx := -1
	for i, p := range units.PageSizes() {
		sizes = append(sizes, p.Name)
		if p.Size == s.PageSize {
			sizeIdx = i
		}
	}
	if sizeIdx < 0 {
		sizes = append(sizes, s.PageSize.String())
		sizeIdx = len(sizes) - 1
	}

	var formats []string
	formatIdx := 0
	for i, f := range export.Formats() {
		formats = append(formats, f.String())
		if parsed, err := export.ParseFormat(s.Format); err == nil && parsed == f {
			formatIdx = i
		}
	}

	var dpis []string
	dpiIdx := 0
	for i, d := range units.DPIs {
		dpis = append(dpis, strconv.Itoa(d))
		if d == s.DPI {
			dpiIdx = i
		}
	}

	return ExportPickerModel{
		Fields: []pickerField{
			fieldPageSize:    {Label: "Page size", Options: sizes, Index: sizeIdx},
			fieldOrientation: {Label: "Orientation", Options: []string{units.Landscape.String(), units.Portrait.String()}, Index: int(s.Orientation)},
			fieldFormat:      {Label: "Format", Options: formats, Index: formatIdx},
			fieldDPI:         {Label: "Resolution", Options: dpis, Index: dpiIdx},
		},
		Unit: s.Unit,
	}
}

func (m ExportPickerModel) Init() tea.Cmd {
	return nil
}

func (m ExportPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.Cursor > 0 {
			m.Cursor--
		}
	case "down", "j", "tab":
		if m.Cursor < fieldGenerate {
			m.Cursor++
		}
	case "left", "h":
		m.step(-1)
	case "right", "l", " ":
		m.step(1)
	case "enter":
		if m.Cursor == fieldGenerate {
			m.Confirmed = true
			return m, tea.Quit
		}
		m.Cursor++
	}
	return m, nil
}

// step cycles the option of the focused field.
func (m *ExportPickerModel) step(d int) {
	if m.Cursor >= len(m.Fields) {
		return
	}
	f := &m.Fields[m.Cursor]
	f.Index = (f.Index + d + len(f.Options)) % len(f.Options)
}

// Settings returns base with the picked values applied.
func (m ExportPickerModel) Settings(base export.Settings) (export.Settings, error) {
	size, err := units.ParsePageSize(m.Fields[fieldPageSize].value())
	if err != nil {
		return base, err
	}
	orientation, err := units.ParseOrientation(m.Fields[fieldOrientation].value())
	if err != nil {
		return base, err
	}
	dpi, err := strconv.Atoi(m.Fields[fieldDPI].value())
	if err != nil {
		return base, err
	}
	base.PageSize = size
	base.Orientation = orientation
	base.Format = m.Fields[fieldFormat].value()
	base.DPI = dpi
	return base, nil
}

func (m ExportPickerModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Export Map"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ field  ←/→ change  ⏎ generate  q quit"))
	b.WriteString("\n\n")

	rows := make([][]string, 0, len(m.Fields))
	for i, f := range m.Fields {
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{cursor, f.Label, "‹ " + f.value() + " ›"})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Setting", "Value").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return headerStyle
			case row == m.Cursor:
				return listSelectedStyle
			}
			return listNormalStyle
		})
	b.WriteString(t.Render())
	b.WriteString("\n\n")

	action := "  Generate map." + m.Fields[fieldFormat].value()
	if m.Cursor == fieldGenerate {
		b.WriteString(listSelectedStyle.Render("▸" + action[1:]))
	} else {
		b.WriteString(listNormalStyle.Render(action))
	}
	b.WriteString("\n")
	if s, err := m.Settings(export.Settings{Unit: m.Unit}); err == nil {
		b.WriteString(listDimStyle.Render("  " + pixelSummary(s)))
		b.WriteString("\n")
	}
	return b.String()
}

// pixelSummary describes the output size of s, e.g. "297×210 mm → 3508×2480 px".
func pixelSummary(s export.Settings) string {
	w, h := s.PageSize.Oriented(s.Orientation)
	px := render.SizeFor(w, h, s.DPI, s.Unit)
	return fmt.Sprintf("%s×%s %s → %d×%d px",
		strconv.FormatFloat(w, 'f', -1, 64), strconv.FormatFloat(h, 'f', -1, 64), s.Unit, px.Width, px.Height)
}

package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mapexport/pkg/render"
	"github.com/matzehuels/mapexport/pkg/units"
)

// sizesCommand creates the sizes command.
func (c *CLI) sizesCommand() *cobra.Command {
	var (
		dpi         int
		orientation string
	)

	cmd := &cobra.Command{
		Use:   "sizes",
		Short: "List paper presets and their pixel size at a resolution",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !units.ValidDPI(dpi) {
				return fmt.Errorf("dpi %d not in %v", dpi, units.DPIs)
			}
			o, err := units.ParseOrientation(orientation)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sizesTable(units.PageSizes(), dpi, o))
			return nil
		},
	}

	cmd.Flags().IntVar(&dpi, "dpi", 300, "resolution the pixel column is computed at")
	cmd.Flags().StringVar(&orientation, "orientation", "landscape", "landscape or portrait")

	return cmd
}

// sizesTable renders presets with their size in millimeters, inches and
// pixels at dpi.
func sizesTable(sizes []units.NamedPageSize, dpi int, o units.Orientation) string {
	rows := make([][]string, 0, len(sizes))
	for _, p := range sizes {
		w, h := p.Size.Oriented(o)
		px := render.SizeFor(w, h, dpi, units.MM)
		rows = append(rows, []string{
			p.Name,
			fmt.Sprintf("%s × %s", formatLength(w), formatLength(h)),
			fmt.Sprintf("%.2f × %.2f", w/units.MMPerInch, h/units.MMPerInch),
			fmt.Sprintf("%d × %d", px.Width, px.Height),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Size", "mm", "in", "px @ "+strconv.Itoa(dpi)+" dpi").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return headerStyle
			case col == 0:
				return StyleHighlight.Padding(0, 1)
			case col == 3:
				return StyleNumber.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Render()
}

func formatLength(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

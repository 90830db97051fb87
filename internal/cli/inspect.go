package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/maidr/pkg/document"
	"github.com/matzehuels/maidr/pkg/maidr"
	"github.com/matzehuels/maidr/pkg/pipeline"
)

var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

func (c *CLI) inspectCommand() *cobra.Command {
	var plain, noCache bool
	var attr string

	cmd := &cobra.Command{
		Use:   "inspect [file]",
		Short: "Browse the layers and selectors of a payload",
		Long: `Browse a payload interactively. The file may be a payload (.json), a
chart or page with the payload attached (.svg, .html), or a chart spec,
which is rendered first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := c.loadPayload(cmd, args[0], attr, noCache)
			if err != nil {
				return err
			}
			rows, err := payloadRows(raw)
			if err != nil {
				return err
			}
			if plain || len(rows) == 0 {
				fmt.Println(layerTable(rows, -1))
				return nil
			}
			_, err = tea.NewProgram(newPayloadModel(filepath.Base(args[0]), rows), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "print the layer table and exit")
	cmd.Flags().StringVar(&attr, "attribute", document.DefaultAttribute, "payload attribute on the <svg>")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching when rendering a spec")

	return cmd
}

// loadPayload returns the raw payload JSON for path.
func (c *CLI) loadPayload(cmd *cobra.Command, path, attr string, noCache bool) (json.RawMessage, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".svg", ".html", ".htm":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return document.Payload(data, attr)
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if isPayload(data) {
			return data, nil
		}
	}

	spec, err := loadSpec(path, false)
	if err != nil {
		return nil, err
	}
	runner, err := c.newRunner(cmd, noCache, "")
	if err != nil {
		return nil, err
	}
	defer runner.Close()
	res, err := runner.Execute(cmd.Context(), pipeline.Options{Spec: spec, Formats: []string{pipeline.FormatJSON}})
	if err != nil {
		return nil, err
	}
	return res.Artifacts[pipeline.FormatJSON], nil
}

func isPayload(data []byte) bool {
	var probe struct {
		Subplots json.RawMessage `json:"subplots"`
	}
	return json.Unmarshal(data, &probe) == nil && len(probe.Subplots) > 0
}

// layerRow is one payload layer as shown by inspect.
type layerRow struct {
	Panel     string
	ID        string
	Type      string
	Title     string
	Points    int
	Selectors []string
}

// payloadRows flattens a raw payload into one row per layer, in row-major
// panel order.
func payloadRows(raw json.RawMessage) ([]layerRow, error) {
	var p maidr.Payload
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	var rows []layerRow
	for r := range p.Subplots {
		for col := range p.Subplots[r] {
			for _, l := range p.Subplots[r][col].Layers {
				rows = append(rows, layerRow{
					Panel:     fmt.Sprintf("%d,%d", r, col),
					ID:        l.ID,
					Type:      l.Type,
					Title:     l.Title,
					Points:    countPoints(l.Data),
					Selectors: selectorStrings(l.Selectors, l.Type),
				})
			}
		}
	}
	return rows, nil
}

// countPoints counts the points of decoded layer data. Grouped data is a
// list of lists.
func countPoints(data any) int {
	items, ok := data.([]any)
	if !ok {
		return 0
	}
	n := 0
	for _, it := range items {
		if group, ok := it.([]any); ok {
			n += len(group)
		} else {
			n++
		}
	}
	return n
}

// selectorStrings re-types decoded selectors so box selectors flatten in
// their documented order.
func selectorStrings(v any, kind string) []string {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	l := maidr.Layer{Type: kind}
	if kind == maidr.KindBox.String() {
		var boxes []maidr.BoxSelector
		if json.Unmarshal(data, &boxes) == nil {
			l.Selectors = boxes
		}
	} else {
		var list []string
		if json.Unmarshal(data, &list) == nil {
			l.Selectors = list
		}
	}
	return l.SelectorList()
}

// layerTable renders rows as a table, highlighting the row at cursor.
func layerTable(rows []layerRow, cursor int) string {
	if len(rows) == 0 {
		return StyleDim.Render("no layers")
	}
	cells := make([][]string, len(rows))
	for i, r := range rows {
		mark := "  "
		if i == cursor {
			mark = "▸ "
		}
		cells[i] = []string{mark, r.Panel, r.ID, r.Type, r.Title, fmt.Sprint(r.Points), fmt.Sprint(len(r.Selectors))}
	}
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Panel", "Layer", "Type", "Title", "Points", "Selectors").
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return headerStyle
			case row == cursor:
				return listSelectedStyle
			case rows[row].Points != len(rows[row].Selectors) && rows[row].Type != maidr.KindBox.String():
				return lipgloss.NewStyle().Foreground(colorYellow)
			}
			return listNormalStyle
		})
	return t.Render()
}

// payloadModel is the bubbletea model of inspect. The list view shows the
// layers; enter opens the selectors of the current layer.
type payloadModel struct {
	Name   string
	Rows   []layerRow
	Cursor int
	Detail bool
	Offset int
	Height int
}

func newPayloadModel(name string, rows []layerRow) payloadModel {
	return payloadModel{Name: name, Rows: rows, Height: 15}
}

func (m payloadModel) Init() tea.Cmd {
	return nil
}

func (m payloadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc", "backspace":
			if !m.Detail {
				return m, tea.Quit
			}
			m.Detail = false
			m.Offset = 0
		case "enter":
			m.Detail = len(m.Rows) > 0
			m.Offset = 0
		case "up", "k":
			if m.Detail {
				if m.Offset > 0 {
					m.Offset--
				}
			} else if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Detail {
				if m.Offset < len(m.Rows[m.Cursor].Selectors)-m.Height {
					m.Offset++
				}
			} else if m.Cursor < len(m.Rows)-1 {
				m.Cursor++
			}
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
	}
	return m, nil
}

func (m payloadModel) View() string {
	var b strings.Builder
	b.WriteString(StyleTitle.Render(m.Name))
	b.WriteString("\n")

	if !m.Detail {
		b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ selectors  q quit"))
		b.WriteString("\n\n")
		b.WriteString(layerTable(m.Rows, m.Cursor))
		b.WriteString("\n\n")
		b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Rows))))
		return b.String()
	}

	row := m.Rows[m.Cursor]
	b.WriteString(listDimStyle.Render("↑/↓ scroll  esc back  q quit"))
	b.WriteString("\n\n")
	b.WriteString(listSelectedStyle.Render(fmt.Sprintf("%s (%s)", row.ID, row.Type)))
	b.WriteString("\n")
	end := min(m.Offset+m.Height, len(row.Selectors))
	for i := m.Offset; i < end; i++ {
		b.WriteString(fmt.Sprintf("  %s %s\n", listDimStyle.Render(fmt.Sprintf("%4d", i)), listNormalStyle.Render(row.Selectors[i])))
	}
	if len(row.Selectors) == 0 {
		b.WriteString(listDimStyle.Render("  no selectors"))
		b.WriteString("\n")
	}
	return b.String()
}

package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/maidr/pkg/store"
)

func (c *CLI) runsCommand() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List and show stored runs",
	}
	cmd.PersistentFlags().StringVar(&dsn, "store", os.Getenv("MAIDR_STORE"), "run store (directory, sqlite:path or mongodb:// URI; default ~/.config/maidr/runs)")

	cmd.AddCommand(c.runsListCommand(&dsn))
	cmd.AddCommand(c.runsShowCommand(&dsn))

	return cmd
}

func (c *CLI) runsListCommand(dsn *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(cmd.Context(), *dsn)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				printInfo("No stored runs")
				return nil
			}
			fmt.Println(runTable(runs, time.Now()))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs (0 for all)")

	return cmd
}

func (c *CLI) runsShowCommand(dsn *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Print the payload of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(cmd.Context(), *dsn)
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			c.Logger.Debug("loaded run", "id", run.ID, "spec", run.SpecHash)
			_, err = os.Stdout.Write(append(run.Payload, '\n'))
			return err
		},
	}
}

func runTable(runs []*store.Run, now time.Time) string {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		hash := r.SpecHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		rows[i] = []string{r.ID, r.Title, fmt.Sprint(r.Layers), fmt.Sprint(r.Degraded), hash, formatRelativeTime(r.CreatedAt, now)}
	}
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Run", "Title", "Layers", "Degraded", "Spec", "Created").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return headerStyle
			case col == 3 && runs[row].Degraded > 0:
				return lipgloss.NewStyle().Foreground(colorYellow)
			case col >= 4:
				return lipgloss.NewStyle().Foreground(colorDim)
			}
			return lipgloss.NewStyle()
		}).
		Render()
}

func formatRelativeTime(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}

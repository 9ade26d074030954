package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kipmarine/kipdash/internal/cli/output"
	"github.com/kipmarine/kipdash/internal/dashboard"
)

// DashboardRow is one dashboard in list output.
type DashboardRow struct {
	Index   int    `json:"index" yaml:"index"`
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Icon    string `json:"icon" yaml:"icon"`
	Widgets int    `json:"widgets" yaml:"widgets"`
	Active  bool   `json:"active" yaml:"active"`
}

// ListOutput is the structured output of the list command.
type ListOutput struct {
	Dashboards []DashboardRow `json:"dashboards" yaml:"dashboards"`
	Active     int            `json:"active" yaml:"active"`
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List dashboards",
		Long: `List the stored dashboards in display order.

Output adapts to environment:
  - Terminal: Styled table
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json, yaml`,
		Example: `  # List dashboards
  kipdash list

  # List dashboards as JSON
  kipdash list --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return renderList(cmdCtx.Renderer, cmdCtx.Store.Snapshot())
		},
	}
}

func buildListOutput(st dashboard.State) ListOutput {
	out := ListOutput{Active: st.Active, Dashboards: make([]DashboardRow, 0, len(st.Dashboards))}
	for i, d := range st.Dashboards {
		out.Dashboards = append(out.Dashboards, DashboardRow{
			Index:   i,
			ID:      d.ID,
			Name:    d.Name,
			Icon:    d.Icon,
			Widgets: len(d.Configuration),
			Active:  i == st.Active,
		})
	}
	return out
}

func renderList(r *output.Renderer, st dashboard.State) error {
	lo := buildListOutput(st)
	if ok, err := r.Structured(lo); ok {
		return err
	}

	r.Header(1, fmt.Sprintf("Dashboards (%d total)", len(lo.Dashboards)))
	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println("")
	}

	rows := make([][]string, 0, len(lo.Dashboards))
	for _, d := range lo.Dashboards {
		mark := ""
		if d.Active {
			mark = "*"
		}
		rows = append(rows, []string{mark, strconv.Itoa(d.Index), d.Name, d.Icon, strconv.Itoa(d.Widgets), d.ID})
	}
	r.Table([]string{"", "#", "Name", "Icon", "Widgets", "ID"}, rows)
	return nil
}

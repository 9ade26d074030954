package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kipmarine/kipdash/internal/cli/output"
	"github.com/kipmarine/kipdash/internal/dashboard"
)

// exportVersion is bumped when the file layout changes.
const exportVersion = 1

// ExportFile is the layout written by export and read by import.
type ExportFile struct {
	Version    int                   `json:"version" yaml:"version"`
	Dashboards []dashboard.Dashboard `json:"dashboards" yaml:"dashboards"`
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all dashboards to YAML or JSON",
		Long: `Write the dashboard collection, including widget layouts, to stdout or a
file. YAML is the default; use --output json for JSON.`,
		Example: `  kipdash export > dashboards.yaml
  kipdash export -o json --file backup.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			w := cmd.OutOrStdout()
			if file != "" {
				f, err := os.Create(file)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", file, err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}
			ef := ExportFile{Version: exportVersion, Dashboards: cmdCtx.Store.Dashboards()}
			return writeExport(w, ef, cmdCtx.Renderer.EffectiveMode() == output.ModeJSON)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Write to file instead of stdout")
	return cmd
}

func writeExport(w io.Writer, ef ExportFile, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ef)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ef); err != nil {
		return err
	}
	return enc.Close()
}

// NewImportCommand creates the import command.
func NewImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace all dashboards from an export file",
		Long: `Replace the dashboard collection with the contents of a file written by
export. JSON and YAML are both accepted. Use - to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			ef, err := parseExport(data)
			if err != nil {
				return err
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			cmdCtx.Store.Replace(ef.Dashboards)
			if err := cmdCtx.Commit(cmd.Context()); err != nil {
				return err
			}
			cmdCtx.Renderer.Success(fmt.Sprintf("Imported %d dashboards", cmdCtx.Store.Len()))
			return nil
		},
	}
}

// parseExport reads an export file. JSON is a subset of YAML, so one
// decoder serves both.
func parseExport(data []byte) (ExportFile, error) {
	var ef ExportFile
	if len(bytes.TrimSpace(data)) == 0 {
		return ef, fmt.Errorf("import file is empty")
	}
	if err := yaml.Unmarshal(data, &ef); err != nil {
		return ef, fmt.Errorf("failed to parse import file: %w", err)
	}
	if ef.Version > exportVersion {
		return ef, fmt.Errorf("unsupported export version %d (max %d)", ef.Version, exportVersion)
	}
	for i, d := range ef.Dashboards {
		if d.Configuration == nil {
			ef.Dashboards[i].Configuration = []dashboard.Widget{}
		}
	}
	return ef, nil
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kipmarine/kipdash/internal/cli/config"
	"github.com/kipmarine/kipdash/internal/cli/output"
	"github.com/kipmarine/kipdash/internal/remotesync"
	"github.com/kipmarine/kipdash/internal/settings"
	"github.com/kipmarine/kipdash/internal/signalk"
)

// Check statuses.
const (
	StatusPass  = "pass"
	StatusWarn  = "warn"
	StatusError = "error"
)

// errUnhealthy makes doctor exit non-zero after reporting.
var errUnhealthy = errors.New("one or more checks failed")

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Timeout time.Duration
}

// DoctorOutput is the structured output for the doctor command.
type DoctorOutput struct {
	Checks  []HealthCheck `json:"checks" yaml:"checks"`
	Healthy bool          `json:"healthy" yaml:"healthy"`
}

// HealthCheck is a single check result.
type HealthCheck struct {
	Group  string `json:"group" yaml:"group"`
	Name   string `json:"name" yaml:"name"`
	Status string `json:"status" yaml:"status"`
	Detail string `json:"detail" yaml:"detail"`
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, settings database and Signal K",
		Long: `Check that kipdash can run: the configuration resolves, the settings
database opens and is migrated, and the Signal K server answers.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON/YAML: Machine-readable format`,
		Example: `  kipdash doctor
  kipdash doctor --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 5*time.Second, "Signal K check timeout")
	return cmd
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cmdCtx := NewCommandContextWithoutStore(cmd)
	out := diagnose(cmd.Context(), cmdCtx.Cfg, opts.Timeout)

	r := cmdCtx.Renderer
	if ok, err := r.Structured(out); ok {
		if err != nil {
			return err
		}
	} else if r.EffectiveMode() == output.ModeMarkdown {
		renderDoctorMarkdown(r, out)
	} else {
		renderDoctorText(r, out)
	}

	if !out.Healthy {
		return errUnhealthy
	}
	return nil
}

func diagnose(ctx context.Context, cfg *config.Config, timeout time.Duration) *DoctorOutput {
	out := &DoctorOutput{}
	add := func(group, name, status, detail string) {
		out.Checks = append(out.Checks, HealthCheck{Group: group, Name: name, Status: status, Detail: detail})
	}

	// Configuration
	if f := config.GetConfigFileUsed(); f != "" {
		add("configuration", "config file", StatusPass, f)
	} else {
		add("configuration", "config file", StatusWarn, "no kipdash.yaml found, using defaults and environment")
	}
	add("configuration", "remote path", StatusPass, remotesync.BasePath(cfg.LoginName))

	// Settings
	if st, err := settings.Open(ctx, cfg.SettingsPath); err != nil {
		add("settings", "database", StatusError, err.Error())
	} else {
		add("settings", "database", StatusPass, cfg.SettingsPath)
		if v, err := st.MigrationVersion(ctx); err != nil {
			add("settings", "schema", StatusError, err.Error())
		} else {
			add("settings", "schema", StatusPass, fmt.Sprintf("version %d", v))
		}
		if ds, err := st.DashboardConfig(ctx); err != nil {
			add("settings", "dashboards", StatusError, err.Error())
		} else if len(ds) == 0 {
			add("settings", "dashboards", StatusWarn, "none stored yet; a blank dashboard is created on first use")
		} else {
			add("settings", "dashboards", StatusPass, fmt.Sprintf("%d stored", len(ds)))
		}
		if id, err := st.InstanceID(ctx); err != nil {
			add("settings", "instance id", StatusError, err.Error())
		} else {
			add("settings", "instance id", StatusPass, id)
		}
		_ = st.Close()
	}

	// Signal K
	if !cfg.Sync.Enabled {
		add("signal k", "server", StatusWarn, "sync disabled")
	} else {
		status, detail := checkSignalK(ctx, cfg, timeout)
		add("signal k", "server", status, detail)
	}

	out.Healthy = true
	for _, c := range out.Checks {
		if c.Status == StatusError {
			out.Healthy = false
		}
	}
	return out
}

// checkSignalK returns the status and detail of the server check.
func checkSignalK(ctx context.Context, cfg *config.Config, timeout time.Duration) (status, detail string) {
	client, err := signalk.NewClient(signalk.Config{URL: cfg.SignalK.URL, Token: cfg.SignalK.Token})
	if err != nil {
		return StatusError, err.Error()
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hello, err := client.Handshake(pctx)
	if err != nil {
		return StatusError, fmt.Sprintf("%s: %v", client.URL(), err)
	}
	detail = strings.TrimSpace(hello.Name + " " + hello.Version)
	if detail == "" {
		detail = client.URL()
	}
	return StatusPass, detail
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render("kipdash Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.Checks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("")
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.Success.Render("✓")
		switch check.Status {
		case StatusWarn:
			icon = styles.Warning.Render("!")
		case StatusError:
			icon = styles.Error.Render("✗")
		}
		r.Printf("   %s %s: %s\n", icon, check.Name, styles.Muted.Render(check.Detail))
	}
	r.Println("")
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) {
	r.Println("# kipdash Health Report")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.Checks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("")
			r.Println("## " + titleCaser.String(currentGroup))
			r.Println("")
		}
		r.Printf("- **[%s]** %s: %s\n", strings.ToUpper(check.Status), check.Name, check.Detail)
	}
	r.Println("")
}

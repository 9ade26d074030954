package commands

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kipmarine/kipdash/internal/commander"
	"github.com/kipmarine/kipdash/internal/remotesync"
	"github.com/kipmarine/kipdash/internal/signalk"
)

// NewRemoteCommand creates the remote command.
func NewRemoteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remote",
		Short: "Switch dashboards from the terminal like a Kip-Commander",
		Long: `Connect to Signal K, follow the dashboards a KIP display publishes for the
configured login and switch between them. The display picks up the
request through its own Signal K subscription.`,
		Example: `  kipdash remote --login skipper --signalk-url ws://boat.local:3000`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRemote(cmd)
		},
	}
}

func runRemote(cmd *cobra.Command) error {
	cfg := NewCommandContextWithoutStore(cmd).Cfg

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Logging would draw over the TUI, so the client stays quiet.
	client, err := signalk.NewClient(signalk.Config{
		URL:          cfg.SignalK.URL,
		Token:        cfg.SignalK.Token,
		ReconnectMin: cfg.SignalK.ReconnectMin,
		ReconnectMax: cfg.SignalK.ReconnectMax,
	})
	if err != nil {
		return err
	}

	basePath := remotesync.BasePath(cfg.LoginName)
	origin := "kip-commander." + uuid.NewString()[:8]

	p := tea.NewProgram(
		commander.New(client, basePath, origin),
		tea.WithContext(ctx),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
		tea.WithAltScreen(),
	)

	go func() { _ = client.Run(ctx) }()
	go commander.Follow(ctx, client, basePath, nil, p.Send)
	go func() {
		for {
			changed := client.StateChanged()
			p.Send(commander.ConnectedMsg(client.Connected()))
			select {
			case <-ctx.Done():
				return
			case <-changed:
			}
		}
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("commander failed: %w", err)
	}
	return nil
}

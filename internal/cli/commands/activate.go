package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// ActivateOptions holds options for the activate command.
type ActivateOptions struct {
	Server string
}

// NewActivateCommand creates the activate command.
func NewActivateCommand() *cobra.Command {
	opts := &ActivateOptions{}
	cmd := &cobra.Command{
		Use:   "activate <index|next|previous>",
		Short: "Switch the active dashboard of a running server",
		Long: `Move the active-dashboard cursor of a running 'kipdash serve'. The change
is mirrored to Signal K like any other local selection.`,
		Example: `  kipdash activate 2
  kipdash activate next --server http://kip.local:8766`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			active, err := activate(cmd, opts.Server, args[0])
			if err != nil {
				return err
			}
			NewCommandContextWithoutStore(cmd).Renderer.Success(fmt.Sprintf("Active dashboard is %d", active))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Server, "server", "", "kipdash server URL (default: derived from http.addr)")
	return cmd
}

func serverURL(explicit, addr string) string {
	if explicit != "" {
		return strings.TrimSuffix(explicit, "/")
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func activate(cmd *cobra.Command, server, target string) (int, error) {
	base := serverURL(server, getConfig().HTTP.Addr)

	var (
		method = http.MethodPost
		path   string
		body   []byte
	)
	switch target {
	case "next", "previous":
		path = "/api/active/" + target
	default:
		index, err := parseIndex(target)
		if err != nil {
			return 0, err
		}
		method, path = http.MethodPut, "/api/active"
		body, _ = json.Marshal(map[string]int{"active": index})
	}

	req, err := http.NewRequestWithContext(cmd.Context(), method, base+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to reach kipdash server at %s: %w", base, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out struct {
		Active int    `json:"active"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("unexpected response from %s: %w", base, err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("server rejected request: %s", out.Error)
	}
	return out.Active, nil
}

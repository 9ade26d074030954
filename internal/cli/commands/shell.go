package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/kipmarine/kipdash/internal/dashboard"
)

const shellPrompt = "kipdash> "

// NewShellCommand creates the interactive shell command.
func NewShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Edit dashboards interactively",
		Long: `Start an interactive shell over the dashboard store. Every change is
saved as soon as it is made. Type 'help' for the command list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd)
		},
	}
}

func runShell(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          shellPrompt,
		HistoryFile:     filepath.Join(filepath.Dir(cmdCtx.Cfg.SettingsPath), "shell_history"),
		AutoComplete:    shellCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize shell: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "kipdash shell (settings: %s)\n", cmdCtx.Cfg.SettingsPath)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type help for commands, quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}

		quit, err := execShellLine(cmd.Context(), cmdCtx, line)
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func shellCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("list"),
		readline.PcItem("add"),
		readline.PcItem("rename"),
		readline.PcItem("icon"),
		readline.PcItem("delete"),
		readline.PcItem("duplicate"),
		readline.PcItem("widgets"),
		readline.PcItem("active"),
		readline.PcItem("next"),
		readline.PcItem("previous"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

// execShellLine runs one shell command. It reports whether the shell
// should exit.
func execShellLine(ctx context.Context, c *CommandContext, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	r := c.Renderer
	store := c.Store
	args := fields[1:]

	mutated := true
	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return true, nil

	case "help":
		printShellHelp(c)
		return false, nil

	case "list", "ls":
		return false, renderList(r, store.Snapshot())

	case "add":
		if len(args) == 0 {
			return false, errors.New("usage: add <name>")
		}
		d := store.Add(strings.Join(args, " "), []dashboard.Widget{}, "")
		r.Success(fmt.Sprintf("added %q at %d", d.Name, store.Len()-1))

	case "rename":
		index, rest, err := indexArg(args, "rename <index> <name>")
		if err != nil {
			return false, err
		}
		ds := store.Dashboards()
		if index >= len(ds) {
			return false, &dashboard.IndexError{Op: dashboard.OpUpdate, Index: index, Len: len(ds)}
		}
		if _, err := store.Update(index, strings.Join(rest, " "), ds[index].Icon); err != nil {
			return false, err
		}

	case "icon":
		index, rest, err := indexArg(args, "icon <index> <icon>")
		if err != nil {
			return false, err
		}
		ds := store.Dashboards()
		if index >= len(ds) {
			return false, &dashboard.IndexError{Op: dashboard.OpUpdate, Index: index, Len: len(ds)}
		}
		if _, err := store.Update(index, ds[index].Name, strings.Join(rest, " ")); err != nil {
			return false, err
		}

	case "delete", "rm":
		index, _, err := indexArg(args, "delete <index>")
		if err != nil {
			return false, err
		}
		if err := store.Delete(index); err != nil {
			return false, err
		}

	case "duplicate", "dup":
		index, rest, err := indexArg(args, "duplicate <index> <name>")
		if err != nil {
			return false, err
		}
		if _, err := store.Duplicate(index, strings.Join(rest, " "), ""); err != nil {
			return false, err
		}

	case "active":
		if len(args) == 0 {
			r.Printf("%d\n", store.ActiveIndex())
			return false, nil
		}
		index, _, err := indexArg(args, "active [index]")
		if err != nil {
			return false, err
		}
		if err := store.SetActiveDashboard(index); err != nil {
			return false, err
		}
		mutated = false

	case "next":
		store.NextDashboard()
		r.Printf("%d\n", store.ActiveIndex())
		mutated = false

	case "previous", "prev":
		store.PreviousDashboard()
		r.Printf("%d\n", store.ActiveIndex())
		mutated = false

	case "widgets":
		index, _, err := indexArg(args, "widgets <index>")
		if err != nil {
			return false, err
		}
		ds := store.Dashboards()
		if index >= len(ds) {
			return false, &dashboard.IndexError{Op: "widgets", Index: index, Len: len(ds)}
		}
		for _, w := range ds[index].Configuration {
			r.Printf("%s\t%v\n", w.ID(), w["selector"])
		}
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %q (type help)", fields[0])
	}

	if mutated {
		return false, c.Commit(ctx)
	}
	return false, nil
}

func indexArg(args []string, usage string) (int, []string, error) {
	if len(args) == 0 {
		return 0, nil, fmt.Errorf("usage: %s", usage)
	}
	i, err := strconv.Atoi(args[0])
	if err != nil || i < 0 {
		return 0, nil, fmt.Errorf("invalid dashboard index %q", args[0])
	}
	rest := args[1:]
	if strings.Contains(usage, "> <") && len(rest) == 0 {
		return 0, nil, fmt.Errorf("usage: %s", usage)
	}
	return i, rest, nil
}

func printShellHelp(c *CommandContext) {
	c.Renderer.Println(`Commands:
  list                      List dashboards
  add <name>                Add an empty dashboard
  rename <index> <name>     Rename a dashboard
  icon <index> <icon>       Change a dashboard icon
  delete <index>            Delete a dashboard
  duplicate <index> <name>  Copy a dashboard
  widgets <index>           List widget ids of a dashboard
  active [index]            Show or set the active dashboard
  next, previous            Move the active dashboard
  help                      Show this help
  quit                      Exit`)
}

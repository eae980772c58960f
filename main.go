package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"ctxguard/budget"
	hookcmd "ctxguard/cmd"
	"ctxguard/config"
	"ctxguard/handoff"
	"ctxguard/hooks"
	"ctxguard/mcpserver"
	"ctxguard/render"
	"ctxguard/scanner"
	"ctxguard/session"
	"ctxguard/top"
	"ctxguard/watch"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ctxguard",
		Short: "Context budget tracking for Claude Code",
		Long: "ctxguard tracks how much context a Claude Code session has consumed through\n" +
			"file reads and recommends delegating work to subagents before the window fills.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newHookCmd(),
		newInstallCmd(),
		newUninstallCmd(),
		newStatusCmd(),
		newSessionsCmd(),
		newResetCmd(),
		newClassifyCmd(),
		newEstimateCmd(),
		newHandoffCmd(),
		newWatchCmd(),
		newTopCmd(),
		newMCPCmd(),
		newSchemaCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig resolves configuration for interactive commands, reporting
// problems on stderr. The returned config is always usable.
func loadConfig(errOut io.Writer) config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(errOut, "warning: %v\n", err)
	}
	return cfg
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newHookCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "hook <name>",
		Short:     "Run a Claude Code hook on the event read from stdin",
		Long:      "Run a Claude Code hook. Hooks never fail the tool call on their own errors.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: hookcmd.Names(),
		RunE: func(c *cobra.Command, args []string) error {
			// Broken config must not break reads; defaults apply.
			cfg, _ := config.Load()
			closeLog := cfg.SetupLogging()
			defer closeLog()
			return hookcmd.RunHook(args[0], hookcmd.New(cfg), c.InOrStdin(), c.OutOrStdout(), c.ErrOrStderr())
		},
	}
}

// installOrder lists hooks cheapest first.
var installOrder = []string{hookcmd.HookPDFGuard, hookcmd.HookLargeFileGuard, hookcmd.HookContextTracker}

type settingsFlags struct {
	path    string
	project string
	binary  string
	dryRun  bool
}

func (f *settingsFlags) register(c *cobra.Command) {
	c.Flags().StringVar(&f.path, "settings", "", "settings file (default ~/.claude/settings.json)")
	c.Flags().StringVar(&f.project, "project", "", "use <dir>/.claude/settings.json instead of the user settings")
	c.Flags().StringVar(&f.binary, "binary", "", "command used to run ctxguard (default: this executable)")
	c.Flags().BoolVar(&f.dryRun, "dry-run", false, "print the resulting settings instead of writing them")
}

func (f *settingsFlags) resolve() (path, binary string, err error) {
	switch {
	case f.path != "":
		path = scanner.ExpandHome(f.path)
	case f.project != "":
		path = hooks.ProjectSettingsPath(f.project)
	default:
		if path, err = hooks.GlobalSettingsPath(); err != nil {
			return "", "", err
		}
	}
	binary = f.binary
	if binary == "" {
		if binary, err = os.Executable(); err != nil {
			return "", "", err
		}
	}
	return path, binary, nil
}

func (f *settingsFlags) write(c *cobra.Command, s *hooks.Settings, path string) error {
	if f.dryRun {
		return writeJSON(c.OutOrStdout(), s)
	}
	return s.Save(path)
}

func newInstallCmd() *cobra.Command {
	var f settingsFlags
	c := &cobra.Command{
		Use:   "install",
		Short: "Register the ctxguard hooks in Claude Code settings",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			path, binary, err := f.resolve()
			if err != nil {
				return err
			}
			s, err := hooks.Load(path)
			if err != nil {
				return err
			}
			added, err := s.Install(hooks.Entries(binary, installOrder))
			if err != nil {
				return err
			}
			if err := f.write(c, s, path); err != nil {
				return err
			}
			if !f.dryRun {
				fmt.Fprintf(c.OutOrStdout(), "added %d hooks to %s\n", added, path)
			}
			return nil
		},
	}
	f.register(c)
	return c
}

func newUninstallCmd() *cobra.Command {
	var f settingsFlags
	c := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the ctxguard hooks from Claude Code settings",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			path, binary, err := f.resolve()
			if err != nil {
				return err
			}
			s, err := hooks.Load(path)
			if err != nil {
				return err
			}
			removed, err := s.Uninstall(binary)
			if err != nil {
				return err
			}
			if err := f.write(c, s, path); err != nil {
				return err
			}
			if !f.dryRun {
				fmt.Fprintf(c.OutOrStdout(), "removed %d hooks from %s\n", removed, path)
			}
			return nil
		},
	}
	f.register(c)
	return c
}

func newStatusCmd() *cobra.Command {
	var asJSON, asMarkdown bool
	c := &cobra.Command{
		Use:   "status [session]",
		Short: "Show the budget of a session (default: most recently active)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg := loadConfig(c.ErrOrStderr())
			store := session.NewStore(cfg.StateDir)

			sum, err := pickSession(store, args)
			if err != nil {
				return err
			}
			out := c.OutOrStdout()
			switch {
			case asJSON:
				return writeJSON(out, sum.State)
			case asMarkdown:
				fmt.Fprint(out, render.Report(sum.ID, sum.State, cfg.Thresholds))
			default:
				render.Status(out, sum, cfg.Thresholds, render.IsTerminal(os.Stdout))
			}
			return nil
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "print the stored state as JSON")
	c.Flags().BoolVar(&asMarkdown, "markdown", false, "print a markdown report")
	return c
}

func newHandoffCmd() *cobra.Command {
	var asJSON, noWrite bool
	var maxFiles int
	c := &cobra.Command{
		Use:   "handoff [session]",
		Short: "Split a session's reads into subagent partitions and save the handoff",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg := loadConfig(c.ErrOrStderr())
			store := session.NewStore(cfg.StateDir)

			sum, err := pickSession(store, args)
			if err != nil {
				return err
			}
			prev, err := handoff.ReadLatest(cfg.StateDir, sum.ID)
			if err != nil {
				fmt.Fprintf(c.ErrOrStderr(), "ignoring previous handoff: %v\n", err)
				prev = nil
			}
			a := handoff.Build(sum.ID, sum.State, handoff.BuildOptions{
				Thresholds: cfg.Thresholds,
				Previous:   prev,
				MaxFiles:   maxFiles,
			})
			if !noWrite {
				if err := handoff.WriteLatest(cfg.StateDir, a); err != nil {
					return err
				}
			}
			if asJSON {
				return writeJSON(c.OutOrStdout(), a)
			}
			fmt.Fprint(c.OutOrStdout(), handoff.RenderMarkdown(a))
			return nil
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "print the handoff as JSON")
	c.Flags().BoolVar(&noWrite, "no-write", false, "do not save the handoff")
	c.Flags().IntVar(&maxFiles, "max-files", 50, "files listed per partition (0 for all)")
	return c
}

func pickSession(store *session.Store, args []string) (session.Summary, error) {
	if len(args) == 1 {
		st, err := store.Read(args[0])
		if err != nil {
			return session.Summary{}, err
		}
		if st == nil {
			return session.Summary{}, fmt.Errorf("no reads tracked for session %s", args[0])
		}
		sum := session.Summary{ID: session.SanitizeID(args[0]), Path: store.Path(args[0]), State: *st}
		if info, err := os.Stat(sum.Path); err == nil {
			sum.ModTime = info.ModTime()
		}
		return sum, nil
	}
	sums, err := store.List()
	if err != nil {
		return session.Summary{}, err
	}
	if len(sums) == 0 {
		return session.Summary{}, errors.New("no sessions tracked in " + store.Dir())
	}
	return sums[0], nil
}

func newSessionsCmd() *cobra.Command {
	var asJSON bool
	c := &cobra.Command{
		Use:   "sessions",
		Short: "List tracked sessions, most recently active first",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg := loadConfig(c.ErrOrStderr())
			sums, err := session.NewStore(cfg.StateDir).List()
			if err != nil {
				return err
			}
			if asJSON {
				type row struct {
					session.Summary
					Tier            string `json:"tier"`
					EstimatedTokens int64  `json:"estimated_tokens"`
					ReadCount       int    `json:"read_count"`
				}
				rows := make([]row, 0, len(sums))
				for _, s := range sums {
					tokens := s.State.EstimatedTokens()
					rows = append(rows, row{s, cfg.Thresholds.TierFor(tokens).String(), tokens, s.State.ReadCount})
				}
				return writeJSON(c.OutOrStdout(), rows)
			}
			render.Sessions(c.OutOrStdout(), sums, cfg.Thresholds, render.IsTerminal(os.Stdout))
			return nil
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return c
}

func newResetCmd() *cobra.Command {
	var all bool
	c := &cobra.Command{
		Use:   "reset [session...]",
		Short: "Forget the tracked reads of sessions",
		RunE: func(c *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("name at least one session or pass --all")
			}
			cfg := loadConfig(c.ErrOrStderr())
			store := session.NewStore(cfg.StateDir)
			if all {
				sums, err := store.List()
				if err != nil {
					return err
				}
				for _, s := range sums {
					args = append(args, s.ID)
				}
			}
			var errs []error
			for _, id := range args {
				if err := store.Delete(id); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", id, err))
					continue
				}
				if err := handoff.Remove(cfg.StateDir, id); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", id, err))
				}
				fmt.Fprintf(c.OutOrStdout(), "reset %s\n", session.SanitizeID(id))
			}
			return errors.Join(errs...)
		},
	}
	c.Flags().BoolVar(&all, "all", false, "reset every tracked session")
	return c
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <path>...",
		Short: "Show how reads of the given paths would be counted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg := loadConfig(c.ErrOrStderr())
			skip := scanner.LoadSkipList(cfg.SkipFile, cfg.SkipPatterns...)
			for _, p := range args {
				p = scanner.ExpandHome(p)
				line := fmt.Sprintf("%-8s %s", budget.Classify(p), p)
				if dir := budget.Directory(p); dir != "" {
					line += "  (dir " + dir + ")"
				}
				if skip.Matches(p) {
					line += "  [not tracked]"
				}
				fmt.Fprintln(c.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func newEstimateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "estimate [dir]",
		Short: "Project the budget of reading every file under a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			cfg := loadConfig(c.ErrOrStderr())
			skip := scanner.LoadSkipList(cfg.SkipFile, cfg.SkipPatterns...)
			st, err := scanner.Estimate(scanner.ExpandHome(root), skip)
			if err != nil {
				return err
			}
			fmt.Fprint(c.OutOrStdout(), render.Report(root, st, cfg.Thresholds))
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	var stop, status bool
	c := &cobra.Command{
		Use:   "watch",
		Short: "Print tier changes of tracked sessions as they happen",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg := loadConfig(c.ErrOrStderr())
			out := c.OutOrStdout()
			switch {
			case stop:
				if err := watch.Stop(cfg.StateDir); err != nil {
					return err
				}
				fmt.Fprintln(out, "watcher stopped")
				return nil
			case status:
				if watch.IsRunning(cfg.StateDir) {
					pid, _ := watch.ReadPID(cfg.StateDir)
					fmt.Fprintf(out, "watcher running (pid %d)\n", pid)
				} else {
					fmt.Fprintln(out, "watcher not running")
				}
				return nil
			}

			store := session.NewStore(cfg.StateDir)
			d, err := watch.NewDaemon(store, cfg.Thresholds)
			if err != nil {
				return err
			}
			if err := watch.WritePID(cfg.StateDir); err != nil {
				return err
			}
			defer watch.RemovePID(cfg.StateDir)

			ctx, cancel := signalContext()
			defer cancel()

			events := make(chan watch.Event)
			errc := make(chan error, 1)
			go func() { errc <- d.Run(ctx, events) }()

			fmt.Fprintf(out, "watching %s\n", store.Dir())
			for e := range events {
				to := e.Tier.String()
				if e.Removed {
					to = "removed"
				}
				fmt.Fprintf(out, "%s  %s  %s -> %s  ~%s tokens  %d files\n",
					e.Time.Format("15:04:05"), e.Session, e.From, to, render.Count(e.Tokens), e.ReadCount)
			}
			return <-errc
		},
	}
	c.Flags().BoolVar(&stop, "stop", false, "stop a running watcher")
	c.Flags().BoolVar(&status, "status", false, "report whether a watcher is running")
	return c
}

func newTopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "top",
		Short: "Live dashboard of tracked sessions",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg := loadConfig(c.ErrOrStderr())
			ctx, cancel := signalContext()
			defer cancel()
			return top.Run(ctx, session.NewStore(cfg.StateDir), cfg.Thresholds)
		},
	}
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve budget tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg := loadConfig(c.ErrOrStderr())
			closeLog := cfg.SetupLogging()
			defer closeLog()
			ctx, cancel := signalContext()
			defer cancel()
			return mcpserver.New(cfg).Run(ctx, version)
		},
	}
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the stored session state",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return writeJSON(c.OutOrStdout(), session.Schema())
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintf(c.ErrOrStderr(), "warning: %v\n", err)
			}
			if cfg.Source != "" {
				fmt.Fprintf(c.OutOrStdout(), "# loaded from %s\n", cfg.Source)
			}
			out := c.OutOrStdout()
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			if err := enc.Close(); err != nil {
				return err
			}
			fmt.Fprintln(out, "# effective skip patterns:")
			for _, p := range scanner.LoadSkipList(cfg.SkipFile, cfg.SkipPatterns...).Patterns() {
				fmt.Fprintf(out, "#   %s\n", p)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(c *cobra.Command, args []string) {
			fmt.Fprintf(c.OutOrStdout(), "ctxguard %s\n", version)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

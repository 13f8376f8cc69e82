// Package cli implements the injector command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/whispin/modloader/internal/config"
	"github.com/whispin/modloader/internal/module"
	"github.com/whispin/modloader/internal/orchestrator"
	"github.com/whispin/modloader/internal/process"
	"github.com/whispin/modloader/internal/target"
	"github.com/whispin/modloader/internal/ui"
)

// Deps are the OS capabilities a session runs against
type Deps struct {
	Controller target.Controller
	Alive      process.AliveFunc
	Inspect    func(pid uint32) (process.ProcessEntry, error)
	Check      func(path string) (module.Header, error)
}

type flags struct {
	configPath string
	mode       string
	policy     string
	marker     string
	interval   time.Duration
	attempts   int
	timeout    time.Duration
	verify     bool
	charset    string
	verbose    bool
}

// NewRootCmd builds the injector command. done receives the finished session.
func NewRootCmd(deps Deps, done func(*orchestrator.Report)) *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:   "injector [flags] <target> <moduleCount> [module...] [args...]",
		Short: "Launch a program and load modules into it",
		Long: "Launches <target>, loads <moduleCount> modules into it through the target's own\n" +
			"library loader, then resumes it. Remaining arguments are passed to the target.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			_, err := ParseArgs(args)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := ParseArgs(args)
			if err != nil {
				return err
			}
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			session, err := cfg.Session(inv.Target, inv.Modules, inv.Passthrough)
			if err != nil {
				return &UsageError{Msg: err.Error()}
			}

			console, err := ui.NewConsole(cmd.ErrOrStderr(), cfg.Log.Level)
			if err != nil {
				return &UsageError{Msg: err.Error()}
			}
			if f.verbose {
				console.SetLevel(zapcore.DebugLevel)
			}
			defer console.Log().Sync()

			opts := []orchestrator.Option{}
			if deps.Alive != nil {
				opts = append(opts, orchestrator.WithAliveFunc(deps.Alive))
			}
			if deps.Inspect != nil {
				opts = append(opts, orchestrator.WithInspector(deps.Inspect))
			}
			if deps.Check != nil {
				opts = append(opts, orchestrator.WithModuleCheck(deps.Check))
			}

			rep := orchestrator.New(deps.Controller, console.Adapter(), opts...).Run(cmd.Context(), session)
			if done != nil {
				done(rep)
			}
			printSummary(cmd.OutOrStdout(), rep)
			return nil
		},
	}
	root.Flags().SetInterspersed(false)

	fl := root.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "YAML configuration file")
	fl.StringVarP(&f.mode, "mode", "m", "", "launch mode: frozen or running")
	fl.StringVarP(&f.policy, "policy", "p", "", "failure policy: fail-fast or best-effort (default depends on mode)")
	fl.StringVar(&f.marker, "marker", "", "module name substring that marks the target as ready (running mode)")
	fl.DurationVar(&f.interval, "interval", 0, "readiness poll interval, e.g. 100ms")
	fl.IntVar(&f.attempts, "attempts", 0, "maximum readiness polls")
	fl.DurationVarP(&f.timeout, "timeout", "t", 0, "remote loader thread timeout, e.g. 10s")
	fl.BoolVar(&f.verify, "verify-exit-code", true, "treat a zero loader thread exit code as a failed load")
	fl.StringVar(&f.charset, "charset", "", "loader variant: utf16 or ansi")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")

	return root
}

// load reads the config file and applies the flags the user set
func (f *flags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, &UsageError{Msg: err.Error()}
	}

	fl := cmd.Flags()
	if fl.Changed("mode") {
		cfg.Mode = f.mode
	}
	if fl.Changed("policy") {
		cfg.Policy = f.policy
	}
	if fl.Changed("marker") {
		cfg.Readiness.Marker = f.marker
	}
	if fl.Changed("interval") {
		cfg.Readiness.Interval = f.interval
	}
	if fl.Changed("attempts") {
		cfg.Readiness.Attempts = f.attempts
	}
	if fl.Changed("timeout") {
		cfg.Inject.Timeout = f.timeout
	}
	if fl.Changed("verify-exit-code") {
		cfg.Inject.VerifyLoaderExitCode = f.verify
	}
	if fl.Changed("charset") {
		cfg.Inject.Charset = f.charset
	}
	return cfg, nil
}

// Execute runs the command line and returns the process exit code
func Execute(ctx context.Context, deps Deps, args []string, stdout, stderr io.Writer) int {
	var rep *orchestrator.Report
	root := NewRootCmd(deps, func(r *orchestrator.Report) { rep = r })
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, err)
		var usage *UsageError
		if errors.As(err, &usage) {
			fmt.Fprintln(stderr, "run with --help for usage")
		}
		return 1
	}
	if rep == nil {
		// --help
		return 0
	}
	return rep.ExitCode()
}

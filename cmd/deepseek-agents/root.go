package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nimec77/deepseek-agents/internal/app/pipeline"
	"github.com/nimec77/deepseek-agents/internal/config"
	"github.com/nimec77/deepseek-agents/internal/delivery/console"
	"github.com/nimec77/deepseek-agents/internal/domain/task"
	"github.com/nimec77/deepseek-agents/internal/infra/filestore"
	id "github.com/nimec77/deepseek-agents/internal/shared/utils/id"
)

// cliEnv carries the process surroundings so tests can substitute them.
type cliEnv struct {
	stdout        io.Writer
	stderr        io.Writer
	lookupEnv     config.EnvLookup
	configOptions []config.Option
	newLineReader func() (console.LineReader, io.Closer, error)
}

func defaultCLIEnv() cliEnv {
	return cliEnv{
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		lookupEnv: config.DefaultEnvLookup,
		newLineReader: func() (console.LineReader, io.Closer, error) {
			rl, err := console.NewLineReader()
			if err != nil {
				return nil, nil, err
			}
			return rl, rl, nil
		},
	}
}

type runOptions struct {
	configPath   string
	taskPath     string
	outDir       string
	apiKey       string
	baseURL      string
	model        string
	auditorModel string
	maxTokens    int
	timeout      time.Duration
	logLevel     string
	lenientJSON  bool
	producerOnly bool
	interactive  bool
	noColor      bool
	diff         bool
}

func newRootCommand(env cliEnv) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "deepseek-agents",
		Short: "Run a DeepSeek Producer/Auditor pipeline over one task",
		Long: `deepseek-agents sends a task to a Producer model, saves its solution,
then asks an Auditor model to grade the solution against the task's
acceptance criteria and saves the validation.

Without --task a built-in demo task is used. --interactive asks for the
task on the terminal and runs the Producer only.`,
		Example: `  deepseek-agents --task task.yaml --out-dir out
  deepseek-agents --interactive
  DEEPSEEK_API_KEY=sk-... deepseek-agents --producer-only`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, env, opts)
		},
	}
	cmd.SetOut(env.stdout)
	cmd.SetErr(env.stderr)

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default ./deepseek-agents.yaml if present)")
	flags.StringVarP(&opts.taskPath, "task", "t", "", "task file in JSON or YAML")
	flags.StringVarP(&opts.outDir, "out-dir", "o", "", "directory for solution.json and validation.json")
	flags.StringVar(&opts.apiKey, "api-key", "", "DeepSeek API key (prefer DEEPSEEK_API_KEY)")
	flags.StringVar(&opts.baseURL, "base-url", "", "API base URL")
	flags.StringVarP(&opts.model, "model", "m", "", "producer model")
	flags.StringVar(&opts.auditorModel, "auditor-model", "", "auditor model")
	flags.IntVar(&opts.maxTokens, "max-tokens", 0, "completion token limit per request")
	flags.DurationVar(&opts.timeout, "timeout", 0, "per-request timeout")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&opts.lenientJSON, "lenient-json", false, "repair malformed JSON replies before retrying")
	flags.BoolVar(&opts.producerOnly, "producer-only", false, "stop after the solution is saved")
	flags.BoolVarP(&opts.interactive, "interactive", "i", false, "enter the task interactively (implies --producer-only)")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	flags.BoolVar(&opts.diff, "diff", true, "show the suggested rewrite as a diff against the deliverable")
	cmd.MarkFlagsMutuallyExclusive("task", "interactive")

	return cmd
}

// overrides turns explicitly set flags into config overrides.
func (o *runOptions) overrides(flags interface{ Changed(string) bool }) config.Overrides {
	var out config.Overrides
	if flags.Changed("api-key") {
		out.APIKey = &o.apiKey
	}
	if flags.Changed("base-url") {
		out.BaseURL = &o.baseURL
	}
	if flags.Changed("model") {
		out.ProducerModel = &o.model
	}
	if flags.Changed("auditor-model") {
		out.AuditorModel = &o.auditorModel
	}
	if flags.Changed("max-tokens") {
		out.MaxTokens = &o.maxTokens
	}
	if flags.Changed("timeout") {
		out.Timeout = &o.timeout
	}
	if flags.Changed("lenient-json") {
		out.LenientJSON = &o.lenientJSON
	}
	if flags.Changed("out-dir") {
		out.OutDir = &o.outDir
	}
	if flags.Changed("log-level") {
		out.LogLevel = &o.logLevel
	}
	return out
}

func runPipeline(cmd *cobra.Command, env cliEnv, opts *runOptions) error {
	loadOpts := append([]config.Option{
		config.WithEnv(env.lookupEnv),
		config.WithOverrides(opts.overrides(cmd.Flags())),
	}, env.configOptions...)
	if opts.configPath != "" {
		loadOpts = append(loadOpts, config.WithConfigPath(opts.configPath))
	}
	cfg, _, err := config.Load(loadOpts...)
	if err != nil {
		return &ExitCodeError{Code: exitUsage, Err: fmt.Errorf("load config: %w", err)}
	}

	color := !opts.noColor && console.ColorEnabled(env.stdout, console.EnvLookup(env.lookupEnv))
	renderer := console.NewRenderer(env.stdout, console.Options{Color: color, ShowDiff: opts.diff})

	if err := cfg.Validate(); err != nil {
		renderer.Error(err)
		return &ExitCodeError{Code: exitUsage, Err: err, Reported: true}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	producerOnly := opts.producerOnly || opts.interactive
	container, err := buildContainer(cfg, renderer, producerOnly)
	if err != nil {
		renderer.Error(err)
		return reported(err)
	}
	defer func() {
		if cerr := container.Cleanup(); cerr != nil {
			fmt.Fprintf(env.stderr, "Cleanup error: %v\n", cerr)
		}
	}()

	renderer.Welcome(opts.interactive)
	spec, err := resolveTask(ctx, env, opts, renderer)
	if err != nil {
		if errors.Is(err, console.ErrAborted) {
			return err
		}
		renderer.Error(err)
		return reported(err)
	}
	renderer.Task(spec)

	result, err := container.Orchestrator.Run(ctx, spec)
	if err != nil {
		// The renderer already reported the failing stage as a sink.
		return reported(err)
	}
	renderer.Summary(result, savedPaths(container.Store, result)...)
	return nil
}

func resolveTask(ctx context.Context, env cliEnv, opts *runOptions, renderer *console.Renderer) (task.Spec, error) {
	switch {
	case opts.interactive:
		in, closer, err := env.newLineReader()
		if err != nil {
			return task.Spec{}, err
		}
		defer closer.Close()
		return renderer.Intake(ctx, in, id.NewTaskID)
	case strings.TrimSpace(opts.taskPath) != "":
		spec, err := filestore.LoadTaskSpec(opts.taskPath)
		if err != nil {
			return task.Spec{}, &ExitCodeError{Code: exitUsage, Err: err}
		}
		return spec, nil
	default:
		return demoTask(), nil
	}
}

func savedPaths(store *filestore.ArtifactStore, result *pipeline.Result) []string {
	var paths []string
	if result.Solution != nil {
		paths = append(paths, store.SolutionPath())
	}
	if result.Validation != nil {
		paths = append(paths, store.ValidationPath())
	}
	return paths
}

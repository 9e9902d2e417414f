package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alnah/go-retell/internal/artifact"
	"github.com/alnah/go-retell/internal/config"
	"github.com/alnah/go-retell/internal/format"
	"github.com/alnah/go-retell/internal/interrupt"
	"github.com/alnah/go-retell/internal/job"
	"github.com/alnah/go-retell/internal/pipeline"
)

// rewriteOptions holds the raw flag values of the rewrite command.
type rewriteOptions struct {
	jobPath       string
	output        string
	artifactsDir  string
	name          string
	target        int
	model         string
	fallbackModel string
	style         string
	language      string
	verbose       bool
	pipeline      pipeline.Config
}

// RewriteCmd creates the rewrite command.
// The env parameter provides injectable dependencies for testing.
func RewriteCmd(env *Env) *cobra.Command {
	opts := rewriteOptions{pipeline: pipeline.DefaultConfig()}

	cmd := &cobra.Command{
		Use:   "rewrite [source-file]",
		Short: "Rewrite a transcript to a target length",
		Long: `Rewrite a transcript into a narrative of the requested length.

The source is split into spans, each rewritten by the model with its own
length budget, and the results are joined in order. Outputs far above the
target lose trailing chapters.

The job comes from a source file and flags, or from a YAML job file (--job).
Flags given alongside --job override the file.

The model is picked from --model, the job file, the "model" config key,
then ` + DefaultModel + `. Set ` + EnvMock + `=true to run without API calls.`,
		Example: `  retell rewrite interview.txt --target 30000
  retell rewrite lecture.txt --target 120000 --style documentary -T fr
  retell rewrite --job jobs/interview.yaml -o interview_retold.txt
  retell rewrite talk.txt --target 8000 --model deepseek-chat --artifacts-dir ./runs`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := resolveJob(args, opts, cmd.Flags().Changed)
			if err != nil {
				return err
			}
			return runRewrite(cmd.Context(), env, f, opts)
		},
	}

	cmd.Flags().StringVar(&opts.jobPath, "job", "", "YAML job file")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file path (default: <name>_retold.txt in output-dir)")
	cmd.Flags().StringVar(&opts.artifactsDir, "artifacts-dir", "", "Directory for intermediate artifacts (default: <output-dir>/artifacts when output-dir is set)")
	cmd.Flags().StringVar(&opts.name, "name", "", "Job name used for artifacts and the default output file")
	cmd.Flags().IntVarP(&opts.target, "target", "n", 0, "Target output length in characters")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model identifier, e.g. gpt-4o-mini, deepseek-chat, gemini-2.0-flash-lite")
	cmd.Flags().StringVar(&opts.fallbackModel, "fallback-model", "", "Model tried once when a call fails on the primary model")
	cmd.Flags().StringVarP(&opts.style, "style", "s", "", "Style preset: narrative, documentary, lecture, story")
	cmd.Flags().StringVarP(&opts.language, "translate", "T", "", "Write the output in this language (ISO 639-1 code, e.g. en, fr)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log pipeline events to stderr")
	opts.pipeline.RegisterFlags(cmd.Flags())

	return cmd
}

// resolveJob builds the job file from the command line. changed reports
// whether a flag was set explicitly.
func resolveJob(args []string, opts rewriteOptions, changed func(string) bool) (job.File, error) {
	if opts.jobPath != "" {
		if len(args) > 0 {
			return job.File{}, fmt.Errorf("%w: give either a source file or --job, not both", job.ErrInvalidJob)
		}
		if err := checkFile(opts.jobPath); err != nil {
			return job.File{}, err
		}
		f, err := job.Load(opts.jobPath)
		if err != nil {
			return job.File{}, err
		}
		if changed("target") {
			f.TargetLength = opts.target
		}
		if changed("model") {
			f.Model = opts.model
		}
		if changed("style") {
			f.Style = opts.style
		}
		if changed("translate") {
			f.Language = opts.language
		}
		if changed("name") {
			f.Name = opts.name
		}
		return f, f.Validate()
	}

	if len(args) == 0 {
		return job.File{}, fmt.Errorf("%w: give a source file or --job", job.ErrInvalidJob)
	}
	if err := checkFile(args[0]); err != nil {
		return job.File{}, err
	}
	if opts.target <= 0 {
		return job.File{}, fmt.Errorf("%w (set it with --target)", ErrMissingTarget)
	}

	f := job.File{
		Name:         opts.name,
		SourceFile:   args[0],
		TargetLength: opts.target,
		Model:        opts.model,
		Style:        opts.style,
		Language:     opts.language,
	}
	return f, f.Validate()
}

// runRewrite executes one job and writes its output.
func runRewrite(ctx context.Context, env *Env, f job.File, opts rewriteOptions) error {
	// === SETUP ===

	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		_, _ = fmt.Fprintf(env.Stderr, "Warning: failed to load config: %v\n", err)
	}

	f.Model = firstNonEmpty(f.Model, cfg.Model, DefaultModel)
	fallback := firstNonEmpty(opts.fallbackModel, cfg.FallbackModel)

	j, err := f.Job()
	if err != nil {
		return err
	}

	output := config.ResolveOutputPath(opts.output, cfg.OutputDir, defaultOutputName(j.Name))
	if _, err := os.Stat(output); err == nil {
		return fmt.Errorf("output file already exists: %s: %w", output, ErrOutputExists)
	}

	logger := newLogger(env.Stderr, opts.verbose)

	gen, err := env.GeneratorFactory.NewGenerator(GeneratorOptions{
		Model:         f.Model,
		FallbackModel: fallback,
		Getenv:        env.Getenv,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	store, fs, err := openStore(env, opts.artifactsDir, cfg.OutputDir, j.Name)
	if err != nil {
		return err
	}

	// === PROCESS ===

	handler, ctx := env.Interrupts.NewHandler(ctx)
	defer handler.Stop()

	_, _ = fmt.Fprintf(env.Stderr, "Rewriting %s to %s with %s...\n",
		format.Chars(len([]rune(j.Source))), format.Chars(j.TargetLength), f.Model)

	proc := pipeline.New(gen,
		pipeline.WithConfig(opts.pipeline),
		pipeline.WithLogger(logger),
		pipeline.WithProgress(defaultProgressCallback(env.Stderr)),
	)
	out, err := proc.Run(ctx, j, store)
	if err != nil {
		if errors.Is(err, context.Canceled) && fs != nil {
			handlePartialArtifacts(env.Stderr, handler, fs.Dir())
		}
		return err
	}

	// === WRITE OUTPUT ===

	if err := writeFileAtomic(output, out.Text); err != nil {
		return err
	}

	writeSummary(env.Stderr, out.Record)
	if fs != nil {
		_, _ = fmt.Fprintf(env.Stderr, "Artifacts: %s\n", fs.Dir())
	}
	_, _ = fmt.Fprintf(env.Stderr, "Done: %s\n", output)

	if out.Record.AllPreserved() {
		return fmt.Errorf("%w: %s holds the source text", ErrNothingRewritten, output)
	}
	return nil
}

// openStore returns the artifact store for a job: explicit dir first,
// then <output-dir>/artifacts, else no artifacts. fs is nil for the
// no-op store.
func openStore(env *Env, dir, outputDir, name string) (artifact.Store, *artifact.FS, error) {
	root := dir
	if root == "" && outputDir != "" {
		root = filepath.Join(outputDir, "artifacts")
	}
	if root == "" {
		return artifact.Nop{}, nil, nil
	}
	fs, err := artifact.NewFS(config.ExpandPath(root), artifact.Prefix(name, env.Now()))
	if err != nil {
		return nil, nil, err
	}
	return fs, fs, nil
}

// handlePartialArtifacts lets the user discard the artifacts of an
// interrupted job with a second Ctrl+C.
func handlePartialArtifacts(w io.Writer, h *interrupt.Handler, dir string) {
	behavior := h.WaitForDecision("Press Ctrl+C again within 2s to discard partial artifacts.")
	if behavior == interrupt.Discard {
		if err := os.RemoveAll(dir); err != nil {
			_, _ = fmt.Fprintf(w, "Warning: cannot remove %s: %v\n", dir, err)
			return
		}
		_, _ = fmt.Fprintf(w, "Discarded partial artifacts: %s\n", dir)
		return
	}
	_, _ = fmt.Fprintf(w, "Partial artifacts kept in %s\n", dir)
}

// defaultOutputName derives the output file name from the job name.
func defaultOutputName(name string) string {
	if name == "" {
		return "retold.txt"
	}
	return artifact.Slug(name) + "_retold.txt"
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	if !verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func checkFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("cannot access file: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

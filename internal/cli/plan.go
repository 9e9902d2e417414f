package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alnah/go-retell/internal/pipeline"
)

// planOptions holds the raw flag values of the plan command.
type planOptions struct {
	jobPath     string
	outlinePath string
	target      int
	asJSON      bool
	pipeline    pipeline.Config
}

// PlanCmd creates the plan command (show the span plan without generating).
// The env parameter provides injectable dependencies for testing.
func PlanCmd(env *Env) *cobra.Command {
	opts := planOptions{pipeline: pipeline.DefaultConfig()}

	cmd := &cobra.Command{
		Use:   "plan [source-file]",
		Short: "Show how a job would be split, without calling a model",
		Long: `Print the length budget, the processing path and the span plan of a job.

No model is called. Chapter-aligned plans need an existing structure index
(--outline-file, e.g. a master_document.txt artifact); without one the
segmenter plan is shown.`,
		Example: `  retell plan interview.txt --target 30000
  retell plan interview.txt --target 30000 --outline-file runs/interview/master_document.txt
  retell plan --job jobs/interview.yaml --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := resolveJob(args, rewriteOptions{jobPath: opts.jobPath, target: opts.target}, cmd.Flags().Changed)
			if err != nil {
				return err
			}
			j, err := f.Job()
			if err != nil {
				return err
			}
			return runPlan(env, j.Source, j.TargetLength, opts)
		},
	}

	cmd.Flags().StringVar(&opts.jobPath, "job", "", "YAML job file")
	cmd.Flags().StringVar(&opts.outlinePath, "outline-file", "", "Existing structure index to plan chapters from")
	cmd.Flags().IntVarP(&opts.target, "target", "n", 0, "Target output length in characters")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the plan as JSON")
	opts.pipeline.RegisterFlags(cmd.Flags())

	return cmd
}

// runPlan computes and prints the plan for source.
func runPlan(env *Env, source string, target int, opts planOptions) error {
	var outlineDoc string
	if opts.outlinePath != "" {
		if err := checkFile(opts.outlinePath); err != nil {
			return err
		}
		// #nosec G304 -- user-specified structure index
		data, err := os.ReadFile(opts.outlinePath)
		if err != nil {
			return fmt.Errorf("cannot read outline file: %w", err)
		}
		outlineDoc = string(data)
	}

	p, err := opts.pipeline.Plan(source, target, outlineDoc)
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	writePlan(env.Stdout, p)
	return nil
}

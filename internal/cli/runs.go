package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/certifyhq/certgen/pkg/batch"
	"github.com/certifyhq/certgen/pkg/render"
)

func (c *CLI) runsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect past runs and retry their failed rows",
	}
	cmd.AddCommand(c.runsListCommand())
	cmd.AddCommand(c.runsRetryCommand())
	return cmd
}

func (c *CLI) runsListCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.newHistory()
			if err != nil {
				return err
			}
			recs, err := store.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				printInfo("No runs recorded")
				return nil
			}
			for _, r := range recs {
				status := StyleSuccess.Render("ok")
				if r.Cancelled {
					status = StyleWarning.Render("cancelled")
				} else if len(r.Failures) > 0 || len(r.ChunkFailures) > 0 {
					status = StyleWarning.Render("partial")
				}
				printInfo("%s %s", r.ID, status)
				printDetail("%s: %d ok, %d failed, started %s",
					r.BaseName, r.Succeeded, len(r.Failures),
					r.StartedAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list")
	return cmd
}

func (c *CLI) runsRetryCommand() *cobra.Command {
	opts := generateOpts{}

	cmd := &cobra.Command{
		Use:   "retry <run-id> <template-image> <layout.toml>",
		Short: "Re-render only the rows that failed in a past run",
		Long: `Retry re-renders the failed rows recorded for a run. The original CSV is
not needed: the failing records were stored with the run history. The
template and layout must match the original run for identical output.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.output == "" {
				opts.output = c.Config.OutputDir
			}
			if opts.workers == 0 {
				opts.workers = c.Config.Workers
			}
			if opts.quality == 0 {
				opts.quality = c.Config.Quality
			}
			return c.runRetry(cmd.Context(), args[0], args[1], args[2], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output directory for archives")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "worker count (default: CPU count)")
	cmd.Flags().IntVarP(&opts.quality, "quality", "q", 0, "JPEG quality 1-100")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "log progress instead of the interactive display")

	return cmd
}

func (c *CLI) runRetry(ctx context.Context, runID, templatePath, layoutPath string, opts *generateOpts) error {
	store, err := c.newHistory()
	if err != nil {
		return err
	}
	rec, err := store.Get(ctx, runID)
	if err != nil {
		return err
	}
	tasks, err := rec.RetryTasks()
	if err != nil {
		return err
	}
	c.Logger.Info("Retrying failed rows", "run", runID, "rows", len(tasks))

	in, err := c.loadInputs(templatePath, layoutPath)
	if err != nil {
		return err
	}
	in.Tasks = tasks

	formats := make([]render.Format, 0, len(rec.Formats))
	for _, f := range rec.Formats {
		formats = append(formats, render.Format(f))
	}
	opts.baseName = rec.BaseName + "_retry"

	started := time.Now()
	batchOpts := c.newGenerateOptions(opts, formats)

	var sum *batch.Summary
	if opts.plain {
		batchOpts.OnProgress = phaseLogger(c.Logger)
		sum, err = batch.New(batchOpts).Run(ctx, *in)
	} else {
		sum, err = runWithTUI(ctx, batchOpts, *in)
	}
	if err != nil {
		return err
	}

	c.saveHistory(sum, opts.baseName, formats, started)
	c.printSummary(sum)
	return nil
}

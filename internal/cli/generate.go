package cli

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/certifyhq/certgen/pkg/archive"
	"github.com/certifyhq/certgen/pkg/batch"
	"github.com/certifyhq/certgen/pkg/history"
	"github.com/certifyhq/certgen/pkg/render"
)

// generateOpts holds the command-line flags for the generate command.
type generateOpts struct {
	formats   string // comma-separated output formats
	output    string // archive output directory
	baseName  string // archive base name
	workers   int    // worker count, 0 derives from CPU count
	quality   int    // JPEG quality
	budgetMiB int    // per-chunk memory budget in MiB, 0 = default
	plain     bool   // log progress instead of the interactive display
}

// newGenerateOptions builds batch options from flags and config.
func (c *CLI) newGenerateOptions(opts *generateOpts, formats []render.Format) batch.Options {
	policy := batch.DefaultChunkPolicy
	if opts.budgetMiB == 0 {
		opts.budgetMiB = c.Config.BudgetMiB
	}
	if opts.budgetMiB > 0 {
		policy.BudgetBytes = int64(opts.budgetMiB) << 20
	}
	return batch.Options{
		Formats:  formats,
		Workers:  opts.workers,
		Quality:  opts.quality,
		BaseName: opts.baseName,
		Policy:   policy,
		Cooldown: time.Duration(c.Config.CooldownMs) * time.Millisecond,
		Exporter: archive.DirExporter{Dir: opts.output},
		Logger:   c.Logger,
	}
}

func (c *CLI) generateCommand() *cobra.Command {
	opts := generateOpts{}

	cmd := &cobra.Command{
		Use:   "generate <template-image> <layout.toml> <data.csv>",
		Short: "Render a certificate batch and package it into ZIP archives",
		Long: `Generate renders one certificate per unique CSV row, in parallel, and
packages the results into one ZIP archive per requested format. Large
batches are processed in memory-bounded chunks, producing one archive
part per chunk.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.formats == "" {
				opts.formats = c.Config.Formats
			}
			if opts.output == "" {
				opts.output = c.Config.OutputDir
			}
			if opts.workers == 0 {
				opts.workers = c.Config.Workers
			}
			if opts.quality == 0 {
				opts.quality = c.Config.Quality
			}
			return c.runGenerate(cmd.Context(), args[0], args[1], args[2], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.formats, "formats", "f", "", "output format(s): jpg, png, pdf (comma-separated)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output directory for archives")
	cmd.Flags().StringVar(&opts.baseName, "base-name", batch.DefaultBaseName, "archive base name")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "worker count (default: CPU count)")
	cmd.Flags().IntVarP(&opts.quality, "quality", "q", 0, "JPEG quality 1-100")
	cmd.Flags().IntVar(&opts.budgetMiB, "budget", 0, "per-chunk memory budget in MiB")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "log progress instead of the interactive display")

	return cmd
}

func (c *CLI) runGenerate(ctx context.Context, templatePath, layoutPath, dataPath string, opts *generateOpts) error {
	logger := c.Logger
	track := newProgress(logger)

	formats, err := render.ParseFormats(opts.formats)
	if err != nil {
		return err
	}

	in, err := c.loadInputs(templatePath, layoutPath)
	if err != nil {
		return err
	}
	in.Tasks, err = loadTasks(dataPath, in.Boxes)
	if err != nil {
		return err
	}
	logger.Info("Loaded inputs", "rows", len(in.Tasks), "boxes", len(in.Boxes), "formats", opts.formats)

	started := time.Now()
	batchOpts := c.newGenerateOptions(opts, formats)

	var sum *batch.Summary
	if opts.plain {
		batchOpts.OnProgress = phaseLogger(logger)
		sum, err = batch.New(batchOpts).Run(ctx, *in)
	} else {
		sum, err = runWithTUI(ctx, batchOpts, *in)
	}
	if err != nil {
		return err
	}

	c.saveHistory(sum, opts.baseName, formats, started)
	c.printSummary(sum)
	track.done("Run complete")
	return nil
}

// phaseLogger logs phase transitions only, not per-record updates.
func phaseLogger(logger *log.Logger) func(batch.Progress) {
	var last batch.Phase
	return func(p batch.Progress) {
		if p.Phase == last {
			return
		}
		last = p.Phase
		logger.Info("Phase change", "phase", p.Phase, "completed", p.CompletedCount, "total", p.TotalCount)
	}
}

// saveHistory persists the run record; failures are logged, not fatal.
func (c *CLI) saveHistory(sum *batch.Summary, baseName string, formats []render.Format, started time.Time) {
	if sum == nil {
		return
	}
	store, err := c.newHistory()
	if err != nil {
		c.Logger.Warn("Opening history store", "error", err)
		return
	}
	var names []string
	for _, f := range formats {
		names = append(names, string(f))
	}
	if err := store.Save(context.Background(), history.FromSummary(sum, baseName, names, started)); err != nil {
		c.Logger.Warn("Saving run history", "error", err)
	}
}

func (c *CLI) printSummary(sum *batch.Summary) {
	if sum == nil {
		return
	}
	if sum.Cancelled {
		printWarning("Run %s cancelled: %d certificates completed", sum.RunID, sum.SucceededCount)
	} else {
		printSuccess("Run %s: %d certificates generated", sum.RunID, sum.SucceededCount)
	}
	for _, loc := range sum.Archives {
		printDetail("archive: %s", loc)
	}
	if len(sum.Failures) > 0 {
		printWarning("%d rows failed", len(sum.Failures))
		for _, f := range sum.Failures {
			printDetail("row %d (%s): %s", f.RowIndex+1, f.Name, f.Error)
		}
		printInfo("retry failed rows with: certgen runs retry %s <template> <layout>", sum.RunID)
	}
	for _, cf := range sum.ChunkFailures {
		printError("chunk %d (%s) failed: %s", cf.ChunkIndex+1, cf.Format, cf.Error)
	}
}

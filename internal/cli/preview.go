package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/certifyhq/certgen/pkg/errors"
	"github.com/certifyhq/certgen/pkg/render"
	"github.com/certifyhq/certgen/pkg/template"
)

// previewSampleText fills boxes with no supplied value.
const previewSampleText = "Sample Text"

func (c *CLI) previewCommand() *cobra.Command {
	var (
		output  string
		quality int
		values  []string
	)

	cmd := &cobra.Command{
		Use:   "preview <template-image> <layout.toml>",
		Short: "Render one certificate with sample or supplied values",
		Long: `Preview renders a single certificate so a layout can be checked before
running a full batch. Box values default to sample text; use --set to
supply real values per field.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPreview(args[0], args[1], output, quality, values)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "preview.jpg", "output file")
	cmd.Flags().IntVarP(&quality, "quality", "q", 0, "JPEG quality 1-100")
	cmd.Flags().StringArrayVar(&values, "set", nil, "field value as field=text (repeatable)")

	return cmd
}

func (c *CLI) runPreview(templatePath, layoutPath, output string, quality int, values []string) error {
	in, err := c.loadInputs(templatePath, layoutPath)
	if err != nil {
		return err
	}

	record := make(map[string]string)
	for _, b := range template.Printable(in.Boxes) {
		record[b.Field] = previewSampleText
	}
	for _, kv := range values {
		field, text, ok := strings.Cut(kv, "=")
		if !ok {
			return errors.New(errors.ErrCodeInvalidInput, "invalid --set value %q, want field=text", kv)
		}
		record[field] = text
	}

	if quality == 0 {
		quality = c.Config.Quality
	}
	rend, err := render.New(render.Options{
		Background: in.Background,
		Boxes:      in.Boxes,
		FontData:   in.FontData,
		Encoding:   render.EncodeJPEG,
		Quality:    quality,
	})
	if err != nil {
		return err
	}

	payload, err := rend.Render(record)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, payload, 0o644); err != nil {
		return err
	}

	printSuccess("Preview written to %s", output)
	return nil
}

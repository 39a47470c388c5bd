package cli

import (
	"github.com/spf13/cobra"

	"github.com/certifyhq/certgen/pkg/fontcat"
)

func (c *CLI) fontsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fonts",
		Short: "List fonts available for box layouts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := fontcat.New(c.Config.FontDir)
			fonts, err := catalog.List()
			if err != nil {
				return err
			}
			if len(fonts) == 0 {
				printWarning("No fonts found in %s", c.Config.FontDir)
				return nil
			}
			printInfo("%d fonts available", len(fonts))
			for _, f := range fonts {
				printDetail("%s (%s)", f.DisplayName, f.Filename)
			}
			return nil
		},
	}
}

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newMinimizeCommand(g *globals, outW, errW io.Writer) *cobra.Command {
	var corpus, out string
	cmd := &cobra.Command{
		Use:   "minimize",
		Short: "Copy the smallest subset of a corpus that keeps every API triple",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.baseConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("corpus") && cfg.OutDir != "" {
				corpus = cfg.OutDir
			}
			if out == "" {
				return &ExitError{Code: ExitFailure, Message: "--out is required"}
			}
			a, err := newApp(errW, &cfg)
			if err != nil {
				return err
			}
			res, err := a.Minimize(cmd.Context(), corpus, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(outW, "kept %d of %d seeds covering %d API triples in %s\n", len(res.Kept), res.Seeds, res.Triples, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&corpus, "corpus", "corpus", "Corpus directory to minimize")
	cmd.Flags().StringVar(&out, "out", "", "Directory to write the minimized corpus to")
	return cmd
}

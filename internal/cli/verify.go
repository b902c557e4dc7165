package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/vk/seedgrid/internal/fsutil"
)

func newVerifyCommand(g *globals, outW, errW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <seed-file|dir>...",
		Short: "Parse seed files and replay them through the typestate tracker",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.baseConfig()
			if err != nil {
				return err
			}
			files, err := fsutil.FindFiles(args, ".cc")
			if err != nil {
				return err
			}
			a, err := newApp(errW, &cfg)
			if err != nil {
				return err
			}
			results, err := a.Verify(cmd.Context(), files)
			if err != nil {
				return err
			}

			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(outW, "FAIL %s: %v\n", r.Path, r.Err)
					continue
				}
				fmt.Fprintf(outW, "ok   %s (%s, id %d, %d steps)\n", r.Path, r.Library, r.ID, r.Steps)
			}
			if failed > 0 {
				return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d of %d seeds failed verification", failed, len(results))}
			}
			return nil
		},
	}
}

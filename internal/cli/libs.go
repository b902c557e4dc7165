package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newLibsCommand(g *globals, outW, errW io.Writer) *cobra.Command {
	var descriptors []string
	cmd := &cobra.Command{
		Use:   "libs",
		Short: "List the libraries seeds can be generated for",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.baseConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("descriptor") {
				cfg.Descriptors = descriptors
			}
			a, err := newApp(errW, &cfg)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(outW, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LIBRARY\tFUNCTIONS\tKINDS\tCRITICAL")
			for _, lib := range a.Libraries() {
				if lib.Err != nil {
					fmt.Fprintf(tw, "%s\t-\t-\tinvalid descriptor\n", lib.Name)
					continue
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", lib.Name, lib.Functions, lib.Kinds, strings.Join(lib.Critical, ","))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringSliceVar(&descriptors, "descriptor", nil, "Descriptor file or directory to load in addition to the built-ins")
	return cmd
}

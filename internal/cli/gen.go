package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vk/seedgrid/internal/app"
)

type genFlags struct {
	library       string
	descriptors   []string
	template      string
	count         int
	out           string
	seed          int64
	workers       int
	mode          string
	execCmd       string
	timeout       time.Duration
	memMB         int
	quota         int
	index         string
	genTimeout    time.Duration
	roundSize     int
	numNewTriples int
	quietRounds   int
	maxAttempts   int
	statusPort    int
}

func newGenCommand(g *globals, outW, errW io.Writer) *cobra.Command {
	f := &genFlags{}
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate seeds for a library into a corpus directory",
		Example: `  seedgrid gen --lib zlib --count 50 --out corpus
  seedgrid gen --lib cJSON --template Init:1,Configure:3,Operate:2,Cleanup:1 --count 20 --out corpus
  seedgrid gen --lib libpng --mode executed --exec-cmd "./png_driver" --timeout 5s --mem-mb 2048 --out corpus`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.baseConfig()
			if err != nil {
				return err
			}
			f.apply(cmd, &cfg)
			valid, err := app.NewConfig(cfg)
			if err != nil {
				return &ExitError{Code: ExitFailure, Message: "invalid configuration: " + err.Error()}
			}
			a, err := newApp(errW, valid)
			if err != nil {
				return err
			}
			rep, err := a.Run(cmd.Context(), valid)
			if rep != nil {
				printReport(outW, valid, rep)
			}
			return err
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.library, "lib", "", "Library to generate seeds for (see 'seedgrid libs')")
	fl.StringSliceVar(&f.descriptors, "descriptor", nil, "Descriptor file or directory; overrides a built-in library of the same name")
	fl.StringVar(&f.template, "template", "", "Phase template, e.g. Init:2,Configure:2,Operate:2,Cleanup:1")
	fl.IntVar(&f.count, "count", 0, "Number of seeds to accept")
	fl.StringVar(&f.out, "out", "", "Corpus directory")
	fl.Int64Var(&f.seed, "seed", 0, "First synthesis seed")
	fl.IntVar(&f.workers, "workers", 0, "Number of concurrent workers")
	fl.StringVar(&f.mode, "mode", "", "Scoring mode: static or executed")
	fl.StringVar(&f.execCmd, "exec-cmd", "", "Coverage driver command for executed scoring")
	fl.DurationVar(&f.timeout, "timeout", 0, "Wall-clock limit per executed run")
	fl.IntVar(&f.memMB, "mem-mb", 0, "Address-space cap per executed run in MiB, 0 for none")
	fl.IntVar(&f.quota, "quota", 0, "Maximum seeds per library and phase template, 0 for none")
	fl.StringVar(&f.index, "index", "", "Dedup index: memory or sqlite")
	fl.DurationVar(&f.genTimeout, "gen-timeout", 0, "Stop generation after this long")
	fl.IntVar(&f.roundSize, "round-size", 0, "Candidates synthesized per feedback round")
	fl.IntVar(&f.numNewTriples, "num-new-triples", 0, "New API triples a round needs to not count as quiet")
	fl.IntVar(&f.quietRounds, "quiet-rounds", 0, "Consecutive quiet rounds that end generation, 0 to never converge")
	fl.IntVar(&f.maxAttempts, "max-attempts", 0, "Maximum candidates per run")
	fl.IntVar(&f.statusPort, "status-port", 0, "Port for the HTTP status server, 0 is disabled")
	return cmd
}

// apply copies the flags the user set onto cfg.
func (f *genFlags) apply(cmd *cobra.Command, cfg *app.Config) {
	set := cmd.Flags().Changed
	if set("lib") {
		cfg.Library = f.library
	}
	if set("descriptor") {
		cfg.Descriptors = f.descriptors
	}
	if set("template") {
		cfg.Template = f.template
	}
	if set("count") {
		cfg.Count = f.count
	}
	if set("out") {
		cfg.OutDir = f.out
	}
	if set("seed") {
		cfg.Seed = f.seed
	}
	if set("workers") {
		cfg.WorkerCount = f.workers
	}
	if set("mode") {
		cfg.Mode = f.mode
	}
	if set("exec-cmd") {
		cfg.ExecCmd = strings.Fields(f.execCmd)
	}
	if set("timeout") {
		cfg.Timeout = f.timeout
	}
	if set("mem-mb") {
		cfg.MemoryLimitMB = f.memMB
	}
	if set("quota") {
		cfg.Quota = f.quota
	}
	if set("index") {
		cfg.Index = f.index
	}
	if set("gen-timeout") {
		cfg.GenTimeout = f.genTimeout
	}
	if set("round-size") {
		cfg.RoundSize = f.roundSize
	}
	if set("num-new-triples") {
		cfg.NumNewTriples = f.numNewTriples
	}
	if set("quiet-rounds") {
		cfg.QuietRounds = f.quietRounds
	}
	if set("max-attempts") {
		cfg.MaxAttempts = f.maxAttempts
	}
	if set("status-port") {
		cfg.StatusPort = f.statusPort
	}
}

func printReport(w io.Writer, cfg *app.Config, rep *app.Report) {
	fmt.Fprintf(w, "accepted %d/%d seeds for %s in %s\n", rep.Accepted, cfg.Count, rep.Library, cfg.OutDir)
	fmt.Fprintf(w, "attempts %d, degraded %d, unmeasured %d, rounds %d, triples %d, branches %d, last id %d\n",
		rep.Attempts, rep.Degraded, rep.Unmeasured, rep.Rounds, rep.Triples, rep.Branches, rep.LastID)
	if len(rep.Rejected) > 0 {
		reasons := slices.Sorted(maps.Keys(rep.Rejected))
		parts := make([]string, len(reasons))
		for i, r := range reasons {
			parts[i] = fmt.Sprintf("%s=%d", r, rep.Rejected[r])
		}
		fmt.Fprintf(w, "rejected: %s\n", strings.Join(parts, " "))
	}
	switch {
	case rep.Converged:
		fmt.Fprintln(w, "stopped: converged")
	case rep.TimedOut:
		fmt.Fprintln(w, "stopped: generation timeout")
	}
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vk/seedgrid/internal/app"
	"github.com/vk/seedgrid/internal/hcl"
)

// globals are the flags shared by every command.
type globals struct {
	configPath string
	logLevel   string
	logFormat  string
	getenv     func(string) string
}

// Execute runs the seedgrid command line with args. Command output goes to
// outW, logs to errW. A non-nil error is always an *ExitError.
func Execute(ctx context.Context, args []string, outW, errW io.Writer) error {
	root := NewRootCommand(outW, errW, os.Getenv)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		return exitError(err)
	}
	return nil
}

// NewRootCommand builds the command tree. getenv supplies SEEDGRID_*
// overrides.
func NewRootCommand(outW, errW io.Writer, getenv func(string) string) *cobra.Command {
	g := &globals{getenv: getenv}
	root := &cobra.Command{
		Use:   "seedgrid",
		Short: "Synthesize typestate-valid API-sequence seeds for C libraries",
		Long: `seedgrid builds fuzzing seeds for C libraries from a descriptor of their API.

Each seed is a C++ test function calling the library in four phases
(Init, Configure, Operate, Cleanup). Every sequence is checked against the
library's resource typestate, so seeds never use a freed handle and never
leak, then scored and curated into a deduplicated corpus.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(errW)

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "YAML run file; flags override its values")
	pf.StringVar(&g.logLevel, "log-level", "", "Logging level: debug, info, warn or error")
	pf.StringVar(&g.logFormat, "log-format", "", "Log output format: text or json")

	root.AddCommand(
		newGenCommand(g, outW, errW),
		newVerifyCommand(g, outW, errW),
		newMinimizeCommand(g, outW, errW),
		newLibsCommand(g, outW, errW),
	)
	return root
}

// baseConfig layers defaults, the run file, the environment and the
// logging flags.
func (g *globals) baseConfig() (app.Config, error) {
	cfg := app.DefaultConfig()
	if g.configPath != "" {
		if err := app.LoadConfigFile(g.configPath, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := app.ApplyEnv(&cfg, g.getenv); err != nil {
		return cfg, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = strings.ToLower(g.logLevel)
	}
	if g.logFormat != "" {
		cfg.LogFormat = strings.ToLower(g.logFormat)
	}
	return cfg, nil
}

// newApp builds the application, turning a startup panic into an error.
func newApp(errW io.Writer, cfg *app.Config) (a *app.App, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("application startup panicked: %v", r)
		}
	}()
	return app.NewApp(errW, cfg, hcl.NewLoader())
}

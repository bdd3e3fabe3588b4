package main

import (
	"fmt"
	"os"

	"github.com/chazu/brepmesh/pkg/config"
	"github.com/chazu/brepmesh/pkg/kernel/brep"
	"github.com/chazu/brepmesh/pkg/kernel/sdfx"
	"github.com/chazu/brepmesh/pkg/meshadapt"
	"github.com/chazu/brepmesh/pkg/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	deflection float64
	angle      float64
	ratio      float64
	relative   bool
	workers    int
)

var rootCmd = &cobra.Command{
	Use:   "brepmesh",
	Short: "Incremental B-Rep tessellation for scene scripts",
	Long: `brepmesh evaluates a scene script into placed primitives, builds a
boundary representation for each and meshes it to a chordal deflection and
angular tolerance. Meshes are kept between runs in watch mode, so an edit
re-meshes only the faces it touched.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.BoolVarP(&verbose, "verbose", "v", false, "Log per-part mesher activity")
	f.StringVarP(&configPath, "config", "c", "", "YAML or JSON settings file")
	f.Float64Var(&deflection, "deflection", 0, "Maximum chordal deflection")
	f.Float64Var(&angle, "angle", 0, "Maximum angular deflection in radians")
	f.Float64Var(&ratio, "ratio", 0, "Cap on relative edge deflection, as a fraction of the shape size")
	f.BoolVar(&relative, "relative", false, "Treat deflection as a fraction of entity size")
	f.IntVar(&workers, "workers", 0, "Goroutines per mesher phase (0 uses GOMAXPROCS)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// settings loads the config file, if any, and applies the flags the user
// set explicitly on top of it.
func settings(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return config.Config{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("deflection") {
		cfg.Mesh.Deflection = deflection
	}
	if flags.Changed("angle") {
		cfg.Mesh.Angle = angle
	}
	if flags.Changed("ratio") {
		cfg.Mesh.Ratio = ratio
	}
	if flags.Changed("relative") {
		cfg.Mesh.Relative = relative
	}
	if flags.Changed("workers") {
		cfg.Mesh.Workers = workers
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newSession(cfg config.Config, log zerolog.Logger) *session.Session {
	m := meshadapt.New(
		meshadapt.WithParams(cfg.Mesh),
		meshadapt.WithLogger(log.With().Str("component", "meshadapt").Logger()),
	)
	opts := []session.Option{session.WithLogger(log)}
	if cfg.Verify {
		opts = append(opts, session.WithOracle(sdfx.New()))
	}
	return session.New(brep.New(), m, opts...)
}

func readScript(path string) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to read script")
	}
	return string(src), nil
}

// scriptErrors turns script errors into a command error after printing them.
func scriptErrors(res *session.Result) error {
	if len(res.Errors) == 0 {
		return nil
	}
	for _, e := range res.Errors {
		fmt.Fprintf(os.Stderr, "  %v\n", e)
	}
	return errors.Errorf("script has %d error(s)", len(res.Errors))
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/chazu/brepmesh/pkg/kernel"
	"github.com/chazu/brepmesh/pkg/session"
	"github.com/chazu/brepmesh/pkg/watcher"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <script>",
	Short: "Re-mesh a scene script whenever it changes",
	Long: `Mesh the script once, then watch it for changes. Each save is
re-evaluated and only the parts and faces it touched are re-meshed; the STL
is rewritten only when some mesh actually changed.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output STL path (default: script name with .stl)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := settings(cmd)
	if err != nil {
		return err
	}
	log := newLogger()
	script, out := args[0], stlPath(args[0])
	s := newSession(cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Callbacks run on timer goroutines; requests funnel through one loop.
	requests := make(chan struct{}, 1)
	requests <- struct{}{}

	w, err := watcher.New(cfg.Debounce(), log)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Watch([]string{script}, func(string) {
		select {
		case requests <- struct{}{}:
		default:
		}
	}); err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()
	log.Info().Str("script", script).Str("output", out).Msg("watching")

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case <-requests:
			rebuild(ctx, s, log, script, out)
		}
	}
}

func rebuild(ctx context.Context, s *session.Session, log zerolog.Logger, script, out string) {
	src, err := readScript(script)
	if err != nil {
		log.Error().Err(err).Msg("read failed")
		return
	}
	res, err := s.Run(ctx, src)
	if err != nil {
		log.Error().Err(err).Msg("run failed")
		return
	}
	if len(res.Errors) > 0 {
		return
	}
	if !res.Modified {
		log.Info().Msg("no mesh changes")
		return
	}
	if err := kernel.SaveSTL(out, res.Meshes()...); err != nil {
		log.Error().Err(err).Msg("write failed")
		return
	}
	log.Info().Str("output", out).Int("triangles", res.Triangles()).Msg("wrote stl")
}

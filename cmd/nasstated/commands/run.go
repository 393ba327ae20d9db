package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/nasstate/internal/config"
	"git.home.luguber.info/inful/nasstate/internal/daemon"
	"git.home.luguber.info/inful/nasstate/internal/version"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	Addr string `help:"Admin HTTP listen address; overrides the configuration"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	if r.Addr != "" {
		cfg.HTTP.Addr = r.Addr
	}
	root.applyLogging(g, cfg.Logging)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunDaemon(ctx, cfg, g.Logger)
}

// RunDaemon runs the daemon until ctx is canceled.
func RunDaemon(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("Starting nasstated",
		slog.String("version", version.Version),
		slog.String("emhttp_dir", cfg.Paths.EmhttpDir))

	d, err := daemon.New(cfg, daemon.WithLogger(logger))
	if err != nil {
		return err
	}
	return d.Run(ctx)
}

package main

import (
	"context"

	"github.com/desertthunder/echoes/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API until the context is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Server
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		cfg.Port = port
	}

	engine, err := r.pipeline()
	if err != nil {
		return err
	}

	if !r.credentials.Authenticated() {
		r.logger.Warn("no spotify session, visit /auth/login to connect", "addr", cfg.Addr())
	}

	srv := server.New(cfg, server.Deps{
		Engine:    engine,
		Publisher: r.publisher,
		Auth:      r.credentials,
		Logger:    r.logger,
	})
	return srv.Run(ctx)
}

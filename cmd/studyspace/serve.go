package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thywilljoshua/studyspace/internal/auth"
	"github.com/thywilljoshua/studyspace/internal/server"
)

func serveCmd(cfgPath *string) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the study API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()
			if port == "" {
				port = a.cfg.Server.Port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			gem, chat, refiner, err := a.models(ctx)
			if err != nil {
				return err
			}
			d := server.Deps{
				Chat:               chat,
				Refiner:            refiner,
				Logger:             a.log,
				BodyLimitMB:        a.cfg.Server.BodyLimitMB,
				DefaultTemperature: a.cfg.Chat.Temperature,
			}
			if gem != nil {
				d.Vision = gem
			} else {
				a.log.Warn("server", "GEMINI_API_KEY not set, image scan disabled", nil)
			}
			if iss, err := auth.NewIssuer(a.cfg.Auth.Secret, a.cfg.Auth.TTL); err == nil {
				d.Issuer = iss
			} else {
				a.log.Warn("server", "JWT_SECRET not set, chat endpoint disabled", nil)
			}

			srv := server.New(d)
			errc := make(chan error, 1)
			go func() { errc <- srv.Listen(":" + port) }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
				a.log.Info("server", "shutting down", nil)
				return srv.Shutdown()
			}
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (default from config)")
	return cmd
}

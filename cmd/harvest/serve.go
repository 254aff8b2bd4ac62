package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/api"
	"github.com/Veraticus/the-harvest-must-flow/internal/certs"
	"github.com/Veraticus/the-harvest-must-flow/internal/common"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve chart and table data over HTTP",
		Long: `Start a read-only JSON API exposing daily, year-aligned, distribution
and integration series for charts.`,
		RunE: runServe,
	}
	cmd.Flags().String("addr", "", "Listen address (default: server.addr)")
	cmd.Flags().Bool("tls", false, "Serve HTTPS with a self-signed certificate from server.cert_dir")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.tls", cmd.Flags().Lookup("tls"))
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if viper.GetString("logging.level") != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           api.NewRouter(api.NewHandler(a.reporter)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if a.cfg.Server.TLS {
		tlsConfig, err := certs.NewStore(a.cfg.Server.CertDir, a.cfg.Server.Hosts...).TLSConfig()
		if err != nil {
			return common.NewUserError("could not load TLS certificate", err)
		}
		srv.TLSConfig = tlsConfig
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Listening", "addr", srv.Addr, "tls", srv.TLSConfig != nil)
		if srv.TLSConfig != nil {
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

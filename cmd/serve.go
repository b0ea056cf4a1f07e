package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"near-intents/pkg/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve quotes, withdrawal plans and settlement status over HTTP.

Endpoints:
  POST /v1/quote
  POST /v1/withdraw-plan
  GET  /v1/status/:hash[?wait=true]
  GET  /healthz
  GET  /metrics

Examples:
  near-intents serve
  near-intents serve --addr :9000`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default server.addr from config)")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, log := setup(cmd)
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := signalContext()
	defer cancel()

	a := connect(ctx, cmd, cfg, log)
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(a, a.Quotes, a.Relay, cfg.Settlement, log).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
	}()

	color.Green("Listening on %s", cfg.Server.Addr)
	log.Infof("[API] serving %d tokens on %s", a.Registry.Len(), cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		printError(err)
		os.Exit(1)
	}
}

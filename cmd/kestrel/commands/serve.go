package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestreldb/kestrel/errors"
	"github.com/kestreldb/kestrel/logger"
	"github.com/kestreldb/kestrel/server"
	"github.com/kestreldb/kestrel/sym"
)

var servePort int

// ServeCmd starts the HTTP query API.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: sym.Server + " Start the HTTP query API",
	Long: sym.Server + ` serve — Start the HTTP query API

Serves POST /api/query, GET /api/health and GET /api/schemas until
interrupted. Shutdown drains in-flight requests.

Examples:
  kestrel serve
  kestrel serve --port 9000`,
	RunE: runServeCommand,
}

func init() {
	ServeCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (overrides config)")
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	database, cfg, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	engine, err := buildEngine(database, cfg)
	if err != nil {
		return err
	}

	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	srv := server.New(engine, cfg, logger.Logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server failed")
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

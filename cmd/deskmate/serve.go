package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deskmate-ai/deskmate"
	"github.com/deskmate-ai/deskmate/config"
	"github.com/deskmate-ai/deskmate/remote"
	"github.com/deskmate-ai/deskmate/web"
)

// ServeCmd starts the web chat server. The remote query endpoint is mounted
// on the same listener, so `deskmate query` works against it.
type ServeCmd struct {
	configFlag

	Addr string `short:"a" long:"addr" description:"listen address" default:":8080"`
}

// Execute implements flags.Commander.
func (s *ServeCmd) Execute(args []string) error {
	cfg, err := config.Load(s.Config)
	if err != nil {
		return err
	}

	d, err := deskmate.New(cfg)
	if err != nil {
		return err
	}

	logger := d.Logger()

	mux := http.NewServeMux()
	mux.Handle("/", web.NewServer(d, func(o *web.ServerOptions) { o.Logger = logger }))
	mux.Handle("POST /v1/query", remote.NewServer(remote.NewEngine(d, func(o *remote.EngineOptions) { o.Logger = logger })))

	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("serve.listening", "addr", s.Addr)
	fmt.Printf("Deskmate listening on %s\n", s.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("serve.shutdown", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			_ = d.Close()

			return fmt.Errorf("failed to shut down server: %w", err)
		}

		return d.Close()
	case err := <-errCh:
		_ = d.Close()

		return err
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	serveAddr            string
	serveShutdownTimeout time.Duration

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the demo HTTP server",
		Long: `Start an HTTP server with demo routes for every payload shape:

  /data        plain data
  /users       a paginated collection of users
  /users/one   a single user resolved asynchronously
  /broken      an array whose items fail
  /empty       no payload
  /accounts    schema-tagged accounts (schema variant only)
  /stats       orchestrator counters

Send X-User-ID to act as an authenticated user.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			o, err := buildOrchestrator(cfg)
			if err != nil {
				return err
			}
			defer o.Close()

			server := &http.Server{
				Addr:              serveAddr,
				Handler:           authenticate(routes(o)),
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			errs := make(chan error, 1)
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errs <- err
				}
				close(errs)
			}()
			log.Printf("%s listening on %s (variant %q)", o.Name(), serveAddr, variantOf(cfg.Variant))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			select {
			case err := <-errs:
				return err
			case <-ctx.Done():
			}

			log.Printf("shutdown signal received")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			log.Printf("server shut down successfully")
			return nil
		},
	}
)

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", ":8080", "listen address")
	serveCmd.Flags().DurationVar(&serveShutdownTimeout, "shutdown-timeout", 10*time.Second, "time allowed for in-flight requests on shutdown")
}

func variantOf(v string) string {
	if v == "" {
		return "plain"
	}
	return v
}

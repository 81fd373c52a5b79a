package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/gridstitch/internal/artifact"
	"github.com/kiesman99/gridstitch/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server with the upload form and composition API",
	Long: `Start an HTTP server that serves an upload form at / and a REST API
under /api/v1 for composing image grids.

Composed images are kept in the artifact directory so they can be downloaded
again; they are removed once they are older than --artifact-ttl.

Examples:
  # Start server on default port 8080
  gridstitch serve

  # Start server on custom port
  gridstitch serve --port 3000

  # Listen on all interfaces and keep results for a day
  gridstitch serve --bind 0.0.0.0 --artifact-ttl 24h`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server configuration
	serveCmd.Flags().StringP("bind", "b", "localhost", "bind address")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().Duration("timeout", 30*time.Second, "request timeout")
	serveCmd.Flags().Int64("max-upload", server.DefaultMaxUploadBytes, "maximum request body in bytes")
	serveCmd.Flags().Duration("artifact-ttl", time.Hour, "how long composed images stay downloadable")

	// Bind flags to viper
	viper.BindPFlag("server.bind", serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.timeout", serveCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("server.max-upload", serveCmd.Flags().Lookup("max-upload"))
	viper.BindPFlag("server.artifact-ttl", serveCmd.Flags().Lookup("artifact-ttl"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	bind := viper.GetString("server.bind")
	port := viper.GetInt("server.port")
	timeout := viper.GetDuration("server.timeout")
	ttl := viper.GetDuration("server.artifact-ttl")

	// defaults for requests that leave parameters out
	defaults, err := layoutParams()
	if err != nil {
		return err
	}

	store, err := artifact.NewOSStore(viper.GetString("artifact-dir"))
	if err != nil {
		return err
	}

	apiServer := server.NewServer(Version, store, defaults, logger)
	apiServer.MaxUploadBytes = viper.GetInt64("server.max-upload")

	addr := fmt.Sprintf("%s:%d", bind, port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.NewRouter(apiServer, timeout),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if ttl > 0 {
		go apiServer.RunJanitor(ctx, ttl, ttl/4+time.Second)
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()

		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", "error", err)
		}
	}()

	logger.Info("starting gridstitch server", "addr", addr, "artifact_dir", store.Dir(), "artifact_ttl", ttl)
	fmt.Fprintf(cmd.ErrOrStderr(), "Upload form: http://%s/\n", addr)
	fmt.Fprintf(cmd.ErrOrStderr(), "Health check: http://%s%s/health\n", addr, server.APIPrefix)
	fmt.Fprintf(cmd.ErrOrStderr(), "Compose endpoint: http://%s%s/compositions\n", addr, server.APIPrefix)

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

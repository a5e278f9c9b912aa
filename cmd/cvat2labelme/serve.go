// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/cvat2labelme/internal/cache"
	"github.com/pdiddy/cvat2labelme/internal/convert"
	"github.com/pdiddy/cvat2labelme/internal/session"
	"github.com/pdiddy/cvat2labelme/internal/web"
	"github.com/pdiddy/cvat2labelme/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the browser upload form",
	Long: `Serve starts an HTTP server with an upload form for one CVAT XML file.
The converted LabelMe JSON files are offered as a ZIP download. Results are
cached by file content, in memory or in the SQLite file given by --cache-path.

POST /api/convert accepts the same upload and answers with the ZIP directly.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Close()

	store, err := openStore(cfg.Cache)
	if err != nil {
		return err
	}
	defer store.Close()

	memo := cache.NewMemo(store, convert.New(convert.WithLogger(log)), log)
	sessions := session.NewManager(cfg.Serve.SessionTTL)
	srv := web.NewServer(cfg.Serve, memo, sessions, log)

	httpSrv := &http.Server{
		Addr:              cfg.Serve.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Serve.SessionTTL > 0 {
		go sweepSessions(ctx, sessions, cfg.Serve.SessionTTL)
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening on %s", cfg.Serve.Addr)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// openStore returns the SQLite cache when a path is configured and an
// in-memory cache otherwise.
func openStore(cfg types.CacheConfig) (cache.Store, error) {
	if cfg.Path == "" {
		return cache.NewMemoryStore(), nil
	}
	return cache.NewSQLiteStore(cfg)
}

func sweepSessions(ctx context.Context, sessions *session.Manager, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sessions.Sweep()
		}
	}
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().Int64("max-upload", 50<<20, "maximum upload size in bytes")
	serveCmd.Flags().Duration("session-ttl", time.Hour, "idle time after which a form session is dropped")
	serveCmd.Flags().Int("max-entries", 0, "maximum number of cached conversions (0 keeps all)")

	viper.BindPFlag("serve.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("serve.max_upload_bytes", serveCmd.Flags().Lookup("max-upload"))
	viper.BindPFlag("serve.session_ttl", serveCmd.Flags().Lookup("session-ttl"))
	viper.BindPFlag("cache.max_entries", serveCmd.Flags().Lookup("max-entries"))

	rootCmd.AddCommand(serveCmd)
}
